package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to. App implements
// it; tests use a stub.
type execIface interface {
	isLoggedIn() bool
	runCommand(ctx context.Context, fn func(ctx context.Context) error)

	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	List(ctx context.Context, author string) error
	Show(ctx context.Context, id string) error
	Add(ctx context.Context) error
	AddImage(ctx context.Context, path string) error
	Edit(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	DeleteAuthor(ctx context.Context, author string) error
	Reorder(ctx context.Context, ids string) error
	Authors(ctx context.Context, order string) error
	Titles(ctx context.Context) error
	Undo(ctx context.Context) error
	Export(ctx context.Context, dir string) error
	Import(ctx context.Context, path string) error
	Clear(ctx context.Context) error
	Load(ctx context.Context) error
}

var errUsage = errors.New("usage")

const helpText = `Commands:
  list [author]          list entries, optionally of one author
  show <id>              show an entry
  add                    add a text entry
  addimage <file>        add an image entry
  edit <id>              change the title or text of an entry
  delete <id>            delete an entry
  deleteauthor <author>  delete every entry of an author
  reorder <id...>        put entries in the given order
  authors [a,b,...]      show or set the author order
  titles                 change the collection headings
  undo                   undo the last delete
  export [dir]           write the collection to a JSON file
  import <file>          replace the collection with a JSON file
  clear                  delete everything
  reload                 load the collection again
  status                 show sync and storage status
  register | login | logout
  exit | quit`

// runREPL reads commands from reader until EOF, "exit" or "quit" and
// dispatches them to a. The first word is the command; the rest of the line
// is its argument.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, out io.Writer) {
	for {
		fmt.Fprintf(out, "gv %s> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			return
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		arg = strings.TrimSpace(arg)
		if cmd == "" {
			continue
		}

		var fn func(ctx context.Context) error
		switch cmd {
		case "help":
			fmt.Fprintln(out, helpText)
		case "register":
			fn = a.Register
		case "login":
			fn = a.Login
		case "logout":
			fn = a.Logout
		case "status":
			fn = a.Status
		case "l", "list":
			fn = func(ctx context.Context) error { return a.List(ctx, arg) }
		case "show":
			fn = func(ctx context.Context) error { return a.Show(ctx, arg) }
		case "add":
			fn = a.Add
		case "addimage":
			fn = func(ctx context.Context) error { return a.AddImage(ctx, arg) }
		case "edit":
			fn = func(ctx context.Context) error { return a.Edit(ctx, arg) }
		case "delete", "rm":
			fn = func(ctx context.Context) error { return a.Delete(ctx, arg) }
		case "deleteauthor":
			fn = func(ctx context.Context) error { return a.DeleteAuthor(ctx, arg) }
		case "reorder":
			fn = func(ctx context.Context) error { return a.Reorder(ctx, arg) }
		case "authors":
			fn = func(ctx context.Context) error { return a.Authors(ctx, arg) }
		case "titles":
			fn = a.Titles
		case "undo":
			fn = a.Undo
		case "export":
			fn = func(ctx context.Context) error { return a.Export(ctx, arg) }
		case "import":
			fn = func(ctx context.Context) error { return a.Import(ctx, arg) }
		case "clear":
			fn = a.Clear
		case "reload":
			fn = a.Load
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}

		if fn != nil {
			a.runCommand(ctx, fn)
		}
	}
}
