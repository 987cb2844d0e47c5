package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/growthvault/internal/client/persistence"
	"github.com/dmitrijs2005/growthvault/internal/client/richtext"
	"github.com/dmitrijs2005/growthvault/internal/client/services"
	"github.com/dmitrijs2005/growthvault/internal/models"
)

const previewLength = 60

// getSimpleText, getMultiline and getPassword are test seams.
var (
	getSimpleText = GetSimpleText
	getMultiline  = GetMultiline
	getPassword   = GetPassword
)

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// runCommand runs fn and prints what went wrong, if anything.
func (a *App) runCommand(ctx context.Context, fn func(ctx context.Context) error) {
	a.busy.Store(true)
	defer a.busy.Store(false)

	err := fn(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		a.println(err.Error())
	default:
		a.logger.Debug(ctx, "command failed", "error", err)
		a.println("Error:", services.Explain(err))
	}
}

func usage(s string) error {
	return fmt.Errorf("%w: %s", errUsage, s)
}

func (a *App) report(res *services.OpResult) {
	if res == nil {
		return
	}
	if res.Superseded {
		a.println("A newer version from another device replaced this change.")
	}
	if res.Warning != nil {
		a.println("Warning:", services.Explain(res.Warning))
		return
	}
	if !res.Superseded {
		a.printf("Saved (%s).\n", res.Source)
	}
}

func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	if err := a.auth.Register(ctx, username, password); err != nil {
		return err
	}
	a.println("Registered. Type 'login' to sign in.")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	if a.isLoggedIn() {
		return usage("already signed in, 'logout' first")
	}
	last, _ := a.auth.LastUsername(ctx)
	prompt := "Enter username"
	if last != "" {
		prompt += " (empty for " + last + ")"
	}
	username, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return err
	}
	if username == "" {
		username = last
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	id, res, err := a.auth.SignIn(ctx, username, password)
	if id == nil {
		return err
	}
	a.setUser(id.Username)
	a.setMode(ctx, ModeOnline)
	if err != nil {
		a.println("Signed in, but the collection could not be loaded:", services.Explain(err))
		return nil
	}
	a.printf("Signed in as %s.\n", id.Username)
	a.describeLoad(res)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.SignOut(ctx); err != nil {
		return err
	}
	a.setUser("")
	a.println("Signed out. Your collection stays on this device.")
	return nil
}

func (a *App) Load(ctx context.Context) error {
	res, err := a.entries.Load(ctx)
	if err != nil {
		return err
	}
	a.describeLoad(res)
	return nil
}

func (a *App) describeLoad(res *persistence.LoadResult) {
	n := len(a.entries.Snapshot().Items)
	switch {
	case res == nil:
		a.println("No saved collection yet.")
	case res.Resolution == persistence.ResolutionLocalWins:
		a.printf("Loaded %d entries; changes from this device were uploaded.\n", n)
	case res.Resolution == persistence.ResolutionRemoteWins:
		a.printf("Loaded %d entries from the cloud.\n", n)
	default:
		a.printf("Loaded %d entries (%s).\n", n, res.Source)
	}
}

func (a *App) Status(ctx context.Context) error {
	s := a.entries.Snapshot()
	if id := a.auth.Identity(); id != nil {
		a.printf("Signed in as %s.\n", id.Username)
	} else {
		a.println("Not signed in; saving on this device only.")
	}
	if m := a.Mode(); m != "" {
		a.printf("Server: %s.\n", m)
	}
	a.printf("%d entries by %d authors, %d undo steps.\n", len(s.Items), len(s.AuthorOrder), len(s.UndoStack))
	if s.LastSaveTimestamp > 0 {
		a.printf("Last saved %s.\n", models.FormatTimestamp(s.LastSaveTimestamp))
	}
	if size, err := a.cache.SizeBytes(ctx); err == nil {
		a.printf("Local storage: %d bytes used, %d bytes quota.\n", size, a.config.LocalQuotaBytes)
	}
	return nil
}

// List prints entries grouped by author in author order.
func (a *App) List(_ context.Context, author string) error {
	s := a.entries.Snapshot()
	a.printf("%s: %s\n", s.Titles.MainTitle, s.Titles.ListTitle)
	if len(s.Items) == 0 {
		a.println("  (empty)")
		return nil
	}
	for _, au := range s.AuthorOrder {
		if author != "" && au != author {
			continue
		}
		a.printf("%s\n", au)
		for _, it := range s.Items {
			if it.Author != au {
				continue
			}
			a.printf("  [%d] %s  %s\n", it.ID, it.Title, entryPreview(it))
		}
	}
	return nil
}

func entryPreview(it models.Entry) string {
	if it.HasImage() {
		return "(image)"
	}
	return richtext.Preview(it.RichText, previewLength)
}

func (a *App) findItem(arg string) (models.Entry, error) {
	if arg == "" {
		return models.Entry{}, usage("an entry id is required")
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return models.Entry{}, usage("bad id " + strconv.Quote(arg))
	}
	items := a.entries.Snapshot().Items
	i := models.IndexOf(items, id)
	if i < 0 {
		return models.Entry{}, fmt.Errorf("%w: %d", services.ErrItemNotFound, id)
	}
	return items[i], nil
}

func (a *App) Show(_ context.Context, arg string) error {
	it, err := a.findItem(arg)
	if err != nil {
		return err
	}
	a.printf("%s\nby %s, %s\n", it.Title, it.Author, it.DateDisplay)
	if it.HasImage() {
		a.printf("(image, %d bytes encoded)\n", len(*it.Image))
	}
	if text := richtext.PlainText(it.RichText); text != "" {
		a.println(text)
	}
	return nil
}

func (a *App) Add(ctx context.Context) error {
	author, err := getSimpleText(a.reader, "Author", a.out)
	if err != nil {
		return err
	}
	title, err := getSimpleText(a.reader, "Title (empty for "+models.DefaultTitle+")", a.out)
	if err != nil {
		return err
	}
	text, err := getMultiline(a.reader, "Text", a.out)
	if err != nil {
		return err
	}

	e, res, err := a.entries.AddItem(ctx, services.ItemInput{Author: author, Title: title, RichText: textToHTML(text)})
	if err != nil {
		return err
	}
	a.printf("Added entry %d.\n", e.ID)
	a.report(res)
	return nil
}

func (a *App) AddImage(ctx context.Context, path string) error {
	if path == "" {
		return usage("addimage <file>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	author, err := getSimpleText(a.reader, "Author", a.out)
	if err != nil {
		return err
	}
	title, err := getSimpleText(a.reader, "Title (empty for "+models.DefaultTitle+")", a.out)
	if err != nil {
		return err
	}

	e, res, err := a.entries.AddItem(ctx, services.ItemInput{Author: author, Title: title, Image: data})
	if err != nil {
		return err
	}
	a.printf("Added image entry %d.\n", e.ID)
	a.report(res)
	return nil
}

func (a *App) Edit(ctx context.Context, arg string) error {
	it, err := a.findItem(arg)
	if err != nil {
		return err
	}
	title, err := getSimpleText(a.reader, "New title (empty to keep "+strconv.Quote(it.Title)+")", a.out)
	if err != nil {
		return err
	}
	text, err := getMultiline(a.reader, "New text (empty to keep)", a.out)
	if err != nil {
		return err
	}

	var upd services.ItemUpdate
	if title != "" {
		upd.Title = &title
	}
	if text != "" {
		html := textToHTML(text)
		upd.RichText = &html
	}
	if upd.Title == nil && upd.RichText == nil {
		a.println("Nothing changed.")
		return nil
	}
	res, err := a.entries.UpdateItem(ctx, it.ID, upd)
	if err != nil {
		return err
	}
	a.report(res)
	return nil
}

func (a *App) Delete(ctx context.Context, arg string) error {
	it, err := a.findItem(arg)
	if err != nil {
		return err
	}
	res, err := a.entries.DeleteItem(ctx, it.ID)
	if err != nil {
		return err
	}
	a.printf("Deleted %q. Type 'undo' to bring it back.\n", it.Title)
	a.report(res)
	return nil
}

func (a *App) DeleteAuthor(ctx context.Context, author string) error {
	if author == "" {
		return usage("deleteauthor <author>")
	}
	ok, err := GetConfirmation(a.reader, "Delete every entry by "+author+"?", a.out)
	if err != nil || !ok {
		return err
	}
	res, err := a.entries.DeleteAuthor(ctx, author)
	if err != nil {
		return err
	}
	a.printf("Deleted all entries by %s. Type 'undo' to bring them back.\n", author)
	a.report(res)
	return nil
}

func (a *App) Reorder(ctx context.Context, arg string) error {
	ids, err := ParseIDs(arg)
	if err != nil {
		return usage("reorder <id> <id> ... listing every entry")
	}
	res, err := a.entries.ReorderItems(ctx, ids)
	if err != nil {
		return err
	}
	a.report(res)
	return nil
}

func (a *App) Authors(ctx context.Context, arg string) error {
	if arg == "" {
		a.println(strings.Join(a.entries.Snapshot().AuthorOrder, ", "))
		return nil
	}
	var order []string
	for _, name := range strings.Split(arg, ",") {
		if name = strings.TrimSpace(name); name != "" {
			order = append(order, name)
		}
	}
	res, err := a.entries.UpdateAuthorOrder(ctx, order)
	if err != nil {
		return err
	}
	a.report(res)
	return nil
}

func (a *App) Titles(ctx context.Context) error {
	cur := a.entries.Snapshot().Titles
	next := cur
	for _, f := range []struct {
		label string
		dst   *string
	}{
		{"Main title", &next.MainTitle},
		{"Subtitle", &next.Subtitle},
		{"List title", &next.ListTitle},
	} {
		v, err := getSimpleText(a.reader, f.label+" (empty to keep "+strconv.Quote(*f.dst)+")", a.out)
		if err != nil {
			return err
		}
		if v != "" {
			*f.dst = v
		}
	}
	if next == cur {
		a.println("Nothing changed.")
		return nil
	}
	res, err := a.entries.UpdateTitles(ctx, next)
	if err != nil {
		return err
	}
	a.report(res)
	return nil
}

func (a *App) Undo(ctx context.Context) error {
	res, err := a.entries.Undo(ctx)
	if err != nil {
		return err
	}
	a.println("Undone.")
	a.report(res)
	return nil
}

func (a *App) Export(ctx context.Context, dir string) error {
	if dir == "" {
		dir = "."
	}
	path, err := a.entries.ExportToDir(ctx, dir)
	if err != nil {
		return err
	}
	a.printf("Exported to %s.\n", path)
	return nil
}

func (a *App) Import(ctx context.Context, path string) error {
	if path == "" {
		return usage("import <file>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ok, err := GetConfirmation(a.reader, "Replace the whole collection with "+path+"?", a.out)
	if err != nil || !ok {
		return err
	}
	res, err := a.entries.ImportData(ctx, data)
	if err != nil {
		return err
	}
	a.printf("Imported %d entries.\n", len(a.entries.Snapshot().Items))
	a.report(res)
	return nil
}

func (a *App) Clear(ctx context.Context) error {
	ok, err := GetConfirmation(a.reader, "Delete the whole collection, undo history included?", a.out)
	if err != nil || !ok {
		return err
	}
	res, err := a.entries.ClearAllData(ctx)
	if err != nil {
		return err
	}
	a.println("Collection cleared.")
	a.report(res)
	return nil
}
