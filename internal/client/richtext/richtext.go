// Package richtext inspects the HTML fragments stored as entry text.
package richtext

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PlainText returns the text content of an HTML fragment with runs of
// whitespace collapsed to single spaces. Block elements and <br> separate
// words.
func PlainText(fragment string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
			if breaksText(n.Data) {
				sb.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// IsEmpty reports whether the fragment has no visible text, e.g. "" or
// "<p><br></p>".
func IsEmpty(fragment string) bool {
	if strings.TrimSpace(fragment) == "" {
		return true
	}
	return PlainText(fragment) == ""
}

// Preview returns at most n runes of the fragment's plain text, with an
// ellipsis when it was cut.
func Preview(fragment string, n int) string {
	text := []rune(PlainText(fragment))
	if n <= 0 || len(text) <= n {
		return string(text)
	}
	return strings.TrimSpace(string(text[:n])) + "…"
}

func breaksText(tag string) bool {
	switch tag {
	case "br", "p", "div", "li", "ul", "ol", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre", "tr", "td":
		return true
	}
	return false
}
