package source

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockElements start a new line when opened and when closed
var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Caption: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Figcaption: true, atom.Figure: true, atom.Footer: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Main: true, atom.Ol: true,
	atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true, atom.Title: true,
	atom.Tr: true, atom.Ul: true,
}

// skippedElements contribute no text
var skippedElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
	atom.Iframe: true, atom.Svg: true, atom.Nav: true,
}

// HTMLAdapter flattens HTML into one line per block element
type HTMLAdapter struct{}

// NewHTMLAdapter creates an HTML adapter
func NewHTMLAdapter() *HTMLAdapter {
	return &HTMLAdapter{}
}

// Name returns the adapter name
func (a *HTMLAdapter) Name() string {
	return "html"
}

// CanHandle matches .html/.htm files and sniffed HTML content
func (a *HTMLAdapter) CanHandle(path string, contentType string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return strings.HasPrefix(contentType, "text/html")
}

// Text parses data and returns its visible text. Whitespace inside a block
// is collapsed to single spaces; table cells are separated by a space.
func (a *HTMLAdapter) Text(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	f := &flattener{}
	f.walk(doc)
	f.flush()
	return strings.Join(f.lines, "\n"), nil
}

type flattener struct {
	lines []string
	cur   strings.Builder
}

func (f *flattener) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		f.text(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if skippedElements[n.DataAtom] {
			return
		}
		switch n.DataAtom {
		case atom.Br:
			f.flush()
			return
		case atom.Td, atom.Th:
			f.text(" ")
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.DataAtom]
	if block {
		f.flush()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		f.walk(c)
	}
	if block {
		f.flush()
	}
}

func (f *flattener) text(s string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s != "" && f.cur.Len() > 0 {
			f.cur.WriteByte(' ')
		}
		return
	}
	if f.cur.Len() > 0 && startsWithSpace(s) {
		f.cur.WriteByte(' ')
	}
	f.cur.WriteString(strings.Join(fields, " "))
	if endsWithSpace(s) {
		f.cur.WriteByte(' ')
	}
}

func (f *flattener) flush() {
	line := strings.Join(strings.Fields(f.cur.String()), " ")
	f.cur.Reset()
	if line != "" {
		f.lines = append(f.lines, line)
	}
}

func startsWithSpace(s string) bool {
	return s != "" && strings.TrimLeft(s[:1], " \t\r\n\f") == ""
}

func endsWithSpace(s string) bool {
	return s != "" && strings.TrimRight(s[len(s)-1:], " \t\r\n\f") == ""
}
