package dom

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Document owns a parsed page and serialises every access to its tree.
// Anchors are relative to the document element (<html>).
type Document struct {
	mu   sync.Mutex
	node *html.Node
}

// Parse reads an HTML page.
func Parse(r io.Reader) (*Document, error) {
	n, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return &Document{node: n}, nil
}

// ParseString reads an HTML page from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document element of a parsed tree: the first element
// child of the document node, or n itself when n is already an element.
func Root(n *html.Node) *html.Node {
	if n == nil || n.Type != html.DocumentNode {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// Do runs fn with exclusive access to the document element.
func (d *Document) Do(fn func(root *html.Node) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(Root(d.node))
}

// Render writes the current markup, markers included.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.node)
}

// String returns the current markup.
func (d *Document) String() string {
	var b strings.Builder
	if err := d.Render(&b); err != nil {
		return ""
	}
	return b.String()
}

// Text returns the plain text of the document element.
func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return TextContent(Root(d.node))
}

// Snapshot returns a deep copy of the whole tree, for readers that must not
// hold the document lock while they work.
func (d *Document) Snapshot() *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Clone(d.node)
}
