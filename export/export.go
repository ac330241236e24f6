// Package export renders annotated pages as Markdown.
package export

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/hazyhaar/mhl/dom"
	"github.com/hazyhaar/mhl/highlight"
)

// Mark surrounds highlighted text in the Markdown output.
const Mark = "=="

// Exporter converts instrumented pages. It is safe for concurrent use.
type Exporter struct {
	conv   *converter.Converter
	policy *bluemonday.Policy
}

// New creates an Exporter.
func New() *Exporter {
	return &Exporter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// Markdown converts the current state of doc. Highlighted text is
// surrounded by Mark; structural markers disappear. domain resolves
// relative links and may be empty.
func (e *Exporter) Markdown(doc *dom.Document, domain string) (string, error) {
	root := doc.Snapshot()
	flatten(root)

	var b strings.Builder
	if err := html.Render(&b, root); err != nil {
		return "", fmt.Errorf("export: render: %w", err)
	}
	clean := e.policy.Sanitize(b.String())

	var md string
	var err error
	if domain != "" {
		md, err = e.conv.ConvertString(clean, converter.WithDomain(domain))
	} else {
		md, err = e.conv.ConvertString(clean)
	}
	if err != nil {
		return "", fmt.Errorf("export: convert: %w", err)
	}
	return md, nil
}

// flatten replaces every outermost highlight marker with its marked text
// and unwraps structural markers.
func flatten(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch dom.MarkerRole(c) {
		case dom.RoleHighlight:
			n.InsertBefore(&html.Node{
				Type: html.TextNode,
				Data: Mark + dom.TextContent(c) + Mark,
			}, c)
			n.RemoveChild(c)
		case dom.RoleStructural:
			flatten(c)
			for gc := c.FirstChild; gc != nil; gc = c.FirstChild {
				c.RemoveChild(gc)
				n.InsertBefore(gc, c)
			}
			n.RemoveChild(c)
		default:
			flatten(c)
		}
		c = next
	}
}

// Quotes lists the visible highlights of a page as a Markdown bullet list,
// one quoted entry per highlight with its color.
func Quotes(list []highlight.Highlight) string {
	var b strings.Builder
	for _, h := range list {
		if h.Hidden {
			continue
		}
		text := strings.Join(strings.Fields(strings.Join(h.Text, "")), " ")
		fmt.Fprintf(&b, "- (%s) %q\n", h.Color, text)
	}
	return b.String()
}
