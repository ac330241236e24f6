// Package dom holds the low-level tree operations of the highlighter: the
// marker primitives that wrap and unwrap character ranges of text nodes, and
// small helpers over golang.org/x/net/html nodes.
//
// Character offsets are UTF-16 code units, the unit browsers use for
// Selection and Range offsets.
package dom

import (
	"strings"
	"unicode/utf16"

	"golang.org/x/net/html"
)

// TextLen returns the length of s in UTF-16 code units.
func TextLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Slice returns the [from, to) UTF-16 range of s. Bounds are clamped.
func Slice(s string, from, to int) string {
	u := utf16.Encode([]rune(s))
	from = clamp(from, 0, len(u))
	to = clamp(to, from, len(u))
	return string(utf16.Decode(u[from:to]))
}

func splitText(s string, from, to int) (lead, mid, trail string) {
	u := utf16.Encode([]rune(s))
	return string(utf16.Decode(u[:from])), string(utf16.Decode(u[from:to])), string(utf16.Decode(u[to:]))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ChildAt returns the i-th child of n, or nil when i is out of range.
func ChildAt(n *html.Node, i int) *html.Node {
	if n == nil || i < 0 {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if i == 0 {
			return c
		}
		i--
	}
	return nil
}

// ChildCount returns the number of children of n.
func ChildCount(n *html.Node) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count++
	}
	return count
}

// ChildIndex returns the position of n among its siblings.
func ChildIndex(n *html.Node) int {
	i := 0
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		i++
	}
	return i
}

// TextContent concatenates every text node under n.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			b.WriteString(d.Data)
		}
	}
	return b.String()
}

// IsText reports whether n is a text node.
func IsText(n *html.Node) bool {
	return n != nil && n.Type == html.TextNode
}

// Contains reports whether d is n or one of its descendants.
func Contains(n, d *html.Node) bool {
	for ; d != nil; d = d.Parent {
		if d == n {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of n, detached from any tree.
func Clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(Clone(ch))
	}
	return c
}
