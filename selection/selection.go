// Package selection turns a live text selection into highlight draft content.
package selection

import (
	"slices"

	"golang.org/x/net/html"

	"github.com/hazyhaar/mhl/anchor"
	"github.com/hazyhaar/mhl/dom"
	"github.com/hazyhaar/mhl/highlight"
	"github.com/hazyhaar/mhl/textrange"
)

// Selection types, as reported by browsers.
const (
	TypeNone  = "None"
	TypeCaret = "Caret"
	TypeRange = "Range"
)

// Endpoint is one end of a selection in the live tree. For text nodes
// Offset counts UTF-16 code units, for elements it is a child index.
type Endpoint struct {
	Node   *html.Node
	Offset int
}

// Selection mirrors the browser selection object.
type Selection struct {
	RangeCount int
	Type       string
	Anchor     Endpoint
	Focus      Endpoint
}

// MakeEvent captures sel as a draft. It returns nil when sel is not a
// single range covering at least one character, or when either endpoint is
// outside root.
//
// Endpoints are ordered by their live positions, as the browser would. When
// both sit at the same position the anchor is taken as the end, and the
// selection is then rejected as empty.
func MakeEvent(root *html.Node, sel Selection) *highlight.Draft {
	if sel.RangeCount != 1 || sel.Type != TypeRange {
		return nil
	}
	if sel.Anchor.Node == nil || sel.Focus.Node == nil {
		return nil
	}
	ak, ok := boundary(root, sel.Anchor)
	if !ok {
		return nil
	}
	fk, ok := boundary(root, sel.Focus)
	if !ok {
		return nil
	}
	first, last := sel.Focus, sel.Anchor
	if slices.Compare(ak, fk) < 0 {
		first, last = sel.Anchor, sel.Focus
	}

	first, ok = asStart(root, first)
	if !ok {
		return nil
	}
	last, ok = asEnd(root, last)
	if !ok {
		return nil
	}
	start, ok := anchor.Encode(root, first.Node, first.Offset)
	if !ok {
		return nil
	}
	end, ok := anchor.Encode(root, last.Node, last.Offset)
	if !ok || anchor.Empty(start, end) {
		return nil
	}

	from, ok := anchor.Decode(root, start)
	if !ok {
		return nil
	}
	to, ok := anchor.Decode(root, end)
	if !ok {
		return nil
	}
	text := textrange.Texts(from, to)
	if len(text) == 0 {
		return nil
	}
	return &highlight.Draft{Start: start, End: end, Text: text}
}

// boundary returns the live child-index path from root to e's node followed
// by e's offset. Comparing two such keys orders the endpoints in the tree.
func boundary(root *html.Node, e Endpoint) ([]int, bool) {
	key := []int{e.Offset}
	for n := e.Node; n != root; n = n.Parent {
		if n == nil {
			return nil, false
		}
		key = append(key, dom.ChildIndex(n))
	}
	slices.Reverse(key)
	return key, true
}

// asStart moves a start past the end of the elements it closes: (p, len)
// is the same boundary as (parent, index(p)+1), which designates the node
// that follows p rather than p's last child.
func asStart(root *html.Node, e Endpoint) (Endpoint, bool) {
	for isElement(e.Node) && e.Node != root && e.Offset >= dom.ChildCount(e.Node) {
		e = Endpoint{Node: e.Node.Parent, Offset: dom.ChildIndex(e.Node) + 1}
	}
	if isElement(e.Node) && e.Offset >= dom.ChildCount(e.Node) {
		return Endpoint{}, false
	}
	return e, true
}

// asEnd turns an element boundary used as an end into the child it closes:
// (p, i) ends after child i-1, and (p, 0) climbs until a preceding child
// exists.
func asEnd(root *html.Node, e Endpoint) (Endpoint, bool) {
	if !isElement(e.Node) {
		return e, true
	}
	e.Offset = min(e.Offset, dom.ChildCount(e.Node))
	for e.Offset <= 0 {
		if e.Node == root {
			return Endpoint{}, false
		}
		e = Endpoint{Node: e.Node.Parent, Offset: dom.ChildIndex(e.Node)}
	}
	e.Offset--
	return e, true
}

// isElement reports whether offsets on n are child indices. Markers are
// excluded: a position on a marker is always entered from the left.
func isElement(n *html.Node) bool {
	return n.Type != html.TextNode && !dom.IsMarker(n)
}

// Resolve follows raw child indices from root, markers included, the way a
// client reports a position in the tree it displays. It reports false when
// an index is out of range.
func Resolve(root *html.Node, path []int, offset int) (Endpoint, bool) {
	n := root
	for _, i := range path {
		if n = dom.ChildAt(n, i); n == nil {
			return Endpoint{}, false
		}
	}
	if n == nil {
		return Endpoint{}, false
	}
	return Endpoint{Node: n, Offset: offset}, true
}
