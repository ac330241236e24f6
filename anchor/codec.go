package anchor

import (
	"slices"

	"golang.org/x/net/html"

	"github.com/hazyhaar/mhl/dom"
)

// Point is a position in the live tree. HasOffset is false when the position
// designates Node as a whole.
type Point struct {
	Node      *html.Node
	Offset    int
	HasOffset bool
}

// Normalize maps a live (node, offset) pair to its position in the
// uninstrumented tree. For text nodes offset is a character offset; for
// elements it is a child index, and the position becomes the designated
// child with no offset, a marker child included. A marker itself is entered
// from the left. Text inside markers is lifted to the outermost marker,
// accumulating the lengths of the siblings that precede it at every level.
func Normalize(n *html.Node, offset int) Point {
	p := Point{Node: n, Offset: offset, HasOffset: true}
	switch {
	case dom.IsMarker(n):
		p.Offset = 0
	case n.Type != html.TextNode:
		count := dom.ChildCount(n)
		if count == 0 {
			return Point{Node: n}
		}
		// A marker child stands where its text node stood: the position is
		// that node as a whole, marked or not.
		i := min(max(offset, 0), count-1)
		return Point{Node: dom.ChildAt(n, i)}
	}

	for p.Node.Parent != nil && dom.IsMarker(p.Node.Parent) {
		for s := p.Node.PrevSibling; s != nil; s = s.PrevSibling {
			p.Offset += dom.Length(s)
		}
		p.Node = p.Node.Parent
	}
	return p
}

// PathFromNode returns the child indices leading from root to n. It reports
// false when n is not root or one of its descendants. Callers pass a
// normalized node, whose ancestors are never markers, so the indices are
// those of the uninstrumented tree.
func PathFromNode(root, n *html.Node) ([]int, bool) {
	path := []int{}
	for ; n != root; n = n.Parent {
		if n == nil {
			return nil, false
		}
		path = append(path, dom.ChildIndex(n))
	}
	slices.Reverse(path)
	return path, true
}

// Encode converts a live position to an anchor relative to root.
func Encode(root, n *html.Node, offset int) (Anchor, bool) {
	if root == nil || n == nil {
		return nil, false
	}
	p := Normalize(n, offset)
	path, ok := PathFromNode(root, p.Node)
	if !ok {
		return nil, false
	}
	if !p.HasOffset {
		return NodePosition{Path: path}, true
	}
	return TextPosition{Path: path, Offset: p.Offset}, true
}

// Decode resolves an anchor against the live tree under root. It reports
// false when a path index is out of range or a text offset runs past the
// end of the marker it points into.
func Decode(root *html.Node, a Anchor) (Point, bool) {
	if root == nil || a == nil {
		return Point{}, false
	}
	n := root
	for _, i := range a.Steps() {
		if n = dom.ChildAt(n, i); n == nil {
			return Point{}, false
		}
	}

	switch a := a.(type) {
	case NodePosition:
		// On a marker this designates all of the marker's text.
		return Point{Node: n}, true
	case TextPosition:
		if !dom.IsMarker(n) {
			return Point{Node: n, Offset: a.Offset, HasOffset: true}, true
		}
		return descend(n, a.Offset)
	}
	return Point{}, false
}

// descend consumes off against the children of marker m, re-entering nested
// markers, and stops at the first text node the remaining offset fits in.
// An offset on a boundary resolves to the start of the following piece; the
// offset equal to the marker length resolves to the end of the last piece.
func descend(m *html.Node, off int) (Point, bool) {
	for {
		var last *html.Node
		c := m.FirstChild
		for c != nil {
			l := dom.Length(c)
			if off < l {
				break
			}
			off -= l
			last = c
			c = c.NextSibling
		}
		if c == nil {
			if off > 0 || last == nil {
				return Point{}, false
			}
			c, off = last, dom.Length(last)
		}
		if !dom.IsMarker(c) {
			return Point{Node: c, Offset: off, HasOffset: true}, true
		}
		m = c
	}
}
