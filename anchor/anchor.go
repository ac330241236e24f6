// Package anchor converts positions in a live, instrumented tree into durable
// anchors and back.
//
// An anchor is a path of child indices from the document element to a node,
// plus a character offset when the node carries text. Paths and offsets
// always describe the uninstrumented tree: the markers this system injects
// are collapsed back into the text node they replaced, so an anchor taken
// before or after any number of highlights were rendered is the same value.
package anchor

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Anchor is either a NodePosition or a TextPosition.
type Anchor interface {
	// Steps returns the child indices from the root to the target node.
	Steps() []int
	fmt.Stringer
	sealed()
}

// NodePosition designates a node as a whole, with no character offset.
type NodePosition struct {
	Path []int
}

// TextPosition designates a character offset inside a text-bearing node.
type TextPosition struct {
	Path   []int
	Offset int
}

func (p NodePosition) Steps() []int { return p.Path }
func (p TextPosition) Steps() []int { return p.Path }

func (NodePosition) sealed() {}
func (TextPosition) sealed() {}

func (p NodePosition) String() string { return pathString(p.Path) }

func (p TextPosition) String() string {
	return pathString(p.Path) + "@" + strconv.Itoa(p.Offset)
}

func pathString(path []int) string {
	if len(path) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, i := range path {
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}

// Offset returns the character offset of a, if it has one.
func Offset(a Anchor) (int, bool) {
	if tp, ok := a.(TextPosition); ok {
		return tp.Offset, true
	}
	return 0, false
}

// Compare orders anchors in document order: by path (an ancestor sorts
// before its descendants), then by offset, an absent offset sorting first.
func Compare(a, b Anchor) int {
	if c := slices.Compare(steps(a), steps(b)); c != 0 {
		return c
	}
	ao, aok := offset(a)
	bo, bok := offset(b)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	switch {
	case ao < bo:
		return -1
	case ao > bo:
		return 1
	}
	return 0
}

// CompareEdges orders start, read as the start of a range, against end,
// read as its end. A NodePosition starts where its node's content starts and
// ends after all of it, so a range from a TextPosition to the NodePosition
// of the same text node covers the rest of that node.
func CompareEdges(start, end Anchor) int {
	return slices.Compare(edge(start, false), edge(end, true))
}

// Empty reports whether the range from start to end covers no position.
func Empty(start, end Anchor) bool {
	return start == nil || end == nil || CompareEdges(start, end) >= 0
}

func edge(a Anchor, end bool) []int {
	k := slices.Clone(steps(a))
	if off, ok := offset(a); ok {
		return append(k, off)
	}
	if end {
		return append(k, math.MaxInt)
	}
	return append(k, 0)
}

// Equal reports whether a and b are the same anchor.
func Equal(a, b Anchor) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	_, aText := a.(TextPosition)
	_, bText := b.(TextPosition)
	return aText == bText && Compare(a, b) == 0
}

func steps(a Anchor) []int {
	if a == nil {
		return nil
	}
	return a.Steps()
}

func offset(a Anchor) (int, bool) {
	if a == nil {
		return 0, false
	}
	return Offset(a)
}

// Wire is the serialised shape of an anchor: {"path": [...], "offset": n}.
// The offset is omitted for node positions.
type Wire struct {
	Path   []int `json:"path"`
	Offset *int  `json:"offset,omitempty"`
}

// ToWire converts an anchor to its serialised shape.
func ToWire(a Anchor) Wire {
	w := Wire{Path: []int{}}
	if a == nil {
		return w
	}
	if p := a.Steps(); len(p) > 0 {
		w.Path = slices.Clone(p)
	}
	if off, ok := Offset(a); ok {
		w.Offset = &off
	}
	return w
}

// Anchor converts the serialised shape back to an anchor.
func (w Wire) Anchor() Anchor {
	path := slices.Clone(w.Path)
	if path == nil {
		path = []int{}
	}
	if w.Offset == nil {
		return NodePosition{Path: path}
	}
	return TextPosition{Path: path, Offset: *w.Offset}
}
