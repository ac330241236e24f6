// Package textrange walks the text between two decoded positions.
package textrange

import (
	"iter"

	"golang.org/x/net/html"

	"github.com/hazyhaar/mhl/anchor"
	"github.com/hazyhaar/mhl/dom"
)

// Piece is the [From, To) character range of one text node.
type Piece struct {
	Node     *html.Node
	From, To int
}

// Text returns the characters the piece covers.
func (p Piece) Text() string {
	return dom.Slice(p.Node.Data, p.From, p.To)
}

// Empty reports whether the piece covers no character.
func (p Piece) Empty() bool { return p.To <= p.From }

// Pieces returns the text-node ranges between from and to in document
// order. The first text node is clipped at from's offset when from is that
// very text node with an offset, and the last one at to's offset likewise;
// text nodes in between are yielded whole. A position without offset covers
// its whole node: from starts before its first text, to ends after its
// last, so a to on a marker or an element takes in everything below it. The
// walk descends into elements (markers included) and stops after to, or at
// the end of the tree when to does not follow from. The sequence reads the
// tree lazily and can be ranged over again; callers that mutate the tree
// must collect it first.
func Pieces(from, to anchor.Point) iter.Seq[Piece] {
	return func(yield func(Piece) bool) {
		if from.Node == nil || to.Node == nil {
			return
		}
		if from.Node == to.Node && dom.IsText(from.Node) {
			start, end := startOf(from), endOf(to)
			yield(Piece{Node: from.Node, From: start, To: end})
			return
		}

		stop := to.Node
		if !to.HasOffset {
			stop = lastDescendant(to.Node)
		}
		for n := from.Node; n != nil; n = next(n) {
			if !dom.IsText(n) {
				if n == stop {
					return
				}
				continue
			}
			p := Piece{Node: n, From: 0, To: dom.TextLen(n.Data)}
			if n == from.Node {
				p.From = startOf(from)
			}
			if n == to.Node {
				p.To = endOf(to)
			}
			if !yield(p) || n == stop {
				return
			}
		}
	}
}

// Iterate calls visit for every piece between from and to.
func Iterate(from, to anchor.Point, visit func(text *html.Node, from, to int)) {
	for p := range Pieces(from, to) {
		visit(p.Node, p.From, p.To)
	}
}

// Texts returns the non-empty piece texts between from and to.
func Texts(from, to anchor.Point) []string {
	var out []string
	for p := range Pieces(from, to) {
		if !p.Empty() {
			out = append(out, p.Text())
		}
	}
	return out
}

func startOf(p anchor.Point) int {
	if !p.HasOffset {
		return 0
	}
	return min(max(p.Offset, 0), dom.TextLen(p.Node.Data))
}

func endOf(p anchor.Point) int {
	l := dom.TextLen(p.Node.Data)
	if !p.HasOffset {
		return l
	}
	return min(max(p.Offset, 0), l)
}

func lastDescendant(n *html.Node) *html.Node {
	for n.LastChild != nil {
		n = n.LastChild
	}
	return n
}

// next returns the node after n in pre-order.
func next(n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for ; n != nil; n = n.Parent {
		if n.NextSibling != nil {
			return n.NextSibling
		}
	}
	return nil
}
