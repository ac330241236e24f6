package render

import (
	"slices"

	"golang.org/x/net/html"

	"github.com/hazyhaar/mhl/anchor"
	"github.com/hazyhaar/mhl/dom"
	"github.com/hazyhaar/mhl/highlight"
	"github.com/hazyhaar/mhl/textrange"
)

// record is the render state of one visible highlight. A record whose
// anchors did not resolve keeps its place in the list with no wraps.
type record struct {
	h     highlight.Highlight
	wraps []dom.Wrap
	geom  Geometry
}

func (rec *record) shown() bool { return len(rec.wraps) > 0 }

func (rec *record) elements() []*html.Node {
	out := make([]*html.Node, len(rec.wraps))
	for i, w := range rec.wraps {
		out[i] = w.Highlight
	}
	return out
}

// show wraps the text covered by rec's anchors. Called with both locks held.
func (r *Renderer) show(root *html.Node, rec *record) {
	h := rec.h
	from, okFrom := anchor.Decode(root, h.From)
	to, okTo := anchor.Decode(root, h.To)
	if !okFrom || !okTo || anchor.CompareEdges(h.From, h.To) > 0 {
		r.stats.Skipped++
		r.logger.Debug("render: unresolvable highlight skipped",
			"id", h.ID.String(), "from", h.From, "to", h.To)
		return
	}

	// Wrapping replaces text nodes, so the walk must finish first.
	pieces := slices.Collect(textrange.Pieces(from, to))
	id := h.ID.String()
	for _, p := range pieces {
		w, ok := dom.HighlightTextPortion(p.Node, p.From, p.To, id, string(h.Color))
		if !ok {
			continue
		}
		if h.Active {
			dom.SetActive(w.Highlight, true)
		}
		rec.wraps = append(rec.wraps, w)
		r.elements[w.Highlight] = h.ID
	}
	if rec.shown() {
		r.stats.Shown++
	}
}

// hide removes rec's markers, last wrap first.
func (r *Renderer) hide(rec *record) {
	for i := len(rec.wraps) - 1; i >= 0; i-- {
		w := rec.wraps[i]
		delete(r.elements, w.Highlight)
		dom.ClearTextPortion(w.Outer())
	}
	if rec.shown() {
		r.stats.Hidden++
	}
	rec.wraps = nil
	rec.geom = Geometry{}
}

// patch updates a shown record in place for a same-id, same-range highlight.
func (r *Renderer) patch(rec *record, h highlight.Highlight) {
	if rec.h.Color != h.Color {
		for _, w := range rec.wraps {
			dom.SetColor(w.Highlight, string(h.Color))
		}
		r.stats.Patched++
	}
	for _, w := range rec.wraps {
		dom.SetActive(w.Highlight, h.Active)
	}
	rec.h = h
}

// remeasure refreshes the cached geometry of a shown record.
func (r *Renderer) remeasure(rec *record) bool {
	if !rec.shown() {
		return false
	}
	g, ok := measure(r.layout, rec.elements())
	if ok {
		rec.geom = g
	}
	return ok
}
