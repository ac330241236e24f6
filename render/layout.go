package render

import "golang.org/x/net/html"

// Rect is an axis-aligned box in viewport coordinates.
type Rect struct {
	Left, Top, Right, Bottom float64
}

// Union returns the smallest rect containing r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		Left:   min(r.Left, o.Left),
		Top:    min(r.Top, o.Top),
		Right:  max(r.Right, o.Right),
		Bottom: max(r.Bottom, o.Bottom),
	}
}

// Geometry is the cached position of a rendered highlight, in document
// coordinates (viewport rect shifted by the scroll offset).
type Geometry struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// Layout measures elements of the current tree.
type Layout interface {
	// Rect returns the viewport rect of an element, false when it has no box.
	Rect(n *html.Node) (Rect, bool)
	// Scroll returns the current scroll offset of the viewport.
	Scroll() (x, y float64)
}

// Syncer is implemented by layouts that must see the current markup before
// measuring it. Sync is called with the document lock held after every pass
// that changed the tree, and before a resize re-measure.
type Syncer interface {
	Sync(root *html.Node) error
}

type noLayout struct{}

func (noLayout) Rect(*html.Node) (Rect, bool) { return Rect{}, false }
func (noLayout) Scroll() (float64, float64)   { return 0, 0 }

// measure returns the document-space bounding box of a set of elements.
func measure(l Layout, elements []*html.Node) (Geometry, bool) {
	var box Rect
	found := false
	for _, el := range elements {
		r, ok := l.Rect(el)
		if !ok {
			continue
		}
		if !found {
			box, found = r, true
			continue
		}
		box = box.Union(r)
	}
	if !found {
		return Geometry{}, false
	}
	x, y := l.Scroll()
	return Geometry{Left: box.Left + x, Top: box.Top + y, Bottom: box.Bottom + y}, true
}
