package render

import (
	"slices"

	"golang.org/x/net/html"

	"github.com/hazyhaar/mhl/highlight"
)

// EventKind is a pointer event on a rendered highlight.
type EventKind int

const (
	EventEnter EventKind = iota
	EventLeave
	EventClick
)

func (k EventKind) String() string {
	switch k {
	case EventEnter:
		return "enter"
	case EventLeave:
		return "leave"
	case EventClick:
		return "click"
	}
	return "unknown"
}

// Event is a pointer event whose target is a node of the document.
type Event struct {
	Kind   EventKind
	Target *html.Node
}

// Dispatch routes ev to the highlight owning the closest highlight marker
// around the target. It reports false when the target is not inside a
// rendered highlight.
func (r *Renderer) Dispatch(ev Event) bool {
	r.mu.Lock()
	id, ok := r.owner(ev.Target)
	r.mu.Unlock()
	if !ok {
		return false
	}
	switch ev.Kind {
	case EventEnter:
		r.HoverBegin(id)
	case EventLeave:
		r.HoverEnd(id)
	case EventClick:
		return r.Click(id)
	default:
		return false
	}
	return true
}

func (r *Renderer) owner(n *html.Node) (highlight.ID, bool) {
	for ; n != nil; n = n.Parent {
		if id, ok := r.elements[n]; ok {
			return id, true
		}
	}
	return highlight.ID{}, false
}

// HoverBegin pushes id on the hover stack and reports it as active. An id
// already on the stack is left where it is.
func (r *Renderer) HoverBegin(id highlight.ID) {
	r.mu.Lock()
	if id.IsZero() || slices.Contains(r.hover, id) {
		r.mu.Unlock()
		return
	}
	r.hover = append(r.hover, id)
	ls := r.snapshotListeners()
	r.mu.Unlock()
	deliver(ls, []notification{activeChanged(id)})
}

// HoverEnd removes id from the hover stack. Only removing the top changes
// the active highlight, and only then are listeners told.
func (r *Renderer) HoverEnd(id highlight.ID) {
	r.mu.Lock()
	notes := r.hoverEnd(id)
	ls := r.snapshotListeners()
	r.mu.Unlock()
	deliver(ls, notes)
}

func (r *Renderer) hoverEnd(id highlight.ID) []notification {
	i := slices.Index(r.hover, id)
	if i < 0 {
		return nil
	}
	top := i == len(r.hover)-1
	r.hover = slices.Delete(r.hover, i, i+1)
	if !top {
		return nil
	}
	var next highlight.ID
	if n := len(r.hover); n > 0 {
		next = r.hover[n-1]
	}
	return []notification{activeChanged(next)}
}

// Active returns the highlight on top of the hover stack.
func (r *Renderer) Active() (highlight.ID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.hover) == 0 {
		return highlight.ID{}, false
	}
	return r.hover[len(r.hover)-1], true
}

// Click reports a click on id with its freshly measured geometry. It
// reports false when id is not rendered.
func (r *Renderer) Click(id highlight.ID) bool {
	r.mu.Lock()
	rec := r.find(id)
	if rec == nil || !rec.shown() {
		r.mu.Unlock()
		return false
	}
	_ = r.doc.Do(func(*html.Node) error {
		r.remeasure(rec)
		return nil
	})
	g := rec.geom
	ls := r.snapshotListeners()
	r.mu.Unlock()
	deliver(ls, []notification{func(l Listener) { l.Clicked(id, g) }})
	return true
}

// Resize re-measures every shown highlight after a viewport change and
// reports each new position.
func (r *Renderer) Resize() {
	r.mu.Lock()
	var notes []notification
	_ = r.doc.Do(func(root *html.Node) error {
		r.sync(root)
		for _, rec := range r.records {
			if !r.remeasure(rec) {
				continue
			}
			id, g := rec.h.ID, rec.geom
			notes = append(notes, func(l Listener) { l.Moved(id, g) })
		}
		return nil
	})
	ls := r.snapshotListeners()
	r.mu.Unlock()
	deliver(ls, notes)
}

func activeChanged(id highlight.ID) notification {
	return func(l Listener) { l.ActiveChanged(id) }
}
