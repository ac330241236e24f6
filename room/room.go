// Package room holds the ordered highlight list of one page.
//
// Remote highlights arrive as added/edited/removed events and keep their
// arrival order. Highlights created locally live in a pending list under a
// transaction number until the matching "added" event confirms them. Each
// reader may also hide highlights locally without touching the shared list.
package room

import (
	"fmt"
	"slices"
	"sync"

	"github.com/hazyhaar/mhl/highlight"
)

// EventKind is the kind of a remote change.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventEdited  EventKind = "edited"
	EventRemoved EventKind = "removed"
)

// Event is one remote change. Txn, when non-zero, is the transaction of the
// local creation the event confirms.
type Event struct {
	Kind      EventKind           `json:"kind"`
	Highlight highlight.Highlight `json:"highlight"`
	Txn       int64               `json:"txn,omitempty"`
}

// Room is safe for concurrent use.
type Room struct {
	mu       sync.Mutex
	remote   []highlight.Highlight
	pending  []highlight.Highlight
	txn      int64
	override map[highlight.ID]bool // local visibility
	active   highlight.ID
}

// New creates an empty room.
func New() *Room {
	return &Room{override: make(map[highlight.ID]bool)}
}

// Create adds a pending local highlight built from d and returns it with the
// transaction number that identifies it until it is confirmed.
func (r *Room) Create(d highlight.Draft, c highlight.Color) (highlight.Highlight, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txn++
	h := d.Highlight(highlight.LocalID(r.txn), c)
	r.pending = append(r.pending, h)
	return r.decorate(h), r.txn
}

// Receive applies a remote event.
func (r *Room) Receive(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := ev.Highlight.ID
	if id.IsZero() {
		return fmt.Errorf("room: %s event without id", ev.Kind)
	}
	switch ev.Kind {
	case EventAdded:
		if ev.Txn != 0 {
			r.settle(ev.Txn, id)
		}
		r.put(ev.Highlight)
	case EventEdited:
		i := r.indexRemote(id)
		if i < 0 {
			return fmt.Errorf("room: edit %s: unknown highlight", id)
		}
		r.remote[i] = ev.Highlight
	case EventRemoved:
		r.remote = slices.DeleteFunc(r.remote, func(h highlight.Highlight) bool { return h.ID == id })
		delete(r.override, id)
		if r.active == id {
			r.active = highlight.ID{}
		}
	default:
		return fmt.Errorf("room: unknown event kind %q", ev.Kind)
	}
	return nil
}

// Confirm replaces the pending highlight of txn with its permanent form h.
// A color edited while the highlight was pending wins over h's. Confirm
// reports false, and adds nothing, when the pending highlight was removed
// in the meantime.
func (r *Room) Confirm(txn int64, h highlight.Highlight) (highlight.Highlight, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.pending, func(p highlight.Highlight) bool { return p.ID.Txn() == txn })
	if i < 0 || h.ID.IsZero() {
		return highlight.Highlight{}, false
	}
	h.Color = r.pending[i].Color
	r.settle(txn, h.ID)
	r.put(h)
	return r.decorate(h), true
}

// settle drops the pending highlight of txn and hands its visibility
// override and hover to id.
func (r *Room) settle(txn int64, id highlight.ID) {
	local := highlight.LocalID(txn)
	r.pending = slices.DeleteFunc(r.pending, func(h highlight.Highlight) bool {
		return h.ID.Txn() == txn
	})
	if hidden, ok := r.override[local]; ok {
		delete(r.override, local)
		r.override[id] = hidden
	}
	if r.active == local {
		r.active = id
	}
}

func (r *Room) put(h highlight.Highlight) {
	if i := r.indexRemote(h.ID); i >= 0 {
		r.remote[i] = h
		return
	}
	r.remote = append(r.remote, h)
}

// Edit changes the color of a highlight, remote or pending.
func (r *Room) Edit(id highlight.ID, c highlight.Color) (highlight.Highlight, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.lookup(id)
	if h == nil {
		return highlight.Highlight{}, false
	}
	h.Color = c
	return r.decorate(*h), true
}

// Remove deletes a highlight, remote or pending.
func (r *Room) Remove(id highlight.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.remote) + len(r.pending)
	match := func(h highlight.Highlight) bool { return h.ID == id }
	r.remote = slices.DeleteFunc(r.remote, match)
	r.pending = slices.DeleteFunc(r.pending, match)
	if len(r.remote)+len(r.pending) == n {
		return false
	}
	delete(r.override, id)
	if r.active == id {
		r.active = highlight.ID{}
	}
	return true
}

// SetVisible overrides the visibility of a highlight for this reader only.
func (r *Room) SetVisible(id highlight.ID, visible bool) (highlight.Highlight, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.lookup(id)
	if h == nil {
		return highlight.Highlight{}, false
	}
	if visible == !h.Hidden {
		delete(r.override, id)
	} else {
		r.override[id] = !visible
	}
	return r.decorate(*h), true
}

// SetActive records the highlight under the pointer; the zero ID clears it.
func (r *Room) SetActive(id highlight.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = id
}

// Active returns the highlight under the pointer.
func (r *Room) Active() (highlight.ID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, !r.active.IsZero()
}

// Get returns one highlight as List would show it.
func (r *Room) Get(id highlight.ID) (highlight.Highlight, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.lookup(id)
	if h == nil {
		return highlight.Highlight{}, false
	}
	return r.decorate(*h), true
}

// List returns remote highlights in arrival order followed by pending local
// ones, with local visibility and the active flag applied.
func (r *Room) List() []highlight.Highlight {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]highlight.Highlight, 0, len(r.remote)+len(r.pending))
	for _, h := range r.remote {
		out = append(out, r.decorate(h))
	}
	for _, h := range r.pending {
		out = append(out, r.decorate(h))
	}
	return out
}

// Len returns the number of highlights.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.remote) + len(r.pending)
}

func (r *Room) indexRemote(id highlight.ID) int {
	return slices.IndexFunc(r.remote, func(h highlight.Highlight) bool { return h.ID == id })
}

func (r *Room) lookup(id highlight.ID) *highlight.Highlight {
	if i := r.indexRemote(id); i >= 0 {
		return &r.remote[i]
	}
	for i := range r.pending {
		if r.pending[i].ID == id {
			return &r.pending[i]
		}
	}
	return nil
}

func (r *Room) decorate(h highlight.Highlight) highlight.Highlight {
	if hidden, ok := r.override[h.ID]; ok {
		h.Hidden = hidden
	}
	h.Active = !r.active.IsZero() && h.ID == r.active
	h.Text = slices.Clone(h.Text)
	return h
}
