package render

import "github.com/hazyhaar/mhl/highlight"

// Listener receives the renderer's outputs. Calls happen after the renderer
// released its lock, so a listener may call back into the renderer.
type Listener interface {
	// ActiveChanged reports the new hover focus. The zero ID means none.
	ActiveChanged(id highlight.ID)
	// Clicked reports a click on a rendered highlight.
	Clicked(id highlight.ID, g Geometry)
	// Moved reports a new position for a rendered highlight.
	Moved(id highlight.ID, g Geometry)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnActive func(id highlight.ID)
	OnClick  func(id highlight.ID, g Geometry)
	OnMove   func(id highlight.ID, g Geometry)
}

func (f ListenerFuncs) ActiveChanged(id highlight.ID) {
	if f.OnActive != nil {
		f.OnActive(id)
	}
}

func (f ListenerFuncs) Clicked(id highlight.ID, g Geometry) {
	if f.OnClick != nil {
		f.OnClick(id, g)
	}
}

func (f ListenerFuncs) Moved(id highlight.ID, g Geometry) {
	if f.OnMove != nil {
		f.OnMove(id, g)
	}
}

// Subscribe registers l and returns a function removing it.
func (r *Renderer) Subscribe(l Listener) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	key := r.nextSub
	r.listeners[key] = l
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, key)
	}
}

// notification is an output queued while the lock is held.
type notification func(Listener)

func (r *Renderer) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(r.listeners))
	for k := 1; k <= r.nextSub; k++ {
		if l, ok := r.listeners[k]; ok {
			out = append(out, l)
		}
	}
	return out
}

// deliver sends queued notifications to the listeners captured with them.
func deliver(ls []Listener, notes []notification) {
	for _, n := range notes {
		for _, l := range ls {
			n(l)
		}
	}
}
