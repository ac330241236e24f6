// Package render materialises highlights in a page and keeps them in sync
// with an ordered highlight list.
//
// A Renderer owns the render records of one page: for every visible
// highlight, the markers it injected and its cached geometry. Apply
// reconciles a new list against those records with a positional diff, so
// that appends, in-place color changes and trailing deletions never rebuild
// the rest of the page. Only reordering or interior insertion/deletion tears
// everything down (innermost first) and renders again.
//
// The renderer also tracks which highlights are under the pointer (a hover
// stack whose top is the active highlight) and reports active changes,
// clicks and moves to its listeners.
package render

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/mhl/dom"
	"github.com/hazyhaar/mhl/highlight"
)

// DefaultDebounce is the coalescing window of Apply.
const DefaultDebounce = 10 * time.Millisecond

// Stats counts reconciliation work since the renderer was created.
type Stats struct {
	Passes   int `json:"passes"`
	Rebuilds int `json:"rebuilds"`
	Shown    int `json:"shown"`
	Hidden   int `json:"hidden"`
	Patched  int `json:"patched"`
	Skipped  int `json:"skipped"` // highlights whose anchors did not resolve
}

// Renderer reconciles highlight lists against one document.
type Renderer struct {
	doc    *dom.Document
	layout Layout
	logger *slog.Logger
	window time.Duration

	mu         sync.Mutex
	records    []*record
	elements   map[*html.Node]highlight.ID
	hover      []highlight.ID
	listeners  map[int]Listener
	nextSub    int
	pending    []highlight.Highlight
	hasPending bool
	timer      *time.Timer
	stats      Stats
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLayout sets the geometry provider. Without one, geometry stays zero.
func WithLayout(l Layout) Option { return func(r *Renderer) { r.layout = l } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(r *Renderer) { r.logger = l } }

// WithDebounce sets the Apply coalescing window. Default: 10ms.
func WithDebounce(d time.Duration) Option { return func(r *Renderer) { r.window = d } }

// New creates a Renderer for doc.
func New(doc *dom.Document, opts ...Option) *Renderer {
	r := &Renderer{
		doc:       doc,
		layout:    noLayout{},
		logger:    slog.Default(),
		window:    DefaultDebounce,
		elements:  make(map[*html.Node]highlight.ID),
		listeners: make(map[int]Listener),
	}
	for _, o := range opts {
		o(r)
	}
	if r.window <= 0 {
		r.window = DefaultDebounce
	}
	return r
}

// Document returns the document the renderer draws into.
func (r *Renderer) Document() *dom.Document { return r.doc }

// Apply schedules a reconciliation with list. Calls within the debounce
// window coalesce: only the last list is reconciled, once.
func (r *Renderer) Apply(list []highlight.Highlight) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = slices.Clone(list)
	r.hasPending = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.window, r.Flush)
}

// Flush runs the pending reconciliation now, if any.
func (r *Renderer) Flush() {
	r.mu.Lock()
	if !r.hasPending {
		r.mu.Unlock()
		return
	}
	list := r.pending
	r.pending, r.hasPending = nil, false
	r.stopTimer()
	notes := r.reconcile(list)
	ls := r.snapshotListeners()
	r.mu.Unlock()
	deliver(ls, notes)
}

// ApplyNow reconciles list synchronously, superseding any pending Apply.
func (r *Renderer) ApplyNow(list []highlight.Highlight) {
	r.mu.Lock()
	r.pending, r.hasPending = nil, false
	r.stopTimer()
	notes := r.reconcile(list)
	ls := r.snapshotListeners()
	r.mu.Unlock()
	deliver(ls, notes)
}

// Close cancels a pending Apply. The rendered markers are left in place.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending, r.hasPending = nil, false
	r.stopTimer()
}

func (r *Renderer) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Stats returns the reconciliation counters.
func (r *Renderer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// IDs returns the ids of the current render records, in render order.
func (r *Renderer) IDs() []highlight.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]highlight.ID, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.h.ID
	}
	return out
}

// Elements returns the highlight markers rendered for id.
func (r *Renderer) Elements(id highlight.ID) []*html.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec := r.find(id); rec != nil {
		return rec.elements()
	}
	return nil
}

// Geometry returns the cached geometry of a shown highlight.
func (r *Renderer) Geometry(id highlight.ID) (Geometry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.find(id)
	if rec == nil || !rec.shown() {
		return Geometry{}, false
	}
	return rec.geom, true
}

func (r *Renderer) find(id highlight.ID) *record {
	for _, rec := range r.records {
		if rec.h.ID == id {
			return rec
		}
	}
	return nil
}

// sync pushes the current markup to layouts that need it. Called with the
// document lock held.
func (r *Renderer) sync(root *html.Node) {
	s, ok := r.layout.(Syncer)
	if !ok {
		return
	}
	if err := s.Sync(root); err != nil {
		r.logger.Warn("render: layout sync failed", "error", err)
	}
}
