package annotator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/mhl/annotator/internal/store"
	"github.com/hazyhaar/mhl/highlight"
	"github.com/hazyhaar/mhl/room"
	"github.com/hazyhaar/mhl/watch"
)

// Start runs background work until ctx is done or the annotator closes:
// with sync enabled, the store is polled and writes made by other processes
// are merged in.
func (a *Annotator) Start(ctx context.Context) {
	if !a.cfg.Sync.Enabled {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	if a.stop != nil {
		a.mu.Unlock()
		cancel()
		return
	}
	a.stop = cancel
	a.mu.Unlock()
	w := watch.New(a.store.DB, watch.Options{
		Interval: a.cfg.Sync.Interval,
		Debounce: a.cfg.Sync.Debounce,
		Detector: watch.Query(store.VersionQuery),
		Logger:   a.logger,
	})
	go w.Run(ctx, a.Sync)
	a.logger.Info("annotator: sync started", "interval", a.cfg.Sync.Interval)
}

// Sync brings the loaded pages in line with the store. Pages added,
// replaced or deleted elsewhere are opened, reopened or unloaded; highlight
// differences reach each room as remote events.
func (a *Annotator) Sync(ctx context.Context) error {
	stored, err := a.store.ListPages(ctx)
	if err != nil {
		return fmt.Errorf("annotator: sync: %w", err)
	}

	seen := make(map[string]bool, len(stored))
	var closed []*Page
	for _, sp := range stored {
		seen[sp.ID] = true
		list, err := a.store.ListHighlights(ctx, sp.ID)
		if err != nil {
			return fmt.Errorf("annotator: sync %s: %w", sp.ID, err)
		}

		a.mu.RLock()
		p := a.pages[sp.ID]
		a.mu.RUnlock()
		if p != nil && p.src == sp.HTML {
			if n := p.merge(list, a.logger.With("page", sp.ID)); n > 0 {
				p.apply()
				a.logger.Debug("annotator: synced highlights", "page", sp.ID, "events", n)
			}
			continue
		}

		np, err := a.openPage(ctx, sp.ID, sp.HTML, list)
		if err != nil {
			return err
		}
		a.mu.Lock()
		if old := a.pages[sp.ID]; old != nil {
			closed = append(closed, old)
		}
		a.pages[sp.ID] = np
		a.mu.Unlock()
		a.logger.Info("annotator: synced page", "page", sp.ID, "highlights", len(list))
	}

	a.mu.Lock()
	for id, p := range a.pages {
		if !seen[id] {
			delete(a.pages, id)
			closed = append(closed, p)
		}
	}
	a.mu.Unlock()
	for _, p := range closed {
		p.close(a.logger)
	}
	return nil
}

// merge turns the difference between the stored list and the room's
// confirmed highlights into remote events, and returns how many it applied.
func (p *Page) merge(stored []highlight.Highlight, logger *slog.Logger) int {
	current := make(map[highlight.ID]highlight.Highlight)
	for _, h := range p.room.List() {
		if !h.ID.IsLocal() {
			current[h.ID] = h
		}
	}

	n := 0
	receive := func(ev room.Event) {
		if err := p.room.Receive(ev); err != nil {
			logger.Warn("annotator: sync event", "error", err, "kind", string(ev.Kind), "highlight", ev.Highlight.ID.String())
			return
		}
		n++
	}
	for _, h := range stored {
		cur, ok := current[h.ID]
		delete(current, h.ID)
		switch {
		case !ok:
			receive(room.Event{Kind: room.EventAdded, Highlight: h})
		case cur.Color != h.Color || cur.Hidden != h.Hidden:
			receive(room.Event{Kind: room.EventEdited, Highlight: h})
			// The stored visibility wins over a local override.
			p.room.SetVisible(h.ID, !h.Hidden)
		}
	}
	for id, h := range current {
		receive(room.Event{Kind: room.EventRemoved, Highlight: highlight.Highlight{ID: id, Color: h.Color}})
	}
	return n
}
