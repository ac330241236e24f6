// Package annotator serves highlightable pages.
//
// Each loaded page is parsed once and kept in memory with its renderer and
// highlight room; every change is persisted to SQLite and redrawn. The
// annotator is reachable over HTTP, a per-page websocket, and MCP.
//
// Usage:
//
//	a, err := annotator.New(cfg, logger)
//	defer a.Close()
//	http.ListenAndServe(cfg.Addr, a.Routes())
//	a.RegisterMCP(mcpServer)
package annotator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/net/html"

	"github.com/hazyhaar/mhl/anchor"
	"github.com/hazyhaar/mhl/annotator/internal/store"
	"github.com/hazyhaar/mhl/export"
	"github.com/hazyhaar/mhl/highlight"
	"github.com/hazyhaar/mhl/idgen"
	"github.com/hazyhaar/mhl/kit"
	"github.com/hazyhaar/mhl/observability"
	"github.com/hazyhaar/mhl/render"
	"github.com/hazyhaar/mhl/safe"
	"github.com/hazyhaar/mhl/selection"
)

// Annotator owns the loaded pages.
type Annotator struct {
	cfg      *Config
	store    *store.Store
	events   *observability.EventLogger
	exporter *export.Exporter
	hub      *hub
	logger   *slog.Logger
	newID    idgen.Generator

	mu    sync.RWMutex
	pages map[string]*Page
	stop  context.CancelFunc
}

// Option configures an Annotator.
type Option func(*Annotator)

// WithIDGenerator sets the generator of persistent highlight ids.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(a *Annotator) { a.newID = gen }
}

// New opens the database and restores every stored page.
func New(cfg *Config, logger *slog.Logger, opts ...Option) (*Annotator, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("annotator: open store: %w", err)
	}
	if err := observability.Init(s.DB); err != nil {
		s.Close()
		return nil, err
	}

	a := &Annotator{
		cfg:      cfg,
		store:    s,
		events:   observability.NewEventLogger(s.DB, "mhl", observability.WithLogger(logger)),
		exporter: export.New(),
		hub:      newHub(logger),
		logger:   logger,
		newID:    idgen.Highlight(),
		pages:    make(map[string]*Page),
	}
	for _, o := range opts {
		o(a)
	}

	ctx := context.Background()
	if cfg.EventRetentionDays > 0 {
		if err := observability.Cleanup(ctx, s.DB, cfg.EventRetentionDays); err != nil {
			logger.Warn("annotator: event cleanup", "error", err)
		}
	}
	if err := a.restore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Annotator) restore(ctx context.Context) error {
	stored, err := a.store.ListPages(ctx)
	if err != nil {
		return fmt.Errorf("annotator: restore: %w", err)
	}
	for _, sp := range stored {
		list, err := a.store.ListHighlights(ctx, sp.ID)
		if err != nil {
			return fmt.Errorf("annotator: restore %s: %w", sp.ID, err)
		}
		p, err := a.openPage(ctx, sp.ID, sp.HTML, list)
		if err != nil {
			return err
		}
		a.pages[sp.ID] = p
	}
	if len(stored) > 0 {
		a.logger.Info("annotator: restored pages", "count", len(stored))
	}
	return nil
}

// Close releases every page and closes the database.
func (a *Annotator) Close() error {
	a.mu.Lock()
	if a.stop != nil {
		a.stop()
	}
	for id, p := range a.pages {
		p.close(a.logger)
		delete(a.pages, id)
	}
	a.mu.Unlock()
	return a.store.Close()
}

func (a *Annotator) page(id string) (*Page, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.pages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}
	return p, nil
}

// ParseID reads a highlight id from its string form: digits name a pending
// local highlight, anything else a persisted one.
func ParseID(s string) highlight.ID {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return highlight.LocalID(n)
	}
	return highlight.RemoteID(s)
}

// LoadPage stores src as the page id and (re)opens it. Highlights already
// stored for the page are kept and redrawn on the new markup.
func (a *Annotator) LoadPage(ctx context.Context, id, src string) (PageInfo, error) {
	if err := safe.ValidateIdentifier(id); err != nil {
		return PageInfo{}, fmt.Errorf("annotator: load page: %w", err)
	}
	if err := a.store.PutPage(ctx, id, src); err != nil {
		return PageInfo{}, fmt.Errorf("annotator: load page %s: %w", id, err)
	}
	list, err := a.store.ListHighlights(ctx, id)
	if err != nil {
		return PageInfo{}, fmt.Errorf("annotator: load page %s: %w", id, err)
	}
	p, err := a.openPage(ctx, id, src, list)
	if err != nil {
		return PageInfo{}, err
	}

	a.mu.Lock()
	old := a.pages[id]
	a.pages[id] = p
	a.mu.Unlock()
	if old != nil {
		old.close(a.logger)
	}

	info := p.info()
	a.events.LogEvent(ctx, observability.BusinessEvent{
		Type: observability.EventPageLoaded, EntityType: "page", EntityID: id, PageID: id,
		Action: "load", Success: true,
		Details: map[string]any{"bytes": len(src), "highlights": info.Highlights, "skipped": info.Stats.Skipped},
	})
	kit.Logger(ctx, a.logger).Info("annotator: page loaded", "page", id, "highlights", info.Highlights)
	return info, nil
}

// Pages lists the loaded pages.
func (a *Annotator) Pages() []PageInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]PageInfo, 0, len(a.pages))
	for _, p := range a.pages {
		out = append(out, p.info())
	}
	return out
}

// Select captures a client selection on the page as a draft. It returns
// ErrEmptySelection when the selection cannot become a highlight.
func (a *Annotator) Select(ctx context.Context, pageID string, req SelectRequest) (*highlight.Draft, error) {
	p, err := a.page(pageID)
	if err != nil {
		return nil, err
	}
	// Client paths count markers, so pending redraws must land first.
	p.renderer.Flush()

	var d *highlight.Draft
	err = p.doc.Do(func(root *html.Node) error {
		sel, ok := p.selection(root, req)
		if !ok {
			return nil
		}
		d = selection.MakeEvent(root, sel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrEmptySelection
	}
	return d, nil
}

// Create adds a highlight from d. The highlight is drawn at once under a
// local id, then persisted and confirmed under its permanent id.
func (a *Annotator) Create(ctx context.Context, pageID string, d highlight.Draft, c highlight.Color) (highlight.Highlight, error) {
	if !c.Valid() {
		return highlight.Highlight{}, fmt.Errorf("%w: %q", ErrInvalidColor, c)
	}
	if anchor.Empty(d.Start, d.End) || len(d.Text) == 0 {
		return highlight.Highlight{}, ErrEmptySelection
	}
	p, err := a.page(pageID)
	if err != nil {
		return highlight.Highlight{}, err
	}

	local, txn := p.room.Create(d, c)
	p.apply()

	h := d.Highlight(highlight.RemoteID(a.newID()), c)
	if err := a.store.InsertHighlight(ctx, pageID, h); err != nil {
		p.room.Remove(local.ID)
		p.apply()
		return highlight.Highlight{}, fmt.Errorf("annotator: create highlight: %w", err)
	}
	got, ok := p.room.Confirm(txn, h)
	if !ok {
		// Removed while pending.
		if _, err := a.store.DeleteHighlight(ctx, pageID, h.ID.String()); err != nil {
			return highlight.Highlight{}, fmt.Errorf("annotator: create highlight: %w", err)
		}
		return highlight.Highlight{}, fmt.Errorf("%w: %s", ErrHighlightNotFound, local.ID)
	}
	if got.Color != h.Color {
		// Edited while pending.
		if err := a.persist(ctx, pageID, got); err != nil {
			return highlight.Highlight{}, err
		}
	}
	p.apply()

	a.events.LogEvent(ctx, observability.BusinessEvent{
		Type: observability.EventHighlightCreated, EntityType: "highlight", EntityID: h.ID.String(),
		PageID: pageID, Action: "create", Success: true,
		Details: map[string]any{"color": string(got.Color), "txn": txn},
	})
	return got, nil
}

// Edit changes the color of a highlight.
func (a *Annotator) Edit(ctx context.Context, pageID string, id highlight.ID, c highlight.Color) (highlight.Highlight, error) {
	if !c.Valid() {
		return highlight.Highlight{}, fmt.Errorf("%w: %q", ErrInvalidColor, c)
	}
	p, err := a.page(pageID)
	if err != nil {
		return highlight.Highlight{}, err
	}
	h, ok := p.room.Get(id)
	if !ok {
		return highlight.Highlight{}, fmt.Errorf("%w: %s", ErrHighlightNotFound, id)
	}
	h.Color = c
	if err := a.persist(ctx, pageID, h); err != nil {
		return highlight.Highlight{}, err
	}
	h, _ = p.room.Edit(id, c)
	p.apply()

	a.events.LogEvent(ctx, observability.BusinessEvent{
		Type: observability.EventHighlightEdited, EntityType: "highlight", EntityID: id.String(),
		PageID: pageID, Action: "edit", Success: true,
		Details: map[string]any{"color": string(c)},
	})
	return h, nil
}

// SetVisible shows or hides a highlight. Hidden highlights keep their
// record and are simply not drawn.
func (a *Annotator) SetVisible(ctx context.Context, pageID string, id highlight.ID, visible bool) (highlight.Highlight, error) {
	p, err := a.page(pageID)
	if err != nil {
		return highlight.Highlight{}, err
	}
	h, ok := p.room.SetVisible(id, visible)
	if !ok {
		return highlight.Highlight{}, fmt.Errorf("%w: %s", ErrHighlightNotFound, id)
	}
	if err := a.persist(ctx, pageID, h); err != nil {
		return highlight.Highlight{}, err
	}
	p.apply()

	a.events.LogEvent(ctx, observability.BusinessEvent{
		Type: observability.EventHighlightVisibility, EntityType: "highlight", EntityID: id.String(),
		PageID: pageID, Action: "set_visible", Success: true,
		Details: map[string]any{"visible": visible},
	})
	return h, nil
}

// Remove deletes a highlight.
func (a *Annotator) Remove(ctx context.Context, pageID string, id highlight.ID) error {
	p, err := a.page(pageID)
	if err != nil {
		return err
	}
	if _, ok := p.room.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrHighlightNotFound, id)
	}
	if !id.IsLocal() {
		if _, err := a.store.DeleteHighlight(ctx, pageID, id.String()); err != nil {
			return fmt.Errorf("annotator: remove highlight: %w", err)
		}
	}
	p.room.Remove(id)
	p.apply()

	a.events.LogEvent(ctx, observability.BusinessEvent{
		Type: observability.EventHighlightRemoved, EntityType: "highlight", EntityID: id.String(),
		PageID: pageID, Action: "remove", Success: true,
	})
	return nil
}

// persist stores color and visibility of a confirmed highlight. Pending
// local highlights exist only in memory.
func (a *Annotator) persist(ctx context.Context, pageID string, h highlight.Highlight) error {
	if h.ID.IsLocal() {
		return nil
	}
	ok, err := a.store.UpdateHighlight(ctx, pageID, h)
	if err != nil {
		return fmt.Errorf("annotator: update highlight: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrHighlightNotFound, h.ID)
	}
	return nil
}

// Highlights returns the page's highlights in list order.
func (a *Annotator) Highlights(ctx context.Context, pageID string) ([]highlight.Highlight, error) {
	p, err := a.page(pageID)
	if err != nil {
		return nil, err
	}
	return p.room.List(), nil
}

// HTML returns the current instrumented markup of the page.
func (a *Annotator) HTML(ctx context.Context, pageID string) (string, error) {
	p, err := a.page(pageID)
	if err != nil {
		return "", err
	}
	p.renderer.Flush()
	return p.doc.String(), nil
}

// Export returns the page as Markdown with highlighted text marked, and
// the list of visible quotes. domain resolves relative links and may be
// empty.
func (a *Annotator) Export(ctx context.Context, pageID, domain string) (markdown, quotes string, err error) {
	p, err := a.page(pageID)
	if err != nil {
		return "", "", err
	}
	p.renderer.Flush()
	md, err := a.exporter.Markdown(p.doc, domain)
	if err != nil {
		return "", "", err
	}
	return md, export.Quotes(p.room.List()), nil
}

// Hover reports the pointer entering (enter=true) or leaving a highlight.
func (a *Annotator) Hover(pageID string, id highlight.ID, enter bool) error {
	p, err := a.page(pageID)
	if err != nil {
		return err
	}
	if !enter {
		p.renderer.HoverEnd(id)
		return nil
	}
	if _, ok := p.room.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrHighlightNotFound, id)
	}
	p.renderer.HoverBegin(id)
	return nil
}

// Click reports a click on a drawn highlight and returns its geometry.
func (a *Annotator) Click(pageID string, id highlight.ID) (render.Geometry, error) {
	p, err := a.page(pageID)
	if err != nil {
		return render.Geometry{}, err
	}
	p.renderer.Flush()
	if !p.renderer.Click(id) {
		return render.Geometry{}, fmt.Errorf("%w: %s", ErrHighlightNotFound, id)
	}
	g, _ := p.renderer.Geometry(id)
	return g, nil
}

// Viewport describes a client viewport change. The flow layout uses
// Columns, the browser layout Width and Height; zero sizes are left
// unchanged. The scroll offset is always applied.
type Viewport struct {
	Columns int     `json:"columns,omitempty"`
	Width   int     `json:"width,omitempty"`
	Height  int     `json:"height,omitempty"`
	ScrollX float64 `json:"scroll_x,omitempty"`
	ScrollY float64 `json:"scroll_y,omitempty"`
}

// Resize applies a viewport change and re-measures every drawn highlight.
func (a *Annotator) Resize(pageID string, v Viewport) error {
	p, err := a.page(pageID)
	if err != nil {
		return err
	}
	switch {
	case p.flow != nil:
		if v.Columns > 0 {
			p.flow.SetColumns(v.Columns)
		}
		p.flow.ScrollTo(v.ScrollX, v.ScrollY)
	case p.browser != nil:
		if v.Width > 0 && v.Height > 0 {
			if err := p.browser.SetViewport(v.Width, v.Height); err != nil {
				return err
			}
		}
		p.browser.ScrollTo(v.ScrollX, v.ScrollY)
	}
	p.renderer.Flush()
	p.renderer.Resize()
	return nil
}

// Events returns the recent lifecycle events of a page, newest first.
func (a *Annotator) Events(ctx context.Context, pageID string, limit int) ([]observability.BusinessEvent, error) {
	if _, err := a.page(pageID); err != nil {
		return nil, err
	}
	return a.events.Events(ctx, pageID, limit)
}

// DeletePage unloads a page and deletes it with its highlights.
func (a *Annotator) DeletePage(ctx context.Context, pageID string) error {
	a.mu.Lock()
	p, ok := a.pages[pageID]
	delete(a.pages, pageID)
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrPageNotFound, pageID)
	}
	p.close(a.logger)
	if err := a.store.DeletePage(ctx, pageID); err != nil {
		return fmt.Errorf("annotator: delete page: %w", err)
	}
	return nil
}

// isNotFound reports whether err names a missing page or highlight.
func isNotFound(err error) bool {
	return errors.Is(err, ErrPageNotFound) || errors.Is(err, ErrHighlightNotFound)
}
