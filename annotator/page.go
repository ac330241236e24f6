package annotator

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/hazyhaar/mhl/dom"
	"github.com/hazyhaar/mhl/highlight"
	"github.com/hazyhaar/mhl/layout"
	"github.com/hazyhaar/mhl/layout/rodlayout"
	"github.com/hazyhaar/mhl/render"
	"github.com/hazyhaar/mhl/room"
	"github.com/hazyhaar/mhl/selection"
)

// Page is one loaded document with its highlights.
type Page struct {
	ID string

	src      string
	doc      *dom.Document
	renderer *render.Renderer
	room     *room.Room
	flow     *layout.Flow
	browser  *rodlayout.Layout
	unsub    []func()
}

// PageInfo summarises a loaded page.
type PageInfo struct {
	ID         string       `json:"id"`
	Highlights int          `json:"highlights"`
	Stats      render.Stats `json:"stats"`
}

// openPage parses src and wires a renderer with the configured layout.
// Highlights in list are received as confirmed remote entries and drawn
// before the page is returned.
func (a *Annotator) openPage(ctx context.Context, id, src string, list []highlight.Highlight) (*Page, error) {
	doc, err := dom.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("annotator: parse page %s: %w", id, err)
	}
	p := &Page{ID: id, src: src, doc: doc, room: room.New()}

	logger := a.logger.With("page", id)
	opts := []render.Option{render.WithDebounce(a.cfg.Debounce), render.WithLogger(logger)}
	switch a.cfg.Layout {
	case LayoutRod:
		bcfg := a.cfg.Browser
		bcfg.Logger = logger
		p.browser, err = rodlayout.Open(ctx, bcfg)
		if err != nil {
			return nil, fmt.Errorf("annotator: open page %s: %w", id, err)
		}
		opts = append(opts, render.WithLayout(p.browser))
	default:
		p.flow = layout.NewFlow(a.cfg.Flow)
		opts = append(opts, render.WithLayout(p.flow))
	}
	p.renderer = render.New(doc, opts...)

	// Hover focus is mirrored into the room so the active class follows it.
	p.unsub = append(p.unsub,
		p.renderer.Subscribe(render.ListenerFuncs{
			OnActive: func(hid highlight.ID) {
				p.room.SetActive(hid)
				p.apply()
			},
		}),
		p.renderer.Subscribe(a.hub.listener(id)),
	)

	for _, h := range list {
		if err := p.room.Receive(room.Event{Kind: room.EventAdded, Highlight: h}); err != nil {
			logger.Warn("annotator: skip stored highlight", "error", err, "highlight", h.ID.String())
		}
	}
	p.renderer.ApplyNow(p.room.List())
	return p, nil
}

// apply schedules a redraw of the room's current list.
func (p *Page) apply() {
	p.renderer.Apply(p.room.List())
}

func (p *Page) info() PageInfo {
	return PageInfo{ID: p.ID, Highlights: p.room.Len(), Stats: p.renderer.Stats()}
}

func (p *Page) close(logger *slog.Logger) {
	for _, u := range p.unsub {
		u()
	}
	p.renderer.Close()
	if p.browser != nil {
		if err := p.browser.Close(); err != nil {
			logger.Warn("annotator: close browser", "error", err, "page", p.ID)
		}
	}
}

// Point is one selection endpoint as a client reports it: the child index
// path from the root element to a node of the client's DOM, markers
// included, and an offset inside that node.
type Point struct {
	Path   []int `json:"path"`
	Offset int   `json:"offset"`
}

// SelectRequest describes a client selection. Either Quote, or Anchor and
// Focus, must be set. Omitted RangeCount and Type mean a single range.
type SelectRequest struct {
	RangeCount *int   `json:"range_count,omitempty"`
	Type       string `json:"type,omitempty"`
	Anchor     *Point `json:"anchor,omitempty"`
	Focus      *Point `json:"focus,omitempty"`

	// Quote selects the Occurrence-th (0-based) match of a text instead.
	Quote      string `json:"quote,omitempty"`
	Occurrence int    `json:"occurrence,omitempty"`
}

func (p *Page) selection(root *html.Node, req SelectRequest) (selection.Selection, bool) {
	if req.Quote != "" {
		return selection.Find(root, req.Quote, req.Occurrence)
	}
	sel := selection.Selection{RangeCount: 1, Type: selection.TypeRange}
	if req.RangeCount != nil {
		sel.RangeCount = *req.RangeCount
	}
	if req.Type != "" {
		sel.Type = req.Type
	}
	if req.Anchor == nil || req.Focus == nil {
		return sel, false
	}
	var ok bool
	if sel.Anchor, ok = selection.Resolve(root, req.Anchor.Path, req.Anchor.Offset); !ok {
		return sel, false
	}
	if sel.Focus, ok = selection.Resolve(root, req.Focus.Path, req.Focus.Offset); !ok {
		return sel, false
	}
	return sel, true
}
