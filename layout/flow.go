// Package layout provides geometry for the renderer.
//
// Flow is a deterministic, browser-free approximation: text flows through a
// grid of fixed-size character cells, block elements start on a new line and
// long lines wrap at the viewport width. It is enough to order and position
// highlight boxes for UI anchoring when no real browser is at hand; the
// rodlayout subpackage measures with a headless Chrome instead.
package layout

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/mhl/render"
)

// FlowConfig sizes the character grid.
type FlowConfig struct {
	CharWidth  float64 `yaml:"char_width"`
	LineHeight float64 `yaml:"line_height"`
	Columns    int     `yaml:"columns"`
}

func (c *FlowConfig) defaults() {
	if c.CharWidth <= 0 {
		c.CharWidth = 8
	}
	if c.LineHeight <= 0 {
		c.LineHeight = 18
	}
	if c.Columns <= 0 {
		c.Columns = 100
	}
}

// Flow lays text out on a character grid.
type Flow struct {
	mu      sync.Mutex
	cfg     FlowConfig
	scrollX float64
	scrollY float64
	boxes   map[*html.Node]render.Rect
}

// NewFlow creates a Flow layout.
func NewFlow(cfg FlowConfig) *Flow {
	cfg.defaults()
	return &Flow{cfg: cfg, boxes: make(map[*html.Node]render.Rect)}
}

// Sync lays out the tree under root.
func (f *Flow) Sync(root *html.Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boxes = make(map[*html.Node]render.Rect)
	var c cursor
	f.place(root, &c)
	return nil
}

// Rect returns the viewport box of n: its place in the last Sync shifted
// by the current scroll offset.
func (f *Flow) Rect(n *html.Node) (render.Rect, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.boxes[n]
	if !ok {
		return render.Rect{}, false
	}
	return render.Rect{
		Left:   r.Left - f.scrollX,
		Top:    r.Top - f.scrollY,
		Right:  r.Right - f.scrollX,
		Bottom: r.Bottom - f.scrollY,
	}, true
}

// Scroll returns the scroll offset.
func (f *Flow) Scroll() (float64, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scrollX, f.scrollY
}

// ScrollTo sets the scroll offset.
func (f *Flow) ScrollTo(x, y float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrollX, f.scrollY = x, y
}

// SetColumns changes the viewport width. It takes effect at the next Sync,
// which the renderer runs under the document lock, so callers follow it
// with Renderer.Resize.
func (f *Flow) SetColumns(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > 0 {
		f.cfg.Columns = n
	}
}

// Columns returns the viewport width in characters.
func (f *Flow) Columns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg.Columns
}

type cursor struct {
	col, line int
}

// place lays out n and its subtree, recording the box of every element that
// holds at least one character.
func (f *Flow) place(n *html.Node, c *cursor) (render.Rect, bool) {
	if n == nil {
		return render.Rect{}, false
	}
	switch n.Type {
	case html.TextNode:
		return f.placeText(n.Data, c)
	case html.ElementNode, html.DocumentNode:
	default:
		return render.Rect{}, false
	}
	if hidden(n) {
		return render.Rect{}, false
	}

	block := isBlock(n)
	if block || n.DataAtom == atom.Br {
		f.newline(c)
	}

	var box render.Rect
	found := false
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		r, ok := f.place(ch, c)
		if !ok {
			continue
		}
		if !found {
			box, found = r, true
		} else {
			box = box.Union(r)
		}
	}
	if block {
		f.newline(c)
	}
	if found && n.Type == html.ElementNode {
		f.boxes[n] = box
	}
	return box, found
}

func (f *Flow) placeText(s string, c *cursor) (render.Rect, bool) {
	var box render.Rect
	found := false
	for _, r := range s {
		if unicode.IsSpace(r) && c.col == 0 {
			continue
		}
		if c.col >= f.cfg.Columns {
			f.newline(c)
		}
		cell := render.Rect{
			Left:   float64(c.col) * f.cfg.CharWidth,
			Top:    float64(c.line) * f.cfg.LineHeight,
			Right:  float64(c.col+1) * f.cfg.CharWidth,
			Bottom: float64(c.line+1) * f.cfg.LineHeight,
		}
		c.col++
		if !found {
			box, found = cell, true
		} else {
			box = box.Union(cell)
		}
	}
	return box, found
}

func (f *Flow) newline(c *cursor) {
	if c.col > 0 {
		c.col = 0
		c.line++
	}
}

func hidden(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Template, atom.Noscript:
		return true
	}
	for _, a := range n.Attr {
		if a.Key == "hidden" || (a.Key == "style" && strings.Contains(strings.ReplaceAll(a.Val, " ", ""), "display:none")) {
			return true
		}
	}
	return false
}

func isBlock(n *html.Node) bool {
	switch n.DataAtom {
	case atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol, atom.H1, atom.H2, atom.H3,
		atom.H4, atom.H5, atom.H6, atom.Section, atom.Article, atom.Header,
		atom.Footer, atom.Main, atom.Nav, atom.Aside, atom.Blockquote, atom.Pre,
		atom.Table, atom.Tr, atom.Body, atom.Html, atom.Figure, atom.Dl, atom.Dt, atom.Dd:
		return true
	}
	return false
}
