// Package rodlayout measures highlights in a headless Chrome.
//
// Every Sync loads the current markup into a dedicated tab and reads the
// bounding rectangle of every element. Elements are matched to the Go tree
// by pre-order position, which holds as long as the browser parses the
// rendered markup back into the same shape.
package rodlayout

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/net/html"

	"github.com/hazyhaar/mhl/render"
)

// Config configures the browser.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string `yaml:"remote_url"`

	// Viewport size in CSS pixels. Default: 1280x800.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// Stealth opens the tab through go-rod/stealth.
	Stealth bool `yaml:"stealth"`

	// Timeout bounds each browser round trip. Default: 10s.
	Timeout time.Duration `yaml:"timeout"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 800
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Layout is a render.Layout and render.Syncer backed by a Chrome tab.
type Layout struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page

	mu      sync.Mutex
	boxes   map[*html.Node]render.Rect
	scrollX float64
	scrollY float64
}

// Open launches (or connects to) Chrome and opens the measuring tab.
func Open(ctx context.Context, cfg Config) (*Layout, error) {
	cfg.defaults()
	l := &Layout{cfg: cfg, boxes: make(map[*html.Node]render.Rect)}

	wsURL := cfg.RemoteURL
	if wsURL == "" {
		lnch := launcher.New().Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := lnch.Launch()
		if err != nil {
			return nil, fmt.Errorf("rodlayout: launch: %w", err)
		}
		wsURL, l.lnch = u, lnch
		cfg.Logger.Info("rodlayout: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.cleanup()
		return nil, fmt.Errorf("rodlayout: connect: %w", err)
	}
	l.browser = b

	var page *rod.Page
	var err error
	if cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		l.cleanup()
		return nil, fmt.Errorf("rodlayout: create tab: %w", err)
	}
	l.page = page

	if err := l.SetViewport(cfg.Width, cfg.Height); err != nil {
		l.cleanup()
		return nil, err
	}
	return l, nil
}

// SetViewport resizes the tab. Callers then Sync and ask the renderer to
// Resize.
func (l *Layout) SetViewport(width, height int) error {
	err := l.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("rodlayout: viewport: %w", err)
	}
	return nil
}

// measureJS returns the viewport rectangle of every element in document
// order, plus the scroll offset, as a JSON string.
const measureJS = `() => {
	const root = document.documentElement;
	const els = [root, ...root.querySelectorAll('*')];
	return JSON.stringify({
		x: window.scrollX,
		y: window.scrollY,
		boxes: els.map(e => {
			const r = e.getBoundingClientRect();
			return {tag: e.localName, l: r.left, t: r.top, r: r.right, b: r.bottom, w: r.width, h: r.height};
		}),
	});
}`

type measurement struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Boxes []struct {
		Tag    string  `json:"tag"`
		Left   float64 `json:"l"`
		Top    float64 `json:"t"`
		Right  float64 `json:"r"`
		Bottom float64 `json:"b"`
		Width  float64 `json:"w"`
		Height float64 `json:"h"`
	} `json:"boxes"`
}

// Sync loads the markup under root into the tab and measures it.
func (l *Layout) Sync(root *html.Node) error {
	var b strings.Builder
	if err := html.Render(&b, root); err != nil {
		return fmt.Errorf("rodlayout: render: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.Timeout)
	defer cancel()
	page := l.page.Context(ctx)

	l.mu.Lock()
	x, y := l.scrollX, l.scrollY
	l.mu.Unlock()

	if err := page.SetDocumentContent("<!DOCTYPE html>" + b.String()); err != nil {
		return fmt.Errorf("rodlayout: load markup: %w", err)
	}
	if _, err := page.Eval(`(x, y) => window.scrollTo(x, y)`, x, y); err != nil {
		return fmt.Errorf("rodlayout: scroll: %w", err)
	}
	res, err := page.Eval(measureJS)
	if err != nil {
		return fmt.Errorf("rodlayout: measure: %w", err)
	}
	var m measurement
	if err := json.Unmarshal([]byte(res.Value.Str()), &m); err != nil {
		return fmt.Errorf("rodlayout: decode measurement: %w", err)
	}

	boxes := make(map[*html.Node]render.Rect)
	i := 0
	for n := range elements(root) {
		if i >= len(m.Boxes) || m.Boxes[i].Tag != n.Data {
			l.cfg.Logger.Warn("rodlayout: browser tree diverges", "at", i, "tag", n.Data)
			break
		}
		bx := m.Boxes[i]
		i++
		if bx.Width == 0 && bx.Height == 0 {
			continue
		}
		boxes[n] = render.Rect{Left: bx.Left, Top: bx.Top, Right: bx.Right, Bottom: bx.Bottom}
	}

	l.mu.Lock()
	l.boxes, l.scrollX, l.scrollY = boxes, m.X, m.Y
	l.mu.Unlock()
	return nil
}

// elements yields root and every element under it in document order.
func elements(root *html.Node) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		if root.Type == html.ElementNode && !yield(root) {
			return
		}
		for n := range root.Descendants() {
			if n.Type == html.ElementNode && !yield(n) {
				return
			}
		}
	}
}

// Rect returns the viewport rectangle of n measured by the last Sync.
func (l *Layout) Rect(n *html.Node) (render.Rect, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.boxes[n]
	return r, ok
}

// Scroll returns the scroll offset measured by the last Sync.
func (l *Layout) Scroll() (float64, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scrollX, l.scrollY
}

// ScrollTo sets the scroll offset used by the next Sync.
func (l *Layout) ScrollTo(x, y float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scrollX, l.scrollY = x, y
}

// Close closes the tab, and the browser when it was launched by Open. A
// remote Chrome keeps running.
func (l *Layout) Close() error {
	l.cleanup()
	return nil
}

func (l *Layout) cleanup() {
	if l.page != nil {
		l.page.Close()
		l.page = nil
	}
	if l.browser != nil && l.lnch != nil {
		l.browser.Close()
	}
	l.browser = nil
	if l.lnch != nil {
		l.lnch.Cleanup()
		l.lnch = nil
	}
}
