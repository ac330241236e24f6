package annotator

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hazyhaar/mhl/highlight"
	"github.com/hazyhaar/mhl/kit"
	"github.com/hazyhaar/mhl/render"
)

// Frame types.
const (
	FrameActive = "active" // out: hover focus changed, id null = none
	FrameClick  = "click"  // out: highlight clicked; in: click a highlight
	FrameMove   = "move"   // out: highlight moved
	FrameEnter  = "enter"  // in: pointer entered a highlight
	FrameLeave  = "leave"  // in: pointer left a highlight
	FrameResize = "resize" // in: viewport changed
	FrameError  = "error"  // out: inbound frame rejected
)

// Frame is one websocket message, in either direction.
type Frame struct {
	Type     string           `json:"type"`
	ID       highlight.ID     `json:"id"`
	Geometry *render.Geometry `json:"geometry,omitempty"`
	Columns  int              `json:"columns,omitempty"`
	Width    int              `json:"width,omitempty"`
	Height   int              `json:"height,omitempty"`
	ScrollX  float64          `json:"scroll_x,omitempty"`
	ScrollY  float64          `json:"scroll_y,omitempty"`
	Error    string           `json:"error,omitempty"`
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

type client struct {
	conn *websocket.Conn
	page string
	send chan []byte
}

// hub fans renderer outputs out to the websocket clients of each page.
type hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	logger  *slog.Logger
}

func newHub(logger *slog.Logger) *hub {
	return &hub{clients: make(map[string]map[*client]struct{}), logger: logger}
}

func (h *hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.page] == nil {
		h.clients[c.page] = make(map[*client]struct{})
	}
	h.clients[c.page][c] = struct{}{}
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[c.page]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.clients, c.page)
	}
}

// broadcast sends f to every client of page. Slow clients miss frames
// rather than stall the renderer.
func (h *hub) broadcast(page string, f Frame) {
	msg, err := json.Marshal(f)
	if err != nil {
		h.logger.Warn("annotator: marshal frame", "error", err, "type", f.Type)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[page] {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("annotator: frame dropped", "page", page, "type", f.Type)
		}
	}
}

func (h *hub) count(page string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[page])
}

// listener forwards one page's renderer outputs to the hub.
func (h *hub) listener(page string) render.Listener {
	return render.ListenerFuncs{
		OnActive: func(id highlight.ID) {
			h.broadcast(page, Frame{Type: FrameActive, ID: id})
		},
		OnClick: func(id highlight.ID, g render.Geometry) {
			h.broadcast(page, Frame{Type: FrameClick, ID: id, Geometry: &g})
		},
		OnMove: func(id highlight.ID, g render.Geometry) {
			h.broadcast(page, Frame{Type: FrameMove, ID: id, Geometry: &g})
		},
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleEvents upgrades to a websocket bound to one page.
// GET /pages/{page}/events
func (a *Annotator) handleEvents(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "page")
	if _, err := a.page(pageID); err != nil {
		a.writeError(w, r, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		kit.Logger(r.Context(), a.logger).Warn("annotator: websocket upgrade", "error", err)
		return
	}

	c := &client{conn: conn, page: pageID, send: make(chan []byte, sendBuffer)}
	a.hub.register(c)
	go c.writePump()
	a.readPump(c)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (a *Annotator) readPump(c *client) {
	defer a.hub.unregister(c)
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.logger.Debug("annotator: websocket closed", "page", c.page, "error", err)
			}
			return
		}
		if err := a.handleFrame(c.page, f); err != nil {
			reply, _ := json.Marshal(Frame{Type: FrameError, ID: f.ID, Error: err.Error()})
			select {
			case c.send <- reply:
			default:
			}
		}
	}
}

func (a *Annotator) handleFrame(pageID string, f Frame) error {
	switch f.Type {
	case FrameEnter:
		return a.Hover(pageID, f.ID, true)
	case FrameLeave:
		return a.Hover(pageID, f.ID, false)
	case FrameClick:
		_, err := a.Click(pageID, f.ID)
		return err
	case FrameResize:
		return a.Resize(pageID, Viewport{
			Columns: f.Columns,
			Width:   f.Width,
			Height:  f.Height,
			ScrollX: f.ScrollX,
			ScrollY: f.ScrollY,
		})
	}
	return errUnknownFrame(f.Type)
}

type errUnknownFrame string

func (e errUnknownFrame) Error() string { return "annotator: unknown frame type " + string(e) }
