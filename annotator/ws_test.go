package annotator

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hazyhaar/mhl/highlight"
)

func dialEvents(t *testing.T, srv *httptest.Server, page string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/pages/" + page + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		code := 0
		if resp != nil {
			code = resp.StatusCode
		}
		t.Fatalf("dial %s: %v (status %d)", url, err, code)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// nextFrame reads frames until one of type typ arrives.
func nextFrame(t *testing.T, conn *websocket.Conn, typ string) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %q frame: %v", typ, err)
		}
		if f.Type == typ {
			return f
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, f Frame) {
	t.Helper()
	if err := conn.WriteJSON(f); err != nil {
		t.Fatalf("write %s: %v", f.Type, err)
	}
}

func TestWebsocket_Frames(t *testing.T) {
	a := loaded(t)
	h := mustCreate(t, a, "world", highlight.Green)
	srv := httptest.NewServer(a.Routes())
	defer srv.Close()

	conn := dialEvents(t, srv, "p1")

	send(t, conn, Frame{Type: FrameEnter, ID: h.ID})
	if f := nextFrame(t, conn, FrameActive); f.ID != h.ID {
		t.Errorf("active: got %v, want %v", f.ID, h.ID)
	}

	send(t, conn, Frame{Type: FrameClick, ID: h.ID})
	f := nextFrame(t, conn, FrameClick)
	if f.ID != h.ID || f.Geometry == nil {
		t.Fatalf("click frame: %+v", f)
	}
	// Default flow grid: 8px cells, "world" starts at column 16.
	if f.Geometry.Left != 128 || f.Geometry.Top != 0 {
		t.Errorf("click geometry: %+v", *f.Geometry)
	}

	send(t, conn, Frame{Type: FrameLeave, ID: h.ID})
	if f := nextFrame(t, conn, FrameActive); !f.ID.IsZero() {
		t.Errorf("active after leave: got %v, want none", f.ID)
	}

	send(t, conn, Frame{Type: FrameResize, Columns: 10})
	f = nextFrame(t, conn, FrameMove)
	if f.ID != h.ID || f.Geometry == nil || f.Geometry.Top == 0 {
		t.Errorf("move after wrap: %+v", f)
	}
	wrapped := *f.Geometry

	// A scrolled viewport keeps its offset and document coordinates hold.
	send(t, conn, Frame{Type: FrameResize, Columns: 10, ScrollY: 50})
	send(t, conn, Frame{Type: FrameClick, ID: h.ID})
	if f := nextFrame(t, conn, FrameClick); f.Geometry == nil || *f.Geometry != wrapped {
		t.Errorf("click after scroll: %+v, want %+v", f.Geometry, wrapped)
	}
	p, err := a.page("p1")
	if err != nil {
		t.Fatal(err)
	}
	if x, y := p.flow.Scroll(); x != 0 || y != 50 {
		t.Errorf("scroll after resize frame: got %v,%v, want 0,50", x, y)
	}

	send(t, conn, Frame{Type: "bogus"})
	if f := nextFrame(t, conn, FrameError); f.Error == "" {
		t.Error("error frame without message")
	}
	send(t, conn, Frame{Type: FrameEnter, ID: highlight.RemoteID("nope")})
	nextFrame(t, conn, FrameError)
}

func TestWebsocket_UnknownPage(t *testing.T) {
	a := loaded(t)
	srv := httptest.NewServer(a.Routes())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/pages/nope/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial unknown page: want error")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %v, want 404", resp)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHub_BroadcastPerPage(t *testing.T) {
	h := newHub(testLogger())
	c1 := &client{page: "a", send: make(chan []byte, 1)}
	c2 := &client{page: "b", send: make(chan []byte, 1)}
	h.register(c1)
	h.register(c2)

	h.broadcast("a", Frame{Type: FrameActive})
	h.broadcast("a", Frame{Type: FrameActive}) // buffer full: dropped
	if len(c1.send) != 1 || len(c2.send) != 0 {
		t.Errorf("queued: a=%d b=%d", len(c1.send), len(c2.send))
	}

	h.unregister(c1)
	h.unregister(c1)
	if h.count("a") != 0 || h.count("b") != 1 {
		t.Errorf("counts: a=%d b=%d", h.count("a"), h.count("b"))
	}
	if _, ok := <-c1.send; !ok {
		t.Error("queued frame lost on unregister")
	}
	if _, ok := <-c1.send; ok {
		t.Error("send channel not closed")
	}
}
