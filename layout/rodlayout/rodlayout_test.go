package rodlayout

import (
	"context"
	"os"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/mhl/anchor"
	"github.com/hazyhaar/mhl/dom"
	"github.com/hazyhaar/mhl/highlight"
	"github.com/hazyhaar/mhl/render"
)

func TestLayout_MeasuresHighlights(t *testing.T) {
	if os.Getenv("MHL_ROD_TEST") != "1" {
		t.Skip("set MHL_ROD_TEST=1 to run browser tests")
	}

	l, err := Open(context.Background(), Config{Width: 800, Height: 600})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	doc, err := dom.ParseString("<p style=\"margin:0\">Hello world</p>")
	if err != nil {
		t.Fatal(err)
	}
	r := render.New(doc, render.WithLayout(l))
	id := highlight.RemoteID("hl_1")
	r.ApplyNow([]highlight.Highlight{{
		ID:    id,
		Color: highlight.Yellow,
		From:  anchor.TextPosition{Path: []int{1, 0, 0}, Offset: 6},
		To:    anchor.TextPosition{Path: []int{1, 0, 0}, Offset: 11},
	}})

	g, ok := r.Geometry(id)
	if !ok {
		t.Fatal("no geometry")
	}
	if g.Left <= 0 || g.Bottom <= g.Top {
		t.Errorf("geometry: got %+v", g)
	}

	var body *html.Node
	doc.Do(func(root *html.Node) error {
		body = dom.ChildAt(root, 1)
		return nil
	})
	if _, ok := l.Rect(body); !ok {
		t.Error("body has no box")
	}
}
