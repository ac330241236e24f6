package annotator

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/hazyhaar/mhl/anchor"
	"github.com/hazyhaar/mhl/highlight"
	"github.com/hazyhaar/mhl/idgen"
)

const testPage = `<html><head><title>T</title></head><body><p>Hello brave new world</p><p>Second paragraph here</p></body></html>`

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{DBPath: filepath.Join(t.TempDir(), "mhl.db")}
}

func newTestAnnotator(t *testing.T, cfg *Config) *Annotator {
	t.Helper()
	a, err := New(cfg, nil, WithIDGenerator(idgen.Sequence("hl_")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func loaded(t *testing.T) *Annotator {
	t.Helper()
	a := newTestAnnotator(t, testConfig(t))
	t.Cleanup(func() { a.Close() })
	if _, err := a.LoadPage(context.Background(), "p1", testPage); err != nil {
		t.Fatalf("LoadPage: %v", err)
	}
	return a
}

func mustCreate(t *testing.T, a *Annotator, quote string, c highlight.Color) highlight.Highlight {
	t.Helper()
	ctx := context.Background()
	d, err := a.Select(ctx, "p1", SelectRequest{Quote: quote})
	if err != nil {
		t.Fatalf("Select %q: %v", quote, err)
	}
	h, err := a.Create(ctx, "p1", *d, c)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return h
}

func TestAnnotator_CreateAndRestore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	a := newTestAnnotator(t, cfg)

	info, err := a.LoadPage(ctx, "p1", testPage)
	if err != nil {
		t.Fatalf("LoadPage: %v", err)
	}
	if info.Highlights != 0 {
		t.Errorf("fresh page highlights: got %d", info.Highlights)
	}

	h := mustCreate(t, a, "world", highlight.Green)
	if h.ID != highlight.RemoteID("hl_1") {
		t.Errorf("id: got %v, want hl_1", h.ID)
	}
	if !slices.Equal(h.Text, []string{"world"}) {
		t.Errorf("text: got %q", h.Text)
	}

	src, err := a.HTML(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(src, `data-mhl-id="hl_1"`) || !strings.Contains(src, "mhl-green") {
		t.Errorf("marker missing:\n%s", src)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	// Same database: the page and its highlight come back.
	b := newTestAnnotator(t, cfg)
	defer b.Close()
	list, err := b.Highlights(ctx, "p1")
	if err != nil {
		t.Fatalf("Highlights after restore: %v", err)
	}
	if len(list) != 1 || list[0].ID != h.ID || list[0].Color != highlight.Green {
		t.Fatalf("restored list: %+v", list)
	}
	if !anchor.Equal(list[0].From, h.From) || !anchor.Equal(list[0].To, h.To) {
		t.Errorf("restored anchors: %v-%v, want %v-%v", list[0].From, list[0].To, h.From, h.To)
	}
	src, _ = b.HTML(ctx, "p1")
	if !strings.Contains(src, `data-mhl-id="hl_1"`) {
		t.Errorf("restored page not drawn:\n%s", src)
	}
}

func TestAnnotator_EditVisibilityRemove(t *testing.T) {
	ctx := context.Background()
	a := loaded(t)
	h := mustCreate(t, a, "brave", highlight.Yellow)

	if _, err := a.Edit(ctx, "p1", h.ID, highlight.Pink); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	src, _ := a.HTML(ctx, "p1")
	if !strings.Contains(src, "mhl-pink") || strings.Contains(src, "mhl-yellow") {
		t.Errorf("color not patched:\n%s", src)
	}

	got, err := a.SetVisible(ctx, "p1", h.ID, false)
	if err != nil {
		t.Fatalf("SetVisible: %v", err)
	}
	if !got.Hidden {
		t.Error("SetVisible(false): highlight not hidden")
	}
	src, _ = a.HTML(ctx, "p1")
	if strings.Contains(src, "data-mhl-id") {
		t.Errorf("hidden highlight still drawn:\n%s", src)
	}
	stored, err := a.store.ListHighlights(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || !stored[0].Hidden || stored[0].Color != highlight.Pink {
		t.Errorf("stored: %+v", stored)
	}

	if err := a.Remove(ctx, "p1", h.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if list, _ := a.Highlights(ctx, "p1"); len(list) != 0 {
		t.Errorf("after remove: %+v", list)
	}
	if err := a.Remove(ctx, "p1", h.ID); !errors.Is(err, ErrHighlightNotFound) {
		t.Errorf("second Remove: got %v", err)
	}

	evs, err := a.Events(ctx, "p1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 5 {
		t.Errorf("events: got %d, want 5 (load, create, edit, visibility, remove)", len(evs))
	}
}

func TestAnnotator_Errors(t *testing.T) {
	ctx := context.Background()
	a := loaded(t)
	h := mustCreate(t, a, "new", highlight.Blue)

	if _, err := a.Select(ctx, "missing", SelectRequest{Quote: "x"}); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("unknown page: got %v", err)
	}
	if _, err := a.Select(ctx, "p1", SelectRequest{Quote: "absent"}); !errors.Is(err, ErrEmptySelection) {
		t.Errorf("absent quote: got %v", err)
	}
	if _, err := a.Edit(ctx, "p1", h.ID, highlight.Color("teal")); !errors.Is(err, ErrInvalidColor) {
		t.Errorf("invalid color: got %v", err)
	}
	if _, err := a.Create(ctx, "p1", highlight.Draft{}, highlight.Blue); !errors.Is(err, ErrEmptySelection) {
		t.Errorf("empty draft: got %v", err)
	}
	if _, err := a.SetVisible(ctx, "p1", highlight.RemoteID("nope"), true); !errors.Is(err, ErrHighlightNotFound) {
		t.Errorf("unknown highlight: got %v", err)
	}
	if _, err := a.LoadPage(ctx, "", testPage); err == nil {
		t.Error("empty page id: want error")
	}
}

func TestAnnotator_SelectThroughMarkers(t *testing.T) {
	ctx := context.Background()
	a := loaded(t)
	mustCreate(t, a, "world", highlight.Green)

	// The client DOM now has body > p > structural wrapper > "Hello brave new ".
	d, err := a.Select(ctx, "p1", SelectRequest{
		Anchor: &Point{Path: []int{1, 0, 0, 0}, Offset: 11},
		Focus:  &Point{Path: []int{1, 0, 0, 0}, Offset: 6},
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !slices.Equal(d.Text, []string{"brave"}) {
		t.Errorf("text: got %q", d.Text)
	}
	if !anchor.Equal(d.Start, anchor.TextPosition{Path: []int{1, 0, 0}, Offset: 6}) {
		t.Errorf("start: got %v", d.Start)
	}

	caret := "Caret"
	if _, err := a.Select(ctx, "p1", SelectRequest{
		Type:   caret,
		Anchor: &Point{Path: []int{1, 0, 0, 0}, Offset: 2},
		Focus:  &Point{Path: []int{1, 0, 0, 0}, Offset: 2},
	}); !errors.Is(err, ErrEmptySelection) {
		t.Errorf("caret: got %v", err)
	}
	two := 2
	if _, err := a.Select(ctx, "p1", SelectRequest{
		RangeCount: &two,
		Anchor:     &Point{Path: []int{1, 0, 0, 0}, Offset: 0},
		Focus:      &Point{Path: []int{1, 0, 0, 0}, Offset: 5},
	}); !errors.Is(err, ErrEmptySelection) {
		t.Errorf("multi range: got %v", err)
	}
}

func TestAnnotator_SelectToParagraphEnd(t *testing.T) {
	ctx := context.Background()
	a := loaded(t)

	// Triple-click: from the first character to the end of the paragraph.
	req := SelectRequest{
		Anchor: &Point{Path: []int{1, 0, 0}, Offset: 0},
		Focus:  &Point{Path: []int{1, 0}, Offset: 1},
	}
	d, err := a.Select(ctx, "p1", req)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !slices.Equal(d.Text, []string{"Hello brave new world"}) {
		t.Fatalf("text: got %q", d.Text)
	}
	h, err := a.Create(ctx, "p1", *d, highlight.Yellow)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	src, _ := a.HTML(ctx, "p1")
	if !strings.Contains(src, `data-mhl-id="`+h.ID.String()+`"`) {
		t.Errorf("highlight not drawn:\n%s", src)
	}

	// The paragraph's only child is now the marker; the same gesture must
	// produce the same anchors.
	again, err := a.Select(ctx, "p1", SelectRequest{
		Anchor: &Point{Path: []int{1, 0, 0, 0}, Offset: 0},
		Focus:  &Point{Path: []int{1, 0}, Offset: 1},
	})
	if err != nil {
		t.Fatalf("Select over marker: %v", err)
	}
	if !anchor.Equal(again.Start, d.Start) || !anchor.Equal(again.End, d.End) {
		t.Errorf("anchors moved: %v..%v, want %v..%v", again.Start, again.End, d.Start, d.End)
	}

	// A draft covering nothing is refused even with ordered anchors.
	zero := highlight.Draft{
		Start: anchor.NodePosition{Path: []int{1, 0, 0}},
		End:   anchor.TextPosition{Path: []int{1, 0, 0}, Offset: 0},
		Text:  []string{},
	}
	if _, err := a.Create(ctx, "p1", zero, highlight.Blue); !errors.Is(err, ErrEmptySelection) {
		t.Errorf("zero-length draft: got %v", err)
	}
}

func TestAnnotator_ReloadKeepsHighlights(t *testing.T) {
	ctx := context.Background()
	a := loaded(t)
	mustCreate(t, a, "Second", highlight.Purple)

	// New markup where the second paragraph no longer exists: the highlight
	// is kept but cannot be drawn.
	info, err := a.LoadPage(ctx, "p1", `<html><head></head><body><p>Hello brave new world</p></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	if info.Highlights != 1 || info.Stats.Skipped != 1 {
		t.Errorf("info: %+v", info)
	}

	if err := a.DeletePage(ctx, "p1"); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}
	if _, err := a.HTML(ctx, "p1"); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("after delete: got %v", err)
	}
	if stored, _ := a.store.ListHighlights(ctx, "p1"); len(stored) != 0 {
		t.Errorf("highlights survive page delete: %+v", stored)
	}
}

func TestParseID(t *testing.T) {
	cases := []struct {
		in   string
		want highlight.ID
	}{
		{"hl_0192", highlight.RemoteID("hl_0192")},
		{"7", highlight.LocalID(7)},
		{"0", highlight.RemoteID("0")},
	}
	for _, tc := range cases {
		if got := ParseID(tc.in); got != tc.want {
			t.Errorf("ParseID(%q): got %v, want %v", tc.in, got, tc.want)
		}
	}
}
