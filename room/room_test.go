package room

import (
	"slices"
	"testing"

	"github.com/hazyhaar/mhl/anchor"
	"github.com/hazyhaar/mhl/highlight"
)

func draft(from, to int) highlight.Draft {
	return highlight.Draft{
		Start: anchor.TextPosition{Path: []int{1, 0, 0}, Offset: from},
		End:   anchor.TextPosition{Path: []int{1, 0, 0}, Offset: to},
		Text:  []string{"text"},
	}
}

func remote(id string) highlight.Highlight {
	return draft(0, 4).Highlight(highlight.RemoteID(id), highlight.Blue)
}

func ids(list []highlight.Highlight) []string {
	out := make([]string, len(list))
	for i, h := range list {
		out[i] = h.ID.String()
	}
	return out
}

func TestRoom_LocalCreateConfirmed(t *testing.T) {
	r := New()
	if err := r.Receive(Event{Kind: EventAdded, Highlight: remote("a")}); err != nil {
		t.Fatal(err)
	}

	h, txn := r.Create(draft(2, 6), highlight.Pink)
	if !h.ID.IsLocal() || h.ID.Txn() != txn || txn != 1 {
		t.Fatalf("local highlight: id %v txn %d", h.ID, txn)
	}
	_, txn2 := r.Create(draft(7, 9), highlight.Pink)
	if txn2 != 2 {
		t.Errorf("second txn: got %d, want 2", txn2)
	}
	if got := ids(r.List()); !slices.Equal(got, []string{"a", "1", "2"}) {
		t.Errorf("list: got %v", got)
	}

	r.SetVisible(h.ID, false)
	confirmed := draft(2, 6).Highlight(highlight.RemoteID("b"), highlight.Pink)
	if err := r.Receive(Event{Kind: EventAdded, Highlight: confirmed, Txn: txn}); err != nil {
		t.Fatal(err)
	}
	list := r.List()
	if got := ids(list); !slices.Equal(got, []string{"a", "b", "2"}) {
		t.Errorf("after confirm: got %v", got)
	}
	if !list[1].Hidden {
		t.Error("local visibility should carry over to the confirmed highlight")
	}
}

func TestRoom_EditRemove(t *testing.T) {
	r := New()
	r.Receive(Event{Kind: EventAdded, Highlight: remote("a")})
	r.Receive(Event{Kind: EventAdded, Highlight: remote("b")})

	edited := remote("a")
	edited.Color = highlight.Green
	if err := r.Receive(Event{Kind: EventEdited, Highlight: edited}); err != nil {
		t.Fatal(err)
	}
	if h, _ := r.Get(highlight.RemoteID("a")); h.Color != highlight.Green {
		t.Errorf("color after edit: got %s", h.Color)
	}
	if err := r.Receive(Event{Kind: EventEdited, Highlight: remote("zz")}); err == nil {
		t.Error("editing an unknown highlight: want error")
	}

	if h, ok := r.Edit(highlight.RemoteID("b"), highlight.Purple); !ok || h.Color != highlight.Purple {
		t.Errorf("Edit: got %v %v", h.Color, ok)
	}

	r.Receive(Event{Kind: EventRemoved, Highlight: highlight.Highlight{ID: highlight.RemoteID("a")}})
	if got := ids(r.List()); !slices.Equal(got, []string{"b"}) {
		t.Errorf("after remove event: got %v", got)
	}
	if !r.Remove(highlight.RemoteID("b")) {
		t.Error("Remove b: got false")
	}
	if r.Remove(highlight.RemoteID("b")) {
		t.Error("Remove twice: got true")
	}
	if r.Len() != 0 {
		t.Errorf("len: got %d", r.Len())
	}
}

func TestRoom_VisibilityAndActive(t *testing.T) {
	r := New()
	hidden := remote("h")
	hidden.Hidden = true
	r.Receive(Event{Kind: EventAdded, Highlight: hidden})
	r.Receive(Event{Kind: EventAdded, Highlight: remote("v")})

	if h, _ := r.SetVisible(highlight.RemoteID("h"), true); h.Hidden {
		t.Error("override to visible ignored")
	}
	if h, _ := r.SetVisible(highlight.RemoteID("v"), false); !h.Hidden {
		t.Error("override to hidden ignored")
	}
	if _, ok := r.SetVisible(highlight.RemoteID("missing"), false); ok {
		t.Error("SetVisible on unknown id: got ok")
	}

	r.SetActive(highlight.RemoteID("v"))
	for _, h := range r.List() {
		if h.Active != (h.ID == highlight.RemoteID("v")) {
			t.Errorf("%v active=%v", h.ID, h.Active)
		}
	}
	r.SetActive(highlight.ID{})
	if _, ok := r.Active(); ok {
		t.Error("Active after clear: got ok")
	}
}

func TestRoom_RejectsBadEvents(t *testing.T) {
	r := New()
	if err := r.Receive(Event{Kind: EventAdded}); err == nil {
		t.Error("event without id: want error")
	}
	if err := r.Receive(Event{Kind: "moved", Highlight: remote("a")}); err == nil {
		t.Error("unknown kind: want error")
	}
}

func TestRoom_ConfirmKeepsPendingEdits(t *testing.T) {
	r := New()
	h, txn := r.Create(draft(2, 6), highlight.Yellow)
	if _, ok := r.Edit(h.ID, highlight.Green); !ok {
		t.Fatal("edit pending highlight")
	}
	r.SetActive(h.ID)

	sent := draft(2, 6).Highlight(highlight.RemoteID("b"), highlight.Yellow)
	got, ok := r.Confirm(txn, sent)
	if !ok {
		t.Fatal("confirm: got false")
	}
	if got.ID != sent.ID || got.Color != highlight.Green || !got.Active {
		t.Errorf("confirmed: %+v, want b green active", got)
	}
	if list := r.List(); !slices.Equal(ids(list), []string{"b"}) || list[0].Color != highlight.Green {
		t.Errorf("list after confirm: %+v", list)
	}

	// Removed before its confirmation: nothing comes back.
	h2, txn2 := r.Create(draft(7, 9), highlight.Pink)
	r.Remove(h2.ID)
	if _, ok := r.Confirm(txn2, draft(7, 9).Highlight(highlight.RemoteID("c"), highlight.Pink)); ok {
		t.Error("confirm of a removed pending highlight: got true")
	}
	if got := ids(r.List()); !slices.Equal(got, []string{"b"}) {
		t.Errorf("list: got %v", got)
	}
}
