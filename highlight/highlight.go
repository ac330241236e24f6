// Package highlight defines the annotation records exchanged between the
// anchoring core and its collaborators: highlight identities, colors, the
// persisted Highlight itself and the Draft produced from a live selection.
package highlight

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/hazyhaar/mhl/anchor"
)

// Color is one of the five supported highlight colors.
type Color string

const (
	Yellow Color = "yellow"
	Green  Color = "green"
	Blue   Color = "blue"
	Pink   Color = "pink"
	Purple Color = "purple"
)

// Colors lists every valid color in display order.
var Colors = []Color{Yellow, Green, Blue, Pink, Purple}

// Valid reports whether c is a known color.
func (c Color) Valid() bool {
	return slices.Contains(Colors, c)
}

// ParseColor validates a color name.
func ParseColor(s string) (Color, error) {
	c := Color(s)
	if !c.Valid() {
		return "", fmt.Errorf("highlight: unknown color %q", s)
	}
	return c, nil
}

// ID identifies a highlight. A persisted highlight carries the string id
// assigned by the backend; before persistence it carries a local integer
// taken from the transaction counter. The zero ID is "none".
type ID struct {
	remote string
	local  int64
}

// RemoteID returns the identity of a persisted highlight.
func RemoteID(s string) ID { return ID{remote: s} }

// LocalID returns the identity of a not-yet-persisted highlight.
func LocalID(txn int64) ID { return ID{local: txn} }

// IsZero reports whether id is the "none" identity.
func (id ID) IsZero() bool { return id.remote == "" && id.local == 0 }

// IsLocal reports whether id is a local transaction id.
func (id ID) IsLocal() bool { return id.remote == "" && id.local != 0 }

// Txn returns the local transaction number, or 0 for remote ids.
func (id ID) Txn() int64 {
	if id.remote != "" {
		return 0
	}
	return id.local
}

// String returns the value written to the marker id attribute.
func (id ID) String() string {
	if id.remote != "" {
		return id.remote
	}
	if id.local != 0 {
		return strconv.FormatInt(id.local, 10)
	}
	return ""
}

// MarshalJSON encodes remote ids as strings and local ids as numbers.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.remote != "" {
		return json.Marshal(id.remote)
	}
	if id.local != 0 {
		return json.Marshal(id.local)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts a string, a number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ID{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = RemoteID(s)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("highlight: id must be a string or an integer: %w", err)
	}
	*id = LocalID(n)
	return nil
}

// Highlight is one annotation anchored to a span of page text.
type Highlight struct {
	ID     ID
	Color  Color
	Text   []string // covered text, one entry per underlying text node
	From   anchor.Anchor
	To     anchor.Anchor
	Hidden bool
	Active bool // transient, derived from hover
}

// Visible is the inverse of Hidden.
func (h Highlight) Visible() bool { return !h.Hidden }

// SameAnchors reports whether h and o cover the same range.
func (h Highlight) SameAnchors(o Highlight) bool {
	return anchor.Equal(h.From, o.From) && anchor.Equal(h.To, o.To)
}

type highlightJSON struct {
	ID      ID          `json:"id"`
	Color   Color       `json:"color"`
	Text    []string    `json:"text"`
	From    anchor.Wire `json:"from"`
	To      anchor.Wire `json:"to"`
	Hidden  bool        `json:"hidden"`
	Visible bool        `json:"visible"`
	Active  bool        `json:"active,omitempty"`
}

// MarshalJSON writes the wire form of h.
func (h Highlight) MarshalJSON() ([]byte, error) {
	text := h.Text
	if text == nil {
		text = []string{}
	}
	return json.Marshal(highlightJSON{
		ID:      h.ID,
		Color:   h.Color,
		Text:    text,
		From:    anchor.ToWire(h.From),
		To:      anchor.ToWire(h.To),
		Hidden:  h.Hidden,
		Visible: !h.Hidden,
		Active:  h.Active,
	})
}

// UnmarshalJSON reads the wire form. The derived visible field is ignored.
func (h *Highlight) UnmarshalJSON(data []byte) error {
	var w highlightJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*h = Highlight{
		ID:     w.ID,
		Color:  w.Color,
		Text:   w.Text,
		From:   w.From.Anchor(),
		To:     w.To.Anchor(),
		Hidden: w.Hidden,
		Active: w.Active,
	}
	return nil
}

// Draft is the content captured from a live selection, before the caller
// attaches a color and an id.
type Draft struct {
	Start  anchor.Anchor
	End    anchor.Anchor
	Text   []string
	Hidden bool
}

type draftJSON struct {
	Start  anchor.Wire `json:"start"`
	End    anchor.Wire `json:"end"`
	Text   []string    `json:"text"`
	Hidden bool        `json:"hidden"`
}

// MarshalJSON writes the wire form of d.
func (d Draft) MarshalJSON() ([]byte, error) {
	text := d.Text
	if text == nil {
		text = []string{}
	}
	return json.Marshal(draftJSON{
		Start:  anchor.ToWire(d.Start),
		End:    anchor.ToWire(d.End),
		Text:   text,
		Hidden: d.Hidden,
	})
}

// UnmarshalJSON reads the wire form of a draft.
func (d *Draft) UnmarshalJSON(data []byte) error {
	var w draftJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*d = Draft{Start: w.Start.Anchor(), End: w.End.Anchor(), Text: w.Text, Hidden: w.Hidden}
	return nil
}

// Highlight turns the draft into a highlight with the given id and color.
func (d Draft) Highlight(id ID, c Color) Highlight {
	return Highlight{
		ID:     id,
		Color:  c,
		Text:   slices.Clone(d.Text),
		From:   d.Start,
		To:     d.End,
		Hidden: d.Hidden,
	}
}
