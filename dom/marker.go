package dom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Marker attributes carried by every injected element.
const (
	AttrID     = "data-mhl-id"
	AttrLength = "data-mhl-length"
	AttrRole   = "data-mhl-role"
)

// Role distinguishes the two kinds of injected markers.
type Role string

const (
	// RoleStructural wraps a text node that a highlight only partly covers,
	// keeping the uncovered leading/trailing text next to the highlight.
	RoleStructural Role = "structural"
	// RoleHighlight is the colored span around the covered text.
	RoleHighlight Role = "highlight"
)

// Class names applied to highlight markers.
const (
	ClassMarker = "mhl"
	ClassActive = "mhl-active"
	classColor  = "mhl-"
)

// Wrap is what HighlightTextPortion inserted for one text piece.
type Wrap struct {
	Highlight  *html.Node
	Structural *html.Node // nil when the highlight covers the whole text node
}

// Outer returns the marker that replaced the original text node.
func (w Wrap) Outer() *html.Node {
	if w.Structural != nil {
		return w.Structural
	}
	return w.Highlight
}

// IsMarker reports whether n is an element injected by this package.
func IsMarker(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	_, ok := attr(n, AttrRole)
	return ok
}

// MarkerRole returns the role of a marker, or "" for any other node.
func MarkerRole(n *html.Node) Role {
	if !IsMarker(n) {
		return ""
	}
	v, _ := attr(n, AttrRole)
	return Role(v)
}

// MarkerID returns the owning highlight id of a marker.
func MarkerID(n *html.Node) string {
	if !IsMarker(n) {
		return ""
	}
	v, _ := attr(n, AttrID)
	return v
}

// Length returns the character length a node contributes to the
// uninstrumented text: the recorded length for markers, the UTF-16 length for
// text nodes and 0 for everything else.
func Length(n *html.Node) int {
	switch {
	case n == nil:
		return 0
	case n.Type == html.TextNode:
		return TextLen(n.Data)
	case IsMarker(n):
		v, _ := attr(n, AttrLength)
		l, err := strconv.Atoi(v)
		if err != nil {
			return TextLen(TextContent(n))
		}
		return l
	}
	return 0
}

// HighlightTextPortion wraps the [from, to) characters of text in a highlight
// marker. When the range leaves text on either side, a structural marker
// holding the leading text, the highlight and the trailing text replaces the
// text node; otherwise the highlight marker replaces it directly.
// It returns false without touching the tree when to <= from, when the node
// is not an attached text node, or when the range is out of bounds.
func HighlightTextPortion(text *html.Node, from, to int, id, color string) (Wrap, bool) {
	if text == nil || text.Type != html.TextNode || text.Parent == nil {
		return Wrap{}, false
	}
	if to <= from || from < 0 || to > TextLen(text.Data) {
		return Wrap{}, false
	}

	lead, mid, trail := splitText(text.Data, from, to)

	hl := newMarker(RoleHighlight, id, to-from)
	setAttr(hl, "class", ClassMarker+" "+classColor+color)
	hl.AppendChild(&html.Node{Type: html.TextNode, Data: mid})

	if lead == "" && trail == "" {
		replace(text, hl)
		return Wrap{Highlight: hl}, true
	}

	st := newMarker(RoleStructural, id, TextLen(text.Data))
	if lead != "" {
		st.AppendChild(&html.Node{Type: html.TextNode, Data: lead})
	}
	st.AppendChild(hl)
	if trail != "" {
		st.AppendChild(&html.Node{Type: html.TextNode, Data: trail})
	}
	replace(text, st)
	return Wrap{Highlight: hl, Structural: st}, true
}

// ClearTextPortion replaces a marker with a single text node holding its
// full text. Given a highlight marker inside its own structural wrapper, the
// wrapper is cleared. Detached or non-marker nodes are ignored, which makes
// the operation idempotent. It returns the reconstructed text node.
func ClearTextPortion(marker *html.Node) *html.Node {
	if !IsMarker(marker) || marker.Parent == nil {
		return nil
	}
	if MarkerRole(marker) == RoleHighlight {
		if p := marker.Parent; MarkerRole(p) == RoleStructural && MarkerID(p) == MarkerID(marker) {
			marker = p
		}
	}
	text := &html.Node{Type: html.TextNode, Data: TextContent(marker)}
	replace(marker, text)
	return text
}

// FindByID returns every marker carrying the given highlight id, in
// document order.
func FindByID(root *html.Node, id string) []*html.Node {
	var out []*html.Node
	for n := range root.Descendants() {
		if IsMarker(n) && MarkerID(n) == id {
			out = append(out, n)
		}
	}
	return out
}

// SetColor swaps the color class of a highlight marker.
func SetColor(n *html.Node, color string) {
	classes := strings.Fields(getAttr(n, "class"))
	out := classes[:0]
	for _, c := range classes {
		if strings.HasPrefix(c, classColor) && c != ClassActive {
			continue
		}
		out = append(out, c)
	}
	out = append(out, classColor+color)
	setAttr(n, "class", strings.Join(out, " "))
}

// SetActive adds or removes the active class of a highlight marker.
func SetActive(n *html.Node, active bool) {
	classes := strings.Fields(getAttr(n, "class"))
	out := classes[:0]
	for _, c := range classes {
		if c != ClassActive {
			out = append(out, c)
		}
	}
	if active {
		out = append(out, ClassActive)
	}
	setAttr(n, "class", strings.Join(out, " "))
}

// HasClass reports whether n carries the given class.
func HasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func newMarker(role Role, id string, length int) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: atom.Span, Data: "span"}
	setAttr(n, AttrID, id)
	setAttr(n, AttrLength, strconv.Itoa(length))
	setAttr(n, AttrRole, string(role))
	return n
}

// replace puts repl where old was. old ends up detached.
func replace(old, repl *html.Node) {
	old.Parent.InsertBefore(repl, old)
	old.Parent.RemoveChild(old)
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func getAttr(n *html.Node, key string) string {
	v, _ := attr(n, key)
	return v
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
