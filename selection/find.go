package selection

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/mhl/dom"
)

type span struct {
	node       *html.Node
	start, end int // byte range in the joined text
}

// Find builds a range selection over the n-th occurrence (0-based) of quote
// in the rendered text under root. Text of head, script and style elements
// is not searched. It reports false when there is no such occurrence.
func Find(root *html.Node, quote string, n int) (Selection, bool) {
	if quote == "" || n < 0 {
		return Selection{}, false
	}
	var b strings.Builder
	var spans []span
	for t := range root.Descendants() {
		if t.Type != html.TextNode || invisible(t) {
			continue
		}
		spans = append(spans, span{node: t, start: b.Len(), end: b.Len() + len(t.Data)})
		b.WriteString(t.Data)
	}
	text := b.String()

	at := -1
	for i, from := 0, 0; i <= n; i++ {
		j := strings.Index(text[from:], quote)
		if j < 0 {
			return Selection{}, false
		}
		at = from + j
		from = at + 1
	}
	end := at + len(quote)

	var anchorEP, focusEP Endpoint
	for _, s := range spans {
		if anchorEP.Node == nil && at < s.end {
			anchorEP = Endpoint{Node: s.node, Offset: dom.TextLen(s.node.Data[:at-s.start])}
		}
		if end > s.start && end <= s.end {
			focusEP = Endpoint{Node: s.node, Offset: dom.TextLen(s.node.Data[:end-s.start])}
			break
		}
	}
	if anchorEP.Node == nil || focusEP.Node == nil {
		return Selection{}, false
	}
	return Selection{RangeCount: 1, Type: TypeRange, Anchor: anchorEP, Focus: focusEP}, true
}

func invisible(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		switch p.DataAtom {
		case atom.Head, atom.Script, atom.Style, atom.Template, atom.Noscript:
			return true
		}
	}
	return false
}
