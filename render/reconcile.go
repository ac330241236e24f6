package render

import (
	"golang.org/x/net/html"

	"github.com/hazyhaar/mhl/highlight"
)

// reconcile brings the records in line with list. Called with r.mu held.
//
// Records and visible entries are walked in lockstep. While ids and ranges
// match, records are patched in place. The first mismatch triggers a full
// rebuild. When the list is a prefix of the records the excess is hidden;
// when it extends them only the new tail is shown.
func (r *Renderer) reconcile(list []highlight.Highlight) []notification {
	visible := make([]highlight.Highlight, 0, len(list))
	for _, h := range list {
		if !h.Hidden {
			visible = append(visible, h)
		}
	}

	r.stats.Passes++
	var added []*record
	rebuild, changed := false, false

	_ = r.doc.Do(func(root *html.Node) error {
		i := 0
		for ; i < len(visible) && i < len(r.records); i++ {
			rec, h := r.records[i], visible[i]
			if rec.h.ID != h.ID || !rec.h.SameAnchors(h) {
				rebuild = true
				break
			}
			r.patch(rec, h)
		}

		if rebuild {
			r.stats.Rebuilds++
			for j := len(r.records) - 1; j >= 0; j-- {
				r.hide(r.records[j])
			}
			r.records = r.records[:0]
			i = 0
		} else if i < len(r.records) {
			changed = true
			for j := len(r.records) - 1; j >= i; j-- {
				r.hide(r.records[j])
			}
			r.records = r.records[:i]
		}

		for _, h := range visible[i:] {
			rec := &record{h: h}
			r.show(root, rec)
			r.records = append(r.records, rec)
			added = append(added, rec)
		}

		if changed || rebuild || len(added) > 0 {
			r.sync(root)
		}
		for _, rec := range added {
			r.remeasure(rec)
		}
		return nil
	})

	r.logger.Debug("render: reconciled",
		"visible", len(visible), "added", len(added), "rebuild", rebuild)
	return r.dropStaleHover()
}

// dropStaleHover removes hovered ids that no longer have a record, as if
// the pointer had left them.
func (r *Renderer) dropStaleHover() []notification {
	var notes []notification
	for i := len(r.hover) - 1; i >= 0; i-- {
		id := r.hover[i]
		if rec := r.find(id); rec != nil && rec.shown() {
			continue
		}
		notes = append(notes, r.hoverEnd(id)...)
	}
	return notes
}
