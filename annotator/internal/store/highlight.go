package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/mhl/anchor"
	"github.com/hazyhaar/mhl/dbopen"
	"github.com/hazyhaar/mhl/highlight"
)

// InsertHighlight appends h to the end of the page's list. h must carry a
// remote id.
func (s *Store) InsertHighlight(ctx context.Context, pageID string, h highlight.Highlight) error {
	if h.ID.IsLocal() || h.ID.IsZero() {
		return fmt.Errorf("store: insert highlight: id %q is not persistent", h.ID)
	}
	text, from, to, err := encode(h)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		var pos int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), -1) + 1 FROM highlights WHERE page_id = ?`, pageID).
			Scan(&pos); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO highlights
				(id, page_id, position, color, text, from_anchor, to_anchor, hidden, created_at, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			h.ID.String(), pageID, pos, string(h.Color), text, from, to, boolInt(h.Hidden), now, now)
		return err
	})
}

// UpdateHighlight stores the color and visibility of h. It reports false
// when the highlight does not exist on the page.
func (s *Store) UpdateHighlight(ctx context.Context, pageID string, h highlight.Highlight) (bool, error) {
	res, err := dbopen.Exec(ctx, s.DB, `
		UPDATE highlights SET color = ?, hidden = ?, updated_at = ?
		WHERE page_id = ? AND id = ?`,
		string(h.Color), boolInt(h.Hidden), time.Now().UnixMilli(), pageID, h.ID.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteHighlight removes a highlight. It reports false when it did not
// exist.
func (s *Store) DeleteHighlight(ctx context.Context, pageID, id string) (bool, error) {
	res, err := dbopen.Exec(ctx, s.DB,
		`DELETE FROM highlights WHERE page_id = ? AND id = ?`, pageID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListHighlights returns the highlights of a page in list order.
func (s *Store) ListHighlights(ctx context.Context, pageID string) ([]highlight.Highlight, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, color, text, from_anchor, to_anchor, hidden
		FROM highlights WHERE page_id = ? ORDER BY position ASC`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []highlight.Highlight
	for rows.Next() {
		var id, color, text, from, to string
		var hidden int
		if err := rows.Scan(&id, &color, &text, &from, &to, &hidden); err != nil {
			return nil, err
		}
		h := highlight.Highlight{
			ID:     highlight.RemoteID(id),
			Color:  highlight.Color(color),
			Hidden: hidden != 0,
		}
		var fw, tw anchor.Wire
		if err := json.Unmarshal([]byte(from), &fw); err != nil {
			return nil, fmt.Errorf("store: highlight %s from: %w", id, err)
		}
		if err := json.Unmarshal([]byte(to), &tw); err != nil {
			return nil, fmt.Errorf("store: highlight %s to: %w", id, err)
		}
		h.From, h.To = fw.Anchor(), tw.Anchor()
		json.Unmarshal([]byte(text), &h.Text)
		out = append(out, h)
	}
	return out, rows.Err()
}

func encode(h highlight.Highlight) (text, from, to string, err error) {
	t := h.Text
	if t == nil {
		t = []string{}
	}
	tb, err := json.Marshal(t)
	if err != nil {
		return "", "", "", fmt.Errorf("store: encode text: %w", err)
	}
	fb, err := json.Marshal(anchor.ToWire(h.From))
	if err != nil {
		return "", "", "", fmt.Errorf("store: encode from: %w", err)
	}
	tob, err := json.Marshal(anchor.ToWire(h.To))
	if err != nil {
		return "", "", "", fmt.Errorf("store: encode to: %w", err)
	}
	return string(tb), string(fb), string(tob), nil
}
