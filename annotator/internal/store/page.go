package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hazyhaar/mhl/dbopen"
)

// Page is a stored page: the uninstrumented markup highlights anchor into.
type Page struct {
	ID        string `json:"id"`
	HTML      string `json:"html"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// PutPage inserts a page or replaces its markup. Existing highlights are
// kept; those whose anchors no longer resolve are skipped at render time.
func (s *Store) PutPage(ctx context.Context, id, html string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO pages (id, html, created_at, updated_at) VALUES (?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET html = excluded.html, updated_at = excluded.updated_at`,
		id, html, now, now)
	return err
}

// GetPage returns a page, or nil when it does not exist.
func (s *Store) GetPage(ctx context.Context, id string) (*Page, error) {
	p := &Page{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, html, created_at, updated_at FROM pages WHERE id = ?`, id).
		Scan(&p.ID, &p.HTML, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPages returns every page in creation order.
func (s *Store) ListPages(ctx context.Context) ([]*Page, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, html, created_at, updated_at FROM pages ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		p := &Page{}
		if err := rows.Scan(&p.ID, &p.HTML, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// DeletePage removes a page and its highlights. The foreign key pragma is
// per connection, so highlights are deleted explicitly rather than by
// cascade.
func (s *Store) DeletePage(ctx context.Context, id string) error {
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM highlights WHERE page_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
		return err
	})
}
