// Package store provides the SQLite persistence layer of the annotator.
package store

import (
	"context"
	"database/sql"

	"github.com/hazyhaar/mhl/dbopen"
)

// Store is the annotator database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Version returns the store version, which moves on every write.
func (s *Store) Version(ctx context.Context) (int64, error) {
	var v int64
	err := s.DB.QueryRowContext(ctx, VersionQuery).Scan(&v)
	return v, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
