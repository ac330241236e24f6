// Package dbopen opens the annotation database: SQLite through the pure-Go
// modernc.org/sqlite driver. Pragmas travel in the DSN as _pragma
// parameters, so every pooled connection gets them, not only the first.
//
//	foreign_keys = ON
//	journal_mode = WAL
//	busy_timeout = 10000
//	synchronous  = NORMAL
//
// Write transactions begin IMMEDIATE: two service processes sharing a file
// queue on the write lock instead of failing an upgrade midway.
//
// In tests:
//
//	db := dbopen.OpenMemory(t)
package dbopen

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

const memory = ":memory:"

type config struct {
	busyTimeout int
	synchronous string
	txLock      string
	mkdirAll    bool
	schemas     []string
}

// Option customises Open.
type Option func(*config)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithSynchronous sets PRAGMA synchronous. Default: NORMAL.
func WithSynchronous(mode string) Option { return func(c *config) { c.synchronous = mode } }

// WithTxLock sets how transactions begin: deferred, immediate or exclusive.
// Default: immediate.
func WithTxLock(mode string) Option { return func(c *config) { c.txLock = mode } }

// WithMkdirAll creates the parent directories of the database file.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithSchema queues SQL run once after opening, in order.
func WithSchema(s string) Option { return func(c *config) { c.schemas = append(c.schemas, s) } }

// DSN returns the driver name for path with the configured pragmas.
func DSN(path string, opts ...Option) string {
	return build(opts).dsn(path)
}

func build(opts []Option) config {
	c := config{busyTimeout: 10_000, synchronous: "NORMAL", txLock: "immediate"}
	for _, o := range opts {
		o(&c)
	}
	return c
}

func (c config) dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	if path != memory {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.busyTimeout))
	q.Add("_pragma", fmt.Sprintf("synchronous(%s)", c.synchronous))
	q.Set("_txlock", c.txLock)
	return path + "?" + q.Encode()
}

// Open opens the SQLite database at path and runs the queued schemas.
func Open(path string, opts ...Option) (*sql.DB, error) {
	cfg := build(opts)

	if cfg.mkdirAll && path != memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.dsn(path))
	if err != nil {
		return nil, fmt.Errorf("dbopen: open %s: %w", path, err)
	}
	if path == memory {
		// Each connection to :memory: is its own database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbopen: ping %s: %w", path, err)
	}
	for i, s := range cfg.schemas {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: schema %d: %w", i, err)
		}
	}
	return db, nil
}

// OpenMemory opens a private in-memory database closed on test cleanup.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(memory, opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
