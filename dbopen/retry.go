package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// backoff is the wait before each retry of a busy write.
var backoff = []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}

// IsBusy reports whether err is an SQLite BUSY or LOCKED condition, which
// busy_timeout alone does not always absorb (a deadlocked upgrade fails at
// once).
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "is locked")
}

// retry runs fn until it succeeds, fails with a non-busy error, or the
// backoff schedule runs out.
func retry[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	for i := 0; ; i++ {
		v, err := fn()
		if err == nil || !IsBusy(err) {
			return v, err
		}
		if i == len(backoff) {
			return v, fmt.Errorf("dbopen: %s: still busy after %d retries: %w", op, i, err)
		}
		t := time.NewTimer(backoff[i])
		select {
		case <-ctx.Done():
			t.Stop()
			return v, fmt.Errorf("dbopen: %s: %w", op, ctx.Err())
		case <-t.C:
		}
	}
}

// RunTx runs fn in a transaction, committing when it returns nil. Busy
// failures roll back and run fn again, so fn must not keep state across
// calls.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	_, err := retry(ctx, "tx", func() (struct{}, error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return struct{}{}, fmt.Errorf("dbopen: begin: %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return struct{}{}, err
		}
		if err := tx.Commit(); err != nil {
			return struct{}{}, fmt.Errorf("dbopen: commit: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// Exec runs a single statement with the RunTx retry policy.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	return retry(ctx, "exec", func() (sql.Result, error) {
		return db.ExecContext(ctx, query, args...)
	})
}
