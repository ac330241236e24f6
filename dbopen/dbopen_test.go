package dbopen_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/mhl/dbopen"
)

func TestOpen_Pragmas(t *testing.T) {
	db := dbopen.OpenMemory(t)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}

	var busy int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busy); err != nil {
		t.Fatal(err)
	}
	if busy != 10_000 {
		t.Fatalf("busy_timeout = %d, want 10000", busy)
	}
}

func TestOpen_FileWithSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mhl.db")
	db, err := dbopen.Open(path,
		dbopen.WithMkdirAll(),
		dbopen.WithBusyTimeout(5000),
		dbopen.WithSchema("CREATE TABLE IF NOT EXISTS notes (id TEXT PRIMARY KEY)"),
	)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	if _, err := db.Exec("INSERT INTO notes (id) VALUES ('a')"); err != nil {
		t.Errorf("schema not applied: %v", err)
	}
}

func TestOpen_PragmasOnEveryConnection(t *testing.T) {
	db, err := dbopen.Open(filepath.Join(t.TempDir(), "mhl.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	// Hold several connections at once so the pool opens new ones.
	var conns []*sql.Conn
	for range 3 {
		c, err := db.Conn(ctx)
		if err != nil {
			t.Fatal(err)
		}
		conns = append(conns, c)
	}
	for i, c := range conns {
		var fk int
		if err := c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
			t.Fatal(err)
		}
		if fk != 1 {
			t.Errorf("conn %d: foreign_keys = %d", i, fk)
		}
		c.Close()
	}
}

func TestDSN(t *testing.T) {
	dsn := dbopen.DSN("/data/mhl.db", dbopen.WithTxLock("deferred"), dbopen.WithBusyTimeout(250))
	for _, want := range []string{"/data/mhl.db?", "_txlock=deferred", "busy_timeout%28250%29", "journal_mode%28WAL%29"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q lacks %q", dsn, want)
		}
	}
	if strings.Contains(dbopen.DSN(":memory:"), "journal_mode") {
		t.Error("in-memory DSN asks for WAL")
	}
}

func TestRunTx_StopsRetryingOnCancel(t *testing.T) {
	db := dbopen.OpenMemory(t)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := dbopen.RunTx(ctx, db, func(*sql.Tx) error {
		calls++
		cancel()
		return errors.New("database is locked")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunTx: got %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRunTx_RollsBack(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema("CREATE TABLE t (v INTEGER)"))
	ctx := context.Background()

	boom := errors.New("boom")
	err := dbopen.RunTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO t (v) VALUES (1)"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunTx: got %v, want boom", err)
	}

	var n int
	db.QueryRow("SELECT COUNT(*) FROM t").Scan(&n)
	if n != 0 {
		t.Errorf("rows after rollback: %d", n)
	}

	if err := dbopen.RunTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO t (v) VALUES (2)")
		return err
	}); err != nil {
		t.Fatal(err)
	}
	db.QueryRow("SELECT COUNT(*) FROM t").Scan(&n)
	if n != 1 {
		t.Errorf("rows after commit: %d", n)
	}
}

func TestIsBusy(t *testing.T) {
	cases := map[string]bool{
		"database is locked (5) (SQLITE_BUSY)": true,
		"database table is locked":             true,
		"no such table: t":                     false,
	}
	for msg, want := range cases {
		if got := dbopen.IsBusy(errors.New(msg)); got != want {
			t.Errorf("IsBusy(%q) = %v, want %v", msg, got, want)
		}
	}
	if dbopen.IsBusy(nil) {
		t.Error("IsBusy(nil) = true")
	}
}
