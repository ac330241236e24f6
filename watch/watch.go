// Package watch polls a SQLite database for a version token and runs an
// action, debounced, whenever the token moves. It is how an annotator picks
// up highlights written by other processes sharing its database.
//
//	w := watch.New(db, watch.Options{Interval: time.Second, Detector: watch.Query(store.VersionQuery)})
//	go w.Run(ctx, a.Sync)
package watch

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"
	"time"
)

// Detector reads a version token. Two different values mean something
// changed in between.
type Detector func(ctx context.Context, db *sql.DB) (int64, error)

// Options tunes the watcher.
type Options struct {
	// Interval is the polling period. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period required after a change before the
	// action runs; further changes restart it. 0 runs at once.
	Debounce time.Duration
	// Detector defaults to PragmaUserVersion.
	Detector Detector
	Logger   *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Detector == nil {
		o.Detector = PragmaUserVersion
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Stats are point-in-time counters.
type Stats struct {
	Checks  int64 `json:"checks"`
	Changes int64 `json:"changes"`
	Errors  int64 `json:"errors"`
	Runs    int64 `json:"runs"`
}

// Watcher runs an action on version changes. Stats and Version are safe
// for concurrent use; Run is called once.
type Watcher struct {
	db   *sql.DB
	opts Options

	version atomic.Int64
	checks  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64
	runs    atomic.Int64
}

// New creates a Watcher.
func New(db *sql.DB, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{db: db, opts: opts}
}

// Version returns the last version the action was run for (or seeded with).
func (w *Watcher) Version() int64 { return w.version.Load() }

// Stats returns the counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Checks:  w.checks.Load(),
		Changes: w.changes.Load(),
		Errors:  w.errors.Load(),
		Runs:    w.runs.Load(),
	}
}

// Run polls until ctx is done. The version seen at start is the baseline:
// only later changes run action. A failed action leaves the version
// unchanged so the next poll retries it.
func (w *Watcher) Run(ctx context.Context, action func(context.Context) error) {
	log := w.opts.Logger
	if v, err := w.opts.Detector(ctx, w.db); err != nil {
		log.Warn("watch: initial version", "error", err)
	} else {
		w.version.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounce *time.Timer
	var fire <-chan time.Time
	pending := int64(-1)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.opts.Detector(ctx, w.db)
			if err != nil {
				w.errors.Add(1)
				log.Warn("watch: version check", "error", err)
				continue
			}
			if cur == w.version.Load() || cur == pending {
				continue
			}
			w.changes.Add(1)
			pending = cur
			if w.opts.Debounce <= 0 {
				w.run(ctx, action, pending)
				pending = -1
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(w.opts.Debounce)
			fire = debounce.C
		case <-fire:
			fire = nil
			if pending >= 0 {
				w.run(ctx, action, pending)
				pending = -1
			}
		}
	}
}

func (w *Watcher) run(ctx context.Context, action func(context.Context) error, v int64) {
	start := time.Now()
	if err := action(ctx); err != nil {
		w.errors.Add(1)
		w.opts.Logger.Error("watch: action failed", "error", err, "version", v)
		return
	}
	w.runs.Add(1)
	w.version.Store(v)
	w.opts.Logger.Debug("watch: action done", "version", v, "duration_ms", time.Since(start).Milliseconds())
}

// PragmaUserVersion reads PRAGMA user_version.
func PragmaUserVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}

// Query returns a Detector reading the single integer produced by query.
func Query(query string) Detector {
	return func(ctx context.Context, db *sql.DB) (int64, error) {
		var v int64
		err := db.QueryRowContext(ctx, query).Scan(&v)
		return v, err
	}
}
