// Package observability records annotation lifecycle events in SQLite.
//
// Events are an audit trail, not a control path: a failing insert is
// logged and never returned to the caller.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/mhl/idgen"
	"github.com/hazyhaar/mhl/kit"
)

// Event types.
const (
	EventPageLoaded          = "page_loaded"
	EventHighlightCreated    = "highlight_created"
	EventHighlightEdited     = "highlight_edited"
	EventHighlightRemoved    = "highlight_removed"
	EventHighlightVisibility = "highlight_visibility"
)

// BusinessEvent is one domain-level event.
type BusinessEvent struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	EntityType string         `json:"entity_type,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	PageID     string         `json:"page_id,omitempty"`
	TraceID    string         `json:"trace_id,omitempty"`
	Action     string         `json:"action"`
	Details    map[string]any `json:"details,omitempty"`
	Success    bool           `json:"success"`
	CreatedAt  time.Time      `json:"created_at"`
}

// EventLogger writes business events.
type EventLogger struct {
	db      *sql.DB
	service string
	newID   idgen.Generator
	logger  *slog.Logger
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// WithLogger sets the logger used to report failed inserts.
func WithLogger(logger *slog.Logger) EventLoggerOption {
	return func(l *EventLogger) { l.logger = logger }
}

// NewEventLogger creates a logger writing to db on behalf of service.
func NewEventLogger(db *sql.DB, service string, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:      db,
		service: service,
		newID:   idgen.Event(),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records ev. The trace id defaults to the one in ctx.
func (l *EventLogger) LogEvent(ctx context.Context, ev BusinessEvent) {
	if ev.TraceID == "" {
		ev.TraceID = kit.GetTraceID(ctx)
	}
	if ev.PageID == "" {
		ev.PageID = kit.GetPageID(ctx)
	}
	var details []byte
	if len(ev.Details) > 0 {
		var err error
		if details, err = json.Marshal(ev.Details); err != nil {
			l.logger.Warn("observability: event details", "error", err, "event_type", ev.Type)
		}
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO business_event_logs (
			event_id, event_type, service_name, entity_type, entity_id,
			page_id, trace_id, action, details, success, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		l.newID(), ev.Type, l.service, ev.EntityType, ev.EntityID,
		ev.PageID, ev.TraceID, ev.Action, string(details), ev.Success, time.Now().UnixMilli())
	if err != nil {
		l.logger.Error("observability: event log failed", "error", err, "event_type", ev.Type)
	}
}

// Events returns the most recent events of a page, newest first. An empty
// pageID lists every page.
func (l *EventLogger) Events(ctx context.Context, pageID string, limit int) ([]BusinessEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT event_id, event_type, entity_type, entity_id, page_id, trace_id,
		action, details, success, created_at
		FROM business_event_logs`
	args := []any{}
	if pageID != "" {
		q += " WHERE page_id = ?"
		args = append(args, pageID)
	}
	q += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("observability: events: %w", err)
	}
	defer rows.Close()

	var out []BusinessEvent
	for rows.Next() {
		var ev BusinessEvent
		var entityType, entityID, page, trace, details sql.NullString
		var created int64
		if err := rows.Scan(&ev.ID, &ev.Type, &entityType, &entityID, &page, &trace,
			&ev.Action, &details, &ev.Success, &created); err != nil {
			return nil, fmt.Errorf("observability: scan event: %w", err)
		}
		ev.EntityType, ev.EntityID = entityType.String, entityID.String
		ev.PageID, ev.TraceID = page.String, trace.String
		ev.CreatedAt = time.UnixMilli(created)
		if details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &ev.Details); err != nil {
				return nil, fmt.Errorf("observability: event details: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Cleanup deletes events older than days. Zero keeps everything.
func Cleanup(ctx context.Context, db *sql.DB, days int) error {
	if days <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
	if _, err := db.ExecContext(ctx, "DELETE FROM business_event_logs WHERE created_at < ?", cutoff); err != nil {
		return fmt.Errorf("observability: cleanup: %w", err)
	}
	return nil
}
