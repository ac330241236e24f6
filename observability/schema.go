package observability

import (
	"database/sql"
	"fmt"
)

// Schema holds the business event table. It lives next to the annotation
// tables in the same database.
const Schema = `
CREATE TABLE IF NOT EXISTS business_event_logs (
    event_id TEXT PRIMARY KEY,
    event_type TEXT NOT NULL,
    service_name TEXT NOT NULL,
    entity_type TEXT,
    entity_id TEXT,
    page_id TEXT,
    trace_id TEXT,
    action TEXT NOT NULL,
    details TEXT,
    success INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_page_time
    ON business_event_logs(page_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_events_type
    ON business_event_logs(event_type);
`

// Init creates the observability tables if they don't exist.
func Init(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("observability: init: %w", err)
	}
	return nil
}
