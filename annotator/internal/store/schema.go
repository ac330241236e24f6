package store

// Schema is the annotation database. Highlight anchors are stored in their
// JSON wire form ({"path":[...],"offset":n}).
const Schema = `
CREATE TABLE IF NOT EXISTS pages (
    id         TEXT PRIMARY KEY,
    html       TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS highlights (
    id          TEXT PRIMARY KEY,
    page_id     TEXT NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    position    INTEGER NOT NULL,
    color       TEXT NOT NULL,
    text        TEXT NOT NULL DEFAULT '[]',
    from_anchor TEXT NOT NULL,
    to_anchor   TEXT NOT NULL,
    hidden      INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_highlights_page_position
    ON highlights(page_id, position);

-- store_version moves on every write so other processes sharing the file
-- can tell when to resync.
CREATE TABLE IF NOT EXISTS store_version (
    id      INTEGER PRIMARY KEY CHECK (id = 1),
    version INTEGER NOT NULL
);
INSERT OR IGNORE INTO store_version (id, version) VALUES (1, 0);

CREATE TRIGGER IF NOT EXISTS pages_ai AFTER INSERT ON pages
BEGIN UPDATE store_version SET version = version + 1; END;
CREATE TRIGGER IF NOT EXISTS pages_au AFTER UPDATE ON pages
BEGIN UPDATE store_version SET version = version + 1; END;
CREATE TRIGGER IF NOT EXISTS pages_ad AFTER DELETE ON pages
BEGIN UPDATE store_version SET version = version + 1; END;
CREATE TRIGGER IF NOT EXISTS highlights_ai AFTER INSERT ON highlights
BEGIN UPDATE store_version SET version = version + 1; END;
CREATE TRIGGER IF NOT EXISTS highlights_au AFTER UPDATE ON highlights
BEGIN UPDATE store_version SET version = version + 1; END;
CREATE TRIGGER IF NOT EXISTS highlights_ad AFTER DELETE ON highlights
BEGIN UPDATE store_version SET version = version + 1; END;
`

// VersionQuery reads the store version.
const VersionQuery = `SELECT version FROM store_version WHERE id = 1`
