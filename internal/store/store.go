// Package store provides the SQLite-backed entity datastore and the bounded
// organization history log.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entities (
	id           TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	title        TEXT NOT NULL,
	kind         TEXT NOT NULL CHECK (kind IN ('file', 'folder')),
	parent_id    TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL DEFAULT '[]',
	content_text TEXT NOT NULL DEFAULT '',
	organized    INTEGER NOT NULL DEFAULT 0,
	deleted      INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_entities_owner_parent ON entities(owner_id, parent_id);
CREATE INDEX IF NOT EXISTS idx_entities_owner_title ON entities(owner_id, title);
CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_sibling_title
	ON entities(owner_id, parent_id, kind, title) WHERE deleted = 0;

CREATE TABLE IF NOT EXISTS history (
	id               TEXT PRIMARY KEY,
	owner_id         TEXT NOT NULL,
	entity_id        TEXT NOT NULL,
	title            TEXT NOT NULL,
	action           TEXT NOT NULL CHECK (action IN ('created', 'updated')),
	old_content      TEXT NOT NULL DEFAULT '[]',
	old_content_text TEXT NOT NULL DEFAULT '',
	new_content      TEXT NOT NULL DEFAULT '[]',
	new_content_text TEXT NOT NULL DEFAULT '',
	path             TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_history_owner ON history(owner_id, created_at);
CREATE INDEX IF NOT EXISTS idx_history_entity ON history(owner_id, entity_id);
`

// DB wraps a sql.DB with entity and history operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
