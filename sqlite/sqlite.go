// Package sqlite implements workflow.Store on an embedded SQLite database,
// for local runs of the CLI and server without a Postgres instance.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements workflow.Store using database/sql and the pure Go
// modernc.org/sqlite driver.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New wraps an open database handle.
func New(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Open opens dsn with the sqlite driver. An in-memory database exists per
// connection, so the pool is capped at one connection.
func Open(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("workflow: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return New(db), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS workflow_documents (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    version_id TEXT NOT NULL DEFAULT '',
    node_count INTEGER NOT NULL DEFAULT 0,
    document   TEXT NOT NULL DEFAULT '{}',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_deployments (
    id                 TEXT PRIMARY KEY,
    document_id        TEXT NOT NULL REFERENCES workflow_documents(id) ON DELETE CASCADE,
    remote_workflow_id TEXT NOT NULL DEFAULT '',
    environment        TEXT NOT NULL,
    status             TEXT NOT NULL,
    url                TEXT NOT NULL DEFAULT '',
    created_at         INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workflow_documents_name     ON workflow_documents(name);
CREATE INDEX IF NOT EXISTS idx_workflow_deployments_doc_id ON workflow_deployments(document_id);
`

// CreateSchema creates the document and deployment tables if they don't exist.
func (s *SQLiteStore) CreateSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("workflow: enable foreign keys: %w", err)
	}
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// DropSchema drops both tables.
func (s *SQLiteStore) DropSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS workflow_deployments; DROP TABLE IF EXISTS workflow_documents;`)
	return err
}

// Timestamps are stored as unix nanoseconds.
func fromUnix(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
