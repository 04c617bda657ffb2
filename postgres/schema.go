package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS workflow_documents (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    version_id TEXT NOT NULL DEFAULT '',
    node_count INTEGER NOT NULL DEFAULT 0,
    document   JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS workflow_deployments (
    id                 TEXT PRIMARY KEY,
    document_id        TEXT NOT NULL REFERENCES workflow_documents(id) ON DELETE CASCADE,
    remote_workflow_id TEXT NOT NULL DEFAULT '',
    environment        TEXT NOT NULL,
    status             TEXT NOT NULL,
    url                TEXT NOT NULL DEFAULT '',
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_workflow_documents_name      ON workflow_documents(name);
CREATE INDEX IF NOT EXISTS idx_workflow_deployments_doc_id  ON workflow_deployments(document_id);
`

// CreateSchema creates the document and deployment tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops both tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS workflow_deployments, workflow_documents CASCADE;`)
	return err
}
