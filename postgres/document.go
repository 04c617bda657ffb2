package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/meikuraledutech/workflow"
)

const documentColumns = `id, name, version_id, node_count, document, created_at, updated_at`

// SaveDocument inserts or replaces a document record.
// If r.ID is empty, a UUID is auto-generated.
// Returns the record ID (generated or provided).
func (s *PGStore) SaveDocument(ctx context.Context, r *workflow.Record) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO workflow_documents (id, name, version_id, node_count, document)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name, version_id = EXCLUDED.version_id,
		     node_count = EXCLUDED.node_count, document = EXCLUDED.document,
		     updated_at = NOW()
		 RETURNING created_at, updated_at`,
		r.ID, r.Name, r.VersionID, r.NodeCount, r.Document,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return "", fmt.Errorf("workflow: save document: %w", err)
	}

	return r.ID, nil
}

// GetDocument fetches a record by its ID.
// Returns nil, nil if not found.
func (s *PGStore) GetDocument(ctx context.Context, id string) (*workflow.Record, error) {
	var r workflow.Record
	err := s.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM workflow_documents WHERE id = $1`, id,
	).Scan(&r.ID, &r.Name, &r.VersionID, &r.NodeCount, &r.Document, &r.CreatedAt, &r.UpdatedAt)

	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("workflow: get document: %w", err)
	}

	return &r, nil
}

// FindDocumentByName returns the most recently updated record called name.
// Returns nil, nil if not found.
func (s *PGStore) FindDocumentByName(ctx context.Context, name string) (*workflow.Record, error) {
	var r workflow.Record
	err := s.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM workflow_documents WHERE name = $1
		 ORDER BY updated_at DESC LIMIT 1`, name,
	).Scan(&r.ID, &r.Name, &r.VersionID, &r.NodeCount, &r.Document, &r.CreatedAt, &r.UpdatedAt)

	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("workflow: find document: %w", err)
	}

	return &r, nil
}

// ListDocuments returns all records ordered by created_at.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListDocuments(ctx context.Context) ([]workflow.Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+documentColumns+` FROM workflow_documents ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("workflow: list documents: %w", err)
	}
	defer rows.Close()

	records := []workflow.Record{}
	for rows.Next() {
		var r workflow.Record
		if err := rows.Scan(&r.ID, &r.Name, &r.VersionID, &r.NodeCount, &r.Document, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("workflow: scan document: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workflow: rows documents: %w", err)
	}

	return records, nil
}

// DeleteDocument deletes a record and, by cascade, its deployments.
// No error if the record doesn't exist.
func (s *PGStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM workflow_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("workflow: delete document: %w", err)
	}
	return nil
}
