package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/meikuraledutech/workflow"
)

const documentColumns = `id, name, version_id, node_count, document, created_at, updated_at`

// SaveDocument inserts or replaces a document record, keeping the original
// creation time on replace. If r.ID is empty, a UUID is auto-generated.
func (s *SQLiteStore) SaveDocument(ctx context.Context, r *workflow.Record) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := s.now().UTC().UnixNano()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflow_documents (id, name, version_id, node_count, document, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE
		 SET name = excluded.name, version_id = excluded.version_id,
		     node_count = excluded.node_count, document = excluded.document,
		     updated_at = excluded.updated_at`,
		r.ID, r.Name, r.VersionID, r.NodeCount, string(r.Document), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("workflow: save document: %w", err)
	}

	var created, updated int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM workflow_documents WHERE id = ?`, r.ID,
	).Scan(&created, &updated); err != nil {
		return "", fmt.Errorf("workflow: read back document: %w", err)
	}
	r.CreatedAt, r.UpdatedAt = fromUnix(created), fromUnix(updated)

	return r.ID, nil
}

// GetDocument fetches a record by its ID.
// Returns nil, nil if not found.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*workflow.Record, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM workflow_documents WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("workflow: get document: %w", err)
	}
	return r, nil
}

// FindDocumentByName returns the most recently updated record called name.
// Returns nil, nil if not found.
func (s *SQLiteStore) FindDocumentByName(ctx context.Context, name string) (*workflow.Record, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM workflow_documents WHERE name = ?
		 ORDER BY updated_at DESC, rowid DESC LIMIT 1`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("workflow: find document: %w", err)
	}
	return r, nil
}

// ListDocuments returns all records ordered by created_at.
// Returns an empty slice (not nil) if none found.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]workflow.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM workflow_documents ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("workflow: list documents: %w", err)
	}
	defer rows.Close()

	records := []workflow.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("workflow: scan document: %w", err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workflow: rows documents: %w", err)
	}

	return records, nil
}

// DeleteDocument deletes a record and its deployments.
// No error if the record doesn't exist.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("workflow: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM workflow_deployments WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("workflow: delete deployments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM workflow_documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("workflow: delete document: %w", err)
	}

	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*workflow.Record, error) {
	var (
		r                workflow.Record
		doc              string
		created, updated int64
	)
	if err := row.Scan(&r.ID, &r.Name, &r.VersionID, &r.NodeCount, &doc, &created, &updated); err != nil {
		return nil, err
	}
	r.Document = []byte(doc)
	r.CreatedAt, r.UpdatedAt = fromUnix(created), fromUnix(updated)
	return &r, nil
}
