package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/meikuraledutech/workflow"
)

// AddDeployment records a deployment of a stored document.
// If d.ID is empty, a UUID is auto-generated.
// A missing document fails the foreign key.
func (s *PGStore) AddDeployment(ctx context.Context, d *workflow.Deployment) (string, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO workflow_deployments (id, document_id, remote_workflow_id, environment, status, url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		d.ID, d.DocumentID, d.RemoteWorkflowID, d.Environment, d.Status, d.URL,
	).Scan(&d.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("workflow: insert deployment: %w", err)
	}

	return d.ID, nil
}

// ListDeployments returns the deployments of a document, oldest first.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListDeployments(ctx context.Context, documentID string) ([]workflow.Deployment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, document_id, remote_workflow_id, environment, status, url, created_at
		 FROM workflow_deployments WHERE document_id = $1 ORDER BY created_at`, documentID)
	if err != nil {
		return nil, fmt.Errorf("workflow: list deployments: %w", err)
	}
	defer rows.Close()

	deployments := []workflow.Deployment{}
	for rows.Next() {
		var d workflow.Deployment
		if err := rows.Scan(&d.ID, &d.DocumentID, &d.RemoteWorkflowID, &d.Environment, &d.Status, &d.URL, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("workflow: scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workflow: rows deployments: %w", err)
	}

	return deployments, nil
}
