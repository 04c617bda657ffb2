package workflow

import (
	"context"
	"time"
)

// Record is a stored workflow document.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	VersionID string    `json:"version_id"`
	NodeCount int       `json:"node_count"`
	Document  []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Deployment records one push of a stored document to a platform instance.
type Deployment struct {
	ID               string    `json:"id"`
	DocumentID       string    `json:"document_id"`
	RemoteWorkflowID string    `json:"remote_workflow_id"`
	Environment      string    `json:"environment"`
	Status           string    `json:"status"`
	URL              string    `json:"url"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewRecord renders doc into a record ready to save.
func NewRecord(doc Document) (*Record, error) {
	data, err := doc.JSON()
	if err != nil {
		return nil, err
	}
	return &Record{
		Name:      doc.Name,
		VersionID: doc.VersionID,
		NodeCount: len(doc.Nodes),
		Document:  data,
	}, nil
}

// Decode parses the stored document.
func (r *Record) Decode() (*Document, error) {
	return ParseDocument(r.Document)
}

// Store defines the contract for persisting generated documents and their
// deployments.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Documents
	SaveDocument(ctx context.Context, r *Record) (string, error)
	GetDocument(ctx context.Context, id string) (*Record, error)
	FindDocumentByName(ctx context.Context, name string) (*Record, error)
	ListDocuments(ctx context.Context) ([]Record, error)
	DeleteDocument(ctx context.Context, id string) error

	// Deployments
	AddDeployment(ctx context.Context, d *Deployment) (string, error)
	ListDeployments(ctx context.Context, documentID string) ([]Deployment, error)
}
