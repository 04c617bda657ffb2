package wiki

import (
	"context"
	"time"

	apperrors "github.com/goliatone/go-errors"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/internal/llm"
	"github.com/meikuraledutech/workflow/internal/platform"
)

// PageInfo is saved as notion_page_info.json after a workflow is documented.
type PageInfo struct {
	PageID       string    `json:"page_id"`
	PageURL      string    `json:"page_url"`
	WorkflowName string    `json:"workflow_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// PublishWorkflow creates the documentation page of a workflow in databaseID.
func (c *Client) PublishWorkflow(ctx context.Context, databaseID string, req *llm.Requirements, doc *workflow.Document, dep *platform.DeploymentInfo) (*PageInfo, error) {
	if databaseID == "" {
		return nil, apperrors.New("wiki: workflows database id must be set", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeConfig)
	}
	blocks, err := WorkflowPage(req, doc, dep)
	if err != nil {
		return nil, err
	}
	title := WorkflowTitle(req, doc)
	c.logger.Info("creating wiki page: %s", title)

	page, err := c.CreatePage(ctx, databaseID, title, nil, blocks)
	if err != nil {
		return nil, err
	}
	return &PageInfo{
		PageID:       page.ID,
		PageURL:      page.URL,
		WorkflowName: title,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
