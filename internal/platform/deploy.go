package platform

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/goliatone/go-errors"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/internal/logging"
)

// Environments a workflow can be deployed to. Staging deployments are
// activated right away; production ones are left for a manual switch-on.
const (
	EnvStaging    = "staging"
	EnvProduction = "production"
)

const (
	StatusActive           = "active"
	StatusInactive         = "inactive"
	StatusActivationFailed = "activation_failed"
)

// DeploymentInfo describes the result of a deploy. It is written to
// deployment_info.json for the documentation step.
type DeploymentInfo struct {
	WorkflowID    string                  `json:"workflow_id"`
	WorkflowName  string                  `json:"workflow_name"`
	Environment   string                  `json:"environment"`
	PlatformURL   string                  `json:"n8n_url"`
	EditorURL     string                  `json:"editor_url"`
	Status        string                  `json:"status"`
	Updated       bool                    `json:"updated"`
	Webhooks      []workflow.Webhook      `json:"webhook_urls"`
	RemovedFields []workflow.RemovedField `json:"removed_fields,omitempty"`
}

// Deployer pushes documents to the platform.
type Deployer struct {
	client *Client
	logger logging.Logger

	// NoUpdate always creates a new workflow instead of replacing one with
	// the same name.
	NoUpdate bool
}

// NewDeployer returns a deployer that updates workflows by name.
func NewDeployer(c *Client, logger logging.Logger) *Deployer {
	return &Deployer{client: c, logger: logging.Or(logger)}
}

// Deploy sanitises raw, creates or updates the workflow by name and
// activates it on staging.
func (d *Deployer) Deploy(ctx context.Context, raw []byte, env string) (*DeploymentInfo, error) {
	if env == "" {
		env = EnvStaging
	}
	if env != EnvStaging && env != EnvProduction {
		return nil, apperrors.New(fmt.Sprintf("platform: unknown environment %q", env), apperrors.CategoryBadInput).
			WithTextCode("PLATFORM_BAD_ENVIRONMENT")
	}

	clean, err := workflow.Sanitize(raw)
	if err != nil {
		return nil, err
	}
	name := clean.Name()
	if name == "" {
		return nil, apperrors.New("platform: workflow has no name", apperrors.CategoryValidation).
			WithTextCode(workflow.ErrCodeInvalidDocument)
	}
	for _, rf := range clean.Removed {
		d.logger.Info("removing invalid key %q from node %q", rf.Key, rf.Node)
	}

	log := logging.With(d.logger, map[string]any{"workflow": name, "environment": env})
	log.Info("deploying workflow")

	var existing *Workflow
	if !d.NoUpdate {
		existing, err = d.client.FindWorkflowByName(ctx, name)
		if err != nil {
			return nil, err
		}
	}

	var wf *Workflow
	if existing != nil {
		log.Info("updating existing workflow %s", existing.ID)
		wf, err = d.client.UpdateWorkflow(ctx, existing.ID, clean.Body)
	} else {
		log.Info("creating new workflow")
		wf, err = d.client.CreateWorkflow(ctx, clean.Body)
	}
	if err != nil {
		return nil, err
	}
	if wf.ID == "" && existing != nil {
		wf.ID = existing.ID
	}

	info := &DeploymentInfo{
		WorkflowID:    wf.ID,
		WorkflowName:  name,
		Environment:   env,
		PlatformURL:   d.client.BaseURL(),
		EditorURL:     d.client.BaseURL() + "/workflow/" + wf.ID,
		Status:        StatusInactive,
		Updated:       existing != nil,
		Webhooks:      webhooks(clean, d.client.BaseURL()),
		RemovedFields: clean.Removed,
	}

	if env == EnvStaging {
		if err := d.client.ActivateWorkflow(ctx, wf.ID); err != nil {
			log.Warn("activation failed: %v", err)
			info.Status = StatusActivationFailed
		} else {
			info.Status = StatusActive
		}
	}

	log.Info("deployment finished, workflow id %s, status %s", info.WorkflowID, info.Status)
	return info, nil
}

func webhooks(s *workflow.Sanitized, base string) []workflow.Webhook {
	data, err := s.JSON()
	if err != nil {
		return []workflow.Webhook{}
	}
	var doc workflow.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return []workflow.Webhook{}
	}
	out := doc.WebhookURLs(base)
	if out == nil {
		out = []workflow.Webhook{}
	}
	return out
}
