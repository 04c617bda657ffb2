// Package platform is a client for the automation platform's public REST
// API (workflows and executions) plus the deploy and log-analysis flows
// built on it.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3/client"
	apperrors "github.com/goliatone/go-errors"

	"github.com/meikuraledutech/workflow/internal/logging"
)

const (
	ErrCodeHTTP       = "PLATFORM_HTTP_ERROR"
	ErrCodeConfig     = "PLATFORM_NOT_CONFIGURED"
	ErrCodeBadPayload = "PLATFORM_BAD_PAYLOAD"

	apiKeyHeader = "X-N8N-API-KEY"
)

// Options configures a Client.
type Options struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client calls the platform API with the X-N8N-API-KEY header.
type Client struct {
	http    *client.Client
	baseURL string
	logger  logging.Logger
}

// NewClient requires both a base URL and an API key.
func NewClient(opts Options, logger logging.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if base == "" || opts.APIKey == "" {
		return nil, apperrors.New("platform: url and api key must be set", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeConfig)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cc := client.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader(apiKeyHeader, opts.APIKey).
		SetHeader("Accept", "application/json")

	return &Client{http: cc, baseURL: base, logger: logging.Or(logger)}, nil
}

// BaseURL is the platform root, without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Workflow is a workflow as listed by the API.
type Workflow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// FlexibleID accepts both string and numeric ids.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	*id = FlexibleID(bytes.TrimSpace(b))
	return nil
}

// Execution is one run of a workflow.
type Execution struct {
	ID         FlexibleID      `json:"id"`
	WorkflowID FlexibleID      `json:"workflowId"`
	Finished   bool            `json:"finished"`
	Mode       string          `json:"mode,omitempty"`
	Status     string          `json:"status,omitempty"`
	StartedAt  *time.Time      `json:"startedAt,omitempty"`
	StoppedAt  *time.Time      `json:"stoppedAt,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

type listEnvelope[T any] struct {
	Data []T `json:"data"`
}

// ListWorkflows returns the first page of workflows.
func (c *Client) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	var out listEnvelope[Workflow]
	if err := c.do(ctx, "GET", "/api/v1/workflows", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// FindWorkflowByName returns the first workflow called name, or nil.
func (c *Client) FindWorkflowByName(ctx context.Context, name string) (*Workflow, error) {
	list, err := c.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].Name == name {
			return &list[i], nil
		}
	}
	return nil, nil
}

// CreateWorkflow posts a sanitised document body.
func (c *Client) CreateWorkflow(ctx context.Context, body map[string]any) (*Workflow, error) {
	var wf Workflow
	if err := c.do(ctx, "POST", "/api/v1/workflows", body, nil, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// UpdateWorkflow replaces workflow id with body.
func (c *Client) UpdateWorkflow(ctx context.Context, id string, body map[string]any) (*Workflow, error) {
	var wf Workflow
	if err := c.do(ctx, "PUT", "/api/v1/workflows/"+url.PathEscape(id), body, nil, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// ActivateWorkflow turns on the workflow with id.
func (c *Client) ActivateWorkflow(ctx context.Context, id string) error {
	return c.do(ctx, "POST", "/api/v1/workflows/"+url.PathEscape(id)+"/activate", nil, nil, nil)
}

// ListExecutions returns up to limit recent executions of a workflow.
func (c *Client) ListExecutions(ctx context.Context, workflowID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 100
	}
	params := map[string]string{
		"workflowId":  workflowID,
		"limit":       strconv.Itoa(limit),
		"includeData": "true",
	}
	var out listEnvelope[Execution]
	if err := c.do(ctx, "GET", "/api/v1/executions", nil, params, &out); err != nil {
		return nil, err
	}
	c.logger.Info("retrieved %d executions for workflow %s", len(out.Data), workflowID)
	return out.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, params map[string]string, out any) error {
	cfg := client.Config{Ctx: ctx, Param: params}
	if body != nil {
		cfg.Body = body
	}

	var (
		resp *client.Response
		err  error
	)
	switch method {
	case "GET":
		resp, err = c.http.Get(path, cfg)
	case "POST":
		resp, err = c.http.Post(path, cfg)
	case "PUT":
		resp, err = c.http.Put(path, cfg)
	default:
		resp, err = c.http.Custom(path, method, cfg)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryExternal, fmt.Sprintf("platform: %s %s", method, path)).
			WithTextCode(ErrCodeHTTP)
	}
	defer resp.Close()

	if status := resp.StatusCode(); status >= 400 {
		text := string(resp.Body())
		c.logger.Error("platform %s %s returned %d", method, path, status)
		return apperrors.New(fmt.Sprintf("platform: %s %s returned %d", method, path, status), apperrors.CategoryExternal).
			WithTextCode(ErrCodeHTTP).
			WithMetadata(map[string]any{"status": status, "body": truncate(text, 500)})
	}
	if out == nil || len(bytes.TrimSpace(resp.Body())) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return apperrors.Wrap(err, apperrors.CategoryExternal, fmt.Sprintf("platform: decode %s %s", method, path)).
			WithTextCode(ErrCodeBadPayload)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
