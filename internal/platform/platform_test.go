package platform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/internal/logging"
)

type request struct {
	method string
	path   string
	query  string
	body   map[string]any
}

// fakePlatform mimics the workflows API closely enough for deploys.
type fakePlatform struct {
	mu           sync.Mutex
	workflows    []Workflow
	requests     []request
	failActivate bool
	executions   string
}

func (f *fakePlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get(apiKeyHeader) != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"unauthorized"}`)
		return
	}

	req := request{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &req.body)
	}
	f.requests = append(f.requests, req)

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/workflows":
		_ = json.NewEncoder(w).Encode(map[string]any{"data": f.workflows})
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/workflows":
		wf := Workflow{ID: "wf-new", Name: req.body["name"].(string)}
		f.workflows = append(f.workflows, wf)
		_ = json.NewEncoder(w).Encode(wf)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/api/v1/workflows/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/workflows/")
		_ = json.NewEncoder(w).Encode(Workflow{ID: id, Name: req.body["name"].(string)})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/activate"):
		if f.failActivate {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"message":"no trigger"}`)
			return
		}
		_, _ = io.WriteString(w, `{"active":true}`)
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/executions":
		_, _ = io.WriteString(w, f.executions)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakePlatform) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.method + " " + r.path
	}
	return out
}

func newTestClient(t *testing.T, f *fakePlatform) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{URL: srv.URL + "/", APIKey: "secret", Timeout: 5 * time.Second}, logging.Nop())
	require.NoError(t, err)
	return c
}

func builtDocument(t *testing.T, name string) []byte {
	t.Helper()
	b := workflow.NewBuilder(name)
	hook, err := b.Webhook("chat/start", "POST")
	require.NoError(t, err)
	_, err = b.GuardedAgent(hook, "gpt-4o", nil)
	require.NoError(t, err)
	data, err := b.Graph().Document().JSON()
	require.NoError(t, err)
	return data
}

func TestNewClientRequiresSettings(t *testing.T) {
	_, err := NewClient(Options{URL: "http://x"}, nil)
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrCodeConfig, appErr.TextCode)

	_, err = NewClient(Options{APIKey: "k"}, nil)
	assert.Error(t, err)
}

func TestDeployCreatesAndActivatesOnStaging(t *testing.T) {
	f := &fakePlatform{}
	c := newTestClient(t, f)

	info, err := NewDeployer(c, nil).Deploy(context.Background(), builtDocument(t, "Support Bot"), "")
	require.NoError(t, err)

	assert.Equal(t, "wf-new", info.WorkflowID)
	assert.Equal(t, "Support Bot", info.WorkflowName)
	assert.Equal(t, EnvStaging, info.Environment)
	assert.Equal(t, StatusActive, info.Status)
	assert.False(t, info.Updated)
	assert.Equal(t, c.BaseURL()+"/workflow/wf-new", info.EditorURL)
	require.Len(t, info.Webhooks, 1)
	assert.Equal(t, c.BaseURL()+"/webhook/chat/start", info.Webhooks[0].URL)
	assert.Equal(t, []workflow.RemovedField{{Node: "Webhook", Key: "webhookId"}}, info.RemovedFields)

	assert.Equal(t, []string{
		"GET /api/v1/workflows",
		"POST /api/v1/workflows",
		"POST /api/v1/workflows/wf-new/activate",
	}, f.paths())

	posted := f.requests[1].body
	assert.NotContains(t, posted, "active")
	assert.NotContains(t, posted, "tags")
}

func TestDeployUpdatesByName(t *testing.T) {
	f := &fakePlatform{workflows: []Workflow{{ID: "other", Name: "Other"}, {ID: "wf-7", Name: "Support Bot"}}}
	c := newTestClient(t, f)

	info, err := NewDeployer(c, nil).Deploy(context.Background(), builtDocument(t, "Support Bot"), EnvProduction)
	require.NoError(t, err)

	assert.Equal(t, "wf-7", info.WorkflowID)
	assert.True(t, info.Updated)
	assert.Equal(t, StatusInactive, info.Status)
	assert.Equal(t, []string{"GET /api/v1/workflows", "PUT /api/v1/workflows/wf-7"}, f.paths())
}

func TestDeployNoUpdateAlwaysCreates(t *testing.T) {
	f := &fakePlatform{workflows: []Workflow{{ID: "wf-7", Name: "Support Bot"}}}
	c := newTestClient(t, f)

	d := NewDeployer(c, nil)
	d.NoUpdate = true
	info, err := d.Deploy(context.Background(), builtDocument(t, "Support Bot"), EnvProduction)
	require.NoError(t, err)
	assert.Equal(t, "wf-new", info.WorkflowID)
	assert.Equal(t, []string{"POST /api/v1/workflows"}, f.paths())
}

func TestDeployActivationFailureIsNotFatal(t *testing.T) {
	f := &fakePlatform{failActivate: true}
	c := newTestClient(t, f)

	info, err := NewDeployer(c, nil).Deploy(context.Background(), builtDocument(t, "Support Bot"), EnvStaging)
	require.NoError(t, err)
	assert.Equal(t, StatusActivationFailed, info.Status)
}

func TestDeployRejectsBadInput(t *testing.T) {
	c := newTestClient(t, &fakePlatform{})
	d := NewDeployer(c, nil)

	_, err := d.Deploy(context.Background(), builtDocument(t, "x"), "qa")
	assert.Error(t, err)

	_, err = d.Deploy(context.Background(), []byte(`not json`), EnvStaging)
	assert.True(t, workflow.IsInvalidDocument(err))

	_, err = d.Deploy(context.Background(), []byte(`{"nodes": []}`), EnvStaging)
	assert.True(t, workflow.IsInvalidDocument(err))
}

func TestHTTPErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(&fakePlatform{})
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{URL: srv.URL, APIKey: "wrong"}, nil)
	require.NoError(t, err)

	_, err = c.ListWorkflows(context.Background())
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrCodeHTTP, appErr.TextCode)
	assert.Equal(t, apperrors.CategoryExternal, appErr.Category)
	assert.Equal(t, http.StatusUnauthorized, appErr.Metadata["status"])
	assert.Contains(t, appErr.Metadata["body"], "unauthorized")
}

func TestListExecutions(t *testing.T) {
	f := &fakePlatform{executions: `{"data": [
		{"id": 12, "workflowId": "wf-1", "finished": true, "status": "success"},
		{"id": "13", "workflowId": "wf-1", "finished": false, "status": "error"}
	]}`}
	c := newTestClient(t, f)

	execs, err := c.ListExecutions(context.Background(), "wf-1", 0)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, FlexibleID("12"), execs[0].ID)
	assert.Equal(t, FlexibleID("13"), execs[1].ID)

	q := f.requests[0].query
	assert.Contains(t, q, "workflowId=wf-1")
	assert.Contains(t, q, "limit=100")
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestAnalyze(t *testing.T) {
	now := *ts("2026-03-02T12:00:00Z")
	execs := []Execution{
		{Status: "success", StartedAt: ts("2026-03-02T10:00:00Z"), StoppedAt: ts("2026-03-02T10:00:02Z")},
		{Status: "success", StartedAt: ts("2026-03-02T11:00:00Z"), StoppedAt: ts("2026-03-02T11:00:04Z")},
		{Status: "error", StartedAt: ts("2026-03-02T11:30:00Z"), StoppedAt: ts("2026-03-02T11:30:03Z"),
			Data: json.RawMessage(`{"resultData": {"error": {"message": "timeout calling slack"}}}`)},
		{Status: "success", StartedAt: ts("2026-02-20T11:00:00Z"), StoppedAt: ts("2026-02-20T11:00:09Z")},
		{Finished: true},
	}

	r := Analyze(execs, "wf-1", 24, now)
	assert.Equal(t, "wf-1", r.WorkflowID)
	assert.Equal(t, 24, r.AnalysisPeriodHours)
	assert.Equal(t, 4, r.TotalExecutions)
	assert.Equal(t, 3, r.SuccessfulExecutions)
	assert.Equal(t, 1, r.FailedExecutions)
	assert.Equal(t, 75.0, r.SuccessRatePercent)
	assert.Equal(t, 3.0, r.AverageDurationSeconds)
	assert.Equal(t, 1, r.ErrorCount)
	assert.Equal(t, []string{"timeout calling slack"}, r.SampleErrors)
}

func TestAnalyzeRoundsAndCapsSamples(t *testing.T) {
	var execs []Execution
	for i := 0; i < 7; i++ {
		execs = append(execs, Execution{Status: "error", Data: json.RawMessage(`{"resultData": {"error": "boom"}}`)})
	}
	execs = append(execs, Execution{Status: "success"}, Execution{Status: "success"})

	r := Analyze(execs, "wf", 0, time.Now())
	assert.Equal(t, 9, r.TotalExecutions)
	assert.Equal(t, 22.22, r.SuccessRatePercent)
	assert.Equal(t, 7, r.ErrorCount)
	assert.Len(t, r.SampleErrors, 5)
	assert.Equal(t, "boom", r.SampleErrors[0])

	empty := Analyze(nil, "wf", 24, time.Now())
	assert.Zero(t, empty.SuccessRatePercent)
	assert.NotNil(t, empty.SampleErrors)
}

func TestSuggestionsMarkdown(t *testing.T) {
	r := PerformanceReport{WorkflowID: "wf-1", AnalysisPeriodHours: 24, SuccessRatePercent: 75, AverageDurationSeconds: 3}
	md := r.SuggestionsMarkdown("\n1. Add retries\n", *ts("2026-03-02T12:00:00Z"))

	assert.True(t, strings.HasPrefix(md, "# Workflow Optimization Suggestions\n"))
	assert.Contains(t, md, "**Workflow ID:** wf-1")
	assert.Contains(t, md, "**Success Rate:** 75%")
	assert.Contains(t, md, "---\n\n1. Add retries\n\n---")
	assert.Contains(t, md, "*Generated by AI Analysis on 2026-03-02 12:00:00*")
}
