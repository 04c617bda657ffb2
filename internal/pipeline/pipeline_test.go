package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/internal/llm"
	"github.com/meikuraledutech/workflow/internal/platform"
	"github.com/meikuraledutech/workflow/internal/wiki"
	"github.com/meikuraledutech/workflow/internal/workspace"
	"github.com/meikuraledutech/workflow/sqlite"
)

type fakeAnalyst struct {
	req       *llm.Requirements
	err       error
	questions llm.Questions
}

func (f *fakeAnalyst) ParseRequirements(context.Context, string) (*llm.Requirements, error) {
	return f.req, f.err
}

func (f *fakeAnalyst) ClarifyingQuestions(context.Context, *llm.Requirements) llm.Questions {
	return f.questions
}

type fakeDeployer struct {
	raw []byte
	env string
}

func (f *fakeDeployer) Deploy(_ context.Context, raw []byte, env string) (*platform.DeploymentInfo, error) {
	f.raw, f.env = raw, env
	return &platform.DeploymentInfo{WorkflowID: "wf-1", Environment: env, Status: platform.StatusActive, EditorURL: "http://n8n/workflow/wf-1"}, nil
}

type fakePublisher struct {
	db  string
	dep *platform.DeploymentInfo
}

func (f *fakePublisher) PublishWorkflow(_ context.Context, db string, req *llm.Requirements, doc *workflow.Document, dep *platform.DeploymentInfo) (*wiki.PageInfo, error) {
	f.db, f.dep = db, dep
	return &wiki.PageInfo{PageID: "p1", PageURL: "https://wiki/p1", WorkflowName: doc.Name}, nil
}

var fixed = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func leadAlert() *llm.Requirements {
	return &llm.Requirements{WorkflowName: "Lead Alert", Goal: "notify sales"}
}

func TestGenerate(t *testing.T) {
	doc, err := Generate(leadAlert())
	require.NoError(t, err)

	assert.Equal(t, "Lead Alert", doc.Name)
	require.Len(t, doc.Nodes, 5)
	assert.Equal(t, workflow.TypeWebhook, doc.Nodes[0].Type)
	assert.Equal(t, ChatWebhookPath, doc.Nodes[0].Parameters["path"])

	agent := doc.Nodes[4]
	assert.Equal(t, workflow.TypeAgent, agent.Type)
	assert.Equal(t, "={{$json.query}}", agent.Parameters["text"])

	for _, src := range []string{"OpenAI Chat Model", "Window Buffer Memory", "AI Guardrails", "Webhook"} {
		assert.Contains(t, doc.Connections, src)
	}

	unnamed, err := Generate(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkflowName, unnamed.Name)
}

func TestRunAllStages(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.CreateSchema(context.Background()))

	dep := &fakeDeployer{}
	pub := &fakePublisher{}
	p := &Pipeline{
		Analyst:      &fakeAnalyst{req: leadAlert()},
		Store:        store,
		Deployer:     dep,
		Publisher:    pub,
		WikiDatabase: "db-wf",
		Root:         t.TempDir(),
		Now:          func() time.Time { return fixed },
	}

	res, err := p.Run(context.Background(), "ping sales on urgent leads", Options{Deploy: true, Document: true})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "project_20260302_093000", res.ProjectName)
	assert.Equal(t, filepath.Join(p.Root, res.ProjectName), res.OutputDir)
	for _, stage := range []string{StageRequirements, StageGeneration, StageStorage, StageDeployment, StageDocumentation} {
		require.Contains(t, res.Stages, stage)
		assert.Equal(t, StatusSuccess, res.Stages[stage].Status, stage)
	}
	assert.Equal(t, 5, res.Stages[StageGeneration].NodeCount)
	assert.Equal(t, "wf-1", res.Stages[StageDeployment].WorkflowID)
	assert.Equal(t, platform.EnvStaging, dep.env)
	assert.Equal(t, "https://wiki/p1", res.Stages[StageDocumentation].PageURL)
	assert.Equal(t, "db-wf", pub.db)
	assert.NotNil(t, pub.dep)

	dir := workspace.New(res.OutputDir)
	for _, f := range []string{workspace.RequirementsFile, workspace.WorkflowFile, workspace.DeploymentFile, workspace.WikiPageFile} {
		assert.True(t, dir.Exists(f), f)
	}
	written, err := workflow.ReadDocument(dir.Path(workspace.WorkflowFile))
	require.NoError(t, err)
	assert.Equal(t, "Lead Alert", written.Name)

	docID := res.Stages[StageStorage].DocumentID
	rec, err := store.GetDocument(context.Background(), docID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 5, rec.NodeCount)

	deps, err := store.ListDeployments(context.Background(), docID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "wf-1", deps[0].RemoteWorkflowID)
}

func TestRunSkipsOptionalStages(t *testing.T) {
	p := &Pipeline{Analyst: &fakeAnalyst{req: leadAlert()}, Root: t.TempDir()}

	res, err := p.Run(context.Background(), "x", Options{Project: "lead"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "lead", res.ProjectName)
	assert.NotContains(t, res.Stages, StageStorage)
	assert.NotContains(t, res.Stages, StageDeployment)
	assert.NotContains(t, res.Stages, StageDocumentation)
}

func TestRunPausesForClarification(t *testing.T) {
	req := leadAlert()
	req.MissingInfo = []string{"slack channel"}
	q := llm.Questions{Blocking: []llm.Question{{Question: "Which channel?", Reason: "routing"}}}
	p := &Pipeline{Analyst: &fakeAnalyst{req: req, questions: q}, Root: t.TempDir()}

	res, err := p.Run(context.Background(), "x", Options{Project: "lead", Deploy: true})
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsClarification, res.Status)
	assert.Equal(t, StatusNeedsClarification, res.Stages[StageRequirements].Status)
	assert.Equal(t, &q, res.Stages[StageRequirements].Questions)
	assert.NotContains(t, res.Stages, StageGeneration)
	assert.True(t, workspace.New(res.OutputDir).Exists(workspace.QuestionsFile))
}

func TestRunContinuesWhenNoQuestionsComeBack(t *testing.T) {
	req := leadAlert()
	req.MissingInfo = []string{"slack channel"}
	p := &Pipeline{Analyst: &fakeAnalyst{req: req}, Root: t.TempDir()}

	res, err := p.Run(context.Background(), "x", Options{Project: "lead"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
}

func TestRunFailures(t *testing.T) {
	boom := errors.New("model unavailable")
	p := &Pipeline{Analyst: &fakeAnalyst{err: boom}, Root: t.TempDir()}
	res, err := p.Run(context.Background(), "x", Options{Project: "lead"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, StatusError, res.Stages[StageRequirements].Status)
	assert.Equal(t, "model unavailable", res.Error)

	p = &Pipeline{Analyst: &fakeAnalyst{req: leadAlert()}, Root: t.TempDir()}
	res, err = p.Run(context.Background(), "x", Options{Project: "lead", Deploy: true})
	require.Error(t, err)
	assert.Equal(t, StatusError, res.Stages[StageDeployment].Status)
	assert.Equal(t, StatusSuccess, res.Stages[StageGeneration].Status)
}
