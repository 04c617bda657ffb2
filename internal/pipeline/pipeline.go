// Package pipeline runs a client request end to end: requirements, workflow
// generation, storage, deployment and documentation.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	apperrors "github.com/goliatone/go-errors"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/internal/llm"
	"github.com/meikuraledutech/workflow/internal/logging"
	"github.com/meikuraledutech/workflow/internal/platform"
	"github.com/meikuraledutech/workflow/internal/wiki"
	"github.com/meikuraledutech/workflow/internal/workspace"
)

// Stage names in Result.Stages.
const (
	StageRequirements  = "requirements"
	StageGeneration    = "workflow_generation"
	StageStorage       = "storage"
	StageDeployment    = "deployment"
	StageDocumentation = "documentation"
)

// Run and stage statuses.
const (
	StatusSuccess            = "success"
	StatusError              = "error"
	StatusNeedsClarification = "needs_clarification"
)

type Analyst interface {
	ParseRequirements(ctx context.Context, text string) (*llm.Requirements, error)
	ClarifyingQuestions(ctx context.Context, req *llm.Requirements) llm.Questions
}

type Deployer interface {
	Deploy(ctx context.Context, raw []byte, env string) (*platform.DeploymentInfo, error)
}

type Publisher interface {
	PublishWorkflow(ctx context.Context, databaseID string, req *llm.Requirements, doc *workflow.Document, dep *platform.DeploymentInfo) (*wiki.PageInfo, error)
}

// Options select the optional stages of a run.
type Options struct {
	Deploy      bool
	Document    bool
	Project     string
	Environment string
}

// StageResult reports one stage.
type StageResult struct {
	Status      string         `json:"status"`
	Output      string         `json:"output,omitempty"`
	NodeCount   int            `json:"node_count,omitempty"`
	DocumentID  string         `json:"document_id,omitempty"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	Environment string         `json:"environment,omitempty"`
	PageURL     string         `json:"page_url,omitempty"`
	Questions   *llm.Questions `json:"questions,omitempty"`
}

// Result is the outcome of a run.
type Result struct {
	ProjectName    string                  `json:"project_name"`
	OutputDir      string                  `json:"output_dir"`
	Status         string                  `json:"status"`
	Stages         map[string]*StageResult `json:"stages"`
	Error          string                  `json:"error,omitempty"`
	CompletionTime *time.Time              `json:"completion_time,omitempty"`
}

// Pipeline wires the stages together. Store, Deployer and Publisher are
// optional; a missing one makes its stage fail when requested.
type Pipeline struct {
	Analyst   Analyst
	Store     workflow.Store
	Deployer  Deployer
	Publisher Publisher
	// WikiDatabase is the database documentation pages are created in.
	WikiDatabase string
	// Root holds one directory per project.
	Root   string
	Logger logging.Logger
	Now    func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Run executes the pipeline. A run paused for clarification returns a nil
// error and a Result with status needs_clarification.
func (p *Pipeline) Run(ctx context.Context, text string, opts Options) (*Result, error) {
	log := logging.Or(p.Logger)
	if opts.Project == "" {
		opts.Project = "project_" + p.now().Format("20060102_150405")
	}
	if opts.Environment == "" {
		opts.Environment = platform.EnvStaging
	}
	dir := workspace.New(filepath.Join(p.Root, opts.Project))
	res := &Result{
		ProjectName: opts.Project,
		OutputDir:   dir.Root(),
		Stages:      map[string]*StageResult{},
	}
	log = logging.With(log, map[string]any{"project": opts.Project})

	fail := func(stage string, err error) (*Result, error) {
		log.Error("pipeline failed at %s: %v", stage, err)
		if res.Stages[stage] == nil {
			res.Stages[stage] = &StageResult{}
		}
		res.Stages[stage].Status = StatusError
		res.Status = StatusError
		res.Error = err.Error()
		return res, err
	}

	log.Info("stage 1: requirements")
	if p.Analyst == nil {
		return fail(StageRequirements, notConfigured("no requirements analyst configured"))
	}
	req, err := p.Analyst.ParseRequirements(ctx, text)
	if err != nil {
		return fail(StageRequirements, err)
	}
	reqPath, err := dir.WriteJSON(workspace.RequirementsFile, req)
	if err != nil {
		return fail(StageRequirements, err)
	}
	res.Stages[StageRequirements] = &StageResult{Status: StatusSuccess, Output: reqPath}

	if req.NeedsClarification() {
		if q := p.Analyst.ClarifyingQuestions(ctx, req); !q.Empty() {
			if _, err := dir.WriteJSON(workspace.QuestionsFile, q); err != nil {
				return fail(StageRequirements, err)
			}
			for _, bq := range q.Blocking {
				log.Warn("clarification needed: %s", bq.Question)
			}
			res.Stages[StageRequirements].Status = StatusNeedsClarification
			res.Stages[StageRequirements].Questions = &q
			res.Status = StatusNeedsClarification
			log.Info("pipeline paused: user clarification required")
			return res, nil
		}
	}
	log.Info("requirements validated: %s", req.WorkflowName)

	log.Info("stage 2: workflow generation")
	doc, err := Generate(req)
	if err != nil {
		return fail(StageGeneration, err)
	}
	raw, err := doc.JSON()
	if err != nil {
		return fail(StageGeneration, err)
	}
	wfPath, err := dir.WriteFile(workspace.WorkflowFile, raw)
	if err != nil {
		return fail(StageGeneration, err)
	}
	res.Stages[StageGeneration] = &StageResult{Status: StatusSuccess, Output: wfPath, NodeCount: len(doc.Nodes)}
	log.Info("workflow generated: %d nodes", len(doc.Nodes))

	var rec *workflow.Record
	if p.Store != nil {
		rec, err = workflow.NewRecord(doc)
		if err != nil {
			return fail(StageStorage, err)
		}
		if _, err := p.Store.SaveDocument(ctx, rec); err != nil {
			return fail(StageStorage, err)
		}
		res.Stages[StageStorage] = &StageResult{Status: StatusSuccess, DocumentID: rec.ID}
	}

	var dep *platform.DeploymentInfo
	if opts.Deploy {
		log.Info("stage 3: deployment")
		if p.Deployer == nil {
			return fail(StageDeployment, notConfigured("no deployer configured"))
		}
		dep, err = p.Deployer.Deploy(ctx, raw, opts.Environment)
		if err != nil {
			return fail(StageDeployment, err)
		}
		if _, err := dir.WriteJSON(workspace.DeploymentFile, dep); err != nil {
			return fail(StageDeployment, err)
		}
		if rec != nil {
			d := &workflow.Deployment{
				DocumentID:       rec.ID,
				RemoteWorkflowID: dep.WorkflowID,
				Environment:      dep.Environment,
				Status:           dep.Status,
				URL:              dep.EditorURL,
			}
			if _, err := p.Store.AddDeployment(ctx, d); err != nil {
				return fail(StageDeployment, err)
			}
		}
		res.Stages[StageDeployment] = &StageResult{Status: StatusSuccess, WorkflowID: dep.WorkflowID, Environment: dep.Environment}
		log.Info("deployed: %s", dep.WorkflowID)
		log.Warn("manual step required: configure credentials in the platform UI")
	}

	if opts.Document {
		log.Info("stage 4: documentation")
		if p.Publisher == nil {
			return fail(StageDocumentation, notConfigured("no wiki publisher configured"))
		}
		info, err := p.Publisher.PublishWorkflow(ctx, p.WikiDatabase, req, &doc, dep)
		if err != nil {
			return fail(StageDocumentation, err)
		}
		if _, err := dir.WriteJSON(workspace.WikiPageFile, info); err != nil {
			return fail(StageDocumentation, err)
		}
		res.Stages[StageDocumentation] = &StageResult{Status: StatusSuccess, PageURL: info.PageURL}
		log.Info("documentation created: %s", info.PageURL)
	}

	done := p.now()
	res.Status = StatusSuccess
	res.CompletionTime = &done
	log.Info("pipeline complete")
	return res, nil
}

func notConfigured(what string) error {
	return apperrors.New("pipeline: "+what, apperrors.CategoryBadInput).
		WithTextCode("PIPELINE_NOT_CONFIGURED")
}
