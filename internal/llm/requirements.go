package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/goliatone/go-errors"

	"github.com/meikuraledutech/workflow/internal/logging"
)

// Requirements is the structured form of a client's workflow request. Only
// the workflow name is required; gaps belong in MissingInfo so they can be
// asked about.
type Requirements struct {
	WorkflowName        string           `json:"workflow_name" validate:"required"`
	Goal                string           `json:"goal"`
	Triggers            []Trigger        `json:"triggers"`
	DataSources         []DataSource     `json:"data_sources"`
	Actions             []Action         `json:"actions"`
	DataTransformations []Transformation `json:"data_transformations"`
	ErrorHandling       ErrorHandling    `json:"error_handling"`
	SuccessMetrics      string           `json:"success_metrics"`
	MissingInfo         []string         `json:"missing_info"`
	KeyFeatures         []string         `json:"key_features,omitempty"`
	Apps                []string         `json:"apps,omitempty"`
}

// Trigger types are free-form; the prompt only suggests a few.
type Trigger struct {
	Type          string         `json:"type"`
	Description   string         `json:"description"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

type DataSource struct {
	Name              string `json:"name"`
	Purpose           string `json:"purpose"`
	CredentialsNeeded bool   `json:"credentials_needed"`
}

type Action struct {
	Step        int    `json:"step"`
	Description string `json:"description"`
	NodeType    string `json:"node_type"`
}

type Transformation struct {
	Description string `json:"description"`
	Input       string `json:"input"`
	Output      string `json:"output"`
}

type ErrorHandling struct {
	Strategy           string `json:"strategy"`
	NotificationMethod string `json:"notification_method"`
}

// NeedsClarification reports whether the model flagged missing information.
func (r *Requirements) NeedsClarification() bool {
	return len(r.MissingInfo) > 0
}

// Questions are follow-ups for the client, split by whether work can start
// without an answer.
type Questions struct {
	Blocking []Question `json:"blocking_questions"`
	Optional []Question `json:"optional_questions"`
}

type Question struct {
	Question         string `json:"question"`
	Reason           string `json:"reason"`
	SuggestedDefault string `json:"suggested_default,omitempty"`
}

// Empty reports whether there is nothing to ask.
func (q Questions) Empty() bool {
	return len(q.Blocking) == 0 && len(q.Optional) == 0
}

// Analyst runs the requirement and optimisation prompts.
type Analyst struct {
	llm      Completer
	logger   logging.Logger
	validate *validator.Validate
}

// NewAnalyst returns an analyst backed by llm.
func NewAnalyst(llm Completer, logger logging.Logger) *Analyst {
	return &Analyst{
		llm:      llm,
		logger:   logging.Or(logger),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

const requirementsPrompt = `You are an expert n8n workflow analyst. Extract structured information from these client requirements.

Requirements:
%s

Extract the following and return ONLY valid JSON (no markdown, no explanation):
{
    "workflow_name": "brief descriptive name",
    "goal": "what the workflow accomplishes",
    "triggers": [{"type": "webhook|schedule|manual|event", "description": "when this triggers", "configuration": {}}],
    "data_sources": [{"name": "API/service name", "purpose": "what data is being accessed", "credentials_needed": true}],
    "actions": [{"step": 1, "description": "what happens", "node_type": "HTTP Request|Google Sheets|Slack|etc"}],
    "data_transformations": [{"description": "how data is transformed", "input": "source field", "output": "target field"}],
    "error_handling": {"strategy": "retry|notify|fallback|stop", "notification_method": "slack|email|webhook|none"},
    "success_metrics": "how to measure success",
    "missing_info": ["list any critical information not provided in requirements"],
    "key_features": ["short feature bullet"],
    "apps": ["third-party apps the workflow connects to"]
}`

// ParseRequirements asks the model to structure text.
func (a *Analyst) ParseRequirements(ctx context.Context, text string) (*Requirements, error) {
	a.logger.Info("parsing requirements (%d chars)", len(text))

	reply, err := a.llm.Complete(ctx, fmt.Sprintf(requirementsPrompt, text))
	if err != nil {
		return nil, err
	}

	var req Requirements
	if err := json.Unmarshal([]byte(StripFences(reply)), &req); err != nil {
		a.logger.Error("requirements reply is not JSON: %v", err)
		return nil, apperrors.Wrap(err, apperrors.CategoryExternal, "llm: requirements reply is not valid JSON").
			WithTextCode("LLM_BAD_REPLY").
			WithMetadata(map[string]any{"reply": reply})
	}
	if err := a.validate.Struct(&req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryValidation, "llm: requirements are incomplete").
			WithTextCode("LLM_INCOMPLETE_REQUIREMENTS")
	}

	a.logger.Info("parsed requirements for %q", req.WorkflowName)
	return &req, nil
}

const questionsPrompt = `Based on this workflow analysis, generate clarifying questions for the client.

Workflow: %s
Missing Information: %s

Generate questions prioritized by importance (blocking vs. nice-to-have).
Return ONLY valid JSON:
{
    "blocking_questions": [{"question": "specific question", "reason": "why this is critical", "suggested_default": "reasonable default if client doesn't respond"}],
    "optional_questions": [{"question": "specific question", "reason": "why this would be helpful"}]
}`

// ClarifyingQuestions turns the missing information into questions. A
// failed or unparseable reply yields empty lists, never an error.
func (a *Analyst) ClarifyingQuestions(ctx context.Context, req *Requirements) Questions {
	empty := Questions{Blocking: []Question{}, Optional: []Question{}}
	if req == nil || !req.NeedsClarification() {
		return empty
	}

	missing, _ := json.MarshalIndent(req.MissingInfo, "", "  ")
	reply, err := a.llm.Complete(ctx, fmt.Sprintf(questionsPrompt, req.WorkflowName, missing))
	if err != nil {
		a.logger.Error("failed to generate questions: %v", err)
		return empty
	}

	var q Questions
	if err := json.Unmarshal([]byte(StripFences(reply)), &q); err != nil {
		a.logger.Error("questions reply is not JSON: %v", err)
		return empty
	}
	if q.Blocking == nil {
		q.Blocking = []Question{}
	}
	if q.Optional == nil {
		q.Optional = []Question{}
	}
	return q
}

const optimizationPrompt = `You are an n8n workflow optimization expert. Analyze this performance data and suggest specific improvements.

Performance Report:
%s

Sample Executions (most recent):
%s

Provide actionable optimization suggestions in markdown format. Include:
1. Performance assessment (good/needs improvement)
2. Specific node-level optimizations
3. Error handling improvements
4. Scalability recommendations
5. Priority level (high/medium/low) for each suggestion

Be specific and practical. Focus on changes that can be implemented in n8n.`

// OptimizationSuggestions returns the model's markdown advice for a
// performance report and a sample of executions.
func (a *Analyst) OptimizationSuggestions(ctx context.Context, report, samples any) (string, error) {
	r, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("llm: encode report: %w", err)
	}
	s, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return "", fmt.Errorf("llm: encode samples: %w", err)
	}
	a.logger.Info("generating optimization suggestions")
	return a.llm.Complete(ctx, fmt.Sprintf(optimizationPrompt, r, s))
}
