package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/internal/llm"
	"github.com/meikuraledutech/workflow/internal/pipeline"
	"github.com/meikuraledutech/workflow/internal/platform"
	"github.com/meikuraledutech/workflow/internal/workspace"
)

// projectDir picks the directory command outputs land in.
func projectDir(s *session, dir string) (workspace.Dir, error) {
	if dir != "" {
		return workspace.New(dir), nil
	}
	a, err := s.App()
	if err != nil {
		return workspace.Dir{}, err
	}
	return a.Dir(), nil
}

type BuildCmd struct {
	Blueprint string `arg:"" type:"existingfile" help:"Blueprint file (.yaml, .yml or .json)."`
	Out       string `short:"o" type:"path" help:"Write the document here instead of stdout."`
	Save      bool   `help:"Also save the document in the configured store."`
}

func (c *BuildCmd) Run(s *session, ctx context.Context) error {
	bp, err := workflow.ReadBlueprint(c.Blueprint)
	if err != nil {
		return err
	}
	b, err := bp.Build()
	if err != nil {
		return err
	}
	doc := b.Graph().Document()

	if c.Save {
		a, err := s.App()
		if err != nil {
			return err
		}
		store, err := a.Store(ctx)
		if err != nil {
			return err
		}
		rec, err := workflow.NewRecord(doc)
		if err != nil {
			return err
		}
		id, err := store.SaveDocument(ctx, rec)
		if err != nil {
			return err
		}
		a.Logger.Info("saved %q as %s", doc.Name, id)
	}

	if c.Out != "" {
		return doc.WriteFile(c.Out)
	}
	return s.printJSON(doc)
}

type InspectCmd struct {
	File string `arg:"" type:"existingfile" help:"Workflow document."`
	JSON bool   `help:"Print the summary as JSON."`
}

func (c *InspectCmd) Run(s *session) error {
	doc, err := workflow.ReadDocument(c.File)
	if err != nil {
		return err
	}
	sum := doc.Summary()
	if c.JSON {
		return s.printJSON(sum)
	}
	_, err = fmt.Fprint(s.out, sum.String())
	return err
}

type SanitizeCmd struct {
	File string `arg:"" type:"existingfile" help:"Workflow document or platform export."`
	Out  string `short:"o" type:"path" help:"Write the result here instead of stdout."`
}

func (c *SanitizeCmd) Run(s *session) error {
	raw, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	san, err := workflow.Sanitize(raw)
	if err != nil {
		return err
	}
	for _, f := range san.Removed {
		fmt.Fprintf(os.Stderr, "removed %s.%s\n", f.Node, f.Key)
	}
	data, err := san.JSON()
	if err != nil {
		return err
	}
	if c.Out != "" {
		return os.WriteFile(c.Out, append(data, '\n'), 0o644)
	}
	_, err = fmt.Fprintf(s.out, "%s\n", data)
	return err
}

type ParseCmd struct {
	Request string `arg:"" help:"Request text, or a file holding it."`
	Dir     string `type:"path" help:"Output directory. Defaults to the work directory."`
}

func (c *ParseCmd) Run(s *session, ctx context.Context) error {
	text, err := readInput(c.Request)
	if err != nil {
		return err
	}
	a, err := s.App()
	if err != nil {
		return err
	}
	analyst, err := a.Analyst()
	if err != nil {
		return err
	}
	dir, err := projectDir(s, c.Dir)
	if err != nil {
		return err
	}

	req, err := analyst.ParseRequirements(ctx, text)
	if err != nil {
		return err
	}
	if _, err := dir.WriteJSON(workspace.RequirementsFile, req); err != nil {
		return err
	}
	if req.NeedsClarification() {
		q := analyst.ClarifyingQuestions(ctx, req)
		if !q.Empty() {
			if _, err := dir.WriteJSON(workspace.QuestionsFile, q); err != nil {
				return err
			}
		}
	}
	return s.printJSON(req)
}

type GenerateCmd struct {
	Requirements string `arg:"" optional:"" type:"path" help:"Requirements file. Defaults to requirements.json in the output directory."`
	Dir          string `type:"path" help:"Output directory. Defaults to the work directory."`
	Name         string `help:"Override the workflow name."`
}

func (c *GenerateCmd) Run(s *session) error {
	dir, err := projectDir(s, c.Dir)
	if err != nil {
		return err
	}
	var req llm.Requirements
	if c.Requirements != "" {
		err = workspace.New(filepath.Dir(c.Requirements)).ReadJSON(filepath.Base(c.Requirements), &req)
	} else {
		err = dir.ReadJSON(workspace.RequirementsFile, &req)
	}
	if err != nil {
		return err
	}
	if c.Name != "" {
		req.WorkflowName = c.Name
	}

	doc, err := pipeline.Generate(&req)
	if err != nil {
		return err
	}
	if err := doc.WriteFile(dir.Path(workspace.WorkflowFile)); err != nil {
		return err
	}
	sum := doc.Summary()
	_, err = fmt.Fprint(s.out, sum.String())
	return err
}

type DeployCmd struct {
	File     string `arg:"" type:"existingfile" help:"Workflow document."`
	Env      string `enum:"staging,production" default:"staging" help:"Target environment (${enum})."`
	NoUpdate bool   `help:"Always create a new workflow instead of updating one with the same name."`
	Dir      string `type:"path" help:"Where deployment_info.json is written. Defaults to the document's directory."`
}

func (c *DeployCmd) Run(s *session, ctx context.Context) error {
	raw, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	a, err := s.App()
	if err != nil {
		return err
	}
	d, err := a.Deployer(c.NoUpdate)
	if err != nil {
		return err
	}
	info, err := d.Deploy(ctx, raw, c.Env)
	if err != nil {
		return err
	}

	dir := workspace.New(filepath.Dir(c.File))
	if c.Dir != "" {
		dir = workspace.New(c.Dir)
	}
	if _, err := dir.WriteJSON(workspace.DeploymentFile, info); err != nil {
		return err
	}
	return s.printJSON(info)
}

type DocsCmd struct {
	Dir      string `type:"path" help:"Project directory holding requirements.json, workflow.json and optionally deployment_info.json."`
	Database string `help:"Wiki database id. Defaults to wiki.workflows_db."`
}

func (c *DocsCmd) Run(s *session, ctx context.Context) error {
	a, err := s.App()
	if err != nil {
		return err
	}
	dir, err := projectDir(s, c.Dir)
	if err != nil {
		return err
	}
	client, err := a.Wiki()
	if err != nil {
		return err
	}

	var req llm.Requirements
	if err := dir.ReadJSON(workspace.RequirementsFile, &req); err != nil {
		return err
	}
	doc, err := workflow.ReadDocument(dir.Path(workspace.WorkflowFile))
	if err != nil {
		return err
	}
	var dep *platform.DeploymentInfo
	if dir.Exists(workspace.DeploymentFile) {
		dep = &platform.DeploymentInfo{}
		if err := dir.ReadJSON(workspace.DeploymentFile, dep); err != nil {
			return err
		}
	}

	db := c.Database
	if db == "" {
		db = a.Config.Wiki.WorkflowsDB
	}
	info, err := client.PublishWorkflow(ctx, db, &req, doc, dep)
	if err != nil {
		return err
	}
	if _, err := dir.WriteJSON(workspace.WikiPageFile, info); err != nil {
		return err
	}
	return s.printJSON(info)
}

type AnalyzeCmd struct {
	WorkflowID string `arg:"" help:"Platform workflow id."`
	Hours      int    `default:"24" help:"Only count executions started in the last N hours. 0 counts all."`
	Limit      int    `default:"100" help:"Executions to fetch."`
	NoAI       bool   `name:"no-ai" help:"Skip the optimization suggestions."`
	Dir        string `type:"path" help:"Output directory. Defaults to the work directory."`
}

func (c *AnalyzeCmd) Run(s *session, ctx context.Context) error {
	a, err := s.App()
	if err != nil {
		return err
	}
	dir, err := projectDir(s, c.Dir)
	if err != nil {
		return err
	}
	client, err := a.Platform()
	if err != nil {
		return err
	}
	execs, err := client.ListExecutions(ctx, c.WorkflowID, c.Limit)
	if err != nil {
		return err
	}

	now := time.Now()
	rep := platform.Analyze(execs, c.WorkflowID, c.Hours, now)
	if _, err := dir.WriteJSON(workspace.PerformanceFile, rep); err != nil {
		return err
	}

	if !c.NoAI && a.Config.LLMEnabled() && rep.TotalExecutions > 0 {
		analyst, err := a.Analyst()
		if err != nil {
			return err
		}
		samples := execs
		if len(samples) > 5 {
			samples = samples[:5]
		}
		body, err := analyst.OptimizationSuggestions(ctx, rep, samples)
		if err != nil {
			a.Logger.Warn("optimization suggestions failed: %v", err)
		} else if _, err := dir.WriteFile(workspace.SuggestionsFile, []byte(rep.SuggestionsMarkdown(body, now))); err != nil {
			return err
		}
	}
	return s.printJSON(rep)
}

type PipelineCmd struct {
	Request  string `arg:"" help:"Request text, or a file holding it."`
	Project  string `help:"Project name. Defaults to a timestamped one."`
	Env      string `enum:"staging,production" default:"staging" help:"Target environment (${enum})."`
	NoDeploy bool   `help:"Stop after generating the workflow."`
	NoDocs   bool   `help:"Skip the wiki page."`
	NoStore  bool   `help:"Do not save the document in the store."`
}

func (c *PipelineCmd) Run(s *session, ctx context.Context) error {
	text, err := readInput(c.Request)
	if err != nil {
		return err
	}
	a, err := s.App()
	if err != nil {
		return err
	}
	analyst, err := a.Analyst()
	if err != nil {
		return err
	}

	p := &pipeline.Pipeline{
		Analyst:      analyst,
		WikiDatabase: a.Config.Wiki.WorkflowsDB,
		Root:         filepath.Join(a.Config.WorkDir, "projects"),
		Logger:       a.Logger,
	}
	if !c.NoStore {
		if p.Store, err = a.Store(ctx); err != nil {
			return err
		}
	}
	if !c.NoDeploy {
		if p.Deployer, err = a.Deployer(false); err != nil {
			return err
		}
	}
	if !c.NoDocs && a.Config.WikiEnabled() {
		if p.Publisher, err = a.Wiki(); err != nil {
			return err
		}
	}

	res, err := p.Run(ctx, text, pipeline.Options{
		Deploy:      !c.NoDeploy,
		Document:    p.Publisher != nil,
		Project:     c.Project,
		Environment: c.Env,
	})
	if res != nil {
		if perr := s.printJSON(res); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}
