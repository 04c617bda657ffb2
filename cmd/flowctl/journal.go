package main

import (
	"context"
	"errors"
	"time"

	"github.com/meikuraledutech/workflow/internal/opslog"
	"github.com/meikuraledutech/workflow/internal/report"
	"github.com/meikuraledutech/workflow/internal/wiki"
)

type LogChangeCmd struct {
	Project     string `required:"" help:"Project the change belongs to."`
	Description string `required:"" help:"What changed."`
	Department  string `required:"" help:"Owning department."`
	Type        string `enum:"requirement,approach,blocker,completion,update" default:"update" help:"Kind of change (${enum})."`
	Impact      string `enum:"low,medium,high,critical" default:"low" help:"Impact (${enum})."`
}

func (c *LogChangeCmd) Run(s *session, ctx context.Context) error {
	a, err := s.App()
	if err != nil {
		return err
	}
	res, err := a.Journal().LogChange(ctx, opslog.Change{
		ProjectName: c.Project,
		Description: c.Description,
		Department:  c.Department,
		ChangeType:  c.Type,
		Impact:      c.Impact,
	})
	if err != nil {
		return err
	}
	return s.printJSON(res)
}

type NotifyErrorCmd struct {
	Source     string `required:"" help:"Workflow or tool that failed."`
	Department string `required:"" help:"Owning department."`
	Message    string `required:"" help:"Error message."`
	Severity   string `enum:"low,medium,high,critical" default:"medium" help:"Severity (${enum}). Critical raises the escalation flag."`
}

func (c *NotifyErrorCmd) Run(s *session, ctx context.Context) error {
	a, err := s.App()
	if err != nil {
		return err
	}
	res, err := a.Journal().NotifyError(ctx, opslog.ErrorReport{
		Source:     c.Source,
		Department: c.Department,
		Message:    c.Message,
		Severity:   c.Severity,
	})
	if err != nil {
		return err
	}
	return s.printJSON(res)
}

type TrackProjectCmd struct {
	Name        string `required:"" help:"Project name."`
	Department  string `required:"" help:"Owning department."`
	Description string `help:"Short description."`
	Status      string `default:"In Progress" help:"Project status."`
}

func (c *TrackProjectCmd) Run(s *session, ctx context.Context) error {
	a, err := s.App()
	if err != nil {
		return err
	}
	res, err := a.Journal().TrackProject(ctx, opslog.Project{
		Name:        c.Name,
		Department:  c.Department,
		Description: c.Description,
		Status:      c.Status,
	})
	if err != nil {
		return err
	}
	return s.printJSON(res)
}

type UpdateTaskCmd struct {
	Task       string `required:"" help:"Task title."`
	Department string `required:"" help:"Owning department."`
	Status     string `required:"" help:"New status."`
	Note       string `help:"Optional note appended to the task page."`
}

func (c *UpdateTaskCmd) Run(s *session, ctx context.Context) error {
	a, err := s.App()
	if err != nil {
		return err
	}
	res, err := a.Journal().UpdateTaskStatus(ctx, opslog.TaskUpdate{
		Task:       c.Task,
		Department: c.Department,
		Status:     c.Status,
		Note:       c.Note,
	})
	if err != nil {
		return err
	}
	return s.printJSON(res)
}

type LogImprovementCmd struct {
	Title       string `required:"" help:"Improvement title."`
	Department  string `required:"" help:"Department proposing it."`
	Description string `help:"Details."`
	Impact      string `enum:"low,medium,high,critical" default:"medium" help:"Expected impact (${enum})."`
}

func (c *LogImprovementCmd) Run(s *session, ctx context.Context) error {
	a, err := s.App()
	if err != nil {
		return err
	}
	res, err := a.Journal().LogImprovement(ctx, opslog.Improvement{
		Title:       c.Title,
		Department:  c.Department,
		Description: c.Description,
		Impact:      c.Impact,
	})
	if err != nil {
		return err
	}
	return s.printJSON(res)
}

type RequestIntegrationCmd struct {
	App        string `arg:"" help:"App to integrate."`
	Department string `required:"" help:"Requesting department."`
	Reason     string `required:"" help:"Why it is needed."`
	Priority   string `enum:"low,medium,high,critical" default:"medium" help:"Priority (${enum})."`
}

func (c *RequestIntegrationCmd) Run(s *session, ctx context.Context) error {
	a, err := s.App()
	if err != nil {
		return err
	}
	res, err := a.Journal().RequestIntegration(ctx, opslog.IntegrationRequest{
		App:        c.App,
		Department: c.Department,
		Reason:     c.Reason,
		Priority:   c.Priority,
	})
	if err != nil {
		return err
	}
	return s.printJSON(res)
}

type ProposeImprovementCmd struct {
	ProposalID     string   `name:"proposal-id" required:"" help:"Proposal being challenged."`
	Department     string   `required:"" help:"Department submitting the challenge."`
	Type           string   `required:"" enum:"risk_identified,better_alternative,optimization,feasibility_concern,question" help:"Kind of challenge (${enum})."`
	Description    string   `required:"" help:"What is challenged or proposed."`
	Risks          []string `help:"Risks identified."`
	Reasoning      string   `help:"First-principles reasoning."`
	Recommendation string   `enum:"approve_as_is,approve_with_changes,need_more_info,reject" default:"approve_with_changes" help:"Recommendation (${enum})."`
	Confidence     string   `enum:"very_high,high,medium,low" default:"high" help:"Confidence (${enum})."`
}

func (c *ProposeImprovementCmd) Run(s *session, ctx context.Context) error {
	a, err := s.App()
	if err != nil {
		return err
	}
	res, err := a.Journal().ProposeImprovement(ctx, opslog.Challenge{
		ProposalID:     c.ProposalID,
		Department:     c.Department,
		Type:           c.Type,
		Notes:          c.Description,
		Risks:          c.Risks,
		Reasoning:      c.Reasoning,
		Recommendation: c.Recommendation,
		Confidence:     c.Confidence,
	})
	if err != nil {
		return err
	}
	return s.printJSON(res)
}

type WikiCheckCmd struct {
	Write bool `help:"Also append a test paragraph to the executive page."`
}

func (c *WikiCheckCmd) Run(s *session, ctx context.Context) error {
	a, err := s.App()
	if err != nil {
		return err
	}
	client, err := a.Wiki()
	if err != nil {
		return err
	}
	w := a.Config.Wiki
	res := client.Diagnose(ctx, wiki.CheckTargets{
		ExecutivePageID: w.ExecutivePageID,
		Databases: map[string]string{
			"workflows_db":    w.WorkflowsDB,
			"projects_db":     w.ProjectsDB,
			"tasks_db":        w.TasksDB,
			"improvements_db": w.ImprovementsDB,
		},
		Write: c.Write,
	})
	if err := s.printJSON(res); err != nil {
		return err
	}
	if !res.OK {
		return errors.New("wiki check failed")
	}
	return nil
}

type BriefCmd struct {
	Date        string   `help:"Day to report on as YYYY-MM-DD. Defaults to today."`
	Departments []string `help:"Departments always listed in the health section."`
	NoStore     bool     `help:"Ignore the document store."`
}

func (c *BriefCmd) Run(s *session, ctx context.Context) error {
	a, err := s.App()
	if err != nil {
		return err
	}
	date := time.Now()
	if c.Date != "" {
		if date, err = time.ParseInLocation("2006-01-02", c.Date, time.Local); err != nil {
			return err
		}
	}
	g := &report.Generator{
		Dir:         a.Dir(),
		DatabaseID:  a.Config.Wiki.ExecutivePageID,
		Departments: c.Departments,
		Logger:      a.Logger,
	}
	if !c.NoStore {
		if g.Store, err = a.Store(ctx); err != nil {
			return err
		}
	}
	brief, _, err := g.DailyBrief(ctx, date)
	if err != nil {
		return err
	}
	return s.printJSON(brief)
}
