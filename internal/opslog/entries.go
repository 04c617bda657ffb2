package opslog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meikuraledutech/workflow/internal/logging"
	"github.com/meikuraledutech/workflow/internal/wiki"
)

// Change is a modification to a tracked project.
type Change struct {
	ProjectName string    `json:"project_name" validate:"required"`
	Description string    `json:"change_description" validate:"required"`
	Department  string    `json:"department" validate:"required"`
	ChangeType  string    `json:"change_type" validate:"oneof=requirement approach blocker completion update"`
	Impact      string    `json:"impact" validate:"oneof=low medium high critical"`
	Timestamp   time.Time `json:"timestamp"`
	WikiLogged  bool      `json:"notion_logged"`
	Mode        string    `json:"mode,omitempty"`
}

// LogChange appends a callout to the project's wiki page, or to
// change_log.jsonl when the page cannot be reached.
func (j *Journal) LogChange(ctx context.Context, c Change) (*Change, error) {
	if c.ChangeType == "" {
		c.ChangeType = "update"
	}
	if c.Impact == "" {
		c.Impact = "low"
	}
	if err := j.check(c); err != nil {
		return nil, err
	}
	c.Timestamp = j.now()
	log := j.scoped(c.Department, "log_change")
	log.Info("logging change for %s: %s", c.ProjectName, c.Description)

	if page := j.findPage(ctx, log, j.targets.ProjectsDB, c.ProjectName); page != nil {
		block := wiki.ChangeCallout(c.Timestamp, c.Description, c.Department, c.ChangeType, c.Impact)
		err := j.wiki.AppendBlocks(ctx, page.ID, []wiki.Block{block})
		if err == nil {
			c.WikiLogged = true
			log.Info("change logged in wiki for project: %s", c.ProjectName)
			return &c, nil
		}
		log.Error("error logging change: %v", err)
	}

	c.Mode = ModeLocal
	if err := j.dir.AppendJSONL(ChangeLogFile, c); err != nil {
		return nil, err
	}
	log.Info("change logged locally: %s", j.dir.Path(ChangeLogFile))
	return &c, nil
}

// ErrorReport is a failure raised by a workflow or a tool.
type ErrorReport struct {
	ID         string    `json:"id"`
	Source     string    `json:"source" validate:"required"`
	Department string    `json:"department" validate:"required"`
	Message    string    `json:"message" validate:"required"`
	Severity   string    `json:"severity" validate:"oneof=low medium high critical"`
	Timestamp  time.Time `json:"timestamp"`
	Escalated  bool      `json:"escalated"`
	WikiLogged bool      `json:"notion_logged"`
}

// NotifyError keeps a local record of every error, posts it to the
// executive page when configured, and raises the escalation flag for
// critical ones.
func (j *Journal) NotifyError(ctx context.Context, e ErrorReport) (*ErrorReport, error) {
	if e.Severity == "" {
		e.Severity = "medium"
	}
	if err := j.check(e); err != nil {
		return nil, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Timestamp = j.now()
	e.Escalated = e.Severity == "critical"
	log := j.scoped(e.Department, "notify_error")
	log.Error("%s failed: %s", e.Source, e.Message)

	if j.wiki != nil && j.targets.ExecutivePageID != "" {
		block := wiki.ErrorCallout(e.Timestamp, e.Source, e.Message, e.Severity)
		if err := j.wiki.AppendBlocks(ctx, j.targets.ExecutivePageID, []wiki.Block{block}); err != nil {
			log.Error("posting error to wiki failed: %v", err)
		} else {
			e.WikiLogged = true
		}
	}

	if _, err := j.dir.WriteJSON("error_"+e.ID+".json", e); err != nil {
		return nil, err
	}
	if err := j.dir.AppendJSONL(ErrorsFile, e); err != nil {
		return nil, err
	}
	if e.Escalated {
		flag := e.Timestamp.Format(time.RFC3339) + " " + e.ID + " " + e.Source + ": " + e.Message + "\n"
		if _, err := j.dir.WriteFile(EscalationFlagFile, []byte(flag)); err != nil {
			return nil, err
		}
		log.Warn("escalation flag raised for error %s", e.ID)
	}
	return &e, nil
}

// Project is a tracked piece of work.
type Project struct {
	Name        string    `json:"name" validate:"required"`
	Department  string    `json:"department" validate:"required"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
	PageID      string    `json:"page_id,omitempty"`
	PageURL     string    `json:"page_url,omitempty"`
	WikiLogged  bool      `json:"notion_logged"`
	Mode        string    `json:"mode,omitempty"`
}

// TrackProject creates the project's wiki page, or updates its status when
// it already exists. Without the wiki it writes project_<slug>.json.
func (j *Journal) TrackProject(ctx context.Context, p Project) (*Project, error) {
	if p.Status == "" {
		p.Status = "In Progress"
	}
	if err := j.check(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = j.now()
	log := j.scoped(p.Department, "track_project")

	if j.wiki != nil && j.targets.ProjectsDB != "" {
		props := map[string]any{
			"Status":     wiki.SelectProperty(p.Status),
			"Department": wiki.RichTextProperty(p.Department),
		}
		page, err := j.wiki.FindByTitle(ctx, j.targets.ProjectsDB, p.Name)
		switch {
		case err != nil:
			log.Error("wiki lookup of %q failed: %v", p.Name, err)
		case page != nil:
			if _, err := j.wiki.UpdatePage(ctx, page.ID, props); err != nil {
				log.Error("updating project page failed: %v", err)
			} else {
				p.PageID, p.PageURL, p.WikiLogged = page.ID, page.URL, true
			}
		default:
			blocks := wiki.ProjectPage(p.Name, p.Department, p.Description, p.UpdatedAt)
			if page, err := j.wiki.CreatePage(ctx, j.targets.ProjectsDB, p.Name, props, blocks); err != nil {
				log.Error("creating project page failed: %v", err)
			} else {
				p.PageID, p.PageURL, p.WikiLogged = page.ID, page.URL, true
			}
		}
		if p.WikiLogged {
			log.Info("project tracked in wiki: %s", p.Name)
			return &p, nil
		}
	}

	p.Mode = ModeLocal
	name := "project_" + Slug(p.Name) + ".json"
	if _, err := j.dir.WriteJSON(name, p); err != nil {
		return nil, err
	}
	log.Info("project tracked locally: %s", j.dir.Path(name))
	return &p, nil
}

// TaskUpdate moves a task to a new status.
type TaskUpdate struct {
	Task       string    `json:"task" validate:"required"`
	Department string    `json:"department" validate:"required"`
	Status     string    `json:"status" validate:"required"`
	Note       string    `json:"note,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	WikiLogged bool      `json:"notion_logged"`
	Mode       string    `json:"mode,omitempty"`
}

// UpdateTaskStatus sets the task page's Status and appends a note.
func (j *Journal) UpdateTaskStatus(ctx context.Context, u TaskUpdate) (*TaskUpdate, error) {
	if err := j.check(u); err != nil {
		return nil, err
	}
	u.Timestamp = j.now()
	log := j.scoped(u.Department, "update_task")

	if page := j.findPage(ctx, log, j.targets.TasksDB, u.Task); page != nil {
		_, err := j.wiki.UpdatePage(ctx, page.ID, map[string]any{"Status": wiki.SelectProperty(u.Status)})
		if err == nil {
			err = j.wiki.AppendBlocks(ctx, page.ID, []wiki.Block{wiki.TaskStatusUpdate(u.Timestamp, u.Status, u.Note)})
		}
		if err == nil {
			u.WikiLogged = true
			log.Info("task %q moved to %s", u.Task, u.Status)
			return &u, nil
		}
		log.Error("updating task failed: %v", err)
	}

	u.Mode = ModeLocal
	if err := j.dir.AppendJSONL(TaskUpdatesFile, u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Improvement is a suggestion for the organisation's tooling or process.
type Improvement struct {
	Title       string    `json:"title" validate:"required"`
	Department  string    `json:"department" validate:"required"`
	Description string    `json:"description"`
	Impact      string    `json:"impact" validate:"oneof=low medium high critical"`
	Timestamp   time.Time `json:"timestamp"`
	PageURL     string    `json:"page_url,omitempty"`
	WikiLogged  bool      `json:"notion_logged"`
	Mode        string    `json:"mode,omitempty"`
}

// LogImprovement files an improvement page, or appends to improvements.jsonl.
func (j *Journal) LogImprovement(ctx context.Context, imp Improvement) (*Improvement, error) {
	if imp.Impact == "" {
		imp.Impact = "medium"
	}
	if err := j.check(imp); err != nil {
		return nil, err
	}
	imp.Timestamp = j.now()
	log := j.scoped(imp.Department, "log_improvement")

	if page, ok := j.createPage(ctx, log, imp.Title, imp.Department, imp.Impact, imp.Description); ok {
		imp.PageURL, imp.WikiLogged = page.URL, true
		return &imp, nil
	}

	imp.Mode = ModeLocal
	if err := j.dir.AppendJSONL(ImprovementsFile, imp); err != nil {
		return nil, err
	}
	return &imp, nil
}

// IntegrationRequest asks for a new app connection.
type IntegrationRequest struct {
	App        string    `json:"app" validate:"required"`
	Department string    `json:"department" validate:"required"`
	Reason     string    `json:"reason" validate:"required"`
	Priority   string    `json:"priority" validate:"oneof=low medium high critical"`
	Timestamp  time.Time `json:"timestamp"`
	PageURL    string    `json:"page_url,omitempty"`
	WikiLogged bool      `json:"notion_logged"`
}

// RequestIntegration always appends to integration_requests.jsonl so the
// queue can be worked offline, and mirrors the request to the improvements
// database when possible.
func (j *Journal) RequestIntegration(ctx context.Context, r IntegrationRequest) (*IntegrationRequest, error) {
	if r.Priority == "" {
		r.Priority = "medium"
	}
	if err := j.check(r); err != nil {
		return nil, err
	}
	r.Timestamp = j.now()
	log := j.scoped(r.Department, "request_integration")

	if page, ok := j.createPage(ctx, log, "Integration: "+r.App, r.Department, r.Priority, r.Reason); ok {
		r.PageURL, r.WikiLogged = page.URL, true
	}
	if err := j.dir.AppendJSONL(IntegrationRequestFile, r); err != nil {
		return nil, err
	}
	log.Info("integration requested: %s", r.App)
	return &r, nil
}

func (j *Journal) createPage(ctx context.Context, log logging.Logger, title, department, impact, description string) (*wiki.Page, bool) {
	if j.wiki == nil || j.targets.ImprovementsDB == "" {
		return nil, false
	}
	props := map[string]any{
		"Department": wiki.RichTextProperty(department),
		"Impact":     wiki.SelectProperty(impact),
	}
	var blocks []wiki.Block
	if description != "" {
		blocks = append(blocks, wiki.Paragraph(wiki.Text(description)))
	}
	page, err := j.wiki.CreatePage(ctx, j.targets.ImprovementsDB, title, props, blocks)
	if err != nil {
		log.Error("creating improvement page failed: %v", err)
		return nil, false
	}
	return page, true
}
