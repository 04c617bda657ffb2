package opslog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	apperrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/workflow/internal/wiki"
	"github.com/meikuraledutech/workflow/internal/workspace"
)

// memWiki keeps pages by title per database.
type memWiki struct {
	pages    map[string]map[string]*wiki.Page
	appended map[string][]wiki.Block
	updated  map[string]map[string]any
	created  []string
	failing  bool
}

func newMemWiki() *memWiki {
	return &memWiki{
		pages:    map[string]map[string]*wiki.Page{},
		appended: map[string][]wiki.Block{},
		updated:  map[string]map[string]any{},
	}
}

func (m *memWiki) add(db, title, id string) {
	if m.pages[db] == nil {
		m.pages[db] = map[string]*wiki.Page{}
	}
	m.pages[db][title] = &wiki.Page{ID: id, URL: "https://wiki/" + id}
}

func (m *memWiki) FindByTitle(_ context.Context, db, title string) (*wiki.Page, error) {
	if m.failing {
		return nil, errors.New("wiki down")
	}
	return m.pages[db][title], nil
}

func (m *memWiki) CreatePage(_ context.Context, db, title string, props map[string]any, children []wiki.Block) (*wiki.Page, error) {
	if m.failing {
		return nil, errors.New("wiki down")
	}
	m.created = append(m.created, title)
	id := "new-" + Slug(title)
	m.add(db, title, id)
	return m.pages[db][title], nil
}

func (m *memWiki) UpdatePage(_ context.Context, id string, props map[string]any) (*wiki.Page, error) {
	m.updated[id] = props
	return &wiki.Page{ID: id}, nil
}

func (m *memWiki) AppendBlocks(_ context.Context, id string, blocks []wiki.Block) error {
	if m.failing {
		return errors.New("wiki down")
	}
	m.appended[id] = append(m.appended[id], blocks...)
	return nil
}

var fixed = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixed }

func targets() Targets {
	return Targets{ProjectsDB: "projects", TasksDB: "tasks", ImprovementsDB: "improvements", ExecutivePageID: "exec"}
}

func readLines(t *testing.T, dir workspace.Dir, name string) []map[string]any {
	t.Helper()
	var out []map[string]any
	require.NoError(t, dir.ReadJSONL(name, func(line []byte) error {
		var m map[string]any
		if err := json.Unmarshal(line, &m); err != nil {
			return err
		}
		out = append(out, m)
		return nil
	}))
	return out
}

func TestLogChangeToWiki(t *testing.T) {
	w := newMemWiki()
	w.add("projects", "CRM Sync", "p-1")
	dir := workspace.New(t.TempDir())
	j := New(dir, WithWiki(w, targets()), WithClock(clock))

	c, err := j.LogChange(context.Background(), Change{ProjectName: "CRM Sync", Description: "new field", Department: "sales-team", ChangeType: "requirement", Impact: "medium"})
	require.NoError(t, err)
	assert.True(t, c.WikiLogged)
	assert.Empty(t, c.Mode)
	assert.Equal(t, fixed, c.Timestamp)
	require.Len(t, w.appended["p-1"], 1)
	assert.Equal(t, "callout", w.appended["p-1"][0]["type"])
	assert.False(t, dir.Exists(ChangeLogFile))
}

func TestLogChangeFallsBack(t *testing.T) {
	cases := map[string]func() Option{
		"no wiki":         func() Option { return WithWiki(nil, Targets{}) },
		"missing project": func() Option { return WithWiki(newMemWiki(), targets()) },
		"wiki failing": func() Option {
			w := newMemWiki()
			w.failing = true
			return WithWiki(w, targets())
		},
	}
	for name, opt := range cases {
		t.Run(name, func(t *testing.T) {
			dir := workspace.New(t.TempDir())
			j := New(dir, opt(), WithClock(clock))

			c, err := j.LogChange(context.Background(), Change{ProjectName: "Ghost", Description: "d", Department: "ops"})
			require.NoError(t, err)
			assert.False(t, c.WikiLogged)
			assert.Equal(t, ModeLocal, c.Mode)
			assert.Equal(t, "update", c.ChangeType)
			assert.Equal(t, "low", c.Impact)

			lines := readLines(t, dir, ChangeLogFile)
			require.Len(t, lines, 1)
			assert.Equal(t, "Ghost", lines[0]["project_name"])
			assert.Equal(t, false, lines[0]["notion_logged"])
			assert.Equal(t, ModeLocal, lines[0]["mode"])
		})
	}
}

func TestLogChangeValidates(t *testing.T) {
	j := New(workspace.New(t.TempDir()))

	_, err := j.LogChange(context.Background(), Change{ProjectName: "x", Description: "d", Department: "ops", Impact: "huge"})
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CategoryValidation, appErr.Category)
	assert.Equal(t, map[string]string{"Impact": "oneof"}, appErr.Metadata["fields"])

	_, err = j.LogChange(context.Background(), Change{})
	assert.Error(t, err)
}

func TestNotifyError(t *testing.T) {
	w := newMemWiki()
	dir := workspace.New(t.TempDir())
	j := New(dir, WithWiki(w, targets()), WithClock(clock))

	e, err := j.NotifyError(context.Background(), ErrorReport{ID: "e1", Source: "Lead Alert", Department: "sales-team", Message: "timeout"})
	require.NoError(t, err)
	assert.Equal(t, "medium", e.Severity)
	assert.False(t, e.Escalated)
	assert.True(t, e.WikiLogged)
	assert.Len(t, w.appended["exec"], 1)
	assert.True(t, dir.Exists("error_e1.json"))
	assert.False(t, dir.Exists(EscalationFlagFile))

	critical, err := j.NotifyError(context.Background(), ErrorReport{Source: "Billing", Department: "ops", Message: "down", Severity: "critical"})
	require.NoError(t, err)
	assert.NotEmpty(t, critical.ID)
	assert.True(t, critical.Escalated)

	flag, err := os.ReadFile(dir.Path(EscalationFlagFile))
	require.NoError(t, err)
	assert.Contains(t, string(flag), critical.ID)
	assert.Contains(t, string(flag), "Billing: down")

	assert.Len(t, readLines(t, dir, ErrorsFile), 2)
}

func TestTrackProject(t *testing.T) {
	w := newMemWiki()
	w.add("projects", "Existing", "p-7")
	dir := workspace.New(t.TempDir())
	j := New(dir, WithWiki(w, targets()), WithClock(clock))

	created, err := j.TrackProject(context.Background(), Project{Name: "Fresh", Department: "eng"})
	require.NoError(t, err)
	assert.True(t, created.WikiLogged)
	assert.Equal(t, "In Progress", created.Status)
	assert.Equal(t, []string{"Fresh"}, w.created)

	updated, err := j.TrackProject(context.Background(), Project{Name: "Existing", Department: "eng", Status: "Done"})
	require.NoError(t, err)
	assert.Equal(t, "p-7", updated.PageID)
	assert.Contains(t, w.updated["p-7"], "Status")

	local := New(dir, WithClock(clock))
	p, err := local.TrackProject(context.Background(), Project{Name: "Q3 Launch!", Department: "eng"})
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, p.Mode)

	var back Project
	require.NoError(t, dir.ReadJSON("project_q3_launch.json", &back))
	assert.Equal(t, "Q3 Launch!", back.Name)
}

func TestUpdateTaskStatus(t *testing.T) {
	w := newMemWiki()
	w.add("tasks", "Write docs", "t-1")
	dir := workspace.New(t.TempDir())
	j := New(dir, WithWiki(w, targets()), WithClock(clock))

	u, err := j.UpdateTaskStatus(context.Background(), TaskUpdate{Task: "Write docs", Department: "eng", Status: "Done", Note: "shipped"})
	require.NoError(t, err)
	assert.True(t, u.WikiLogged)
	assert.Len(t, w.appended["t-1"], 1)

	u, err = j.UpdateTaskStatus(context.Background(), TaskUpdate{Task: "Unknown", Department: "eng", Status: "Done"})
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, u.Mode)
	assert.Len(t, readLines(t, dir, TaskUpdatesFile), 1)
}

func TestImprovementsAndIntegrations(t *testing.T) {
	dir := workspace.New(t.TempDir())
	local := New(dir, WithClock(clock))

	imp, err := local.LogImprovement(context.Background(), Improvement{Title: "Cache lookups", Department: "eng"})
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, imp.Mode)
	assert.Equal(t, "medium", imp.Impact)
	assert.Len(t, readLines(t, dir, ImprovementsFile), 1)

	w := newMemWiki()
	remote := New(dir, WithWiki(w, targets()), WithClock(clock))
	r, err := remote.RequestIntegration(context.Background(), IntegrationRequest{App: "HubSpot", Department: "sales-team", Reason: "CRM sync"})
	require.NoError(t, err)
	assert.True(t, r.WikiLogged)
	assert.Equal(t, []string{"Integration: HubSpot"}, w.created)

	lines := readLines(t, dir, IntegrationRequestFile)
	require.Len(t, lines, 1)
	assert.Equal(t, "HubSpot", lines[0]["app"])
}

func TestProposeImprovement(t *testing.T) {
	dir := workspace.New(t.TempDir())
	local := New(dir, WithClock(clock))

	c, err := local.ProposeImprovement(context.Background(), Challenge{
		ProposalID: "prop-123",
		Department: "engineering-team",
		Type:       "risk_identified",
		Notes:      "the sync has no retry",
		Risks:      []string{"data loss", "rate limits", "duplicate leads"},
	})
	require.NoError(t, err)
	assert.Len(t, c.ID, 8)
	assert.Equal(t, "approve_with_changes", c.Recommendation)
	assert.Equal(t, "high", c.Confidence)
	require.NotNil(t, c.RiskAssessment)
	assert.Equal(t, "high", c.RiskAssessment.Level)
	assert.Equal(t, ModeLocal, c.Mode)
	assert.True(t, dir.Exists("challenge_"+c.ID+".json"))

	lines := readLines(t, dir, ChallengesFile)
	require.Len(t, lines, 1)
	assert.Equal(t, "prop-123", lines[0]["proposal_id"])
	assert.Equal(t, "high", lines[0]["risk_assessment"].(map[string]any)["risk_level"])

	w := newMemWiki()
	remote := New(dir, WithWiki(w, targets()), WithClock(clock))
	c, err = remote.ProposeImprovement(context.Background(), Challenge{
		ProposalID: "prop-9", Department: "ops", Type: "question", Notes: "who owns this?",
	})
	require.NoError(t, err)
	assert.True(t, c.WikiLogged)
	assert.Nil(t, c.RiskAssessment)
	assert.Equal(t, []string{"Challenge: question for prop-9"}, w.created)
	assert.Len(t, readLines(t, dir, ChallengesFile), 1)

	_, err = local.ProposeImprovement(context.Background(), Challenge{
		ProposalID: "p", Department: "d", Type: "vibes", Notes: "n",
	})
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "q3_launch", Slug("Q3 Launch!"))
	assert.Equal(t, "unnamed", Slug("!!"))
}
