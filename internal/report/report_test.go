package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/internal/opslog"
	"github.com/meikuraledutech/workflow/internal/workspace"
)

type listStore struct {
	workflow.Store
	records []workflow.Record
}

func (s listStore) ListDocuments(context.Context) ([]workflow.Record, error) {
	return s.records, nil
}

func day(d int, hour int) time.Time {
	return time.Date(2026, 3, d, hour, 0, 0, 0, time.UTC)
}

func TestDaysUntilReview(t *testing.T) {
	assert.Equal(t, 0, DaysUntilReview(day(2, 9)))
	assert.Equal(t, 6, DaysUntilReview(day(3, 9)))
	assert.Equal(t, 2, DaysUntilReview(day(7, 9)))
	assert.Equal(t, 1, DaysUntilReview(day(8, 9)))
}

func TestDailyBrief(t *testing.T) {
	dir := workspace.New(t.TempDir())
	ctx := context.Background()

	at := day(3, 10)
	j := opslog.New(dir, opslog.WithClock(func() time.Time { return at }))
	_, err := j.LogChange(ctx, opslog.Change{ProjectName: "CRM", Description: "sync live", Department: "eng", ChangeType: "completion"})
	require.NoError(t, err)
	_, err = j.LogChange(ctx, opslog.Change{ProjectName: "CRM", Description: "tweak", Department: "eng"})
	require.NoError(t, err)
	_, err = j.NotifyError(ctx, opslog.ErrorReport{Source: "Lead Alert", Department: "sales", Message: "timeout", Severity: "high"})
	require.NoError(t, err)
	_, err = j.NotifyError(ctx, opslog.ErrorReport{Source: "Digest", Department: "ops", Message: "slow", Severity: "low"})
	require.NoError(t, err)

	at = day(1, 10)
	_, err = j.NotifyError(ctx, opslog.ErrorReport{Source: "Old", Department: "eng", Message: "gone", Severity: "critical"})
	require.NoError(t, err)

	g := &Generator{
		Dir: dir,
		Store: listStore{records: []workflow.Record{
			{Name: "Lead Alert", UpdatedAt: day(3, 8)},
			{Name: "Stale", UpdatedAt: day(1, 8)},
		}},
		DatabaseID:  "db-brief",
		Departments: []string{"eng", "sales"},
		Now:         func() time.Time { return day(3, 18) },
	}

	b, path, err := g.DailyBrief(ctx, day(3, 18))
	require.NoError(t, err)
	assert.Equal(t, dir.Path("velocity_report_2026-03-03.json"), path)

	assert.Equal(t, "2026-03-03", b.Date)
	assert.Equal(t, BriefType, b.Type)
	assert.Equal(t, "🚀 Velocity Report - Mar 03", b.Title)
	assert.Equal(t, []string{"CRM: sync live", "Workflow: Lead Alert"}, b.Sections.ShippedLast24h)
	assert.Equal(t, "MEDIUM", b.Sections.ExecutionSpeed)
	assert.Equal(t, "🟢 Shipping", b.Sections.SystemHealth["eng"])
	assert.Equal(t, "🔴 Failing", b.Sections.SystemHealth["sales"])
	assert.Equal(t, "🟡 Degraded", b.Sections.SystemHealth["ops"])
	assert.Equal(t, []string{"Lead Alert: timeout (high)", "Escalation flag is raised"}, b.Sections.StrategicAlerts)
	assert.Equal(t, "Weekly Docs Check: 6 days remaining", b.Sections.WeeklyDocsStatus)

	var back Brief
	require.NoError(t, dir.ReadJSON(FileName(day(3, 0)), &back))
	assert.Equal(t, b.Title, back.Title)
}

func TestDailyBriefEmpty(t *testing.T) {
	g := &Generator{Dir: workspace.New(t.TempDir())}
	b, _, err := g.DailyBrief(context.Background(), day(2, 9))
	require.NoError(t, err)
	assert.Equal(t, "LOW", b.Sections.ExecutionSpeed)
	assert.Empty(t, b.Sections.ShippedLast24h)
	assert.NotNil(t, b.Sections.StrategicAlerts)
	assert.Equal(t, "Weekly Docs Check: 0 days remaining", b.Sections.WeeklyDocsStatus)
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := NewScheduler(nil, time.UTC)

	_, err := s.Schedule("", "none", nil)
	assert.Error(t, err)
	_, err = s.Schedule("not a spec", "bad", func(context.Context) error { return nil })
	assert.Error(t, err)

	ran := make(chan struct{}, 1)
	id, err := s.Schedule("@every 1s", "tick", func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, err)

	s.Start()
	assert.False(t, s.Next(id).IsZero())
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestScheduleBrief(t *testing.T) {
	s := NewScheduler(nil, time.UTC)
	g := &Generator{Dir: workspace.New(t.TempDir())}
	_, err := s.ScheduleBrief("0 7 * * *", g)
	require.NoError(t, err)
}
