// Package report builds the daily velocity brief from the ops journal and the
// document store.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/internal/logging"
	"github.com/meikuraledutech/workflow/internal/opslog"
	"github.com/meikuraledutech/workflow/internal/workspace"
)

const (
	BriefType  = "Velocity Report"
	dateLayout = "2006-01-02"
)

// Brief is one day's velocity report.
type Brief struct {
	Date        string    `json:"date"`
	Type        string    `json:"type"`
	GeneratedAt time.Time `json:"generated_at"`
	DatabaseID  string    `json:"database_id,omitempty"`
	Title       string    `json:"title"`
	Sections    Sections  `json:"sections"`
}

type Sections struct {
	ExecutionSpeed   string            `json:"execution_speed"`
	ShippedLast24h   []string          `json:"shipped_last_24h"`
	SystemHealth     map[string]string `json:"system_health"`
	StrategicAlerts  []string          `json:"strategic_alerts"`
	WeeklyDocsStatus string            `json:"weekly_docs_status"`
}

// FileName is where the brief for date is written.
func FileName(date time.Time) string {
	return "velocity_report_" + date.Format(dateLayout) + ".json"
}

// DaysUntilReview counts the days to the next Monday review. Monday itself
// is review day and yields 0.
func DaysUntilReview(date time.Time) int {
	sinceMonday := (int(date.Weekday()) + 6) % 7
	if sinceMonday == 0 {
		return 0
	}
	return 7 - sinceMonday
}

// Generator collects the inputs of a brief.
type Generator struct {
	Dir workspace.Dir
	// Store is optional; when set, documents updated in the window count
	// as shipped.
	Store      workflow.Store
	DatabaseID string
	// Departments always listed in the health section.
	Departments []string
	Logger      logging.Logger
	Now         func() time.Time
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// DailyBrief builds the brief for the 24 hours ending at the end of date and
// writes it into the work directory. It returns the brief and its path.
func (g *Generator) DailyBrief(ctx context.Context, date time.Time) (*Brief, string, error) {
	log := logging.Or(g.Logger)
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	until := day.AddDate(0, 0, 1)
	since := until.Add(-24 * time.Hour)
	inWindow := func(t time.Time) bool { return !t.Before(since) && t.Before(until) }

	shipped, err := g.shipped(ctx, inWindow)
	if err != nil {
		return nil, "", err
	}

	health := map[string]string{}
	for _, d := range g.Departments {
		health[d] = "🟢 Shipping"
	}
	var alerts []string
	err = g.Dir.ReadJSONL(opslog.ErrorsFile, func(line []byte) error {
		var e opslog.ErrorReport
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		if !inWindow(e.Timestamp) {
			return nil
		}
		switch e.Severity {
		case "critical", "high":
			health[e.Department] = "🔴 Failing"
			alerts = append(alerts, fmt.Sprintf("%s: %s (%s)", e.Source, e.Message, e.Severity))
		default:
			if health[e.Department] != "🔴 Failing" {
				health[e.Department] = "🟡 Degraded"
			}
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("report: read errors: %w", err)
	}
	if g.Dir.Exists(opslog.EscalationFlagFile) {
		alerts = append(alerts, "Escalation flag is raised")
	}
	if alerts == nil {
		alerts = []string{}
	}

	days := DaysUntilReview(day)
	b := &Brief{
		Date:        day.Format(dateLayout),
		Type:        BriefType,
		GeneratedAt: g.now(),
		DatabaseID:  g.DatabaseID,
		Title:       "🚀 Velocity Report - " + day.Format("Jan 02"),
		Sections: Sections{
			ExecutionSpeed:   speed(len(shipped)),
			ShippedLast24h:   shipped,
			SystemHealth:     health,
			StrategicAlerts:  alerts,
			WeeklyDocsStatus: fmt.Sprintf("Weekly Docs Check: %d days remaining", days),
		},
	}

	path, err := g.Dir.WriteJSON(FileName(day), b)
	if err != nil {
		return nil, "", err
	}
	log.Info("velocity report generated: %s", path)
	return b, path, nil
}

func (g *Generator) shipped(ctx context.Context, inWindow func(time.Time) bool) ([]string, error) {
	var out []string
	if g.Store != nil {
		recs, err := g.Store.ListDocuments(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			if inWindow(r.UpdatedAt) {
				out = append(out, "Workflow: "+r.Name)
			}
		}
	}
	err := g.Dir.ReadJSONL(opslog.ChangeLogFile, func(line []byte) error {
		var c opslog.Change
		if err := json.Unmarshal(line, &c); err != nil {
			return err
		}
		if c.ChangeType == "completion" && inWindow(c.Timestamp) {
			out = append(out, c.ProjectName+": "+c.Description)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("report: read change log: %w", err)
	}
	sort.Strings(out)
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func speed(shipped int) string {
	switch {
	case shipped >= 3:
		return "HIGH ⚡"
	case shipped >= 1:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
