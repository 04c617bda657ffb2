package report

import (
	"context"
	"fmt"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/meikuraledutech/workflow/internal/logging"
)

// Scheduler runs jobs on cron expressions.
type Scheduler struct {
	cron    *rcron.Cron
	logger  logging.Logger
	timeout time.Duration
}

// NewScheduler uses the standard five-field parser in loc. A nil loc means
// time.Local.
func NewScheduler(logger logging.Logger, loc *time.Location) *Scheduler {
	logger = logging.Or(logger)
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{logger}
	return &Scheduler{
		cron: rcron.New(
			rcron.WithLocation(loc),
			rcron.WithLogger(cl),
			rcron.WithChain(rcron.Recover(cl), rcron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		timeout: 5 * time.Minute,
	}
}

// Schedule registers fn under spec. Each run gets its own context bounded by
// the scheduler timeout.
func (s *Scheduler) Schedule(spec, name string, fn func(context.Context) error) (rcron.EntryID, error) {
	if spec == "" {
		return 0, fmt.Errorf("report: cron expression cannot be empty")
	}
	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Error("scheduled job %s failed: %v", name, err)
			return
		}
		s.logger.Debug("scheduled job %s finished", name)
	})
	if err != nil {
		return 0, fmt.Errorf("report: schedule %s: %w", name, err)
	}
	return id, nil
}

// ScheduleBrief regenerates the brief for the current day on spec.
func (s *Scheduler) ScheduleBrief(spec string, g *Generator) (rcron.EntryID, error) {
	return s.Schedule(spec, "daily_brief", func(ctx context.Context) error {
		_, _, err := g.DailyBrief(ctx, g.now())
		return err
	})
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next activation of entry id, or the zero time.
func (s *Scheduler) Next(id rcron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

type cronLogger struct {
	l logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron %s %v", msg, keysAndValues)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron %s: %v %v", msg, err, keysAndValues)
}
