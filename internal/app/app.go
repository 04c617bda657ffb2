// Package app builds the shared services of the CLI and the server from a
// loaded configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/internal/config"
	"github.com/meikuraledutech/workflow/internal/llm"
	"github.com/meikuraledutech/workflow/internal/logging"
	"github.com/meikuraledutech/workflow/internal/opslog"
	"github.com/meikuraledutech/workflow/internal/platform"
	"github.com/meikuraledutech/workflow/internal/wiki"
	"github.com/meikuraledutech/workflow/internal/workspace"
	"github.com/meikuraledutech/workflow/postgres"
	"github.com/meikuraledutech/workflow/sqlite"
)

// App holds the configuration and the clients derived from it. Clients are
// created on first use so commands only need the settings they touch.
type App struct {
	Config *config.Config
	Logger logging.Logger

	closers []io.Closer
}

// New loads the configuration at path and sets up logging. Log lines go to
// stderr and to the central activity log.
func New(path string) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg}

	var w io.Writer = os.Stderr
	if cfg.Log.Dir != "" {
		f, err := logging.OpenActivityLog(cfg.Log.Dir)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, f)
		w = io.MultiWriter(os.Stderr, f)
	}
	a.Logger = logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: w})
	return a, nil
}

// Close releases files and pools opened by the app.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

type closerFunc func()

func (f closerFunc) Close() error { f(); return nil }

// Dir is the work directory.
func (a *App) Dir() workspace.Dir { return workspace.New(a.Config.WorkDir) }

// Store opens the configured document store and creates its schema.
func (a *App) Store(ctx context.Context) (workflow.Store, error) {
	db := a.Config.Database
	var store workflow.Store
	switch db.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, db.DSN)
		if err != nil {
			return nil, fmt.Errorf("workflow: connect postgres: %w", err)
		}
		a.closers = append(a.closers, closerFunc(pool.Close))
		store = postgres.New(pool)
	default:
		s, err := sqlite.Open(db.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		store = s
	}
	if err := store.CreateSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// Platform returns a client for the automation platform API.
func (a *App) Platform() (*platform.Client, error) {
	p := a.Config.Platform
	return platform.NewClient(platform.Options{URL: p.URL, APIKey: p.APIKey, Timeout: p.Timeout}, a.Logger)
}

func (a *App) Deployer(noUpdate bool) (*platform.Deployer, error) {
	c, err := a.Platform()
	if err != nil {
		return nil, err
	}
	d := platform.NewDeployer(c, a.Logger)
	d.NoUpdate = noUpdate
	return d, nil
}

// LLM returns the completion client.
func (a *App) LLM() (*llm.Client, error) {
	l := a.Config.LLM
	return llm.NewClient(llm.Options{BaseURL: l.BaseURL, APIKey: l.APIKey, Model: l.Model, Timeout: l.Timeout})
}

func (a *App) Analyst() (*llm.Analyst, error) {
	c, err := a.LLM()
	if err != nil {
		return nil, err
	}
	return llm.NewAnalyst(c, a.Logger), nil
}

// Wiki returns the Notion client.
func (a *App) Wiki() (*wiki.Client, error) {
	w := a.Config.Wiki
	return wiki.NewClient(wiki.Options{BaseURL: w.BaseURL, APIKey: w.APIKey, Version: w.Version, Timeout: w.Timeout}, a.Logger)
}

// Journal writes through the wiki when an API key is configured and keeps
// everything local otherwise.
func (a *App) Journal() *opslog.Journal {
	opts := []opslog.Option{opslog.WithLogger(a.Logger)}
	if a.Config.WikiEnabled() {
		if c, err := a.Wiki(); err == nil {
			w := a.Config.Wiki
			opts = append(opts, opslog.WithWiki(c, opslog.Targets{
				ProjectsDB:      w.ProjectsDB,
				TasksDB:         w.TasksDB,
				ImprovementsDB:  w.ImprovementsDB,
				ExecutivePageID: w.ExecutivePageID,
			}))
		}
	}
	return opslog.New(a.Dir(), opts...)
}
