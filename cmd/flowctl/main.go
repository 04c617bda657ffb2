// Command flowctl builds, deploys and documents automation workflows and
// keeps the ops journal.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/meikuraledutech/workflow/internal/app"
)

// Globals are flags shared by every command.
type Globals struct {
	Config string `help:"Path to the YAML config file." type:"path" env:"FLOWCTL_CONFIG"`
}

// session is handed to every command. The app is loaded on first use so
// commands that only touch local files need no configuration.
type session struct {
	globals *Globals
	out     io.Writer
	app     *app.App
}

func (s *session) App() (*app.App, error) {
	if s.app != nil {
		return s.app, nil
	}
	a, err := app.New(s.globals.Config)
	if err != nil {
		return nil, err
	}
	s.app = a
	return a, nil
}

func (s *session) Close() error {
	if s.app == nil {
		return nil
	}
	return s.app.Close()
}

func (s *session) printJSON(v any) error {
	enc := json.NewEncoder(s.out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readInput returns the contents of arg when it names a file, and arg itself
// otherwise.
func readInput(arg string) (string, error) {
	if fi, err := os.Stat(arg); err == nil && !fi.IsDir() {
		data, err := os.ReadFile(arg)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return strings.TrimSpace(arg), nil
}

type CLI struct {
	Globals

	Build    BuildCmd    `cmd:"" help:"Build a workflow document from a YAML or JSON blueprint."`
	Inspect  InspectCmd  `cmd:"" help:"Summarise a workflow document."`
	Sanitize SanitizeCmd `cmd:"" help:"Strip a workflow down to what the platform API accepts."`
	Parse    ParseCmd    `cmd:"" help:"Turn a natural language request into structured requirements."`
	Generate GenerateCmd `cmd:"" help:"Generate the AI agent workflow for a requirements file."`
	Deploy   DeployCmd   `cmd:"" help:"Create or update a workflow on the platform."`
	Docs     DocsCmd     `cmd:"" help:"Publish workflow documentation to the wiki."`
	Analyze  AnalyzeCmd  `cmd:"" help:"Report on recent executions and suggest improvements."`
	Pipeline PipelineCmd `cmd:"" help:"Run parse, generate, deploy and docs in one go."`

	LogChange          LogChangeCmd          `cmd:"" help:"Log a change to a project."`
	NotifyError        NotifyErrorCmd        `cmd:"" help:"Record a failure and escalate critical ones."`
	TrackProject       TrackProjectCmd       `cmd:"" help:"Create or update a tracked project."`
	UpdateTask         UpdateTaskCmd         `cmd:"" help:"Move a task to a new status."`
	LogImprovement     LogImprovementCmd     `cmd:"" help:"File an improvement idea."`
	RequestIntegration RequestIntegrationCmd `cmd:"" help:"Ask for a new app integration."`
	ProposeImprovement ProposeImprovementCmd `cmd:"" help:"Challenge a proposal with risks or an alternative."`
	WikiCheck          WikiCheckCmd          `cmd:"" help:"Check the wiki key and access to the configured pages."`
	Brief              BriefCmd              `cmd:"" help:"Generate the daily velocity brief."`
}

func newParser(cli *CLI, ctx context.Context, s *session) (*kong.Kong, error) {
	s.globals = &cli.Globals
	return kong.New(cli,
		kong.Name("flowctl"),
		kong.Description("Build, deploy and document automation workflows."),
		kong.UsageOnError(),
		kong.Bind(s),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	s := &session{out: os.Stdout}
	parser, err := newParser(&cli, ctx, s)
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	err = kctx.Run()
	_ = s.Close()
	kctx.FatalIfErrorf(err)
}
