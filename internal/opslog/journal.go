// Package opslog records project changes, errors, task moves and
// improvement ideas. Entries go to the wiki when it is configured and the
// target page exists; otherwise they land in local JSON files.
package opslog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/goliatone/go-errors"

	"github.com/meikuraledutech/workflow/internal/logging"
	"github.com/meikuraledutech/workflow/internal/wiki"
	"github.com/meikuraledutech/workflow/internal/workspace"
)

// Local fallback files.
const (
	ChangeLogFile          = "change_log.jsonl"
	ErrorsFile             = "errors.jsonl"
	EscalationFlagFile     = "ESCALATION_NEEDED.flag"
	TaskUpdatesFile        = "task_updates.jsonl"
	ImprovementsFile       = "improvements.jsonl"
	IntegrationRequestFile = "integration_requests.jsonl"

	ModeLocal = "local_fallback"
)

// Wiki is the subset of the wiki client the journal writes through.
type Wiki interface {
	FindByTitle(ctx context.Context, databaseID, title string) (*wiki.Page, error)
	CreatePage(ctx context.Context, databaseID, title string, props map[string]any, children []wiki.Block) (*wiki.Page, error)
	UpdatePage(ctx context.Context, pageID string, props map[string]any) (*wiki.Page, error)
	AppendBlocks(ctx context.Context, blockID string, blocks []wiki.Block) error
}

// Targets names the wiki databases and pages entries are written to.
// Empty ids send the matching entries to local files.
type Targets struct {
	ProjectsDB      string
	TasksDB         string
	ImprovementsDB  string
	ExecutivePageID string
}

// Journal writes ops entries.
type Journal struct {
	dir      workspace.Dir
	wiki     Wiki
	targets  Targets
	logger   logging.Logger
	validate *validator.Validate
	now      func() time.Time
}

type Option func(*Journal)

// WithWiki enables wiki writes. A nil w keeps everything local.
func WithWiki(w Wiki, t Targets) Option {
	return func(j *Journal) {
		j.wiki = w
		j.targets = t
	}
}

// WithLogger sets the journal logger.
func WithLogger(l logging.Logger) Option {
	return func(j *Journal) { j.logger = logging.Or(l) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// New returns a journal writing local files under dir.
func New(dir workspace.Dir, opts ...Option) *Journal {
	j := &Journal{
		dir:      dir,
		logger:   logging.Nop(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
	for _, o := range opts {
		o(j)
	}
	return j
}

func (j *Journal) check(v any) error {
	err := j.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Wrap(err, apperrors.CategoryInternal, "opslog: validate")
	}
	fields := make(map[string]string, len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return apperrors.New("opslog: "+strings.Join(msgs, "; "), apperrors.CategoryValidation).
		WithTextCode("OPSLOG_INVALID_ENTRY").
		WithMetadata(map[string]any{"fields": fields})
}

func (j *Journal) scoped(department, action string) logging.Logger {
	return logging.With(j.logger, map[string]any{"department": department, "action": action})
}

// findPage looks up title in databaseID. A nil page means the entry should
// go to the local fallback.
func (j *Journal) findPage(ctx context.Context, log logging.Logger, databaseID, title string) *wiki.Page {
	if j.wiki == nil || databaseID == "" {
		return nil
	}
	page, err := j.wiki.FindByTitle(ctx, databaseID, title)
	if err != nil {
		log.Error("wiki lookup of %q failed: %v", title, err)
		return nil
	}
	if page == nil {
		log.Warn("wiki page not found: %s", title)
	}
	return page
}

var slugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a name into a file-name-safe token.
func Slug(name string) string {
	s := slugChars.ReplaceAllString(strings.ToLower(name), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unnamed"
	}
	return s
}
