// Package config loads settings from an optional YAML file, a .env file and
// the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all settings for the CLI and the server.
type Config struct {
	WorkDir  string         `yaml:"work_dir" json:"work_dir" validate:"required"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Platform PlatformConfig `yaml:"platform" json:"platform"`
	LLM      LLMConfig      `yaml:"llm" json:"llm"`
	Wiki     WikiConfig     `yaml:"wiki" json:"wiki"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `yaml:"format" json:"format" validate:"oneof=json text"`
	Dir    string `yaml:"dir" json:"dir"`
}

// PlatformConfig points at the automation platform's REST API.
type PlatformConfig struct {
	URL     string        `yaml:"url" json:"url" validate:"required,url"`
	APIKey  string        `yaml:"api_key" json:"api_key"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
}

// LLMConfig configures the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url" validate:"required,url"`
	APIKey  string        `yaml:"api_key" json:"api_key"`
	Model   string        `yaml:"model" json:"model" validate:"required"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
}

// WikiConfig configures the Notion workspace. Empty database ids disable
// the matching wiki writes.
type WikiConfig struct {
	BaseURL         string        `yaml:"base_url" json:"base_url" validate:"required,url"`
	APIKey          string        `yaml:"api_key" json:"api_key"`
	Version         string        `yaml:"version" json:"version" validate:"required"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	WorkflowsDB     string        `yaml:"workflows_db" json:"workflows_db"`
	ProjectsDB      string        `yaml:"projects_db" json:"projects_db"`
	TasksDB         string        `yaml:"tasks_db" json:"tasks_db"`
	ImprovementsDB  string        `yaml:"improvements_db" json:"improvements_db"`
	ExecutivePageID string        `yaml:"executive_page_id" json:"executive_page_id"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" json:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `yaml:"dsn" json:"dsn" validate:"required"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr" json:"addr" validate:"required"`
	BriefCron string `yaml:"brief_cron" json:"brief_cron"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		WorkDir: ".",
		Log:     LogConfig{Level: "info", Format: "json", Dir: "logs"},
		Platform: PlatformConfig{
			URL:     "http://localhost:5678",
			Timeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "google/gemini-2.0-flash-exp:free",
			Timeout: 60 * time.Second,
		},
		Wiki: WikiConfig{
			BaseURL: "https://api.notion.com/v1",
			Version: "2022-06-28",
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "workflows.db"},
		Server:   ServerConfig{Addr: ":8080"},
	}
}

// Load builds the configuration. path may be empty; a missing .env file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CategoryBadInput, "config: read "+path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CategoryBadInput, "config: parse "+path)
		}
	}

	_ = godotenv.Load()
	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			} else if secs, err := strconv.Atoi(v); err == nil {
				*dst = time.Duration(secs) * time.Second
			}
		}
	}

	str("WORKDIR", &c.WorkDir)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_DIR", &c.Log.Dir)

	str("N8N_API_URL", &c.Platform.URL)
	str("N8N_API_KEY", &c.Platform.APIKey)
	dur("N8N_TIMEOUT", &c.Platform.Timeout)

	str("OPENROUTER_BASE_URL", &c.LLM.BaseURL)
	str("OPENROUTER_API_KEY", &c.LLM.APIKey)
	str("OPENROUTER_MODEL", &c.LLM.Model)
	dur("OPENROUTER_TIMEOUT", &c.LLM.Timeout)

	str("NOTION_BASE_URL", &c.Wiki.BaseURL)
	str("NOTION_API_KEY", &c.Wiki.APIKey)
	str("NOTION_WORKFLOWS_DB_ID", &c.Wiki.WorkflowsDB)
	str("NOTION_PROJECTS_DB_ID", &c.Wiki.ProjectsDB)
	str("NOTION_TASKS_DB_ID", &c.Wiki.TasksDB)
	str("NOTION_IMPROVEMENTS_DB_ID", &c.Wiki.ImprovementsDB)
	str("NOTION_EXECUTIVE_PAGE_ID", &c.Wiki.ExecutivePageID)

	str("DATABASE_URL", &c.Database.DSN)
	if v, ok := lookup("DATABASE_DRIVER"); ok && v != "" {
		c.Database.Driver = v
	} else if isPostgresDSN(c.Database.DSN) {
		c.Database.Driver = "postgres"
	}
	str("SERVER_ADDR", &c.Server.Addr)
	str("BRIEF_CRON", &c.Server.BriefCron)

	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
}

// isPostgresDSN reports a postgres:// or postgresql:// connection URL.
func isPostgresDSN(dsn string) bool {
	dsn = strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks every field rule and reports all failures at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Wrap(err, apperrors.CategoryInternal, "config: validate")
	}

	fields := make(map[string]string, len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		path := strings.TrimPrefix(fe.Namespace(), "Config.")
		fields[path] = fe.Tag()
		msgs = append(msgs, fmt.Sprintf("%s failed %q", path, fe.Tag()))
	}
	return apperrors.New("config: "+strings.Join(msgs, "; "), apperrors.CategoryValidation).
		WithTextCode("CONFIG_INVALID").
		WithMetadata(map[string]any{"fields": fields})
}

// WikiEnabled reports whether wiki writes can be attempted at all.
func (c *Config) WikiEnabled() bool {
	return c.Wiki.APIKey != ""
}

// LLMEnabled reports whether an API key for the completion endpoint is set.
func (c *Config) LLMEnabled() bool {
	return c.LLM.APIKey != ""
}
