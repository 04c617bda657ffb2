package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.LLM.BaseURL)
	assert.False(t, cfg.WikiEnabled())
	assert.False(t, cfg.LLMEnabled())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flowctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
work_dir: /srv/flows
log:
  level: debug
  format: text
platform:
  url: http://n8n.internal:5678
  timeout: 5s
wiki:
  workflows_db: db-workflows
database:
  driver: postgres
  dsn: postgres://localhost/flows
`), 0o644))

	t.Setenv("N8N_API_KEY", "secret")
	t.Setenv("OPENROUTER_MODEL", "openai/gpt-4o")
	t.Setenv("NOTION_API_KEY", "notion-key")
	t.Setenv("LOG_LEVEL", "WARN")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/flows", cfg.WorkDir)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "http://n8n.internal:5678", cfg.Platform.URL)
	assert.Equal(t, "secret", cfg.Platform.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Platform.Timeout)
	assert.Equal(t, "openai/gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "db-workflows", cfg.Wiki.WorkflowsDB)
	assert.Equal(t, "2022-06-28", cfg.Wiki.Version)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.WikiEnabled())
}

func TestApplyEnvDurations(t *testing.T) {
	cfg := Default()
	env := map[string]string{"N8N_TIMEOUT": "45", "OPENROUTER_TIMEOUT": "2m", "NOTION_TASKS_DB_ID": "tasks"}
	cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, 45*time.Second, cfg.Platform.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.LLM.Timeout)
	assert.Equal(t, "tasks", cfg.Wiki.TasksDB)
}

func TestDatabaseDriverFollowsURL(t *testing.T) {
	load := func(env map[string]string) Config {
		cfg := Default()
		cfg.applyEnv(func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		})
		return cfg
	}

	cfg := load(map[string]string{"DATABASE_URL": "postgres://user:pw@localhost:5432/flows"})
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://user:pw@localhost:5432/flows", cfg.Database.DSN)

	cfg = load(map[string]string{"DATABASE_URL": "postgresql://localhost/flows"})
	assert.Equal(t, "postgres", cfg.Database.Driver)

	cfg = load(map[string]string{"DATABASE_URL": "/var/lib/flows.db"})
	assert.Equal(t, "sqlite", cfg.Database.Driver)

	cfg = load(map[string]string{"DATABASE_URL": "postgres://localhost/flows", "DATABASE_DRIVER": "sqlite"})
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestValidateReportsFields(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.Platform.URL = "not a url"
	cfg.Database.Driver = "mysql"

	err := cfg.Validate()
	require.Error(t, err)

	var ae *apperrors.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "CONFIG_INVALID", ae.TextCode)
	assert.Equal(t, apperrors.CategoryValidation, ae.Category)

	fields := ae.Metadata["fields"].(map[string]string)
	assert.Equal(t, "oneof", fields["log.level"])
	assert.Equal(t, "url", fields["platform.url"])
	assert.Equal(t, "oneof", fields["database.driver"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
