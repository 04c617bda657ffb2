package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Options{Level: "trace", Format: "json", Writer: buf})

	With(logger, map[string]any{"workflow_id": "wf-1"}).
		WithContext(context.Background()).
		Info("workflow deployed")

	out := buf.String()
	assert.NotEmpty(t, strings.TrimSpace(out))
	assert.Contains(t, out, "workflow_id")
	assert.Contains(t, out, "workflow deployed")
}

func TestTextLoggerFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(Options{Level: "debug", Format: "text", Writer: buf})

	With(logger, map[string]any{"b": 2, "a": 1}).Warn("slow %dms", 40)
	logger.Trace("hidden")

	out := buf.String()
	assert.Contains(t, out, "WARN  slow 40ms a=1 b=2")
	assert.NotContains(t, out, "hidden")
}

func TestWithFieldsDoesNotLeak(t *testing.T) {
	buf := &bytes.Buffer{}
	base := NewFmtLogger(buf)
	child := base.WithFields(map[string]any{"k": "v"})

	base.Info("parent")
	child.Info("child")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "k=v")
	assert.Contains(t, lines[1], "k=v")
}

func TestOrAndWithNil(t *testing.T) {
	assert.NotNil(t, Or(nil))
	assert.NotNil(t, With(nil, map[string]any{"k": 1}))
	Nop().Error("discarded")
}

func TestOpenActivityLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	f, err := OpenActivityLog(dir)
	require.NoError(t, err)

	logger := New(Options{Format: "text", Writer: f})
	logger.Info("first")
	require.NoError(t, f.Close())

	data, err := os.ReadFile(filepath.Join(dir, ActivityLogName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "INFO  first")
}
