// Package workspace reads and writes the artifact files that the pipeline
// stages hand to each other.
package workspace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Artifact file names.
const (
	RequirementsFile = "requirements.json"
	QuestionsFile    = "questions.json"
	WorkflowFile     = "workflow.json"
	DeploymentFile   = "deployment_info.json"
	WikiPageFile     = "notion_page_info.json"
	PerformanceFile  = "performance_report.json"
	SuggestionsFile  = "optimization_suggestions.md"
)

// Dir is a directory of artifacts. It is created on first write.
type Dir struct {
	root string
}

// New returns the directory at root, or the current one when root is empty.
func New(root string) Dir {
	if root == "" {
		root = "."
	}
	return Dir{root: root}
}

func (d Dir) Root() string { return d.root }

// Path joins name onto the directory.
func (d Dir) Path(name string) string {
	return filepath.Join(d.root, name)
}

// Exists reports whether name is present.
func (d Dir) Exists(name string) bool {
	_, err := os.Stat(d.Path(name))
	return err == nil
}

// WriteFile writes data to name and returns the full path.
func (d Dir) WriteFile(name string, data []byte) (string, error) {
	path := d.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("workspace: create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("workspace: write %s: %w", path, err)
	}
	return path, nil
}

// WriteJSON writes v indented by two spaces.
func (d Dir) WriteJSON(name string, v any) (string, error) {
	data, err := encode(v, "  ")
	if err != nil {
		return "", fmt.Errorf("workspace: encode %s: %w", name, err)
	}
	return d.WriteFile(name, data)
}

// ReadJSON decodes name into v. A missing file reports fs.ErrNotExist.
func (d Dir) ReadJSON(name string, v any) error {
	data, err := os.ReadFile(d.Path(name))
	if err != nil {
		return fmt.Errorf("workspace: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("workspace: decode %s: %w", name, err)
	}
	return nil
}

// AppendJSONL appends v as one line to name.
func (d Dir) AppendJSONL(name string, v any) error {
	line, err := encode(v, "")
	if err != nil {
		return fmt.Errorf("workspace: encode %s: %w", name, err)
	}
	path := d.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("workspace: create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("workspace: open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("workspace: append %s: %w", path, err)
	}
	return nil
}

// ReadJSONL decodes every line of name with fn. A missing file yields no lines.
func (d Dir) ReadJSONL(name string, fn func(line []byte) error) error {
	f, err := os.Open(d.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("workspace: open %s: %w", name, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}

func encode(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
