// Package logging provides the logger used across the module: go-logger's
// glog for structured JSON output and a plain text fallback.
package logging

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-logger/glog"
)

// Logger is the logging contract shared by every package.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
	WithContext(ctx context.Context) Logger
}

// FieldsLogger extends Logger with structured fields.
type FieldsLogger interface {
	WithFields(map[string]any) Logger
}

// Options selects the logger implementation.
type Options struct {
	Level  string
	Format string // "json" or "text"
	Writer io.Writer
}

// New returns a glog-backed logger for the json format and a FmtLogger otherwise.
func New(opts Options) Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	level := strings.ToLower(strings.TrimSpace(opts.Level))
	if level == "" {
		level = "info"
	}
	if strings.EqualFold(opts.Format, "text") {
		return NewFmtLogger(w).withLevel(level)
	}
	base := glog.NewLogger(
		glog.WithWriter(w),
		glog.WithLoggerTypeJSON(),
		glog.WithLevel(level),
	)
	return glogLogger{logger: base}
}

// With attaches fields when the logger supports them. A nil logger yields
// a FmtLogger on stderr.
func With(logger Logger, fields map[string]any) Logger {
	if logger == nil {
		logger = NewFmtLogger(nil)
	}
	if fl, ok := logger.(FieldsLogger); ok {
		return fl.WithFields(fields)
	}
	return logger
}

// Or returns logger, or a FmtLogger when it is nil.
func Or(logger Logger) Logger {
	if logger == nil {
		return NewFmtLogger(nil)
	}
	return logger
}

// Nop discards everything.
func Nop() Logger {
	return NewFmtLogger(io.Discard)
}

// ActivityLogName is the central log shared by the CLI, server and pipeline.
const ActivityLogName = "central_activity.log"

// OpenActivityLog opens <dir>/central_activity.log for appending.
func OpenActivityLog(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: create %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, ActivityLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open activity log: %w", err)
	}
	return f, nil
}

type glogLogger struct {
	logger glog.Logger
}

func (l glogLogger) Trace(msg string, args ...any) { l.logger.Trace(msg, args...) }
func (l glogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l glogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l glogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l glogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l glogLogger) Fatal(msg string, args ...any) { l.logger.Fatal(msg, args...) }

func (l glogLogger) WithContext(ctx context.Context) Logger {
	return glogLogger{logger: l.logger.WithContext(ctx)}
}

func (l glogLogger) WithFields(fields map[string]any) Logger {
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return glogLogger{logger: fl.WithFields(fields)}
	}
	return l
}

var levels = map[string]int{"trace": 0, "debug": 1, "info": 2, "warn": 3, "error": 4, "fatal": 5}

// FmtLogger writes one plain text line per entry.
type FmtLogger struct {
	out    io.Writer
	ctx    context.Context
	fields map[string]any
	min    int
}

// NewFmtLogger writes to stderr when out is nil. It logs every level.
func NewFmtLogger(out io.Writer) *FmtLogger {
	if out == nil {
		out = os.Stderr
	}
	return &FmtLogger{out: out, ctx: context.Background()}
}

func (l *FmtLogger) withLevel(level string) *FmtLogger {
	if n, ok := levels[level]; ok {
		l.min = n
	}
	return l
}

func (l *FmtLogger) Trace(msg string, args ...any) { l.log("trace", msg, args...) }
func (l *FmtLogger) Debug(msg string, args ...any) { l.log("debug", msg, args...) }
func (l *FmtLogger) Info(msg string, args ...any)  { l.log("info", msg, args...) }
func (l *FmtLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args...) }
func (l *FmtLogger) Error(msg string, args ...any) { l.log("error", msg, args...) }
func (l *FmtLogger) Fatal(msg string, args ...any) { l.log("fatal", msg, args...) }

func (l *FmtLogger) WithContext(ctx context.Context) Logger {
	cp := *l
	if ctx == nil {
		ctx = context.Background()
	}
	cp.ctx = ctx
	return &cp
}

// WithFields adds fields on a shallow-copy logger.
func (l *FmtLogger) WithFields(fields map[string]any) Logger {
	cp := *l
	cp.fields = make(map[string]any, len(l.fields)+len(fields))
	maps.Copy(cp.fields, l.fields)
	maps.Copy(cp.fields, fields)
	return &cp
}

func (l *FmtLogger) log(level, msg string, args ...any) {
	if levels[level] < l.min {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	line := fmt.Sprintf("%s %-5s %s", time.Now().UTC().Format(time.RFC3339), strings.ToUpper(level), strings.TrimSpace(msg))
	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, l.fields[k])
		}
		line += " " + strings.Join(parts, " ")
	}
	fmt.Fprintln(l.out, line)
}
