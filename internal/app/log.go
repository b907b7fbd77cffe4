package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LogFileName is the name of the log file inside the log directory.
const LogFileName = "reel.log"

// logOutput is one destination of a reelHandler with its minimum level.
type logOutput struct {
	w   io.Writer
	min slog.Level
}

// reelHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<opID>\t<message>\t<key=value ...>
//
// Each output only receives records at or above its level.
type reelHandler struct {
	outputs []logOutput
	opID    string
	attrs   []slog.Attr
	group   string
}

func (h *reelHandler) Enabled(_ context.Context, level slog.Level) bool {
	for _, o := range h.outputs {
		if level >= o.min {
			return true
		}
	}
	return false
}

func (h *reelHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	fmt.Fprintf(&b, "%s\t%s\t%s\t%s", ts, r.Level.String(), h.opID, r.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		fmt.Fprintf(&b, "\t%s=%v", key, a.Value)
		return true
	})
	b.WriteByte('\n')
	line := b.String()

	for _, o := range h.outputs {
		if r.Level < o.min {
			continue
		}
		if _, err := io.WriteString(o.w, line); err != nil {
			return err
		}
	}
	return nil
}

func (h *reelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefixed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		prefixed[i] = a
	}
	return &reelHandler{
		outputs: h.outputs,
		opID:    h.opID,
		attrs:   append(append([]slog.Attr{}, h.attrs...), prefixed...),
		group:   h.group,
	}
}

func (h *reelHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &reelHandler{outputs: h.outputs, opID: h.opID, attrs: h.attrs, group: group}
}

// newLogger creates a structured logger writing everything to logDir/reel.log
// and warnings and errors to stderr. It returns the slog.Logger, the open log
// file (for cleanup), and any error.
func newLogger(logDir string, opID string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, LogFileName)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	handler := &reelHandler{
		outputs: []logOutput{
			{w: f, min: slog.LevelDebug},
			{w: os.Stderr, min: slog.LevelWarn},
		},
		opID: opID,
	}
	return slog.New(handler), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the reel.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
