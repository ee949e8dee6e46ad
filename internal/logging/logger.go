package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Options describes logger construction parameters.
type Options struct {
	Level string
	// Format applies to OutputPaths: "console" (default) or "json".
	Format      string
	OutputPaths []string
	// File, when set, always receives JSON lines regardless of Format so
	// `comicdl logs` can parse it offline.
	File        string
	Development bool
	// Hub, when set, receives a copy of every record for log streaming.
	Hub *StreamHub
}

// New builds a logger writing to every configured sink. With neither
// OutputPaths nor File it writes to stdout.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	addSource := opts.Development || level.Level() <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	var build func(io.Writer, *slog.LevelVar, bool) slog.Handler
	switch format {
	case "", "console":
		build = newConsoleHandler
	case "json":
		build = newJSONHandler
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	paths := opts.OutputPaths
	if len(paths) == 0 && strings.TrimSpace(opts.File) == "" {
		paths = []string{"stdout"}
	}

	var handlers []slog.Handler
	if w, err := openWriters(paths); err != nil {
		return nil, err
	} else if w != nil {
		handlers = append(handlers, build(w, level, addSource))
	}
	if file := strings.TrimSpace(opts.File); file != "" {
		w, err := openWriters([]string{file})
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, newJSONHandler(w, level, addSource))
	}

	handler := newFanoutHandler(handlers...)
	if opts.Hub != nil {
		handler = newStreamHandler(handler, opts.Hub)
	}
	return slog.New(handler), nil
}

// DaemonLogPath returns the per-run daemon log file name under logDir.
func DaemonLogPath(logDir string, started time.Time) string {
	return filepath.Join(logDir, "comicdl-"+started.UTC().Format("20060102T150405")+".log")
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	switch s := strings.ToLower(strings.TrimSpace(level)); s {
	case "warning":
		return slog.LevelWarn
	default:
		if err := l.UnmarshalText([]byte(s)); err != nil {
			return slog.LevelInfo
		}
		return l
	}
}

// openWriters opens each distinct path; "stdout" and "stderr" name the
// process streams. It returns nil when paths is empty.
func openWriters(paths []string) (io.Writer, error) {
	seen := make(map[string]bool, len(paths))
	var writers []io.Writer
	for _, raw := range paths {
		path := strings.TrimSpace(raw)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true

		switch path {
		case "stdout":
			writers = append(writers, os.Stdout)
			continue
		case "stderr":
			writers = append(writers, os.Stderr)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		writers = append(writers, file)
	}
	switch len(writers) {
	case 0:
		return nil, nil
	case 1:
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

// newJSONHandler writes the on-disk shape: ts in RFC3339 UTC, lowercase
// level, and source as file:line.
func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	replace := func(_ []string, attr slog.Attr) slog.Attr {
		switch attr.Key {
		case slog.TimeKey:
			attr.Key = "ts"
			if attr.Value.Kind() == slog.KindTime {
				attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
			}
		case slog.LevelKey:
			attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
		case slog.SourceKey:
			if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
				attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
			}
		}
		return attr
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, AddSource: addSource, ReplaceAttr: replace})
}
