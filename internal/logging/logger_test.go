package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"comicdl/internal/logging"
	"comicdl/internal/services"
)

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "download").Info("episode finished",
		logging.Int64(logging.FieldEpisodeID, 9),
		logging.String("title", "Chapter 1"),
	)
	logger.Debug("hidden")

	content := readFile(t, logPath)
	if !strings.Contains(content, "INFO download: episode finished") {
		t.Fatalf("unexpected console line: %q", content)
	}
	if !strings.Contains(content, "episode_id=9") || !strings.Contains(content, `title="Chapter 1"`) {
		t.Fatalf("expected fields in console line: %q", content)
	}
	if strings.Contains(content, "hidden") {
		t.Fatalf("debug line should be filtered at info level: %q", content)
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no source information at info level: %q", content)
	}
}

func TestJSONLoggerKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("careful")

	content := readFile(t, logPath)
	for _, fragment := range []string{`"ts":`, `"level":"warn"`, `"msg":"careful"`, `"source":"logger_test.go:`} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %s in %q", fragment, content)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	hub := logging.NewStreamHub(10)
	logger, err := logging.New(logging.Options{OutputPaths: []string{filepath.Join(t.TempDir(), "x.log")}, Hub: hub})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := services.WithEpisodeID(context.Background(), 77)
	ctx = services.WithRequestID(ctx, "req-1")
	logging.WithContext(ctx, logger).Info("hello")

	events, _ := hub.Tail(1)
	if len(events) != 1 {
		t.Fatalf("expected one streamed event, got %d", len(events))
	}
	if events[0].EpisodeID != 77 || events[0].CorrelationID != "req-1" {
		t.Fatalf("unexpected streamed event: %+v", events[0])
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	hub := logging.NewStreamHub(10)
	logger, err := logging.New(logging.Options{OutputPaths: []string{filepath.Join(t.TempDir(), "w.log")}, Hub: hub})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.WarnWithContext(logger, "slow", "image_slow")

	events, _ := hub.Tail(1)
	fields := events[0].Fields
	if fields[logging.FieldEventType] != "image_slow" || fields[logging.FieldErrorHint] == "" || fields[logging.FieldImpact] == "" {
		t.Fatalf("expected defaulted fields, got %v", fields)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "comicdl-old.log")
	keepPath := filepath.Join(dir, "comicdl-current.log")
	otherPath := filepath.Join(dir, "notes.txt")
	for _, p := range []string{oldPath, keepPath, otherPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, p := range []string{oldPath, keepPath, otherPath} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	logging.CleanupOldLogs(logging.NewNop(), 5, dir, "comicdl-*.log", keepPath)

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, err=%v", err)
	}
	for _, p := range []string{keepPath, otherPath} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s to remain: %v", p, err)
		}
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
