package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"comicdl/internal/api"
	"comicdl/internal/config"
	"comicdl/internal/preflight"
	"comicdl/internal/queue"
)

// Severities used by StatusLine and DependencySummary.
const (
	SeverityOK    = "ok"
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

// StatusLine is one labeled row of the status report.
type StatusLine struct {
	Label    string `json:"label" yaml:"label"`
	Severity string `json:"severity" yaml:"severity"`
	Detail   string `json:"detail" yaml:"detail"`
}

type DependencySummary struct {
	Total           int    `json:"total" yaml:"total"`
	Available       int    `json:"available" yaml:"available"`
	MissingRequired int    `json:"missingRequired" yaml:"missing_required"`
	MissingOptional int    `json:"missingOptional" yaml:"missing_optional"`
	Severity        string `json:"severity" yaml:"severity"`
	Detail          string `json:"detail" yaml:"detail"`
}

// StatusSnapshot is the daemon status plus the checks the CLI can make on
// its own when the daemon is offline.
type StatusSnapshot struct {
	Daemon            api.DaemonStatus  `json:"daemon" yaml:"daemon"`
	QueueStats        map[string]int    `json:"queueStats" yaml:"queue_stats"`
	SystemChecks      []StatusLine      `json:"systemChecks" yaml:"system_checks"`
	Directories       []StatusLine      `json:"directories" yaml:"directories"`
	DependencySummary DependencySummary `json:"dependencySummary" yaml:"dependency_summary"`
}

// BuildStatusSnapshot asks the daemon for its status. When it is not
// running, queue counts come straight from the history database and
// dependencies are checked locally.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	var snap StatusSnapshot
	if status, err := probe(cfg.SocketPath()); err == nil {
		snap.Daemon = *status
	}
	if snap.Daemon.Running {
		snap.QueueStats = snap.Daemon.Workflow.QueueStats
	} else {
		snap.QueueStats = readQueueStats(ctx, cfg)
		snap.Daemon.QueueDBPath = cfg.DatabasePath()
		snap.Daemon.LockFilePath = cfg.LockPath()
	}
	if len(snap.Daemon.Dependencies) == 0 {
		snap.Daemon.Dependencies = api.FromDependencies(preflight.CheckSystemDeps(cfg))
	}
	snap.SystemChecks = systemChecks(cfg, snap.Daemon)
	snap.Directories = directoryChecks(cfg)
	snap.DependencySummary = BuildDependencySummary(snap.Daemon.Dependencies)
	return &snap, nil
}

// readQueueStats returns nil when the database does not exist yet or cannot
// be read within two seconds.
func readQueueStats(ctx context.Context, cfg *config.Config) map[string]int {
	if _, err := os.Stat(cfg.DatabasePath()); err != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	store, err := queue.Open(cfg)
	if err != nil {
		return nil
	}
	defer store.Close()
	stats, err := store.Stats(ctx)
	if err != nil {
		return nil
	}
	return api.MergeQueueStats(stats)
}

func systemChecks(cfg *config.Config, status api.DaemonStatus) []StatusLine {
	var lines []StatusLine
	add := func(label, severity, detail string) {
		lines = append(lines, StatusLine{Label: label, Severity: severity, Detail: detail})
	}

	switch {
	case !status.Running:
		add("comicdl", SeverityWarn, "Not running (run `comicdl start`)")
	case status.Downloads.Idle():
		add("comicdl", SeverityOK, fmt.Sprintf("Running (pid %d)", status.PID))
		add("Downloads", SeverityInfo, "Idle")
	default:
		add("comicdl", SeverityOK, fmt.Sprintf("Running (pid %d)", status.PID))
		add("Downloads", SeverityOK, fmt.Sprintf("%d active, %d queued", len(status.Downloads.Active), len(status.Downloads.Queued)))
	}

	if strings.TrimSpace(cfg.Catalog.AccessToken) == "" {
		add("Catalog", SeverityWarn, "No access token (locked episodes stay unavailable)")
	} else {
		add("Catalog", SeverityOK, cfg.Catalog.BaseURL)
	}
	if cfg.Watermark.Enabled {
		add("Watermark", SeverityOK, "Removed after download")
	} else {
		add("Watermark", SeverityInfo, "Disabled")
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		add("Notifications", SeverityInfo, "Not configured")
	} else {
		add("Notifications", SeverityOK, "Configured")
	}
	return lines
}

func directoryChecks(cfg *config.Config) []StatusLine {
	dirs := []struct{ label, path string }{
		{"Downloads", cfg.Paths.DownloadDir},
		{"State", cfg.Paths.StateDir},
		{"Logs", cfg.Paths.LogDir},
	}
	lines := make([]StatusLine, 0, len(dirs))
	for _, dir := range dirs {
		result := preflight.CheckDirectoryAccess(dir.label, dir.path)
		severity := SeverityError
		if result.Passed {
			severity = SeverityOK
		}
		lines = append(lines, StatusLine{Label: dir.label, Severity: severity, Detail: result.Detail})
	}
	return lines
}

// BuildDependencySummary counts available and missing dependencies. Any
// missing required dependency makes the summary an error.
func BuildDependencySummary(deps []api.DependencyStatus) DependencySummary {
	if len(deps) == 0 {
		return DependencySummary{Severity: SeverityInfo, Detail: "No dependency checks configured"}
	}
	sum := DependencySummary{Total: len(deps), Severity: SeverityOK}
	for _, dep := range deps {
		switch {
		case dep.Available:
			sum.Available++
		case dep.Optional:
			sum.MissingOptional++
		default:
			sum.MissingRequired++
		}
	}
	switch {
	case sum.MissingRequired > 0:
		sum.Severity = SeverityError
	case sum.MissingOptional > 0:
		sum.Severity = SeverityWarn
	}
	sum.Detail = fmt.Sprintf("%d/%d available", sum.Available, sum.Total)
	if sum.Available < sum.Total {
		sum.Detail += fmt.Sprintf(" (missing: %d required, %d optional)", sum.MissingRequired, sum.MissingOptional)
	}
	return sum
}
