package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"comicdl/internal/archive"
	"comicdl/internal/catalog"
	"comicdl/internal/commands"
	"comicdl/internal/config"
	"comicdl/internal/daemon"
	"comicdl/internal/download"
	"comicdl/internal/events"
	"comicdl/internal/filemanager"
	"comicdl/internal/ipc"
	"comicdl/internal/logging"
	"comicdl/internal/logs"
	"comicdl/internal/notifications"
	"comicdl/internal/preflight"
	"comicdl/internal/queue"
	"comicdl/internal/staging"
	"comicdl/internal/watermark"
	"comicdl/internal/workflow"
)

const (
	logHubCapacity    = 4096
	journalCapacity   = 2048
	daemonLogFileGlob = "comicdl-*.log"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Foreground keeps console output on stdout in addition to the log file.
	Foreground bool
}

// Run starts the comicdl daemon and blocks until a signal arrives or the
// daemon is stopped over IPC.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logPath := logging.DaemonLogPath(cfg.Paths.LogDir, time.Now())
	logHub := logging.NewStreamHub(logHubCapacity)
	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	var outputs []string
	if opts.Foreground {
		outputs = []string{"stdout"}
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
		File:        logPath,
		Development: opts.Development,
		Hub:         logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logs.CurrentFileName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, daemonLogFileGlob, logPath)
	logDependencySnapshot(logger, cfg)
	if days := cfg.Download.StaleTempDays; days > 0 {
		staging.CleanStale(signalCtx, cfg.Paths.DownloadDir, time.Duration(days)*24*time.Hour, logger)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open history store", logging.Error(err))
		return err
	}

	d, err := build(cfg, store, logger, logHub, logPath)
	if err != nil {
		store.Close()
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration, directory permissions and that no other daemon is running"),
		)
		return err
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	select {
	case <-signalCtx.Done():
	case <-d.Done():
	}
	logger.Info("comicdl daemon shutting down")
	return nil
}

// build wires the daemon's services. The store is owned by the returned
// daemon.
func build(cfg *config.Config, store *queue.Store, logger *slog.Logger, hub *logging.StreamHub, logPath string) (*daemon.Daemon, error) {
	client, err := catalog.NewFromConfig(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("create catalog client: %w", err)
	}

	bus := events.NewBus()
	pipeline := watermark.NewFromConfig(cfg.Watermark, bus, logger)
	notifier := notifications.NewService(cfg)
	manager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)
	registerStages(manager, cfg, pipeline, logger)

	coord, err := download.NewCoordinator(cfg, download.Options{
		Catalog:    client,
		History:    store,
		Bus:        bus,
		Logger:     logger,
		Downloaded: func(int64) { manager.Wake() },
	})
	if err != nil {
		return nil, fmt.Errorf("create download coordinator: %w", err)
	}

	dispatcher := commands.New(commands.Dependencies{
		Config:    cfg,
		Downloads: coord,
		Catalog:   client,
		History:   store,
		Watermark: pipeline,
		Opener:    filemanager.System{GOOS: runtime.GOOS},
		Logger:    logger,
	})

	d, err := daemon.New(cfg, store, logger, daemon.Components{
		Workflow:  manager,
		Downloads: coord,
		Commands:  dispatcher,
		Bus:       bus,
		Journal:   events.NewJournal(journalCapacity),
		LogHub:    hub,
		LogPath:   logPath,
		Notifier:  notifier,
	})
	if err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, nil
}

func registerStages(mgr *workflow.Manager, cfg *config.Config, pipeline *watermark.Pipeline, logger *slog.Logger) {
	set := workflow.StageSet{Archive: archive.NewStage(cfg, logger)}
	if cfg.Watermark.Enabled {
		set.Watermark = watermark.NewStage(pipeline, cfg.Watermark, logger)
	}
	mgr.ConfigureStages(set)
}

// ensureCurrentLogPointer points logDir/comicdl.log at the active log file.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logs.CurrentPath(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("catalog_base_url", cfg.Catalog.BaseURL),
		logging.Bool("access_token_present", strings.TrimSpace(cfg.Catalog.AccessToken) != ""),
		logging.Bool("watermark_enabled", cfg.Watermark.Enabled),
		logging.String("archive_format", cfg.Download.ArchiveFormat),
	}
	for _, status := range preflight.CheckSystemDeps(cfg) {
		attrs = append(attrs, logging.Bool(strings.ReplaceAll(strings.ToLower(status.Name), " ", "_")+"_available", status.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
