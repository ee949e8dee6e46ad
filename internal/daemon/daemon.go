package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"comicdl/internal/api"
	"comicdl/internal/commands"
	"comicdl/internal/config"
	"comicdl/internal/deps"
	"comicdl/internal/download"
	"comicdl/internal/events"
	"comicdl/internal/logging"
	"comicdl/internal/notifications"
	"comicdl/internal/preflight"
	"comicdl/internal/queue"
	"comicdl/internal/workflow"
)

// Components are the long-lived services the daemon drives. Workflow,
// Downloads, Commands and Bus are required.
type Components struct {
	Workflow  *workflow.Manager
	Downloads *download.Coordinator
	Commands  *commands.Dispatcher
	Bus       *events.Bus
	Journal   *events.Journal
	LogHub    *logging.StreamHub
	LogPath   string
	Notifier  notifications.Service
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *queue.Store
	c      Components

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	detach   []func()
	stopOnce sync.Once
	done     chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	Downloads    download.Snapshot
	QueueDBPath  string
	LockFilePath string
	LogPath      string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, c Components) (*Daemon, error) {
	if cfg == nil || store == nil || c.Workflow == nil || c.Downloads == nil || c.Commands == nil || c.Bus == nil {
		return nil, errors.New("daemon requires config, store, workflow, downloads, commands and bus")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if c.Journal == nil {
		c.Journal = events.NewJournal(0)
	}
	if c.Notifier == nil {
		c.Notifier = notifications.NewService(cfg)
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		c:        c,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		done:     make(chan struct{}),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, checks the environment, restores
// interrupted work and launches downloads and post-processing.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	select {
	case <-d.done:
		return errors.New("daemon stopped")
	default:
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another comicdl daemon instance is already running")
	}

	if err := d.runPreflight(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	if reset, err := d.store.ResetStuckProcessing(ctx); err != nil {
		d.logger.Warn("failed to reset interrupted items",
			logging.Error(err),
			logging.String(logging.FieldEventType, "reset_stuck_failed"),
			logging.String(logging.FieldImpact, "interrupted episodes stay in a processing state until reclaimed"),
		)
	} else if reset > 0 {
		d.logger.Info("rolled back interrupted items", logging.Int64("count", reset))
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.detach = append(d.detach, d.c.Journal.Attach(d.c.Bus))

	d.c.Downloads.Start(d.ctx)
	if err := d.c.Workflow.Start(d.ctx); err != nil {
		d.c.Downloads.Stop()
		d.teardown()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.c.Workflow.Stop()
		d.c.Downloads.Stop()
		d.teardown()
		return err
	}

	d.running.Store(true)
	d.resubmitPending(d.ctx)
	d.c.Workflow.Wake()
	d.logger.Info("comicdl daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
	)
	return nil
}

func (d *Daemon) runPreflight(ctx context.Context) error {
	results := preflight.RunAll(ctx, d.cfg)
	var fatal []string
	for _, r := range preflight.Failed(results) {
		if r.Fatal {
			fatal = append(fatal, fmt.Sprintf("%s: %s", r.Name, r.Detail))
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, "related features may not work"),
		)
	}
	if len(fatal) > 0 {
		return fmt.Errorf("preflight failed: %s", strings.Join(fatal, "; "))
	}
	return nil
}

// resubmitPending hands episodes left pending by a previous run back to the
// coordinator.
func (d *Daemon) resubmitPending(ctx context.Context) {
	items, err := d.store.List(ctx, queue.StatusPending)
	if err != nil {
		d.logger.Warn("failed to list pending episodes", logging.Error(err),
			logging.String(logging.FieldImpact, "pending episodes are not resumed"))
		return
	}
	if len(items) == 0 {
		return
	}
	tasks := make([]download.EpisodeTask, 0, len(items))
	for _, item := range items {
		tasks = append(tasks, download.TaskFromItem(item))
	}
	if err := d.c.Downloads.Submit(ctx, tasks); err != nil {
		d.logger.Warn("failed to resume pending episodes", logging.Error(err))
		return
	}
	d.logger.Info("resumed pending episodes", logging.Int("count", len(tasks)))
}

// Stop stops background processing and releases the daemon lock. Done is
// closed once Stop has run; a stopped daemon cannot be started again.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		defer close(d.done)
		if !d.running.Swap(false) {
			return
		}
		d.api.stop()
		d.c.Downloads.Stop()
		d.c.Workflow.Stop()
		d.teardown()
		d.logger.Info("comicdl daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
	})
}

func (d *Daemon) teardown() {
	for _, fn := range d.detach {
		fn()
	}
	d.detach = nil
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
}

// Done is closed after Stop.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.c.Commands.Close()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Invoke runs a named command through the dispatcher.
func (d *Daemon) Invoke(ctx context.Context, name string, args json.RawMessage) commands.Result {
	return d.c.Commands.Invoke(ctx, name, args)
}

// Events returns journaled events newer than since.
func (d *Daemon) Events(ctx context.Context, since uint64, limit int, wait bool) ([]events.Envelope, uint64, error) {
	return d.c.Journal.Fetch(ctx, since, limit, wait)
}

// Logs returns streamed log events newer than since. With tail set and since
// zero the most recent limit events are returned instead.
func (d *Daemon) Logs(ctx context.Context, since uint64, limit int, follow, tail bool) ([]logging.LogEvent, uint64, error) {
	if d.c.LogHub == nil {
		return nil, 0, nil
	}
	if tail && since == 0 && !follow {
		evts, next := d.c.LogHub.Tail(limit)
		return evts, next, nil
	}
	return d.c.LogHub.Fetch(ctx, since, limit, follow)
}

// ListQueue returns history items whose status is one of the given names,
// or every item when statuses is empty.
func (d *Daemon) ListQueue(ctx context.Context, statuses []string) ([]api.QueueItem, error) {
	return api.NewQueueService(d.store).List(ctx, statuses)
}

// GetQueueItem returns one history item or nil.
func (d *Daemon) GetQueueItem(ctx context.Context, id int64) (*queue.Item, error) {
	return d.store.GetByID(ctx, id)
}

// Describe returns one history item as an API DTO, or nil when missing.
func (d *Daemon) Describe(ctx context.Context, id int64) (*api.QueueItem, error) {
	return api.NewQueueService(d.store).Describe(ctx, id)
}

// ClearQueue removes all history items.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// ClearCompleted removes only completed history items.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes only failed history items.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.store.ClearFailed(ctx)
}

// Remove deletes the given history items and reports how many existed.
func (d *Daemon) Remove(ctx context.Context, ids []int64) (int64, error) {
	var removed int64
	for _, id := range ids {
		ok, err := d.store.Remove(ctx, id)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// ResetStuck rolls in-flight items back to the start of their stage.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	return d.store.ResetStuckProcessing(ctx)
}

// Retry requeues failed items (all of them when ids is empty). Items whose
// images are still on disk resume post-processing; the rest are downloaded
// again.
func (d *Daemon) Retry(ctx context.Context, ids []int64) (int64, error) {
	failed, err := d.store.List(ctx, queue.StatusFailed)
	if err != nil {
		return 0, err
	}
	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var (
		updated    int64
		redownload []int64
		tasks      []download.EpisodeTask
	)
	for _, item := range failed {
		if _, ok := wanted[item.ID]; len(ids) > 0 && !ok {
			continue
		}
		if dirExists(item.DownloadPath) {
			item.Status = queue.StatusDownloaded
			item.ErrorMessage = ""
			item.SetProgress("Retry requested", "", 0)
			if err := d.store.Update(ctx, item); err != nil {
				return updated, err
			}
			updated++
			continue
		}
		redownload = append(redownload, item.ID)
		tasks = append(tasks, download.TaskFromItem(item))
	}
	if len(redownload) > 0 {
		n, err := d.store.RetryFailed(ctx, redownload...)
		if err != nil {
			return updated, err
		}
		updated += n
		if d.running.Load() {
			if err := d.c.Downloads.Submit(ctx, tasks); err != nil {
				return updated, err
			}
		}
	}
	d.c.Workflow.Wake()
	return updated, nil
}

// QueueHealth returns aggregate history diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.c.Notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.c.LogPath
}

// APIAddress returns the bound HTTP API address, or "" when it is disabled.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.c.Workflow.Status(ctx),
		Downloads:    d.c.Downloads.Snapshot(),
		QueueDBPath:  d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		LogPath:      d.c.LogPath,
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
}

func dirExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ToAPIStatus converts a daemon status into its transport form.
func ToAPIStatus(status Status) api.DaemonStatus {
	return api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		LogPath:      status.LogPath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Downloads:    status.Downloads,
		Dependencies: api.FromDependencies(status.Dependencies),
	}
}
