package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"comicdl/internal/catalog"
	"comicdl/internal/config"
	"comicdl/internal/events"
	"comicdl/internal/fetcher"
	"comicdl/internal/logging"
	"comicdl/internal/queue"
	"comicdl/internal/services"
)

// CancelledMessage is the End message of episodes interrupted by Stop.
const CancelledMessage = "download cancelled"

// Catalog is the subset of the catalog API a download needs.
type Catalog interface {
	ImageIndex(ctx context.Context, episodeID int64) (*catalog.ImageIndex, error)
	ImageTokens(ctx context.Context, paths []string) ([]catalog.ImageToken, error)
}

// ImageFetcher performs a single image download attempt.
type ImageFetcher interface {
	Fetch(ctx context.Context, req fetcher.Request) (fetcher.Result, error)
}

// History records episode state transitions.
type History interface {
	Enqueue(ctx context.Context, ep queue.Episode) (*queue.Item, error)
	MarkEpisode(ctx context.Context, episodeID int64, status queue.Status, message string) error
	RecordDownload(ctx context.Context, episodeID int64, dir string, images int) error
}

// Options wires a Coordinator to its collaborators. Fetcher and History are
// optional; a nil Fetcher is built from the config with throughput counting.
// Downloaded, when set, runs once a finished episode has been recorded in
// History.
type Options struct {
	Catalog    Catalog
	Fetcher    ImageFetcher
	History    History
	Bus        events.Publisher
	Logger     *slog.Logger
	Downloaded func(episodeID int64)
}

// Snapshot is a point-in-time view of the coordinator.
type Snapshot struct {
	Queued   []int64                `json:"queued"`
	Active   []int64                `json:"active"`
	Progress events.OverallProgress `json:"progress"`
}

// Idle reports whether nothing is queued or running.
func (s Snapshot) Idle() bool {
	return len(s.Queued) == 0 && len(s.Active) == 0
}

// Coordinator accepts episode batches and runs them under the episode cap.
type Coordinator struct {
	downloadDir      string
	episodeCap       int
	imageConcurrency int

	catalog    Catalog
	fetcher    ImageFetcher
	history    History
	bus        events.Publisher
	logger     *slog.Logger
	downloaded func(int64)

	retry    RetryPolicy
	progress *Aggregator
	speed    *SpeedSampler
	slots    *semaphore.Weighted
	running  atomic.Int32

	mu       sync.Mutex
	known    map[int64]struct{}
	active   map[int64]struct{}
	queue    []EpisodeTask
	admitted int
	cancel   context.CancelFunc
	stopped  bool
	wake     chan struct{}
	wg       sync.WaitGroup
}

// NewCoordinator constructs a coordinator. Call Start before work is dispatched.
func NewCoordinator(cfg *config.Config, opts Options) (*Coordinator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if opts.Bus == nil {
		return nil, errors.New("event bus is required")
	}
	c := &Coordinator{
		downloadDir:      cfg.Paths.DownloadDir,
		episodeCap:       max(cfg.Download.EpisodeConcurrency, 1),
		imageConcurrency: max(cfg.Download.ImageConcurrency, 1),
		catalog:          opts.Catalog,
		fetcher:          opts.Fetcher,
		history:          opts.History,
		downloaded:       opts.Downloaded,
		bus:              opts.Bus,
		logger:           logging.NewComponentLogger(opts.Logger, "download"),
		retry:            RetryPolicyFromConfig(cfg.Download),
		progress:         NewAggregator(opts.Bus),
		known:            make(map[int64]struct{}),
		active:           make(map[int64]struct{}),
		wake:             make(chan struct{}, 1),
	}
	c.slots = semaphore.NewWeighted(int64(c.episodeCap))
	c.speed = NewSpeedSampler(opts.Bus, cfg.Download.SpeedInterval(), func() bool { return c.running.Load() > 0 })
	if c.fetcher == nil {
		c.fetcher = fetcher.New(
			fetcher.WithUserAgent(cfg.Catalog.UserAgent),
			fetcher.WithTimeout(cfg.Download.ImageFetchTimeout()),
			fetcher.WithByteCounter(c.speed.Add),
		)
	}
	return c, nil
}

// Start launches the dispatcher and the throughput sampler. Work runs until
// ctx is done or Stop is called.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil || c.stopped {
		c.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.dispatch(runCtx)
	}()
	go func() {
		defer c.wg.Done()
		c.speed.Run(runCtx)
	}()
	c.logger.Info("download coordinator started",
		logging.Int("episode_concurrency", c.episodeCap),
		logging.Int("image_concurrency", c.imageConcurrency),
		logging.Int("retry_attempts", c.retry.Attempts),
	)
}

// Stop cancels in-flight downloads and waits for them to unwind. Every queued
// or running episode receives an End carrying CancelledMessage.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	c.mu.Lock()
	rest := c.queue
	c.queue = nil
	c.mu.Unlock()
	for _, task := range rest {
		c.finish(context.Background(), task, episodeResult{}, services.Wrap(services.ErrCancelled, "download", "stop", CancelledMessage, nil))
	}
	c.logger.Info("download coordinator stopped", logging.Int("abandoned_queued", len(rest)))
}

// Submit validates a batch and queues its downloadable episodes. Validation
// failures are returned synchronously; everything else is reported through
// events.
func (c *Coordinator) Submit(ctx context.Context, tasks []EpisodeTask) error {
	if len(tasks) == 0 {
		return services.Wrap(services.ErrValidation, "download", "submit", "no episodes to download", nil)
	}
	allLocked := !slices.ContainsFunc(tasks, func(t EpisodeTask) bool { return !t.IsLocked })

	var (
		notices    []events.Payload
		accepted   []EpisodeTask
		duplicates int
		seen       = make(map[int64]struct{}, len(tasks))
	)

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return services.Wrap(services.ErrCancelled, "download", "submit", "coordinator stopped", nil)
	}
	for _, task := range tasks {
		if _, dup := seen[task.EpisodeID]; dup {
			duplicates++
			continue
		}
		seen[task.EpisodeID] = struct{}{}
		if task.IsLocked {
			notices = append(notices, events.EndFailed(task.EpisodeID, fmt.Sprintf("episode %d is locked", task.EpisodeID)))
			continue
		}
		if _, busy := c.known[task.EpisodeID]; busy {
			duplicates++
			continue
		}
		if task.IsDownloaded {
			notices = append(notices, events.EndOK(task.EpisodeID))
			continue
		}
		if c.admitted >= c.episodeCap {
			notices = append(notices, events.EpisodePending{EpID: task.EpisodeID, Title: task.EpisodeTitle})
		}
		c.known[task.EpisodeID] = struct{}{}
		c.admitted++
		accepted = append(accepted, task)
	}
	c.mu.Unlock()
	c.progress.Admit(len(accepted))

	for _, notice := range notices {
		c.bus.Publish(notice)
	}
	for _, task := range accepted {
		c.recordQueued(ctx, task)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		for _, task := range accepted {
			c.finish(context.Background(), task, episodeResult{}, services.Wrap(services.ErrCancelled, "download", "submit", CancelledMessage, nil))
		}
	} else {
		c.queue = append(c.queue, accepted...)
		c.mu.Unlock()
		c.signal()
	}

	c.logger.Info("episode batch accepted",
		logging.String(logging.FieldEventType, "batch_submitted"),
		logging.Int("requested", len(tasks)),
		logging.Int("queued", len(accepted)),
		logging.Int("duplicates", duplicates),
	)
	if allLocked {
		return services.Wrap(services.ErrValidation, "download", "submit", "all episodes are locked", nil)
	}
	return nil
}

// Snapshot reports queued and running episodes with the aggregate progress.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		Queued: make([]int64, 0, len(c.queue)),
		Active: make([]int64, 0, len(c.active)),
	}
	for _, task := range c.queue {
		snap.Queued = append(snap.Queued, task.EpisodeID)
	}
	for id := range c.active {
		snap.Active = append(snap.Active, id)
	}
	c.mu.Unlock()
	slices.Sort(snap.Active)
	snap.Progress = c.progress.Snapshot()
	return snap
}

func (c *Coordinator) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// dispatch hands queued episodes to workers in submission order, one slot per
// running episode. The head of the queue stays queued until it owns a slot.
func (c *Coordinator) dispatch(ctx context.Context) {
	for {
		task, ok := c.head(ctx)
		if !ok {
			return
		}
		if err := c.slots.Acquire(ctx, 1); err != nil {
			c.pop(false)
			c.finish(ctx, task, episodeResult{}, services.Wrap(services.ErrCancelled, "download", "dispatch", CancelledMessage, err))
			continue
		}
		c.pop(true)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer c.slots.Release(1)
			c.runEpisode(ctx, task)
		}()
	}
}

// head waits for a queued task. Queued tasks are still handed out after ctx is
// done so each of them gets its cancellation End.
func (c *Coordinator) head(ctx context.Context) (EpisodeTask, bool) {
	for {
		c.mu.Lock()
		if len(c.queue) > 0 {
			task := c.queue[0]
			c.mu.Unlock()
			return task, true
		}
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return EpisodeTask{}, false
		case <-c.wake:
		}
	}
}

// pop removes the queue head, marking it active when it is about to run.
func (c *Coordinator) pop(running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	task := c.queue[0]
	c.queue = c.queue[1:]
	if running {
		c.active[task.EpisodeID] = struct{}{}
	}
}

func (c *Coordinator) runEpisode(ctx context.Context, task EpisodeTask) {
	c.running.Add(1)
	defer c.running.Add(-1)

	ctx = services.WithEpisodeID(ctx, task.EpisodeID)
	ctx = services.WithMangaID(ctx, task.MangaID)
	logger := logging.WithContext(ctx, c.logger)
	started := time.Now()

	result, err := newWorker(c, task, logger).run(ctx)
	if err == nil {
		logger.Info("episode downloaded",
			logging.String(logging.FieldEventType, "episode_complete"),
			logging.String("dir", result.Dir),
			logging.Int("images", result.Images),
			logging.Duration("elapsed", time.Since(started)),
		)
	}
	c.finish(ctx, task, result, err)
}

// finish frees the episode id, publishes its End and records the outcome. A
// successful download is written to history only after its End is out, so
// post-processing picked up from the history row always follows the End.
func (c *Coordinator) finish(ctx context.Context, task EpisodeTask, result episodeResult, err error) {
	ctx = context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, c.logger)
	var end events.EpisodeEnd
	switch {
	case err == nil:
		end = events.EndOK(task.EpisodeID)
	case services.Cancelled(err):
		c.markHistory(ctx, task, queue.StatusPending, CancelledMessage)
		end = events.EndFailed(task.EpisodeID, CancelledMessage)
	default:
		logging.WarnWithContext(logger, "episode download failed", "episode_failed",
			logging.Int64(logging.FieldEpisodeID, task.EpisodeID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `comicdl queue retry` once the catalog is reachable"),
			logging.String(logging.FieldImpact, "episode left incomplete"),
		)
		c.markHistory(ctx, task, queue.FailureStatus(err), err.Error())
		end = events.EndFailed(task.EpisodeID, err.Error())
	}

	c.mu.Lock()
	delete(c.known, task.EpisodeID)
	delete(c.active, task.EpisodeID)
	c.admitted = max(c.admitted-1, 0)
	c.mu.Unlock()
	c.progress.EndEpisode()

	c.bus.Publish(end)

	if err == nil {
		c.recordDownload(ctx, logger, task, result)
	}
}

func (c *Coordinator) recordDownload(ctx context.Context, logger *slog.Logger, task EpisodeTask, result episodeResult) {
	if c.history == nil {
		return
	}
	if err := c.history.RecordDownload(ctx, task.EpisodeID, result.Dir, result.Images); err != nil {
		logging.WarnWithContext(logger, "failed to record download", "history_write_failed",
			logging.Int64(logging.FieldEpisodeID, task.EpisodeID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "episode will not be post-processed automatically"),
		)
		return
	}
	if c.downloaded != nil {
		c.downloaded(task.EpisodeID)
	}
}

func (c *Coordinator) recordQueued(ctx context.Context, task EpisodeTask) {
	if c.history == nil {
		return
	}
	if _, err := c.history.Enqueue(ctx, task.historyEpisode()); err != nil {
		logging.WarnWithContext(c.logger, "failed to record queued episode", "history_write_failed",
			logging.Int64(logging.FieldEpisodeID, task.EpisodeID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "episode downloads but is missing from history"),
		)
	}
}

func (c *Coordinator) markDownloading(ctx context.Context, task EpisodeTask) {
	c.markHistory(ctx, task, queue.StatusDownloading, "")
}

func (c *Coordinator) markHistory(ctx context.Context, task EpisodeTask, status queue.Status, message string) {
	if c.history == nil {
		return
	}
	if err := c.history.MarkEpisode(ctx, task.EpisodeID, status, message); err != nil {
		logging.WarnWithContext(c.logger, "failed to update episode history", "history_write_failed",
			logging.Int64(logging.FieldEpisodeID, task.EpisodeID),
			logging.String("status", string(status)),
			logging.Error(err),
		)
	}
}
