package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"comicdl/internal/events"
	"comicdl/internal/fetcher"
	"comicdl/internal/fileutil"
	"comicdl/internal/logging"
	"comicdl/internal/services"
)

// imageOutcome is the terminal state of one image slot.
type imageOutcome struct {
	abandoned bool
	url       string
	err       error
}

// episodeResult describes a finished episode directory.
type episodeResult struct {
	Dir    string
	Images int
}

// worker drives every image of one episode.
type worker struct {
	c      *Coordinator
	task   EpisodeTask
	logger *slog.Logger

	logMu   sync.Mutex
	sampler *logging.ProgressSampler
	settled int
}

func newWorker(c *Coordinator, task EpisodeTask, logger *slog.Logger) *worker {
	return &worker{
		c:       c,
		task:    task,
		logger:  logger,
		sampler: logging.NewProgressSampler(25),
	}
}

func (w *worker) run(ctx context.Context) (episodeResult, error) {
	if err := ctx.Err(); err != nil {
		return episodeResult{}, services.Wrap(services.ErrCancelled, "download", "start", "download cancelled", err)
	}
	index, err := w.c.catalog.ImageIndex(ctx, w.task.EpisodeID)
	if err != nil {
		return episodeResult{}, err
	}
	total := len(index.Images)
	if total == 0 {
		return episodeResult{}, services.Wrap(services.ErrExternal, "download", "image index", "episode has no images", nil)
	}

	tempDir := TempDir(w.c.downloadDir, w.task)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return episodeResult{}, services.Wrap(services.ErrConfiguration, "download", "create temp dir", tempDir, err)
	}
	existing := existingImages(tempDir)

	w.c.markDownloading(ctx, w.task)
	w.c.bus.Publish(events.EpisodeStart{EpID: w.task.EpisodeID, Title: w.task.EpisodeTitle, Total: total})
	w.c.progress.Begin(total)

	w.logger.Info("episode download started",
		logging.String(logging.FieldEventType, "episode_start"),
		logging.Int("images", total),
		logging.Int("already_present", len(existing)),
		logging.String("temp_dir", tempDir),
	)

	slots := make([]imageOutcome, total)
	var group errgroup.Group
	group.SetLimit(w.c.imageConcurrency)
	for i, image := range index.Images {
		current := i + 1
		group.Go(func() error {
			if name, ok := existing[current]; ok {
				slots[i] = imageOutcome{url: name}
				w.c.bus.Publish(events.ImageSuccess{EpID: w.task.EpisodeID, URL: name, Current: current})
			} else {
				slots[i] = w.fetchImage(ctx, tempDir, current, image.Path)
			}
			if !slots[i].abandoned {
				w.c.progress.Complete()
				w.logProgress(total)
			}
			return nil
		})
	}
	_ = group.Wait()

	return w.finish(tempDir, slots)
}

// fetchImage resolves the tokenised URL of one image and downloads it,
// retrying transient failures. Cancellation abandons the image silently.
func (w *worker) fetchImage(ctx context.Context, dir string, current int, path string) imageOutcome {
	if ctx.Err() != nil {
		return imageOutcome{abandoned: true}
	}
	url := path
	err := w.c.retry.Do(ctx, func(ctx context.Context) error {
		tokens, err := w.c.catalog.ImageTokens(ctx, []string{path})
		if err != nil {
			return err
		}
		url = tokens[0].DownloadURL()
		_, err = w.c.fetcher.Fetch(ctx, fetcher.Request{URL: url, Dir: dir, Current: current, Ext: fetcher.ExtFromURL(path)})
		return err
	})
	if err != nil && (services.Cancelled(err) || ctx.Err() != nil) {
		return imageOutcome{abandoned: true}
	}
	if err != nil {
		w.c.bus.Publish(events.ImageError{EpID: w.task.EpisodeID, URL: url, ErrMsg: err.Error()})
		w.logger.Debug("image failed",
			logging.String(logging.FieldEventType, "image_failed"),
			logging.Int("current", current),
			logging.Error(err),
		)
		return imageOutcome{url: url, err: err}
	}
	w.c.bus.Publish(events.ImageSuccess{EpID: w.task.EpisodeID, URL: url, Current: current})
	return imageOutcome{url: url}
}

func (w *worker) logProgress(total int) {
	w.logMu.Lock()
	defer w.logMu.Unlock()
	w.settled++
	if w.sampler.ShouldLog(w.settled, total) {
		w.logger.Info("episode progress",
			logging.String(logging.FieldEventType, "episode_progress"),
			logging.Int("settled", w.settled),
			logging.Int("total", total),
		)
	}
}

// finish turns the slot outcomes into the episode result. A partially failed
// episode keeps its temp dir so a retry only fetches the missing images.
func (w *worker) finish(tempDir string, slots []imageOutcome) (episodeResult, error) {
	var (
		failed    int
		abandoned int
		first     error
	)
	for _, slot := range slots {
		switch {
		case slot.abandoned:
			abandoned++
		case slot.err != nil:
			failed++
			if first == nil {
				first = slot.err
			}
		}
	}
	if abandoned > 0 {
		return episodeResult{}, services.Wrap(services.ErrCancelled, "download", "images",
			fmt.Sprintf("%d of %d images abandoned", abandoned, len(slots)), nil)
	}
	if failed > 0 {
		return episodeResult{}, fmt.Errorf("%d of %d images failed: %w", failed, len(slots), first)
	}

	finalDir := EpisodeDir(w.c.downloadDir, w.task)
	started := time.Now()
	if err := fileutil.ReplaceDir(tempDir, finalDir); err != nil {
		return episodeResult{}, services.Wrap(services.ErrTransient, "download", "finalize", "move episode into place", err)
	}
	w.logger.Debug("episode directory finalized",
		logging.String("dir", finalDir),
		logging.Duration("elapsed", time.Since(started)),
	)
	return episodeResult{Dir: finalDir, Images: len(slots)}, nil
}

// existingImages maps positions to images left in dir by an earlier attempt.
func existingImages(dir string) map[int]string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	found := make(map[int]string)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		stem, _, ok := strings.Cut(name, ".")
		if !ok || len(stem) < 3 {
			continue
		}
		current, err := strconv.Atoi(stem)
		if err != nil || current < 1 {
			continue
		}
		if info, err := entry.Info(); err != nil || info.Size() == 0 {
			continue
		}
		found[current] = name
	}
	return found
}
