package watermark

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"comicdl/internal/config"
	"comicdl/internal/events"
	"comicdl/internal/fetcher"
	"comicdl/internal/fileutil"
	"comicdl/internal/logging"
	"comicdl/internal/services"
)

// Summary reports the outcome of one directory run.
type Summary struct {
	DirPath   string
	Total     int
	Succeeded int
	Failed    int
}

// Pipeline runs a Transform over every image of a directory.
type Pipeline struct {
	transform   Transform
	concurrency int
	bus         events.Publisher
	logger      *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewPipeline constructs a pipeline.
func NewPipeline(transform Transform, concurrency int, bus events.Publisher, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		transform:   transform,
		concurrency: max(concurrency, 1),
		bus:         bus,
		logger:      logging.NewComponentLogger(logger, "watermark"),
		inflight:    make(map[string]struct{}),
	}
}

// NewFromConfig builds the pipeline described by [watermark].
func NewFromConfig(cfg config.Watermark, bus events.Publisher, logger *slog.Logger) *Pipeline {
	return NewPipeline(NewTransform(cfg), cfg.Concurrency, bus, logger)
}

// ListImages returns the image files of dir in name order. Hidden files are
// skipped so temp outputs never count as pages.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var images []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if fetcher.IsImageExt(filepath.Ext(name)) {
			images = append(images, filepath.Join(dir, name))
		}
	}
	return images, nil
}

// Run processes every image in dirPath. A failing image is reported and the
// rest continue; the returned error covers only problems with the directory
// itself or cancellation. End is published only once every image has an
// outcome, so a cancelled run ends without it.
func (p *Pipeline) Run(ctx context.Context, dirPath string) (Summary, error) {
	summary := Summary{DirPath: dirPath}
	info, err := os.Stat(dirPath)
	if err != nil {
		return summary, services.Wrap(services.ErrNotFound, "watermark", "run", dirPath, err)
	}
	if !info.IsDir() {
		return summary, services.Wrap(services.ErrValidation, "watermark", "run", dirPath+" is not a directory", nil)
	}
	if !p.claim(dirPath) {
		return summary, services.Wrap(services.ErrValidation, "watermark", "run", "already processing "+dirPath, nil)
	}
	defer p.release(dirPath)

	images, err := ListImages(dirPath)
	if err != nil {
		return summary, services.Wrap(services.ErrExternal, "watermark", "list images", dirPath, err)
	}
	summary.Total = len(images)
	logger := logging.WithContext(ctx, p.logger).With(logging.String("dir", dirPath))
	started := time.Now()

	p.publish(events.WatermarkStart{DirPath: dirPath, Total: len(images)})

	var (
		progressMu sync.Mutex
		current    int
		group      errgroup.Group
	)
	group.SetLimit(p.concurrency)
	for _, src := range images {
		group.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			out, applyErr := p.apply(ctx, src)
			if applyErr != nil && ctx.Err() != nil {
				return nil
			}

			progressMu.Lock()
			defer progressMu.Unlock()
			current++
			if applyErr != nil {
				summary.Failed++
				p.publish(events.WatermarkError{DirPath: dirPath, ImgPath: src, ErrMsg: applyErr.Error()})
				logger.Debug("watermark removal failed", logging.String("image", src), logging.Error(applyErr))
				return nil
			}
			summary.Succeeded++
			p.publish(events.WatermarkSuccess{DirPath: dirPath, ImgPath: out, Current: current})
			return nil
		})
	}
	_ = group.Wait()

	logger.Info("watermark pass finished",
		logging.String(logging.FieldEventType, "watermark_complete"),
		logging.Int("total", summary.Total),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Duration("elapsed", time.Since(started)),
	)
	if err := ctx.Err(); err != nil {
		return summary, services.Wrap(services.ErrCancelled, "watermark", "run", "watermark removal cancelled", err)
	}
	p.publish(events.WatermarkEnd{DirPath: dirPath})
	return summary, nil
}

// apply transforms one image through a hidden temp file and moves the result
// into place. It returns the final image path.
func (p *Pipeline) apply(ctx context.Context, src string) (string, error) {
	final := src
	if namer, ok := p.transform.(OutputNamer); ok {
		final = namer.OutputName(src)
	}
	dir := filepath.Dir(src)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.wm%s", strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)), filepath.Ext(final)))
	if err := p.transform.Apply(ctx, src, tmp); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := fileutil.ReplaceFile(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("replace image: %w", err)
	}
	if final != src {
		if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("remove original: %w", err)
		}
	}
	return final, nil
}

func (p *Pipeline) claim(dir string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[dir]; busy {
		return false
	}
	p.inflight[dir] = struct{}{}
	return true
}

func (p *Pipeline) release(dir string) {
	p.mu.Lock()
	delete(p.inflight, dir)
	p.mu.Unlock()
}

func (p *Pipeline) publish(payload events.Payload) {
	if p.bus != nil {
		p.bus.Publish(payload)
	}
}
