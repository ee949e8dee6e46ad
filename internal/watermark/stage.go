package watermark

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"comicdl/internal/config"
	"comicdl/internal/logging"
	"comicdl/internal/queue"
	"comicdl/internal/services"
	"comicdl/internal/stage"
)

// Stage runs the pipeline over a downloaded episode as a workflow stage.
type Stage struct {
	pipeline *Pipeline
	cfg      config.Watermark
	logger   *slog.Logger
}

// NewStage wraps pipeline for the post-processing lane.
func NewStage(pipeline *Pipeline, cfg config.Watermark, logger *slog.Logger) *Stage {
	s := &Stage{pipeline: pipeline, cfg: cfg}
	s.SetLogger(logger)
	return s
}

// SetLogger swaps the stage logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "watermark-stage")
}

// Prepare records the starting progress.
func (s *Stage) Prepare(_ context.Context, item *queue.Item) error {
	item.SetProgress("Removing watermark", "Scanning pages", 0)
	return nil
}

// Execute strips every page of the episode directory. Any page the transform
// rejects fails the stage so the archive never packs a watermarked page.
func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	dir, err := stage.RequireEpisodeDir("watermark", item)
	if err != nil {
		return err
	}
	summary, err := s.pipeline.Run(ctx, dir)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return services.Wrap(services.ErrExternal, "watermark", "execute",
			fmt.Sprintf("%d of %d images failed watermark removal", summary.Failed, summary.Total), nil)
	}
	item.SetProgress("Watermarked", fmt.Sprintf("%d images cleaned", summary.Succeeded), 100)
	logging.WithContext(ctx, s.logger).Debug("watermark stage finished",
		logging.String("dir", dir),
		logging.Int("images", summary.Succeeded),
	)
	return nil
}

// HealthCheck verifies an external transform command can be found.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if len(s.cfg.Command) == 0 {
		return stage.Healthy("watermark")
	}
	if _, err := exec.LookPath(s.cfg.Command[0]); err != nil {
		return stage.Unhealthy("watermark", fmt.Sprintf("command %q not found", s.cfg.Command[0]))
	}
	return stage.Healthy("watermark")
}
