package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"comicdl/internal/config"
	"comicdl/internal/logging"
	"comicdl/internal/queue"
	"comicdl/internal/stage"
)

// Stage packs a finished episode in the configured archive format. It is the
// last stage of the post-processing lane.
type Stage struct {
	format string
	logger *slog.Logger
}

// NewStage builds the archive stage for cfg.Download.ArchiveFormat.
func NewStage(cfg *config.Config, logger *slog.Logger) *Stage {
	s := &Stage{format: config.ArchiveImage}
	if cfg != nil && cfg.Download.ArchiveFormat != "" {
		s.format = cfg.Download.ArchiveFormat
	}
	s.SetLogger(logger)
	return s
}

// SetLogger swaps the stage logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "archive-stage")
}

// Prepare records the starting progress.
func (s *Stage) Prepare(_ context.Context, item *queue.Item) error {
	item.SetProgress("Archiving", "Packing "+s.format, 0)
	return nil
}

// Execute packs the episode and records where it ended up.
func (s *Stage) Execute(ctx context.Context, item *queue.Item) error {
	dir, err := stage.RequireEpisodeDir("archive", item)
	if err != nil {
		return err
	}
	info := ComicInfo{Series: item.MangaTitle, Title: item.EpisodeTitle}
	target, err := Pack(ctx, dir, s.format, info)
	if err != nil {
		return err
	}
	item.ArchivePath = target
	if target != dir {
		item.DownloadPath = ""
	}
	item.SetProgress("Completed", fmt.Sprintf("Saved %s (%s)", filepath.Base(target), humanize.Bytes(uint64(diskUsage(target)))), 100)
	logging.WithContext(ctx, s.logger).Debug("archive stage finished",
		logging.String("format", s.format),
		logging.String("path", target),
	)
	return nil
}

// HealthCheck reports an unsupported format.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	switch s.format {
	case config.ArchiveImage, config.ArchiveCBZ, config.ArchiveZip:
		return stage.Healthy("archive")
	}
	return stage.Unhealthy("archive", fmt.Sprintf("unsupported format %q", s.format))
}

// diskUsage sums the regular files under path.
func diskUsage(path string) int64 {
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return nil
		}
		if info, infoErr := d.Info(); infoErr == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
