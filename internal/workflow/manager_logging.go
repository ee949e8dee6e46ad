package workflow

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"comicdl/internal/logging"
	"comicdl/internal/queue"
	"comicdl/internal/services"
)

func (m *Manager) laneLogger(lane *laneState) *slog.Logger {
	return m.logger.With(logging.String("lane", lane.name))
}

func withStageContext(ctx context.Context, stageName string, item *queue.Item, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if item != nil {
		ctx = services.WithEpisodeID(ctx, item.EpisodeID)
		ctx = services.WithMangaID(ctx, item.MangaID)
	}
	ctx = services.WithStage(ctx, stageName)
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}

// deriveStageLabel turns a status into a progress label: "watermarking"
// becomes "Watermarking".
func deriveStageLabel(status queue.Status) string {
	if status == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(string(status), "_", " "))
}
