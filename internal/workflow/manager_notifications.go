package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"comicdl/internal/logging"
	"comicdl/internal/notifications"
	"comicdl/internal/queue"
)

// activeStatuses are the states in which an episode still has work ahead.
var activeStatuses = []queue.Status{
	queue.StatusPending,
	queue.StatusDownloading,
	queue.StatusDownloaded,
	queue.StatusWatermarking,
	queue.StatusWatermarked,
	queue.StatusArchiving,
}

func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, notification dropped", logging.String("event", string(event)))
		} else {
			m.logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
		}
	}
}

func (m *Manager) notifyStageError(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	if stageErr == nil {
		return
	}
	m.publish(ctx, notifications.EventError, notifications.Payload{
		"error":   stageErr,
		"context": fmt.Sprintf("%s (item #%d)", stageName, item.ID),
	})
}

func (m *Manager) notifyEpisodeReady(ctx context.Context, item *queue.Item) {
	payload := notifications.Payload{
		"title": fmt.Sprintf("%s - %s", item.MangaTitle, item.EpisodeTitle),
		"path":  item.ArchivePath,
	}
	if item.ArchivePath != "" {
		if info, err := os.Stat(item.ArchivePath); err == nil && !info.IsDir() {
			payload["bytes"] = info.Size()
		}
	}
	m.publish(ctx, notifications.EventEpisodeReady, payload)
}

func (m *Manager) onItemStarted(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.statsUnavailable(err, "start")
		return
	}
	m.mu.Lock()
	if m.queueActive {
		m.mu.Unlock()
		return
	}
	m.queueActive = true
	m.queueStart = time.Now()
	m.mu.Unlock()

	m.publish(ctx, notifications.EventQueueStarted, notifications.Payload{"count": countActiveItems(stats)})
}

func (m *Manager) checkQueueCompletion(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.statsUnavailable(err, "completion")
		return
	}
	if countActiveItems(stats) > 0 {
		return
	}

	m.mu.Lock()
	if !m.queueActive {
		m.mu.Unlock()
		return
	}
	start := m.queueStart
	m.queueActive = false
	m.queueStart = time.Time{}
	m.mu.Unlock()

	duration := time.Duration(0)
	if !start.IsZero() {
		duration = time.Since(start)
	}
	m.publish(ctx, notifications.EventQueueCompleted, notifications.Payload{
		"processed": stats[queue.StatusCompleted],
		"failed":    stats[queue.StatusFailed],
		"duration":  duration,
	})
}

func (m *Manager) statsUnavailable(err error, which string) {
	if errors.Is(err, context.Canceled) {
		m.logger.Debug("daemon shutting down, skipped " + which + " notification")
		return
	}
	m.logger.Warn("history stats unavailable; notification skipped",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_stats_failed"),
		logging.String(logging.FieldErrorHint, "check history database access"),
		logging.String(logging.FieldImpact, which+" notification will not be sent"),
	)
}

func countActiveItems(stats map[queue.Status]int) int {
	total := 0
	for _, status := range activeStatuses {
		total += stats[status]
	}
	return total
}
