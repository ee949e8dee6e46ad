package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"comicdl/internal/logging"
	"comicdl/internal/queue"
	"comicdl/internal/services"
	"comicdl/internal/stage"
)

type loggerAware interface {
	SetLogger(*slog.Logger)
}

func (m *Manager) processItem(ctx context.Context, lane *laneState, laneLogger *slog.Logger, item *queue.Item) error {
	stg, ok := lane.stageForStatus(item.Status)
	if !ok {
		laneLogger.Warn("no stage configured for status", logging.String("status", string(item.Status)))
		m.idle(ctx)
		return nil
	}

	stageCtx := withStageContext(ctx, stg.name, item, uuid.NewString())
	stageLogger := logging.WithContext(stageCtx, laneLogger)
	if aware, ok := stg.handler.(loggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	if err := m.transitionToProcessing(stageCtx, stg.processingStatus, item); err != nil {
		stageLogger.Error("failed to transition item to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}

	return m.executeStage(stageCtx, stageLogger, stg, item)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, item *queue.Item) error {
	stageStart := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String("manga_title", strings.TrimSpace(item.MangaTitle)),
		logging.String("episode_title", strings.TrimSpace(item.EpisodeTitle)),
		logging.String("download_path", strings.TrimSpace(item.DownloadPath)),
	)

	handler := stg.handler
	if handler == nil {
		err := fmt.Errorf("stage %s missing handler", stg.name)
		stageLogger.Warn("missing stage handler", logging.String("stage", stg.name))
		item.SetFailed(err.Error())
		if updateErr := m.store.Update(ctx, item); updateErr != nil {
			stageLogger.Error("failed to persist missing handler failure", logging.Error(updateErr))
		}
		m.setLastError(err)
		return err
	}

	if err := handler.Prepare(ctx, item); err != nil {
		return m.stageError(ctx, stageLogger, stg, item, err)
	}
	if err := m.store.Update(ctx, item); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	if err := m.executeWithHeartbeat(ctx, handler, item); err != nil {
		return m.stageError(ctx, stageLogger, stg, item, err)
	}

	if item.Status == stg.processingStatus || item.Status == "" {
		item.Status = stg.doneStatus
	}
	item.LastHeartbeat = nil
	item.ErrorMessage = ""
	if item.Status == queue.StatusCompleted {
		if item.ProgressPercent < 100 {
			item.ProgressPercent = 100
		}
		if strings.TrimSpace(item.ProgressStage) == "" {
			item.ProgressStage = deriveStageLabel(queue.StatusCompleted)
		}
		if strings.TrimSpace(item.ProgressMessage) == "" {
			item.ProgressMessage = deriveStageLabel(queue.StatusCompleted)
		}
	}
	if err := m.store.Update(ctx, item); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(item.Status)),
		logging.String("progress_stage", strings.TrimSpace(item.ProgressStage)),
		logging.String("progress_message", strings.TrimSpace(item.ProgressMessage)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastItem(item)
	if item.Status == queue.StatusCompleted {
		m.notifyEpisodeReady(ctx, item)
	}
	m.checkQueueCompletion(ctx)
	return nil
}

// stageError records a failed stage. Shutdown leaves the item in its
// processing status for the next start to roll back.
func (m *Manager) stageError(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, item *queue.Item, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || services.Cancelled(err) {
		stageLogger.Debug("stage interrupted by shutdown", logging.Error(err))
		if ctx.Err() != nil {
			return context.Canceled
		}
		return err
	}
	m.handleStageFailure(ctx, stg.name, item, err)
	m.setLastError(err)
	return err
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, item *queue.Item) error {
	stop := m.heartbeat.beat(ctx, item.ID)
	defer stop()
	return handler.Execute(ctx, item)
}

func (m *Manager) transitionToProcessing(ctx context.Context, processing queue.Status, item *queue.Item) error {
	if processing == "" {
		return errors.New("processing status must not be empty")
	}

	setItemProcessingState(item, processing)
	if err := m.store.Update(ctx, item); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	m.setLastItem(item)
	m.onItemStarted(ctx)
	return nil
}

func setItemProcessingState(item *queue.Item, processing queue.Status) {
	now := time.Now().UTC()
	item.Status = processing
	label := deriveStageLabel(processing)
	item.SetProgress(label, label+" started", 0)
	item.ErrorMessage = ""
	item.LastHeartbeat = &now
}
