package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"comicdl/internal/logging"
	"comicdl/internal/queue"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	logger := logging.WithContext(ctx, m.logger)

	message := classifyStageFailure(stageName, stageErr)
	item.SetFailed(message)

	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String("resolved_status", string(queue.StatusFailed)),
		logging.String("error_message", message),
		logging.Error(stageErr),
		logging.String(logging.FieldErrorHint, "fix the cause and run `comicdl queue retry`"),
	)

	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastItem(item)
	m.notifyStageError(ctx, stageName, item, stageErr)
	m.checkQueueCompletion(ctx)
}

func classifyStageFailure(stageName string, stageErr error) string {
	message := ""
	if stageErr != nil {
		message = strings.TrimSpace(stageErr.Error())
	}
	if message != "" {
		return message
	}
	if stageName != "" {
		return fmt.Sprintf("%s failed", stageName)
	}
	return "workflow failed"
}
