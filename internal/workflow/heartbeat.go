package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"comicdl/internal/logging"
	"comicdl/internal/queue"
)

// heartbeat keeps last_heartbeat fresh for items under a stage and returns
// abandoned ones to the start of their stage.
type heartbeat struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration

	mu          sync.Mutex
	lastReclaim time.Time
}

func newHeartbeat(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *heartbeat {
	return &heartbeat{
		store:    store,
		logger:   logging.NewComponentLogger(logger, "workflow-heartbeat"),
		interval: interval,
		timeout:  timeout,
	}
}

// reclaim runs at most once per interval no matter how many lanes ask.
func (h *heartbeat) reclaim(ctx context.Context, logger *slog.Logger) error {
	if h.timeout <= 0 {
		return nil
	}
	now := time.Now()
	h.mu.Lock()
	if !h.lastReclaim.IsZero() && h.interval > 0 && now.Sub(h.lastReclaim) < h.interval {
		h.mu.Unlock()
		return nil
	}
	h.lastReclaim = now
	h.mu.Unlock()

	n, err := h.store.ReclaimStaleProcessing(ctx, now.Add(-h.timeout))
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("reclaimed stale items",
			logging.Int64("count", n),
			logging.String(logging.FieldEventType, "heartbeat_reclaimed"),
		)
	}
	return nil
}

// beat touches the item every interval until the returned stop is called.
// stop blocks until the goroutine has exited.
func (h *heartbeat) beat(ctx context.Context, itemID int64) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if h.interval <= 0 {
			<-ctx.Done()
			return
		}
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		logger := logging.WithContext(ctx, h.logger)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			err := h.store.UpdateHeartbeat(ctx, itemID)
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled):
				logger.Debug("heartbeat update cancelled", logging.Int64("item_id", itemID))
			default:
				logger.Warn("heartbeat update failed", logging.Int64("item_id", itemID), logging.Error(err))
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
