package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"comicdl/internal/logging"
)

var (
	errAlreadyRunning = errors.New("workflow already running")
	errNoStages       = errors.New("workflow stages not configured")
)

// Start launches the lane in the background. It fails when the manager is
// already running or ConfigureStages has not been called.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.running:
		return errAlreadyRunning
	case m.lane == nil || len(m.lane.statusOrder) == 0:
		return errNoStages
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	lane := m.lane
	lane.logger = m.laneLogger(lane)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runLane(runCtx, lane)
	}()
	return nil
}

// Stop cancels the lane and blocks until the in-flight item has unwound.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
}

func (m *Manager) runLane(ctx context.Context, lane *laneState) {
	logger := lane.logger
	if logger == nil {
		logger = m.logger
	}
	for ctx.Err() == nil {
		if err := m.heartbeat.reclaim(ctx, logger); err != nil && ctx.Err() == nil {
			logger.Warn("stale item reclaim failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldImpact, "items abandoned mid-stage stay stuck until the next pass"),
				logging.String(logging.FieldErrorHint, "check history database access"),
			)
		}

		item, err := m.store.NextForStatuses(ctx, lane.statusOrder...)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			m.backoff(ctx, logger, err)
		case item == nil:
			m.idle(ctx)
		default:
			if err := m.processItem(ctx, lane, logger, item); errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

// backoff records a queue read failure and sleeps for error_retry_interval.
func (m *Manager) backoff(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("next item lookup failed",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check history database access"),
	)
	sleep(ctx, nil, time.Duration(m.cfg.Workflow.ErrorRetryInterval)*time.Second)
}

// idle waits for a Wake, the poll interval, or shutdown.
func (m *Manager) idle(ctx context.Context) {
	sleep(ctx, m.wake, m.pollInterval)
}

func sleep(ctx context.Context, wake <-chan struct{}, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-wake:
	case <-timer.C:
	}
}

