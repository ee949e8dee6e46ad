package queue

import (
	"context"
	"fmt"
	"time"
)

func rollbackCase() (string, []any) {
	clause := "CASE status"
	args := make([]any, 0, len(stageRollbackTransitions)*2)
	for _, tr := range stageRollbackTransitions {
		clause += " WHEN ? THEN ?"
		args = append(args, tr.from, tr.to)
	}
	return clause + " ELSE status END", args
}

func rollbackSources() []any {
	out := make([]any, len(stageRollbackTransitions))
	for i, tr := range stageRollbackTransitions {
		out[i] = tr.from
	}
	return out
}

// ResetStuckProcessing returns items left in a processing state by a previous
// daemon run to the start of their current stage.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	caseClause, args := rollbackCase()
	args = append(args, DaemonStopReason, nowString())
	args = append(args, rollbackSources()...)
	res, err := s.exec(
		ctx,
		`UPDATE queue_items
         SET status = `+caseClause+`,
             progress_stage = 'Reset from stuck processing',
             progress_percent = 0, progress_message = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (`+makePlaceholders(len(stageRollbackTransitions))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := nowString()
	if err := s.execOnly(
		ctx,
		`UPDATE queue_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing rolls back processing items whose heartbeat is older
// than cutoff.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	caseClause, args := rollbackCase()
	args = append(args, nowString())
	args = append(args, rollbackSources()...)
	args = append(args, cutoff.UTC().Format(timeLayout))
	res, err := s.exec(
		ctx,
		`UPDATE queue_items
        SET status = `+caseClause+`,
            progress_stage = 'Reclaimed from stale processing',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (`+makePlaceholders(len(stageRollbackTransitions))+`)
          AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return res.RowsAffected()
}

// MarkEpisode moves the row for episodeID to status. A non-empty message on a
// failed status is stored as the error; on other statuses it becomes the
// progress message.
func (s *Store) MarkEpisode(ctx context.Context, episodeID int64, status Status, message string) error {
	var errorMessage any
	progressMessage := nullableString(message)
	if status == StatusFailed {
		errorMessage = nullableString(message)
	}
	if err := s.execOnly(
		ctx,
		`UPDATE queue_items
         SET status = ?, error_message = ?, progress_stage = ?, progress_message = ?,
             progress_percent = 0, updated_at = ?
         WHERE episode_id = ?`,
		status,
		errorMessage,
		string(status),
		progressMessage,
		nowString(),
		episodeID,
	); err != nil {
		return fmt.Errorf("mark episode %d %s: %w", episodeID, status, err)
	}
	return nil
}

// RecordDownload stores where a finished episode landed and how many images it has.
func (s *Store) RecordDownload(ctx context.Context, episodeID int64, dir string, images int) error {
	if err := s.execOnly(
		ctx,
		`UPDATE queue_items
         SET status = ?, download_path = ?, image_count = ?, error_message = NULL,
             progress_stage = ?, progress_percent = 100, progress_message = NULL, updated_at = ?
         WHERE episode_id = ?`,
		StatusDownloaded,
		dir,
		images,
		string(StatusDownloaded),
		nowString(),
		episodeID,
	); err != nil {
		return fmt.Errorf("record download %d: %w", episodeID, err)
	}
	return nil
}

// RetryFailed moves failed items back to pending for reprocessing. With no ids
// every failed item is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	args := []any{StatusPending, nowString(), StatusFailed}
	query := `UPDATE queue_items
        SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL, updated_at = ?
        WHERE status = ?`
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	return res.RowsAffected()
}
