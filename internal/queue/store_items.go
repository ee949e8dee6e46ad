package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Enqueue records an accepted episode as pending. An existing row for the same
// episode is reset to pending with its error cleared, so re-downloading keeps a
// single history entry per episode.
func (s *Store) Enqueue(ctx context.Context, ep Episode) (*Item, error) {
	if ep.EpisodeID == 0 {
		return nil, errors.New("episode id is required")
	}
	timestamp := nowString()
	if err := s.execOnly(
		ctx,
		`INSERT INTO queue_items (
            episode_id, episode_title, manga_id, manga_title, status,
            created_at, updated_at, progress_percent
        ) VALUES (?, ?, ?, ?, ?, ?, ?, 0)
        ON CONFLICT(episode_id) DO UPDATE SET
            episode_title = excluded.episode_title,
            manga_id = excluded.manga_id,
            manga_title = excluded.manga_title,
            status = excluded.status,
            error_message = NULL,
            progress_stage = NULL,
            progress_percent = 0,
            progress_message = NULL,
            last_heartbeat = NULL,
            updated_at = excluded.updated_at`,
		ep.EpisodeID,
		ep.EpisodeTitle,
		ep.MangaID,
		ep.MangaTitle,
		StatusPending,
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("enqueue episode: %w", err)
	}
	return s.GetByEpisode(ctx, ep.EpisodeID)
}

// GetByID fetches an item by row identifier. A missing row returns nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// GetByEpisode fetches the row for a catalog episode id.
func (s *Store) GetByEpisode(ctx context.Context, episodeID int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE episode_id = ?`, episodeID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	if err := s.execOnly(
		ctx,
		`UPDATE queue_items
         SET episode_title = ?, manga_id = ?, manga_title = ?, status = ?,
             image_count = ?, download_path = ?, archive_path = ?, error_message = ?,
             updated_at = ?, progress_stage = ?, progress_percent = ?, progress_message = ?,
             last_heartbeat = ?
         WHERE id = ?`,
		item.EpisodeTitle,
		item.MangaID,
		item.MangaTitle,
		item.Status,
		item.ImageCount,
		nullableString(item.DownloadPath),
		nullableString(item.ArchivePath),
		nullableString(item.ErrorMessage),
		item.UpdatedAt.Format(timeLayout),
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		nullableTime(item.LastHeartbeat),
		item.ID,
	); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// ItemsByStatus returns items matching a status ordered by creation time.
func (s *Store) ItemsByStatus(ctx context.Context, status Status) ([]*Item, error) {
	return s.List(ctx, status)
}

// List returns items filtered by status set (or all items when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
	}
	query += ` ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query, statusArgs(statuses)...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	return scanItems(rows)
}

// ListByManga returns every row recorded for one comic.
func (s *Store) ListByManga(ctx context.Context, mangaID int64) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE manga_id = ? ORDER BY created_at, id`, mangaID)
	if err != nil {
		return nil, fmt.Errorf("list manga items: %w", err)
	}
	return scanItems(rows)
}

// NextForStatuses returns the oldest item matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Item, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := `SELECT ` + itemColumns + ` FROM queue_items WHERE status IN (` + makePlaceholders(len(statuses)) + `) ORDER BY created_at, id LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, statusArgs(statuses)...)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// FinishedEpisodeIDs returns the episode ids of a comic whose images are all
// on disk.
func (s *Store) FinishedEpisodeIDs(ctx context.Context, mangaID int64) (map[int64]struct{}, error) {
	args := append([]any{mangaID}, statusArgs(finishedStatuses)...)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT episode_id FROM queue_items WHERE manga_id = ? AND status IN (`+makePlaceholders(len(finishedStatuses))+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("finished episodes: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// Remove deletes an item by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed items.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all items.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM queue_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed items.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}
