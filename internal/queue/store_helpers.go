package queue

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

var itemColumnNames = []string{
	"id", "episode_id", "episode_title", "manga_id", "manga_title",
	"status", "image_count", "download_path", "archive_path", "error_message",
	"created_at", "updated_at",
	"progress_stage", "progress_percent", "progress_message", "last_heartbeat",
}

var itemColumns = strings.Join(itemColumnNames, ", ")

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item             Item
		statusStr        string
		downloadPath     sql.NullString
		archivePath      sql.NullString
		errorMessage     sql.NullString
		createdRaw       string
		updatedRaw       string
		progressStage    sql.NullString
		progressMessage  sql.NullString
		lastHeartbeatRaw sql.NullString
	)
	if err := scanner.Scan(
		&item.ID,
		&item.EpisodeID,
		&item.EpisodeTitle,
		&item.MangaID,
		&item.MangaTitle,
		&statusStr,
		&item.ImageCount,
		&downloadPath,
		&archivePath,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&item.ProgressPercent,
		&progressMessage,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	item.Status = Status(statusStr)
	item.DownloadPath = downloadPath.String
	item.ArchivePath = archivePath.String
	item.ErrorMessage = errorMessage.String
	item.ProgressStage = progressStage.String
	item.ProgressMessage = progressMessage.String
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return &item, nil
}

func scanItems(rows *sql.Rows) ([]*Item, error) {
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// timeLayout is fixed width so timestamps sort lexically in SQL.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(timeLayout)
}

func nowString() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	return args
}
