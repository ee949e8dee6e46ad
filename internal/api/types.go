package api

import (
	"comicdl/internal/download"
	"comicdl/internal/events"
	"comicdl/internal/logging"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a history entry in a transport-friendly format.
type QueueItem struct {
	ID           int64         `json:"id"`
	EpisodeID    int64         `json:"episodeId"`
	EpisodeTitle string        `json:"episodeTitle"`
	MangaID      int64         `json:"mangaId"`
	MangaTitle   string        `json:"mangaTitle"`
	Status       string        `json:"status"`
	ImageCount   int           `json:"imageCount"`
	Progress     QueueProgress `json:"progress"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	DownloadPath string        `json:"downloadPath,omitempty"`
	ArchivePath  string        `json:"archivePath,omitempty"`
	CreatedAt    string        `json:"createdAt,omitempty"`
	UpdatedAt    string        `json:"updatedAt,omitempty"`
}

// QueueProgress captures stage progress information for a history entry.
type QueueProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// WorkflowStatus summarizes post-processing state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastItem    *QueueItem     `json:"lastItem,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	LogPath      string             `json:"logPath,omitempty"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Downloads    download.Snapshot  `json:"downloads"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// QueueListResponse wraps a collection of history items.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single history item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// EventsResponse carries a page of journaled events and the cursor to pass
// as since on the next poll.
type EventsResponse struct {
	Events []events.Envelope `json:"events"`
	Next   uint64            `json:"next"`
}

// LogStreamResponse carries a page of streamed log events.
type LogStreamResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}
