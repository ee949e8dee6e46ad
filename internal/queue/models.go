package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of an episode in the history store.
type Status string

const (
	StatusPending      Status = "pending"
	StatusDownloading  Status = "downloading"
	StatusDownloaded   Status = "downloaded"
	StatusWatermarking Status = "watermarking"
	StatusWatermarked  Status = "watermarked"
	StatusArchiving    Status = "archiving"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// DaemonStopReason is the progress message set when in-flight work is reset by
// a daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusDownloading,
	StatusDownloaded,
	StatusWatermarking,
	StatusWatermarked,
	StatusArchiving,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusDownloading:  {},
	StatusWatermarking: {},
	StatusArchiving:    {},
}

// finishedStatuses are the states in which every image of the episode is on
// disk.
var finishedStatuses = []Status{
	StatusDownloaded,
	StatusWatermarking,
	StatusWatermarked,
	StatusArchiving,
	StatusCompleted,
}

type statusTransition struct {
	from Status
	to   Status
}

var stageRollbackTransitions = []statusTransition{
	{from: StatusDownloading, to: StatusPending},
	{from: StatusWatermarking, to: StatusDownloaded},
	{from: StatusArchiving, to: StatusWatermarked},
}

// DatabaseHealth captures diagnostic information about the history database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// HealthSummary describes aggregated counts per key lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// Episode is the identity recorded when an episode is accepted for download.
type Episode struct {
	EpisodeID    int64
	EpisodeTitle string
	MangaID      int64
	MangaTitle   string
}

// Item represents one episode row.
type Item struct {
	ID              int64
	EpisodeID       int64
	EpisodeTitle    string
	MangaID         int64
	MangaTitle      string
	Status          Status
	ImageCount      int
	DownloadPath    string
	ArchivePath     string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	LastHeartbeat   *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (i Item) IsProcessing() bool {
	return IsProcessingStatus(i.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsFinished reports whether every image of the episode is on disk.
func (i Item) IsFinished() bool {
	for _, status := range finishedStatuses {
		if i.Status == status {
			return true
		}
	}
	return false
}

// Episode returns the identity the item was enqueued with.
func (i Item) Episode() Episode {
	return Episode{
		EpisodeID:    i.EpisodeID,
		EpisodeTitle: i.EpisodeTitle,
		MangaID:      i.MangaID,
		MangaTitle:   i.MangaTitle,
	}
}

// SetProgress updates all three progress fields together.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetFailed marks the item as failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.LastHeartbeat = nil
	i.ProgressStage = "Failed"
}
