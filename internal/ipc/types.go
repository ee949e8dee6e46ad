package ipc

import (
	"encoding/json"

	"comicdl/internal/api"
	"comicdl/internal/logging"
)

// ServiceName is the RPC service name registered by the server.
const ServiceName = "Comicdl"

// QueueItem mirrors the HTTP API history DTO for IPC callers.
type QueueItem = api.QueueItem

// StatusResponse carries the combined daemon status.
type StatusResponse = api.DaemonStatus

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StopRequest shuts the daemon down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// InvokeRequest runs a named command with JSON arguments.
type InvokeRequest struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// EventsRequest polls the event journal. WaitMillis bounds how long the call
// blocks when nothing newer than Since exists.
type EventsRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	WaitMillis int    `json:"wait_millis"`
}

// EventsResponse returns journaled events and the next cursor.
type EventsResponse = api.EventsResponse

// LogsRequest polls the daemon log stream.
type LogsRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	Tail       bool   `json:"tail"`
	WaitMillis int    `json:"wait_millis"`
	Component  string `json:"component,omitempty"`
	EpisodeID  int64  `json:"episode_id,omitempty"`
}

// LogsResponse returns log events and the next cursor.
type LogsResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

// QueueListRequest filters history listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains history entries.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueDescribeRequest fetches a single history item by id.
type QueueDescribeRequest struct {
	ID int64 `json:"id"`
}

// QueueDescribeResponse contains a single history entry.
type QueueDescribeResponse struct {
	Item QueueItem `json:"item"`
}

// ClearScope selects which history items QueueClear removes.
type ClearScope string

const (
	ClearAll       ClearScope = "all"
	ClearCompleted ClearScope = "completed"
	ClearFailed    ClearScope = "failed"
)

// QueueClearRequest removes history items in a scope.
type QueueClearRequest struct {
	Scope ClearScope `json:"scope"`
}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueResetRequest resets in-flight items.
type QueueResetRequest struct{}

// QueueResetResponse reports number of items reset.
type QueueResetResponse struct {
	Updated int64 `json:"updated"`
}

// QueueRetryRequest retries failed items. Empty list means all failed items.
type QueueRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRetryResponse reports retried items; Items is filled only when IDs
// were given.
type QueueRetryResponse struct {
	Updated int64                 `json:"updated"`
	Items   []api.RetryItemResult `json:"items,omitempty"`
}

// QueueRemoveRequest removes specific items by ID.
type QueueRemoveRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRemoveResponse reports per-item removal outcomes.
type QueueRemoveResponse = api.RemoveItemsResult

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports history health information.
type QueueHealthResponse struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Completed  int `json:"completed"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    string   `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalItems       int      `json:"total_items"`
	Error            string   `json:"error"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
