// Package api defines wire-format types and converters shared by the IPC
// service, the HTTP API and the CLI. It translates internal history, workflow
// and download models into camelCase DTOs so clients never depend on internal
// types.
//
// FromQueueItem and FromStatusSummary are the main converters. QueueService
// wraps the history store with DTO-returning reads, and RetryFailedItemsByID
// and RemoveItemsByID report a per-id outcome for bulk maintenance commands.
//
// Timestamps are RFC3339 with milliseconds in UTC.
package api
