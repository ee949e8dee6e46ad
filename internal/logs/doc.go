// Package logs reads the daemon's log file directly.
//
// The CLI falls back to it when the daemon is not running and its in-memory
// stream hub is unreachable. Tail returns the last N lines or everything after
// a byte offset, optionally waiting for new lines to arrive. ParseLine turns a
// JSON log record back into a logging.LogEvent so offline output renders the
// same way as streamed output.
package logs
