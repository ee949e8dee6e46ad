// Package logging assembles structured slog loggers and formatting helpers used
// across comicdl.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so download and post-processing code can
// tag log lines with episode IDs, stages, and correlation IDs. The StreamHub
// keeps recent daemon log lines for `comicdl logs`, and ProgressSampler keeps
// per-image progress from flooding the log.
package logging
