// Package services holds the error markers and context helpers shared by the
// download, watermark, and post-processing packages.
//
// Errors are tagged with one of the sentinel markers through Wrap so callers can
// classify them with errors.Is (retryable, cancelled, validation) without parsing
// messages. The context helpers carry episode, comic, stage, and request
// identifiers that the logging package lifts into structured fields.
package services
