// Package workflow advances downloaded episodes through post-processing.
//
// The Manager polls the history store for items in a stage's start status,
// moves them to the stage's processing status, runs the registered
// stage.Handler under a heartbeat, and records the result. Two stages exist:
// watermark removal (downloaded -> watermarked) and archiving
// (watermarked, or downloaded when watermark removal is disabled -> completed).
//
// The download coordinator records an episode as downloaded before it
// publishes the episode's End event, and the manager wakes on successful End
// events instead of waiting out the poll interval. Stale processing items are
// reclaimed through heartbeats. Batch start and completion and stage failures
// are sent to the notifier.
package workflow
