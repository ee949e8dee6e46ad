// Package notifications pushes batch and failure notices to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never branch on whether notifications are enabled. The batch and
// errors flags of the [notifications] section filter events before anything
// goes over the wire.
package notifications
