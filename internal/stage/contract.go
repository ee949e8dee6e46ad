// Package stage holds the contract between the workflow manager and the
// post-processing steps run over a downloaded episode.
package stage

import (
	"context"

	"comicdl/internal/queue"
)

// Handler is one post-processing step (watermark removal, archiving).
// Prepare checks the episode directory is usable; Execute does the work and
// records any new path on the item. The manager moves the item to the next
// status after Execute returns nil.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}

// Health is a step's readiness as reported by the daemon status.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

func Healthy(name string) Health { return Health{Name: name, Ready: true} }

func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}
