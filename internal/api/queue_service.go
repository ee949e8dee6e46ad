package api

import (
	"context"
	"fmt"
	"strings"

	"comicdl/internal/queue"
)

// QueueReader is the read side of the episode history.
type QueueReader interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Item, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	GetByID(ctx context.Context, id int64) (*queue.Item, error)
}

// UnknownStatusError is returned for a status filter that names no queue
// status. HTTP callers map it to 400.
type UnknownStatusError struct {
	Value string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown status %q", e.Value)
}

// ParseStatusFilter converts user-supplied status names. Blank entries are
// skipped; an empty result means no filter.
func ParseStatusFilter(values []string) ([]queue.Status, error) {
	var out []queue.Status
	for _, raw := range values {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, &UnknownStatusError{Value: value}
		}
		out = append(out, status)
	}
	return out, nil
}

// QueueService turns history rows into the DTOs shared by the IPC server,
// the HTTP API and the offline CLI. A nil service reads as empty.
type QueueService struct {
	store QueueReader
}

func NewQueueService(store QueueReader) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// List returns matching items, never nil, so JSON encodes an empty array.
func (s *QueueService) List(ctx context.Context, statuses []string) ([]QueueItem, error) {
	filter, err := ParseStatusFilter(statuses)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return []QueueItem{}, nil
	}
	items, err := s.store.List(ctx, filter...)
	if err != nil {
		return nil, err
	}
	return append([]QueueItem{}, FromQueueItems(items)...), nil
}

// Stats returns counts keyed by status name.
func (s *QueueService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil {
		return map[string]int{}, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe returns nil, nil for an unknown id.
func (s *QueueService) Describe(ctx context.Context, id int64) (*QueueItem, error) {
	if s == nil {
		return nil, nil
	}
	item, err := s.store.GetByID(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	dto := FromQueueItem(item)
	return &dto, nil
}
