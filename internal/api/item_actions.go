package api

import (
	"context"

	"comicdl/internal/queue"
)

// QueueActionService is what per-item retry needs from the history.
type QueueActionService interface {
	Describe(ctx context.Context, id int64) (*QueueItem, error)
	Retry(ctx context.Context, ids []int64) (int64, error)
}

// QueueRemoveService is what per-item removal needs from the history.
type QueueRemoveService interface {
	Remove(ctx context.Context, ids []int64) (int64, error)
}

type (
	RetryItemOutcome  string
	RemoveItemOutcome string
)

const (
	RetryItemUpdated   RetryItemOutcome = "retried"
	RetryItemNotFound  RetryItemOutcome = "not_found"
	RetryItemNotFailed RetryItemOutcome = "not_failed"

	RemoveItemRemoved  RemoveItemOutcome = "removed"
	RemoveItemNotFound RemoveItemOutcome = "not_found"
)

type RetryItemResult struct {
	ID      int64            `json:"id"`
	Outcome RetryItemOutcome `json:"outcome"`
}

type RetryItemsResult struct {
	UpdatedCount int64             `json:"updatedCount"`
	Items        []RetryItemResult `json:"items"`
}

type RemoveItemResult struct {
	ID      int64             `json:"id"`
	Outcome RemoveItemOutcome `json:"outcome"`
}

type RemoveItemsResult struct {
	RemovedCount int64              `json:"removedCount"`
	Items        []RemoveItemResult `json:"items"`
}

// RetryFailedItemsByID moves each listed episode back to pending if, and only
// if, its last attempt failed. The first store error aborts the batch.
func RetryFailedItemsByID(ctx context.Context, service QueueActionService, ids []int64) (RetryItemsResult, error) {
	result := RetryItemsResult{Items: make([]RetryItemResult, 0, len(ids))}
	for _, id := range ids {
		outcome, updated, err := retryOne(ctx, service, id)
		if err != nil {
			return RetryItemsResult{}, err
		}
		result.UpdatedCount += updated
		result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: outcome})
	}
	return result, nil
}

func retryOne(ctx context.Context, service QueueActionService, id int64) (RetryItemOutcome, int64, error) {
	item, err := service.Describe(ctx, id)
	if err != nil {
		return "", 0, err
	}
	if item == nil {
		return RetryItemNotFound, 0, nil
	}
	if status, ok := queue.ParseStatus(item.Status); !ok || status != queue.StatusFailed {
		return RetryItemNotFailed, 0, nil
	}
	updated, err := service.Retry(ctx, []int64{id})
	switch {
	case err != nil:
		return "", 0, err
	case updated == 0:
		// Someone else retried or removed it between Describe and Retry.
		return RetryItemNotFailed, 0, nil
	default:
		return RetryItemUpdated, updated, nil
	}
}

// RemoveItemsByID deletes history rows one id at a time so every id gets its
// own outcome. Files on disk are left alone.
func RemoveItemsByID(ctx context.Context, service QueueRemoveService, ids []int64) (RemoveItemsResult, error) {
	result := RemoveItemsResult{Items: make([]RemoveItemResult, 0, len(ids))}
	for _, id := range ids {
		removed, err := service.Remove(ctx, []int64{id})
		if err != nil {
			return RemoveItemsResult{}, err
		}
		outcome := RemoveItemNotFound
		if removed > 0 {
			outcome = RemoveItemRemoved
			result.RemovedCount += removed
		}
		result.Items = append(result.Items, RemoveItemResult{ID: id, Outcome: outcome})
	}
	return result, nil
}
