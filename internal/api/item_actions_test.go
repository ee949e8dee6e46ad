package api

import (
	"context"
	"errors"
	"testing"
)

type fakeActions struct {
	items   map[int64]*QueueItem
	retried []int64
	removed map[int64]bool
}

func (f *fakeActions) Describe(_ context.Context, id int64) (*QueueItem, error) {
	return f.items[id], nil
}

func (f *fakeActions) Retry(_ context.Context, ids []int64) (int64, error) {
	f.retried = append(f.retried, ids...)
	return int64(len(ids)), nil
}

func (f *fakeActions) Remove(_ context.Context, ids []int64) (int64, error) {
	var n int64
	for _, id := range ids {
		if f.removed[id] {
			continue
		}
		if _, ok := f.items[id]; ok {
			f.removed[id] = true
			n++
		}
	}
	return n, nil
}

func TestRetryFailedItemsByID(t *testing.T) {
	svc := &fakeActions{items: map[int64]*QueueItem{
		1: {ID: 1, Status: "failed"},
		2: {ID: 2, Status: "completed"},
	}}

	result, err := RetryFailedItemsByID(context.Background(), svc, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("RetryFailedItemsByID: %v", err)
	}
	if result.UpdatedCount != 1 {
		t.Fatalf("updated = %d", result.UpdatedCount)
	}
	want := []RetryItemOutcome{RetryItemUpdated, RetryItemNotFailed, RetryItemNotFound}
	for i, outcome := range want {
		if result.Items[i].Outcome != outcome {
			t.Fatalf("item %d outcome = %s, want %s", i, result.Items[i].Outcome, outcome)
		}
	}
	if len(svc.retried) != 1 || svc.retried[0] != 1 {
		t.Fatalf("retried = %v", svc.retried)
	}
}

type failingDescribe struct{ fakeActions }

func (*failingDescribe) Describe(context.Context, int64) (*QueueItem, error) {
	return nil, errors.New("database locked")
}

func TestRetryFailedItemsByIDPropagatesErrors(t *testing.T) {
	if _, err := RetryFailedItemsByID(context.Background(), &failingDescribe{}, []int64{1}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRemoveItemsByID(t *testing.T) {
	svc := &fakeActions{
		items:   map[int64]*QueueItem{4: {ID: 4}},
		removed: map[int64]bool{},
	}
	result, err := RemoveItemsByID(context.Background(), svc, []int64{4, 5})
	if err != nil {
		t.Fatalf("RemoveItemsByID: %v", err)
	}
	if result.RemovedCount != 1 || result.Items[0].Outcome != RemoveItemRemoved || result.Items[1].Outcome != RemoveItemNotFound {
		t.Fatalf("unexpected result %+v", result)
	}
}
