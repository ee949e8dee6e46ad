package main

import (
	"context"
	"errors"
	"strings"

	"comicdl/internal/api"
	"comicdl/internal/ipc"
	"comicdl/internal/queue"
)

// queueAPI is the history surface shared by the daemon connection and the
// offline store fallback.
type queueAPI interface {
	Stats(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, statuses []string) ([]api.QueueItem, error)
	Describe(ctx context.Context, id int64) (*api.QueueItem, error)
	Clear(ctx context.Context, scope ipc.ClearScope) (int64, error)
	Remove(ctx context.Context, ids []int64) (api.RemoveItemsResult, error)
	ResetStuck(ctx context.Context) (int64, error)
	Retry(ctx context.Context, ids []int64) (ipc.QueueRetryResponse, error)
	Health(ctx context.Context) (queue.HealthSummary, error)
	DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error)
}

var errItemNotFound = errors.New("item not found")

// withQueue runs fn against the daemon when it is reachable, otherwise
// against the history database. online reports which one was used.
func (c *commandContext) withQueue(fn func(q queueAPI, online bool) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	socket := cfg.SocketPath()
	client, err := ipc.Dial(socket)
	if err == nil {
		defer client.Close()
		return fn(&queueIPCAdapter{client: client}, true)
	}
	if !isDaemonUnavailable(err) {
		return wrapDialError(err, socket)
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(&queueStoreAdapter{store: store, service: api.NewQueueService(store)}, false)
}

type queueIPCAdapter struct {
	client *ipc.Client
}

func (a *queueIPCAdapter) Stats(context.Context) (map[string]int, error) {
	resp, err := a.client.Status()
	if err != nil {
		return nil, err
	}
	return resp.Workflow.QueueStats, nil
}

func (a *queueIPCAdapter) List(_ context.Context, statuses []string) ([]api.QueueItem, error) {
	resp, err := a.client.QueueList(statuses)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *queueIPCAdapter) Describe(_ context.Context, id int64) (*api.QueueItem, error) {
	resp, err := a.client.QueueDescribe(id)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, nil
		}
		return nil, err
	}
	return &resp.Item, nil
}

func (a *queueIPCAdapter) Clear(_ context.Context, scope ipc.ClearScope) (int64, error) {
	resp, err := a.client.QueueClear(scope)
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *queueIPCAdapter) Remove(_ context.Context, ids []int64) (api.RemoveItemsResult, error) {
	resp, err := a.client.QueueRemove(ids)
	if err != nil {
		return api.RemoveItemsResult{}, err
	}
	return *resp, nil
}

func (a *queueIPCAdapter) ResetStuck(context.Context) (int64, error) {
	resp, err := a.client.QueueReset()
	if err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (a *queueIPCAdapter) Retry(_ context.Context, ids []int64) (ipc.QueueRetryResponse, error) {
	resp, err := a.client.QueueRetry(ids)
	if err != nil {
		return ipc.QueueRetryResponse{}, err
	}
	return *resp, nil
}

func (a *queueIPCAdapter) Health(context.Context) (queue.HealthSummary, error) {
	resp, err := a.client.QueueHealth()
	if err != nil {
		return queue.HealthSummary{}, err
	}
	return queue.HealthSummary(*resp), nil
}

func (a *queueIPCAdapter) DatabaseHealth(context.Context) (queue.DatabaseHealth, error) {
	resp, err := a.client.DatabaseHealth()
	if err != nil {
		return queue.DatabaseHealth{}, err
	}
	return queue.DatabaseHealth(*resp), nil
}

type queueStoreAdapter struct {
	store   *queue.Store
	service *api.QueueService
}

func (a *queueStoreAdapter) Stats(ctx context.Context) (map[string]int, error) {
	return a.service.Stats(ctx)
}

func (a *queueStoreAdapter) List(ctx context.Context, statuses []string) ([]api.QueueItem, error) {
	return a.service.List(ctx, statuses)
}

func (a *queueStoreAdapter) Describe(ctx context.Context, id int64) (*api.QueueItem, error) {
	return a.service.Describe(ctx, id)
}

func (a *queueStoreAdapter) Clear(ctx context.Context, scope ipc.ClearScope) (int64, error) {
	switch scope {
	case ipc.ClearCompleted:
		return a.store.ClearCompleted(ctx)
	case ipc.ClearFailed:
		return a.store.ClearFailed(ctx)
	default:
		return a.store.Clear(ctx)
	}
}

func (a *queueStoreAdapter) Remove(ctx context.Context, ids []int64) (api.RemoveItemsResult, error) {
	return api.RemoveItemsByID(ctx, storeRemover{a.store}, ids)
}

func (a *queueStoreAdapter) ResetStuck(ctx context.Context) (int64, error) {
	return a.store.ResetStuckProcessing(ctx)
}

// Retry without a running daemon always re-queues for download; the daemon
// decides between re-download and post-processing when it resumes.
func (a *queueStoreAdapter) Retry(ctx context.Context, ids []int64) (ipc.QueueRetryResponse, error) {
	if len(ids) == 0 {
		updated, err := a.store.RetryFailed(ctx)
		return ipc.QueueRetryResponse{Updated: updated}, err
	}
	result, err := api.RetryFailedItemsByID(ctx, storeRetrier{a}, ids)
	if err != nil {
		return ipc.QueueRetryResponse{}, err
	}
	return ipc.QueueRetryResponse{Updated: result.UpdatedCount, Items: result.Items}, nil
}

func (a *queueStoreAdapter) Health(ctx context.Context) (queue.HealthSummary, error) {
	return a.store.Health(ctx)
}

func (a *queueStoreAdapter) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return a.store.CheckHealth(ctx)
}

type storeRemover struct{ store *queue.Store }

func (r storeRemover) Remove(ctx context.Context, ids []int64) (int64, error) {
	var count int64
	for _, id := range ids {
		removed, err := r.store.Remove(ctx, id)
		if err != nil {
			return count, err
		}
		if removed {
			count++
		}
	}
	return count, nil
}

type storeRetrier struct{ a *queueStoreAdapter }

func (r storeRetrier) Describe(ctx context.Context, id int64) (*api.QueueItem, error) {
	return r.a.service.Describe(ctx, id)
}

func (r storeRetrier) Retry(ctx context.Context, ids []int64) (int64, error) {
	return r.a.store.RetryFailed(ctx, ids...)
}
