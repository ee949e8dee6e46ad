package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"comicdl/internal/config"
	"comicdl/internal/notifications"
	"comicdl/internal/queue"
	"comicdl/internal/stage"
	"comicdl/internal/workflow"
)

type stubStage struct {
	name        string
	prepareHook func(*queue.Item)
	executeHook func(context.Context, *queue.Item)
	prepareErr  error
	executeErr  error
	health      stage.Health

	mu       sync.Mutex
	calls    []int64
	statuses []queue.Status
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, item *queue.Item) error {
	if s.prepareHook != nil {
		s.prepareHook(item)
	}
	return s.prepareErr
}

func (s *stubStage) Execute(ctx context.Context, item *queue.Item) error {
	s.mu.Lock()
	s.calls = append(s.calls, item.EpisodeID)
	s.statuses = append(s.statuses, item.Status)
	s.mu.Unlock()
	if s.executeHook != nil {
		s.executeHook(ctx, item)
	}
	return s.executeErr
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

func (s *stubStage) Calls() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.calls...)
}

func (s *stubStage) Statuses() []queue.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]queue.Status(nil), s.statuses...)
}

type stubNotifier struct {
	mu       sync.Mutex
	events   []notifications.Event
	payloads []notifications.Payload
}

func (s *stubNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *stubNotifier) Events() []notifications.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notifications.Event(nil), s.events...)
}

func (s *stubNotifier) Payload(event notifications.Event) notifications.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.events {
		if e == event {
			return s.payloads[i]
		}
	}
	return nil
}

func startManager(t *testing.T, cfg *config.Config, store *queue.Store, notifier notifications.Service, set workflow.StageSet) *workflow.Manager {
	t.Helper()
	mgr := workflow.NewManagerWithNotifier(cfg, store, nil, notifier)
	mgr.ConfigureStages(set)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)
	return mgr
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Item {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		item, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if item != nil && item.Status == want {
			return item
		}
		if time.Now().After(deadline) {
			got := queue.Status("<missing>")
			if item != nil {
				got = item.Status
			}
			t.Fatalf("item %d status = %s, want %s", id, got, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
