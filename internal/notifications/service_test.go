package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"comicdl/internal/config"
	"comicdl/internal/notifications"
)

type captured struct {
	title    string
	body     string
	tags     string
	priority string
}

func newNtfyServer(t *testing.T) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), reqs...)
	}
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventError, notifications.Payload{"error": errors.New("boom")}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("nil config: %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectBody     string
		expectTags     string
		expectPriority string
	}{
		{
			name:        "queue started",
			event:       notifications.EventQueueStarted,
			payload:     notifications.Payload{"count": 1200},
			expectTitle: "comicdl - Post-processing Started",
			expectBody:  "Processing 1,200 episodes",
			expectTags:  "comicdl,queue,started",
		},
		{
			name:        "batch complete",
			event:       notifications.EventQueueCompleted,
			payload:     notifications.Payload{"processed": 1, "failed": 0, "duration": 90 * time.Second},
			expectTitle: "comicdl - Batch Complete",
			expectBody:  "1 episode finished in 1m30s",
			expectTags:  "comicdl,queue,completed",
		},
		{
			name:        "batch complete with errors",
			event:       notifications.EventQueueCompleted,
			payload:     notifications.Payload{"processed": 3, "failed": 2},
			expectTitle: "comicdl - Batch Complete (with errors)",
			expectBody:  "3 succeeded, 2 failed in 0s",
			expectTags:  "comicdl,queue,completed",
		},
		{
			name:        "episode ready",
			event:       notifications.EventEpisodeReady,
			payload:     notifications.Payload{"title": "Comic - Ep 1", "bytes": int64(2_500_000), "path": "/comics/Comic/Ep 1.cbz"},
			expectTitle: "comicdl - Episode Ready",
			expectBody:  "Ready to read: Comic - Ep 1 (2.5 MB)\n/comics/Comic/Ep 1.cbz",
			expectTags:  "comicdl,episode,completed",
		},
		{
			name:           "error",
			event:          notifications.EventError,
			payload:        notifications.Payload{"error": errors.New("disk full"), "context": "archive (item #4)"},
			expectTitle:    "comicdl - Error",
			expectBody:     "Error with archive (item #4): disk full",
			expectTags:     "comicdl,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "comicdl - Test",
			expectBody:     "Notification system test",
			expectTags:     "comicdl,test",
			expectPriority: "low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, requests := newNtfyServer(t)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			svc := notifications.NewService(&cfg)

			if err := svc.Publish(context.Background(), tt.event, tt.payload); err != nil {
				t.Fatalf("publish: %v", err)
			}
			got := requests()
			if len(got) != 1 {
				t.Fatalf("expected 1 request, got %d", len(got))
			}
			req := got[0]
			if req.title != tt.expectTitle {
				t.Errorf("title = %q, want %q", req.title, tt.expectTitle)
			}
			if req.body != tt.expectBody {
				t.Errorf("body = %q, want %q", req.body, tt.expectBody)
			}
			if req.tags != tt.expectTags {
				t.Errorf("tags = %q, want %q", req.tags, tt.expectTags)
			}
			if req.priority != tt.expectPriority {
				t.Errorf("priority = %q, want %q", req.priority, tt.expectPriority)
			}
		})
	}
}

func TestNtfyServiceRespectsFlags(t *testing.T) {
	srv, requests := newNtfyServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.Batch = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(&cfg)

	for _, event := range []notifications.Event{
		notifications.EventQueueStarted,
		notifications.EventQueueCompleted,
		notifications.EventEpisodeReady,
		notifications.EventError,
	} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{}); err != nil {
			t.Fatalf("publish %s: %v", event, err)
		}
	}
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("publish test: %v", err)
	}
	if got := requests(); len(got) != 1 || got[0].title != "comicdl - Test" {
		t.Fatalf("expected only the test notification, got %+v", got)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic not allowed", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)

	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "topic not allowed") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestNtfyServiceRejectsUnknownEvent(t *testing.T) {
	srv, requests := newNtfyServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)

	if err := svc.Publish(context.Background(), notifications.Event("disc_detected"), nil); err == nil {
		t.Fatal("expected error for unknown event")
	}
	if len(requests()) != 0 {
		t.Fatal("unknown event reached ntfy")
	}
}
