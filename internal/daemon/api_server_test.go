package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"comicdl/internal/api"
	"comicdl/internal/logging"
	"comicdl/internal/queue"
)

type queueStoreStub struct {
	items []*queue.Item
}

func (s *queueStoreStub) List(_ context.Context, statuses ...queue.Status) ([]*queue.Item, error) {
	if len(statuses) == 0 {
		return s.items, nil
	}
	var out []*queue.Item
	for _, item := range s.items {
		for _, status := range statuses {
			if item.Status == status {
				out = append(out, item)
			}
		}
	}
	return out, nil
}

func (s *queueStoreStub) Stats(context.Context) (map[queue.Status]int, error) {
	return map[queue.Status]int{queue.StatusPending: len(s.items)}, nil
}

func (s *queueStoreStub) GetByID(_ context.Context, id int64) (*queue.Item, error) {
	for _, item := range s.items {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, nil
}

func newTestAPIServer(token string) *apiServer {
	store := &queueStoreStub{items: []*queue.Item{
		{ID: 1, EpisodeID: 11, MangaTitle: "Comic", EpisodeTitle: "Ep 1", Status: queue.StatusPending},
		{ID: 2, EpisodeID: 12, MangaTitle: "Comic", EpisodeTitle: "Ep 2", Status: queue.StatusFailed, ErrorMessage: "boom"},
	}}
	return &apiServer{token: token, logger: logging.NewNop(), queueSvc: api.NewQueueService(store)}
}

func TestAPIServerHandleQueue(t *testing.T) {
	handler := newTestAPIServer("").routes()

	req := httptest.NewRequest(http.MethodGet, "/api/queue?status=failed", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.QueueListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].EpisodeTitle != "Ep 2" || resp.Items[0].ErrorMessage != "boom" {
		t.Fatalf("unexpected items: %+v", resp.Items)
	}
}

func TestAPIServerRejectsUnknownStatus(t *testing.T) {
	handler := newTestAPIServer("").routes()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/queue?status=ripping", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAPIServerHandleQueueItem(t *testing.T) {
	handler := newTestAPIServer("").routes()

	tests := []struct {
		path string
		code int
	}{
		{"/api/queue/2", http.StatusOK},
		{"/api/queue/99", http.StatusNotFound},
		{"/api/queue/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if w.Code != tt.code {
			t.Fatalf("%s: expected %d, got %d", tt.path, tt.code, w.Code)
		}
	}
}

func TestAPIServerRequiresBearerToken(t *testing.T) {
	handler := newTestAPIServer("secret").routes()

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, w.Code)
			}
		})
	}
}

func TestAPIServerMethodNotAllowed(t *testing.T) {
	handler := newTestAPIServer("").routes()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/queue", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
