package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"comicdl/internal/api"
	"comicdl/internal/config"
	"comicdl/internal/logging"
)

const (
	defaultPageLimit = 200
	maxCommandBody   = 1 << 20
)

type apiServer struct {
	bind     string
	token    string
	logger   *slog.Logger
	daemon   *Daemon
	queueSvc *api.QueueService

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// newAPIServer returns nil when the API is disabled with an api_bind of "off".
func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" || strings.EqualFold(bind, "off") {
		return nil
	}
	srv := &apiServer{
		bind:     bind,
		token:    cfg.Paths.APIToken,
		logger:   logging.NewComponentLogger(logger, "api-server"),
		daemon:   d,
		queueSvc: api.NewQueueService(d.store),
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", authMiddleware(s.token, s.handleStatus))
	mux.HandleFunc("GET /api/queue", authMiddleware(s.token, s.handleQueue))
	mux.HandleFunc("GET /api/queue/{id}", authMiddleware(s.token, s.handleQueueItem))
	mux.HandleFunc("POST /api/commands/{name}", authMiddleware(s.token, s.handleCommand))
	mux.HandleFunc("GET /api/events", authMiddleware(s.token, s.handleEvents))
	mux.HandleFunc("GET /api/logs", authMiddleware(s.token, s.handleLogs))
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
}

func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, ToAPIStatus(s.daemon.Status(r.Context())))
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	items, err := s.queueSvc.List(r.Context(), r.URL.Query()["status"])
	var unknown *api.UnknownStatusError
	switch {
	case errors.As(err, &unknown):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Items: items})
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid queue item id")
		return
	}
	item, err := s.queueSvc.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueItemResponse{Item: *item})
}

// handleCommand invokes a command with the request body as its arguments.
// The dispatcher reports failures inside the result, so the status is 200
// whenever the command ran.
func (s *apiServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read request body")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Invoke(r.Context(), r.PathValue("name"), json.RawMessage(body)))
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	since, limit, wait := pageParams(r)
	evts, next, err := s.daemon.Events(r.Context(), since, limit, wait)
	if err != nil && !isContextErr(err) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.EventsResponse{Events: evts, Next: next})
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	since, limit, follow := pageParams(r)
	query := r.URL.Query()
	tail := truthy(query.Get("tail"))
	component := strings.TrimSpace(query.Get("component"))
	var episode int64
	if value := strings.TrimSpace(query.Get("episode")); value != "" {
		episode, _ = strconv.ParseInt(value, 10, 64)
	}

	evts, next, err := s.daemon.Logs(r.Context(), since, limit, follow, tail)
	if err != nil && !isContextErr(err) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	filtered := make([]logging.LogEvent, 0, len(evts))
	for _, evt := range evts {
		if episode != 0 && evt.EpisodeID != episode {
			continue
		}
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		filtered = append(filtered, evt)
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: filtered, Next: next})
}

func pageParams(r *http.Request) (since uint64, limit int, wait bool) {
	query := r.URL.Query()
	since, _ = strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ = strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultPageLimit
	}
	wait = truthy(query.Get("follow")) || truthy(query.Get("wait"))
	return since, limit, wait
}

func truthy(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
