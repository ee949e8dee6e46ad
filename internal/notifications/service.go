package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"comicdl/internal/config"
)

const userAgent = "comicdl/0.1.0"

// Event identifies a notification kind.
type Event string

const (
	EventQueueStarted   Event = "queue_started"
	EventQueueCompleted Event = "queue_completed"
	EventEpisodeReady   Event = "episode_ready"
	EventError          Event = "error"
	EventTest           Event = "test"
)

// Payload carries event-specific values keyed by name.
type Payload map[string]any

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		batch:    cfg.Notifications.Batch,
		errors:   cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	batch    bool
	errors   bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil {
		return nil
	}
	switch event {
	case EventQueueStarted, EventQueueCompleted, EventEpisodeReady:
		if !n.batch {
			return nil
		}
	case EventError:
		if !n.errors {
			return nil
		}
	}
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unsupported notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventQueueStarted:
		count := payloadInt(payload, "count")
		return message{
			title: "comicdl - Post-processing Started",
			body:  fmt.Sprintf("Processing %s %s", humanize.Comma(int64(count)), english.PluralWord(count, "episode", "episodes")),
			tags:  []string{"comicdl", "queue", "started"},
		}, true
	case EventQueueCompleted:
		processed := payloadInt(payload, "processed")
		failed := payloadInt(payload, "failed")
		duration := payloadDuration(payload, "duration")
		if failed == 0 {
			return message{
				title: "comicdl - Batch Complete",
				body:  fmt.Sprintf("%s finished in %s", english.Plural(processed, "episode", "episodes"), durationText(duration)),
				tags:  []string{"comicdl", "queue", "completed"},
			}, true
		}
		return message{
			title: "comicdl - Batch Complete (with errors)",
			body:  fmt.Sprintf("%d succeeded, %d failed in %s", processed, failed, durationText(duration)),
			tags:  []string{"comicdl", "queue", "completed"},
		}, true
	case EventEpisodeReady:
		body := fmt.Sprintf("Ready to read: %s", strings.TrimSpace(payloadString(payload, "title")))
		if size := payloadInt64(payload, "bytes"); size > 0 {
			body += " (" + humanize.Bytes(uint64(size)) + ")"
		}
		if path := strings.TrimSpace(payloadString(payload, "path")); path != "" {
			body += "\n" + path
		}
		return message{
			title: "comicdl - Episode Ready",
			body:  body,
			tags:  []string{"comicdl", "episode", "completed"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("Error")
		if label := strings.TrimSpace(payloadString(payload, "context")); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if err, ok := payload["error"].(error); ok && err != nil {
			builder.WriteString(strings.TrimSpace(err.Error()))
		} else if text := strings.TrimSpace(payloadString(payload, "error")); text != "" {
			builder.WriteString(text)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "comicdl - Error",
			body:     builder.String(),
			tags:     []string{"comicdl", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "comicdl - Test",
			body:     "Notification system test",
			tags:     []string{"comicdl", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func durationText(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func payloadString(p Payload, key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func payloadInt(p Payload, key string) int {
	return int(payloadInt64(p, key))
}

func payloadInt64(p Payload, key string) int64 {
	switch v := p[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func payloadDuration(p Payload, key string) time.Duration {
	if d, ok := p[key].(time.Duration); ok {
		return d
	}
	return 0
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n.client == nil {
		return errors.New("ntfy client not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
