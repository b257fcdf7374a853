package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"watchlist/internal/config"
)

const userAgent = "watchlist/0.1.0"

// Event names a notification kind.
type Event string

const (
	EventTitlesAvailable Event = "titles_available"
	EventLookupsFailed   Event = "lookups_failed"
	EventTest            Event = "test"
)

// Payload carries event-specific values.
type Payload map[string]any

// Arrival describes a title that started streaming in a region.
type Arrival struct {
	Title     string
	Region    string
	Providers []string
}

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
	Enabled() bool
}

// NewService builds a ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		notifyFailures: cfg.Notifications.NotifyFailures,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint       string
	client         *http.Client
	notifyFailures bool
}

func (n *ntfyService) Enabled() bool { return true }

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	name := payloadString(payload, "watchlist")
	switch event {
	case EventTitlesAvailable:
		arrivals, _ := payload["arrivals"].([]Arrival)
		if len(arrivals) == 0 {
			return message{}, false
		}
		var b strings.Builder
		if name != "" {
			fmt.Fprintf(&b, "🍿 Now streaming from %s:", name)
		} else {
			b.WriteString("🍿 Now streaming:")
		}
		for _, a := range arrivals {
			fmt.Fprintf(&b, "\n• %s (%s: %s)", a.Title, a.Region, strings.Join(a.Providers, ", "))
		}
		title := "Watchlist - Now Streaming"
		if len(arrivals) > 1 {
			title = fmt.Sprintf("Watchlist - %d Titles Now Streaming", len(arrivals))
		}
		return message{
			title: title,
			body:  b.String(),
			tags:  []string{"watchlist", "streaming"},
		}, true
	case EventLookupsFailed:
		if !n.notifyFailures {
			return message{}, false
		}
		failed := payloadInt(payload, "failed")
		total := payloadInt(payload, "lookups")
		body := fmt.Sprintf("⚠️ %d of %d lookups failed", failed, total)
		if name != "" {
			body += " for " + name
		}
		if detail := payloadString(payload, "error"); detail != "" {
			body += ": " + detail
		}
		return message{
			title:    "Watchlist - Lookups Failed",
			body:     body,
			tags:     []string{"watchlist", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Watchlist - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"watchlist", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return ""
	}
}

func payloadInt(payload Payload, key string) int {
	if payload == nil {
		return 0
	}
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
func (noopService) Enabled() bool                                { return false }
