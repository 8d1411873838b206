package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nki-radiology/SegmentationReview/internal/config"
)

const userAgent = "SegReview-Go/0.1.0"

// Event identifies a session milestone worth notifying about.
type Event string

const (
	// EventSessionStarted fires after a directory selection produced a
	// non-empty worklist.
	EventSessionStarted Event = "session_started"
	// EventSessionCompleted fires when the last case was reviewed.
	EventSessionCompleted Event = "session_completed"
	// EventSaveFailure fires when save-and-next could not persist a case.
	EventSaveFailure Event = "save_failure"
	// EventError fires for daemon-level failures worth an operator alert.
	EventError Event = "error"
)

// Payload carries event-specific values used to format the message.
type Payload map[string]string

// Service defines the notification surface exposed to review components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:         topic,
		client:           &http.Client{Timeout: timeout},
		sessionStarted:   cfg.Notifications.SessionStarted,
		sessionCompleted: cfg.Notifications.SessionCompleted,
		errors:           cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint         string
	client           *http.Client
	sessionStarted   bool
	sessionCompleted bool
	errors           bool
}

// Publish formats and sends the event. Events disabled in configuration
// and unknown events are dropped without error.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	switch event {
	case EventSessionStarted:
		if !n.sessionStarted {
			return nil
		}
		return n.send(ctx, message{
			title: "SegReview - Session Started",
			body:  fmt.Sprintf("Started review session: %s cases in %s", payload["count"], payload["root"]),
			tags:  []string{"segreview", "session", "started"},
		})
	case EventSessionCompleted:
		if !n.sessionCompleted {
			return nil
		}
		return n.send(ctx, message{
			title: "SegReview - All Checked",
			body: fmt.Sprintf("✅ All files checked: %s cases reviewed in %s",
				payload["reviewed"], formatDuration(payload["duration"])),
			tags: []string{"segreview", "session", "completed"},
		})
	case EventSaveFailure:
		if !n.errors {
			return nil
		}
		return n.send(ctx, message{
			title:    "SegReview - Save Failed",
			body:     fmt.Sprintf("❌ Save failed for %s: %s", payload["patientID"], payload["error"]),
			tags:     []string{"segreview", "save", "alert"},
			priority: "high",
		})
	case EventError:
		if !n.errors {
			return nil
		}
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if contextLabel := strings.TrimSpace(payload["context"]); contextLabel != "" {
			builder.WriteString(" with ")
			builder.WriteString(contextLabel)
		}
		builder.WriteString(": ")
		if detail := strings.TrimSpace(payload["error"]); detail != "" {
			builder.WriteString(detail)
		} else {
			builder.WriteString("unknown")
		}
		return n.send(ctx, message{
			title:    "SegReview - Error",
			body:     builder.String(),
			tags:     []string{"segreview", "error", "alert"},
			priority: "high",
		})
	default:
		return nil
	}
}

func formatDuration(raw string) string {
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return raw
	}
	parsed = parsed.Round(time.Second)
	if parsed <= 0 {
		return "0s"
	}
	return parsed.String()
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
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
