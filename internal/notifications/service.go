package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bindery/internal/config"
)

const userAgent = "bindery/0.1.0"

// Service defines the notification surface exposed to the workflow manager.
type Service interface {
	NotifyJobCompleted(ctx context.Context, nicename string) error
	NotifyJobFailed(ctx context.Context, nicename, reason string) error
	NotifyBatchCompleted(ctx context.Context, nicename string, completed, failed int) error
	NotifyEngineOffline(ctx context.Context) error
	TestNotification(ctx context.Context) error
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
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		jobEvents:   cfg.Notifications.JobEvents,
		batchEvents: cfg.Notifications.BatchEvents,
		engineEvent: cfg.Notifications.EngineEvents,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	jobEvents   bool
	batchEvents bool
	engineEvent bool
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, nicename string) error {
	if !n.jobEvents {
		return nil
	}
	return n.send(ctx, payload{
		title:   "Bindery - Job Complete",
		message: fmt.Sprintf("Conversion finished: %s", displayName(nicename)),
		tags:    []string{"bindery", "job", "completed"},
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, nicename, reason string) error {
	if !n.jobEvents {
		return nil
	}
	message := fmt.Sprintf("Conversion failed: %s", displayName(nicename))
	if reason = strings.TrimSpace(reason); reason != "" {
		message += "\n" + reason
	}
	return n.send(ctx, payload{
		title:    "Bindery - Job Failed",
		message:  message,
		tags:     []string{"bindery", "job", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, nicename string, completed, failed int) error {
	if !n.batchEvents {
		return nil
	}
	return n.send(ctx, payload{
		title:   "Bindery - Batch Complete",
		message: fmt.Sprintf("Batch %s finished: %d succeeded, %d failed", displayName(nicename), completed, failed),
		tags:    []string{"bindery", "batch", "completed"},
	})
}

func (n *ntfyService) NotifyEngineOffline(ctx context.Context) error {
	if !n.engineEvent {
		return nil
	}
	return n.send(ctx, payload{
		title:    "Bindery - Engine Offline",
		message:  "The conversion engine is not responding.",
		tags:     []string{"bindery", "engine", "offline"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:   "Bindery - Test",
		message: "Notifications are working.",
		tags:    []string{"bindery", "test"},
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
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

func displayName(nicename string) string {
	if nicename = strings.TrimSpace(nicename); nicename != "" {
		return nicename
	}
	return "(unnamed job)"
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, string) error                { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string) error           { return nil }
func (noopService) NotifyBatchCompleted(context.Context, string, int, int) error    { return nil }
func (noopService) NotifyEngineOffline(context.Context) error                       { return nil }
func (noopService) TestNotification(context.Context) error                          { return nil }
