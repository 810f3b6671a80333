package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"parlo/internal/config"
)

const userAgent = "Parlo/0.1.0"

// Service defines the notification surface exposed to the engine.
type Service interface {
	NotifyLevelUp(ctx context.Context, userID int64, level int, totalXP int64) error
	NotifyStreakMilestone(ctx context.Context, userID int64, streak int) error
	NotifyError(ctx context.Context, err error, context string) error
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
		endpoint:        topic,
		client:          &http.Client{Timeout: timeout},
		levelUp:         cfg.Notifications.LevelUp,
		streakMilestone: cfg.Notifications.StreakMilestone,
		errors:          cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint        string
	client          *http.Client
	levelUp         bool
	streakMilestone bool
	errors          bool
}

func (n *ntfyService) NotifyLevelUp(ctx context.Context, userID int64, level int, totalXP int64) error {
	if !n.levelUp {
		return nil
	}
	data := payload{
		title:    "Parlo - Level Up",
		message:  fmt.Sprintf("User %d reached level %d (%d XP)", userID, level, totalXP),
		tags:     []string{"parlo", "level", "up"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyStreakMilestone(ctx context.Context, userID int64, streak int) error {
	if !n.streakMilestone {
		return nil
	}
	data := payload{
		title:   "Parlo - Streak Milestone",
		message: fmt.Sprintf("User %d hit a %d-day practice streak", userID, streak),
		tags:    []string{"parlo", "streak", "milestone"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Parlo - Error",
		message:  builder.String(),
		tags:     []string{"parlo", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Parlo - Test",
		message:  "Notification system test",
		tags:     []string{"parlo", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

type noopService struct{}

func (noopService) NotifyLevelUp(context.Context, int64, int, int64) error  { return nil }
func (noopService) NotifyStreakMilestone(context.Context, int64, int) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error        { return nil }
func (noopService) TestNotification(context.Context) error                  { return nil }
