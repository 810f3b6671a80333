package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"parlo/internal/config"
	"parlo/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyLevelUp(context.Background(), 7, 2, 150); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	var captured struct {
		title    string
		tags     string
		priority string
		body     string
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		captured.body = string(body)
		_ = r.Body.Close()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.LevelUp = true
	cfg.Notifications.StreakMilestone = true
	cfg.Notifications.Errors = true

	svc := notifications.NewService(&cfg)

	if err := svc.NotifyLevelUp(context.Background(), 7, 3, 320); err != nil {
		t.Fatalf("NotifyLevelUp returned error: %v", err)
	}
	if captured.title != "Parlo - Level Up" {
		t.Fatalf("unexpected title %q", captured.title)
	}
	if captured.body != "User 7 reached level 3 (320 XP)" {
		t.Fatalf("unexpected message %q", captured.body)
	}
	if captured.tags != "parlo,level,up" || captured.priority != "high" {
		t.Fatalf("unexpected headers tags=%q priority=%q", captured.tags, captured.priority)
	}

	if err := svc.NotifyStreakMilestone(context.Background(), 7, 30); err != nil {
		t.Fatalf("NotifyStreakMilestone returned error: %v", err)
	}
	if captured.body != "User 7 hit a 30-day practice streak" {
		t.Fatalf("unexpected message %q", captured.body)
	}

	if err := svc.NotifyError(context.Background(), errors.New("boom"), "completion"); err != nil {
		t.Fatalf("NotifyError returned error: %v", err)
	}
	if captured.body != "Error with completion: boom" {
		t.Fatalf("unexpected message %q", captured.body)
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.LevelUp = false
	cfg.Notifications.StreakMilestone = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	if err := svc.NotifyLevelUp(context.Background(), 7, 2, 150); err != nil {
		t.Fatalf("disabled level-up notification errored: %v", err)
	}
	if err := svc.NotifyStreakMilestone(context.Background(), 7, 7); err != nil {
		t.Fatalf("disabled streak notification errored: %v", err)
	}
	if err := svc.NotifyError(context.Background(), errors.New("boom"), "test"); err != nil {
		t.Fatalf("disabled error notification errored: %v", err)
	}
}
