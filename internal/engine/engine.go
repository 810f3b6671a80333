package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"parlo/internal/config"
	"parlo/internal/logging"
	"parlo/internal/notifications"
	"parlo/internal/services/dialogue"
	"parlo/internal/services/transcriber"
	"parlo/internal/store"
)

// Transcriber converts a pronunciation recording into recognized text with
// per-word confidences.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) (*transcriber.Result, error)
}

// Dialogue plays the conversation partner: it opens a roleplay scenario and
// analyses each learner message while staying in character.
type Dialogue interface {
	OpeningMessage(ctx context.Context, scenario dialogue.Scenario) (string, error)
	Respond(ctx context.Context, scenario dialogue.Scenario, history []dialogue.Exchange, userMessage string) (dialogue.Assessment, error)
}

// Engine coordinates lesson attempts: it guards the catalog's unlock order,
// grades submissions, and folds completions into the progression ledger.
type Engine struct {
	cfg         *config.Config
	store       *store.Store
	logger      *slog.Logger
	transcriber Transcriber
	dialogue    Dialogue
	notifier    notifications.Service
	loc         *time.Location
	now         func() time.Time
}

// Option configures optional Engine behavior.
type Option func(*Engine)

// WithClock overrides the wall clock used for streak day boundaries. Tests use
// this to pin completions to specific calendar days.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New constructs an engine wired to the configured transcription and dialogue
// services and the configured notifier.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Engine, error) {
	tr := transcriber.NewClient(transcriber.Config{
		APIKey:         cfg.Transcriber.APIKey,
		BaseURL:        cfg.Transcriber.BaseURL,
		Model:          cfg.Transcriber.Model,
		Language:       cfg.Transcriber.Language,
		TimeoutSeconds: cfg.Transcriber.TimeoutSeconds,
	})
	dl := dialogue.NewClient(dialogue.Config{
		APIKey:         cfg.Dialogue.APIKey,
		BaseURL:        cfg.Dialogue.BaseURL,
		Model:          cfg.Dialogue.Model,
		Temperature:    cfg.Dialogue.Temperature,
		MaxTokens:      cfg.Dialogue.MaxTokens,
		TimeoutSeconds: cfg.Dialogue.TimeoutSeconds,
	})
	return NewWithClients(cfg, st, logger, tr, dl, notifications.NewService(cfg))
}

// NewWithClients constructs an engine with explicit service collaborators.
// Tests use this to substitute stub transcription and dialogue services.
func NewWithClients(cfg *config.Config, st *store.Store, logger *slog.Logger, tr Transcriber, dl Dialogue, notifier notifications.Service, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine: config is required")
	}
	if st == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	eng := &Engine{
		cfg:         cfg,
		store:       st,
		logger:      logging.NewComponentLogger(logger, "engine"),
		transcriber: tr,
		dialogue:    dl,
		notifier:    notifier,
		loc:         loc,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng, nil
}

// loadOwnedAttempt fetches an attempt and confirms it belongs to the caller.
// Foreign attempts read as not found so attempt IDs leak nothing across users.
func (e *Engine) loadOwnedAttempt(ctx context.Context, userID, attemptID int64) (*store.Attempt, error) {
	attempt, err := e.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt == nil || attempt.UserID != userID {
		return nil, fmt.Errorf("attempt %d: %w", attemptID, store.ErrNotFound)
	}
	return attempt, nil
}

// lessonForAttempt resolves the attempt's lesson and enforces the expected
// lesson type for a submission path.
func (e *Engine) lessonForAttempt(ctx context.Context, attempt *store.Attempt, want store.LessonType) (*store.Lesson, error) {
	lesson, err := e.store.GetLesson(ctx, attempt.LessonID)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, fmt.Errorf("lesson %d: %w", attempt.LessonID, ErrLessonNotFound)
	}
	if lesson.Type != want {
		return nil, fmt.Errorf("lesson %q is %s: %w", lesson.Slug, lesson.Type, ErrWrongLessonType)
	}
	return lesson, nil
}
