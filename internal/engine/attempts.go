package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"parlo/internal/logging"
	"parlo/internal/store"
)

// StartAttempt opens a new attempt at the lesson for the caller. The lesson
// must exist, be active, and be unlocked for the learner; the first lesson of
// the catalog is always unlocked.
func (e *Engine) StartAttempt(ctx context.Context, p Principal, lessonID int64) (*store.Attempt, error) {
	userID, err := p.requireUser()
	if err != nil {
		return nil, err
	}
	lesson, err := e.store.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson == nil || !lesson.Active {
		return nil, fmt.Errorf("lesson %d: %w", lessonID, ErrLessonNotFound)
	}
	unlocked, err := e.unlockedSet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := unlocked[lessonID]; !ok {
		return nil, fmt.Errorf("lesson %q: %w", lesson.Slug, ErrLessonLocked)
	}
	attempt, err := e.store.StartAttempt(ctx, userID, lessonID)
	if err != nil {
		return nil, err
	}
	e.logger.Info("attempt started",
		logging.String("request_id", uuid.NewString()),
		logging.Int64("user_id", userID),
		logging.String("lesson", lesson.Slug),
		logging.Int64("attempt_id", attempt.ID),
		logging.Int("attempt_number", attempt.AttemptNumber))
	return attempt, nil
}

// Abandon cancels a started attempt. Terminal attempts report
// ErrAttemptAlreadyCompleted.
func (e *Engine) Abandon(ctx context.Context, p Principal, attemptID int64) error {
	userID, err := p.requireUser()
	if err != nil {
		return err
	}
	if _, err := e.loadOwnedAttempt(ctx, userID, attemptID); err != nil {
		return err
	}
	if err := e.store.AbandonAttempt(ctx, attemptID); err != nil {
		return err
	}
	e.logger.Info("attempt abandoned",
		logging.Int64("user_id", userID),
		logging.Int64("attempt_id", attemptID))
	return nil
}

// History lists the caller's attempts, newest first. A zero lessonID covers
// all lessons.
func (e *Engine) History(ctx context.Context, p Principal, lessonID int64) ([]*store.Attempt, error) {
	userID, err := p.requireUser()
	if err != nil {
		return nil, err
	}
	return e.store.ListAttempts(ctx, userID, lessonID)
}

// CatalogLesson is one lesson annotated with the caller's standing.
type CatalogLesson struct {
	Lesson   *store.Lesson
	Unlocked bool
	Passed   bool
}

// CatalogTopic groups a topic's lessons in presentation order.
type CatalogTopic struct {
	Topic   *store.Topic
	Lessons []CatalogLesson
}

// Catalog returns the topic and lesson tree. Authenticated callers get their
// unlock and pass standing; anonymous callers see only the structure.
func (e *Engine) Catalog(ctx context.Context, p Principal) ([]CatalogTopic, error) {
	topics, err := e.store.ListTopics(ctx)
	if err != nil {
		return nil, err
	}
	lessons, err := e.store.ListLessons(ctx)
	if err != nil {
		return nil, err
	}

	var unlocked, passed map[int64]struct{}
	if p.Authenticated {
		unlocked, err = e.unlockedSetFrom(ctx, p.UserID, lessons)
		if err != nil {
			return nil, err
		}
		passed, err = e.store.PassedLessonIDs(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
	}

	byTopic := make(map[int64][]CatalogLesson, len(topics))
	for _, lesson := range lessons {
		entry := CatalogLesson{Lesson: lesson}
		if p.Authenticated {
			_, entry.Unlocked = unlocked[lesson.ID]
			_, entry.Passed = passed[lesson.ID]
		}
		byTopic[lesson.TopicID] = append(byTopic[lesson.TopicID], entry)
	}
	out := make([]CatalogTopic, 0, len(topics))
	for _, topic := range topics {
		out = append(out, CatalogTopic{Topic: topic, Lessons: byTopic[topic.ID]})
	}
	return out, nil
}

// unlockedSet resolves the learner's effective unlocked lessons: every stored
// unlock plus the implicit first active lesson of the catalog.
func (e *Engine) unlockedSet(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	lessons, err := e.store.ListLessons(ctx)
	if err != nil {
		return nil, err
	}
	return e.unlockedSetFrom(ctx, userID, lessons)
}

func (e *Engine) unlockedSetFrom(ctx context.Context, userID int64, lessons []*store.Lesson) (map[int64]struct{}, error) {
	unlocked, err := e.store.UnlockedLessonIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if first := firstActiveLesson(lessons); first != nil {
		unlocked[first.ID] = struct{}{}
	}
	return unlocked, nil
}

func firstActiveLesson(lessons []*store.Lesson) *store.Lesson {
	for _, lesson := range lessons {
		if lesson.Active {
			return lesson
		}
	}
	return nil
}
