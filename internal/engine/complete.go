package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"parlo/internal/conversation"
	"parlo/internal/logging"
	"parlo/internal/progression"
	"parlo/internal/pronunciation"
	"parlo/internal/scoring"
	"parlo/internal/services"
	"parlo/internal/store"
)

// Streak days that earn a push notification when first reached.
var streakMilestones = map[int]struct{}{3: {}, 7: {}, 14: {}, 30: {}, 60: {}, 100: {}}

// CompletionResult is the outcome of finishing an attempt: the final grade
// and, for passing attempts, the XP award and any newly unlocked lessons.
type CompletionResult struct {
	AttemptID int64
	Score     float64
	Passed    bool
	Feedback  string

	// Award itemizes the XP granted. Nil when the attempt failed.
	Award         *progression.Award
	TotalXP       int64
	Level         int
	LeveledUp     bool
	CurrentStreak int

	UnlockedLessonIDs []int64
}

// Complete finishes a started attempt: it derives the final score from the
// attempt's recorded submissions, settles pass/fail against the lesson's
// passing score, and for passing attempts awards XP, advances the streak, and
// unlocks follow-on lessons in one transaction. Recorded submissions always
// win over the optional explicit score; a failed attempt records only the
// grade and leaves progression untouched. Completing a terminal attempt
// reports ErrAttemptAlreadyCompleted without side effects.
func (e *Engine) Complete(ctx context.Context, p Principal, attemptID int64, explicitScore *float64) (*CompletionResult, error) {
	userID, err := p.requireUser()
	if err != nil {
		return nil, err
	}
	if explicitScore != nil && (*explicitScore < 0 || *explicitScore > 100) {
		return nil, services.Wrap(services.ErrValidation, "engine", "complete", fmt.Sprintf("score %.1f out of range", *explicitScore), nil)
	}
	attempt, err := e.loadOwnedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.IsActive() {
		return nil, fmt.Errorf("attempt %d is %s: %w", attempt.ID, attempt.Status, store.ErrAttemptAlreadyCompleted)
	}
	lesson, err := e.store.GetLesson(ctx, attempt.LessonID)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, fmt.Errorf("lesson %d: %w", attempt.LessonID, ErrLessonNotFound)
	}

	score, err := e.finalScore(ctx, attempt, lesson, explicitScore)
	if err != nil {
		return nil, err
	}
	passed := scoring.IsPassed(score, lesson.PassingScore)

	rec := &store.CompletionRecord{
		AttemptID: attempt.ID,
		UserID:    userID,
		LessonID:  lesson.ID,
		Score:     score,
		Passed:    passed,
	}
	result := &CompletionResult{
		AttemptID: attempt.ID,
		Score:     score,
		Passed:    passed,
		Feedback:  scoring.BandFor(score).Feedback(),
	}

	if passed {
		unlocks, err := e.unlockTargets(ctx, userID, lesson)
		if err != nil {
			return nil, err
		}
		// The streak and total XP depend on the progression row as it
		// stands when the completion commits, so the fold itself runs
		// inside the store transaction.
		rec.Completion = &progression.Completion{
			BaseXP:    baseXPFor(lesson.Type),
			Score:     score,
			Passed:    true,
			FirstPass: attempt.AttemptNumber == 1,
			Today:     progression.DateOf(e.now(), e.loc),
		}
		rec.StreakBonusDayCap = e.cfg.Progression.StreakBonusDayCap
		rec.UnlockLessonIDs = unlocks
		result.UnlockedLessonIDs = unlocks
	}

	outcome, err := e.store.ApplyCompletion(ctx, rec)
	if err != nil {
		return nil, err
	}

	var priorStreak int
	if outcome != nil {
		award := outcome.Award
		priorStreak = outcome.PriorStreak
		result.Award = &award
		result.TotalXP = int64(outcome.State.TotalXP)
		result.Level = award.LevelAfter
		result.LeveledUp = award.LeveledUp()
		result.CurrentStreak = outcome.State.CurrentStreak
	}

	logger := e.logger.With(
		logging.String("request_id", uuid.NewString()),
		logging.Int64("user_id", userID),
		logging.Int64("attempt_id", attempt.ID),
		logging.String("lesson", lesson.Slug))
	if passed {
		logger.Info("attempt passed",
			logging.Float64("score", score),
			logging.Int("xp", result.Award.XP),
			logging.Int("streak", result.CurrentStreak),
			logging.Int("unlocked", len(result.UnlockedLessonIDs)))
		e.notifyMilestones(ctx, userID, result, priorStreak)
	} else {
		logger.Info("attempt failed",
			logging.Float64("score", score),
			logging.Float64("passing_score", lesson.PassingScore))
	}
	return result, nil
}

// finalScore derives the completion score for the attempt's lesson type.
// Recorded submissions take precedence; the explicit score only covers a
// vocabulary attempt whose answers were graded outside the engine.
func (e *Engine) finalScore(ctx context.Context, attempt *store.Attempt, lesson *store.Lesson, explicitScore *float64) (float64, error) {
	switch lesson.Type {
	case store.LessonVocabulary:
		if attempt.CorrectCount != nil && attempt.TotalCount != nil {
			return scoring.VocabularyScore(*attempt.CorrectCount, *attempt.TotalCount)
		}
		if explicitScore != nil {
			return scoring.Round1(*explicitScore), nil
		}
		return 0, nil
	case store.LessonPronunciation:
		summary, err := e.pronunciationSummary(ctx, attempt.ID, lesson.ID)
		if err != nil {
			if errors.Is(err, pronunciation.ErrNoSubmissions) {
				return 0, nil
			}
			return 0, err
		}
		if summary.SubmittedCount == 0 {
			return 0, nil
		}
		return summary.Overall, nil
	case store.LessonConversation:
		_, template, err := e.conversationContext(ctx, attempt)
		if err != nil {
			return 0, err
		}
		stored, err := e.store.TurnsForAttempt(ctx, attempt.ID)
		if err != nil {
			return 0, err
		}
		turns := make([]conversation.Turn, 0, len(stored))
		for _, t := range stored {
			turns = append(turns, conversation.Turn{
				Number:          t.TurnNumber,
				UserMessage:     t.UserMessage,
				Reply:           t.Reply,
				GrammarCorrect:  t.GrammarCorrect,
				VocabularyTerms: t.VocabularyTerms,
				Fluency:         t.Fluency,
				Sentiment:       t.Sentiment,
			})
		}
		summary, err := conversation.Summarize(turns, template.MinTurns, template.VocabularyTarget)
		if err != nil {
			return 0, err
		}
		return summary.Overall, nil
	default:
		return 0, fmt.Errorf("lesson %q has unknown type %q", lesson.Slug, lesson.Type)
	}
}

// unlockTargets computes the lessons a pass opens up: the next lesson of the
// same topic, and the first lesson of the next topic once every lesson in the
// current topic is passed. Already-unlocked lessons are skipped; the store
// ignores repeats as well, so the cascade is safe to recompute.
func (e *Engine) unlockTargets(ctx context.Context, userID int64, passedLesson *store.Lesson) ([]int64, error) {
	lessons, err := e.store.ListLessons(ctx)
	if err != nil {
		return nil, err
	}
	unlocked, err := e.unlockedSetFrom(ctx, userID, lessons)
	if err != nil {
		return nil, err
	}
	passed, err := e.store.PassedLessonIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	passed[passedLesson.ID] = struct{}{}

	var targets []int64
	add := func(lesson *store.Lesson) {
		if lesson == nil || !lesson.Active {
			return
		}
		if _, ok := unlocked[lesson.ID]; ok {
			return
		}
		unlocked[lesson.ID] = struct{}{}
		targets = append(targets, lesson.ID)
	}

	idx := -1
	for i, lesson := range lessons {
		if lesson.ID == passedLesson.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return targets, nil
	}

	if idx+1 < len(lessons) && lessons[idx+1].TopicID == passedLesson.TopicID {
		add(lessons[idx+1])
	}

	topicDone := true
	for _, lesson := range lessons {
		if lesson.TopicID != passedLesson.TopicID || !lesson.Active {
			continue
		}
		if _, ok := passed[lesson.ID]; !ok {
			topicDone = false
			break
		}
	}
	if topicDone {
		for i := idx + 1; i < len(lessons); i++ {
			if lessons[i].TopicID != passedLesson.TopicID {
				add(lessons[i])
				break
			}
		}
	}
	return targets, nil
}

// notifyMilestones fires best-effort push notifications for level-ups and
// streak milestones. Failures are logged and never surface to the caller.
func (e *Engine) notifyMilestones(ctx context.Context, userID int64, result *CompletionResult, priorStreak int) {
	if e.notifier == nil {
		return
	}
	if result.LeveledUp {
		if err := e.notifier.NotifyLevelUp(ctx, userID, result.Level, result.TotalXP); err != nil {
			e.logger.Warn("level-up notification failed", logging.Error(err))
		}
	}
	if result.CurrentStreak > priorStreak {
		if _, ok := streakMilestones[result.CurrentStreak]; ok {
			if err := e.notifier.NotifyStreakMilestone(ctx, userID, result.CurrentStreak); err != nil {
				e.logger.Warn("streak notification failed", logging.Error(err))
			}
		}
	}
}

func baseXPFor(lessonType store.LessonType) int {
	switch lessonType {
	case store.LessonPronunciation:
		return progression.BaseXPPronunciation
	case store.LessonConversation:
		return progression.BaseXPConversation
	default:
		return progression.BaseXPVocabulary
	}
}
