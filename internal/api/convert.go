package api

import (
	"parlo/internal/engine"
	"parlo/internal/store"
)

// FromAttempt converts an attempt record to its API representation.
func FromAttempt(attempt *store.Attempt) Attempt {
	if attempt == nil {
		return Attempt{}
	}
	dto := Attempt{
		ID:            attempt.ID,
		LessonID:      attempt.LessonID,
		AttemptNumber: attempt.AttemptNumber,
		Status:        string(attempt.Status),
		OverallScore:  attempt.OverallScore,
		Passed:        attempt.Passed,
	}
	if !attempt.StartedAt.IsZero() {
		dto.StartedAt = attempt.StartedAt.UTC().Format(dateTimeFormat)
	}
	if attempt.CompletedAt != nil && !attempt.CompletedAt.IsZero() {
		dto.CompletedAt = attempt.CompletedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromAttempts converts a list of attempt records.
func FromAttempts(attempts []*store.Attempt) []Attempt {
	out := make([]Attempt, 0, len(attempts))
	for _, attempt := range attempts {
		out = append(out, FromAttempt(attempt))
	}
	return out
}

// FromCatalog converts the engine's annotated topic tree.
func FromCatalog(topics []engine.CatalogTopic) CatalogResponse {
	out := CatalogResponse{Topics: make([]Topic, 0, len(topics))}
	for _, topic := range topics {
		dto := Topic{
			ID:      topic.Topic.ID,
			Slug:    topic.Topic.Slug,
			Title:   topic.Topic.Title,
			Lessons: make([]Lesson, 0, len(topic.Lessons)),
		}
		for _, lesson := range topic.Lessons {
			dto.Lessons = append(dto.Lessons, Lesson{
				ID:           lesson.Lesson.ID,
				Slug:         lesson.Lesson.Slug,
				Title:        lesson.Lesson.Title,
				Type:         string(lesson.Lesson.Type),
				Position:     lesson.Lesson.Position,
				PassingScore: lesson.Lesson.PassingScore,
				Unlocked:     lesson.Unlocked,
				Passed:       lesson.Passed,
			})
		}
		out.Topics = append(out.Topics, dto)
	}
	return out
}

// FromVocabularyResult converts an answer-set grade.
func FromVocabularyResult(result *engine.VocabularyResult) VocabularyResult {
	if result == nil {
		return VocabularyResult{}
	}
	dto := VocabularyResult{
		Items:   make([]VocabularyItem, 0, len(result.Items)),
		Correct: result.Correct,
		Total:   result.Total,
		Score:   result.Score,
		Passed:  result.Passed,
	}
	for _, item := range result.Items {
		dto.Items = append(dto.Items, VocabularyItem{
			Word:     item.Word,
			Expected: item.Expected,
			Given:    item.Given,
			Correct:  item.Correct,
		})
	}
	return dto
}

// FromPronunciationResult converts an exercise grade with its running
// aggregate.
func FromPronunciationResult(result *engine.PronunciationResult) PronunciationResult {
	if result == nil {
		return PronunciationResult{}
	}
	dto := PronunciationResult{
		ExerciseID:    result.ExerciseID,
		Transcript:    result.Transcript,
		Pronunciation: result.Grade.Pronunciation,
		Intonation:    result.Grade.Intonation,
		Stress:        result.Grade.Stress,
		Accuracy:      result.Grade.Accuracy,
		Overall:       result.Grade.Overall,
		Passed:        result.Passed,
		Words:         make([]WordScore, 0, len(result.Grade.Words)),
		Submitted:     result.Summary.SubmittedCount,
		Exercises:     result.Summary.ExerciseCount,
		RunningScore:  result.Summary.Overall,
	}
	for _, word := range result.Grade.Words {
		dto.Words = append(dto.Words, WordScore{
			Word:       word.Word,
			Expected:   word.Expected,
			Correct:    word.Correct,
			Confidence: word.Confidence,
			Hint:       word.Hint,
		})
	}
	return dto
}

// FromTurnResult converts a recorded conversation turn.
func FromTurnResult(result *engine.TurnResult) TurnResult {
	if result == nil {
		return TurnResult{}
	}
	return TurnResult{
		TurnNumber:      result.TurnNumber,
		Reply:           result.Reply,
		GrammarCorrect:  result.GrammarCorrect,
		VocabularyTerms: result.VocabularyTerms,
		Fluency:         result.Fluency,
		Sentiment:       result.Sentiment,
	}
}

// FromCompletionResult converts a completion outcome.
func FromCompletionResult(result *engine.CompletionResult) CompletionResult {
	if result == nil {
		return CompletionResult{}
	}
	dto := CompletionResult{
		AttemptID:         result.AttemptID,
		Score:             result.Score,
		Passed:            result.Passed,
		Feedback:          result.Feedback,
		TotalXP:           result.TotalXP,
		Level:             result.Level,
		LeveledUp:         result.LeveledUp,
		CurrentStreak:     result.CurrentStreak,
		UnlockedLessonIDs: result.UnlockedLessonIDs,
	}
	if result.Award != nil {
		dto.Award = &Award{
			XP:             result.Award.XP,
			Base:           result.Award.Base,
			PerfectBonus:   result.Award.PerfectBonus,
			HighScoreBonus: result.Award.HighScoreBonus,
			FirstTryBonus:  result.Award.FirstPassBonus,
			StreakBonus:    result.Award.StreakBonus,
		}
	}
	return dto
}

// FromProgress converts a progression summary.
func FromProgress(summary *engine.ProgressSummary) Progress {
	if summary == nil {
		return Progress{}
	}
	return Progress{
		UserID:            summary.UserID,
		TotalXP:           summary.TotalXP,
		Level:             summary.Level,
		XPToNextLevel:     summary.XPToNextLevel,
		CurrentStreak:     summary.CurrentStreak,
		LongestStreak:     summary.LongestStreak,
		LastPracticeDate:  summary.LastPracticeDate,
		LessonsPassed:     summary.LessonsPassed,
		AttemptsCompleted: summary.AttemptsCompleted,
		AverageScore:      summary.AverageScore,
	}
}
