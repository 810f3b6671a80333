package engine

import (
	"context"

	"parlo/internal/progression"
)

// ProgressSummary is a learner's progression state with the level and
// next-level distance derived from total XP.
type ProgressSummary struct {
	UserID           int64
	TotalXP          int64
	Level            int
	XPToNextLevel    int
	CurrentStreak    int
	LongestStreak    int
	LastPracticeDate string

	LessonsPassed     int
	AttemptsCompleted int
	AverageScore      float64
}

// Progress assembles the caller's progression summary. Users with no history
// read as level 1 with zero XP.
func (e *Engine) Progress(ctx context.Context, p Principal) (*ProgressSummary, error) {
	userID, err := p.requireUser()
	if err != nil {
		return nil, err
	}
	progress, err := e.store.GetProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := e.store.GetUserStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ProgressSummary{
		UserID:            userID,
		TotalXP:           progress.TotalXP,
		Level:             progression.LevelForXP(int(progress.TotalXP)),
		XPToNextLevel:     progression.XPToNextLevel(int(progress.TotalXP)),
		CurrentStreak:     progress.CurrentStreak,
		LongestStreak:     progress.LongestStreak,
		LastPracticeDate:  progress.LastPracticeDate,
		LessonsPassed:     stats.LessonsPassed,
		AttemptsCompleted: stats.AttemptsCompleted,
		AverageScore:      stats.AverageScore,
	}, nil
}
