package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parlo/internal/progression"
)

// CompletionRecord carries the durable effect of completing an attempt. The
// engine settles the score and unlock decisions; the XP award is folded into
// the learner's progression row inside the completion transaction so that
// concurrent completions never clobber each other's totals.
type CompletionRecord struct {
	AttemptID int64
	UserID    int64
	LessonID  int64
	Score     float64
	Passed    bool

	// Progression effect. Nil Completion means no XP and no progression
	// change (failed attempts record only the attempt itself).
	Completion        *progression.Completion
	StreakBonusDayCap int
	UnlockLessonIDs   []int64
}

// CompletionOutcome reports the progression effect ApplyCompletion settled
// inside its transaction. Nil when the record carried no Completion.
type CompletionOutcome struct {
	Award       progression.Award
	State       progression.Snapshot
	PriorStreak int
}

// ApplyCompletion transitions a started attempt to completed and applies the
// progression effect atomically. The status guard plus the ledger's unique
// attempt_id constraint make the XP award exactly-once: a second call fails
// with ErrAttemptAlreadyCompleted before touching progression. The learner's
// progression snapshot is read and folded under the same transaction, and a
// busy retry re-runs the whole closure, so two racing completions serialize
// and both awards land in total_xp.
func (s *Store) ApplyCompletion(ctx context.Context, rec *CompletionRecord) (*CompletionOutcome, error) {
	if rec == nil {
		return nil, errors.New("completion record is nil")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	var outcome *CompletionOutcome
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		outcome = nil
		res, err := tx.ExecContext(
			ctx,
			`UPDATE attempts SET status = ?, completed_at = ?, overall_score = ?, is_passed = ?
             WHERE id = ? AND status = ?`,
			AttemptCompleted,
			timestamp,
			rec.Score,
			boolToInt(rec.Passed),
			rec.AttemptID,
			AttemptStarted,
		)
		if err != nil {
			return fmt.Errorf("complete attempt: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return requireStartedTx(ctx, tx, rec.AttemptID)
		}

		if rec.Completion == nil {
			return nil
		}

		snap, err := progressSnapshotTx(ctx, tx, rec.UserID)
		if err != nil {
			return err
		}
		priorStreak := snap.CurrentStreak
		next, award := progression.Apply(snap, *rec.Completion, rec.StreakBonusDayCap)

		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO xp_ledger (
                user_id, attempt_id, lesson_id, xp, base_xp,
                perfect_bonus, high_score_bonus, first_try_bonus, streak_bonus, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.UserID,
			rec.AttemptID,
			rec.LessonID,
			award.XP,
			award.Base,
			award.PerfectBonus,
			award.HighScoreBonus,
			award.FirstPassBonus,
			award.StreakBonus,
			timestamp,
		); err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}

		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO user_progress (user_id, total_xp, current_streak, longest_streak, last_practice_date, updated_at)
             VALUES (?, ?, ?, ?, ?, ?)
             ON CONFLICT(user_id) DO UPDATE SET
                 total_xp = excluded.total_xp,
                 current_streak = excluded.current_streak,
                 longest_streak = excluded.longest_streak,
                 last_practice_date = excluded.last_practice_date,
                 updated_at = excluded.updated_at`,
			rec.UserID,
			next.TotalXP,
			next.CurrentStreak,
			next.LongestStreak,
			nullableString(next.LastPractice.String()),
			timestamp,
		); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}

		for _, lessonID := range rec.UnlockLessonIDs {
			if _, err := tx.ExecContext(
				ctx,
				`INSERT OR IGNORE INTO lesson_unlocks (user_id, lesson_id, created_at) VALUES (?, ?, ?)`,
				rec.UserID, lessonID, timestamp,
			); err != nil {
				return fmt.Errorf("unlock lesson %d: %w", lessonID, err)
			}
		}
		outcome = &CompletionOutcome{Award: award, State: next, PriorStreak: priorStreak}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// progressSnapshotTx reads the learner's progression row inside the
// completion transaction.
func progressSnapshotTx(ctx context.Context, tx *sql.Tx, userID int64) (progression.Snapshot, error) {
	row := tx.QueryRowContext(
		ctx,
		`SELECT total_xp, current_streak, longest_streak, last_practice_date
         FROM user_progress WHERE user_id = ?`,
		userID,
	)
	var (
		snap         progression.Snapshot
		lastPractice sql.NullString
	)
	err := row.Scan(&snap.TotalXP, &snap.CurrentStreak, &snap.LongestStreak, &lastPractice)
	if errors.Is(err, sql.ErrNoRows) {
		return progression.Snapshot{}, nil
	}
	if err != nil {
		return progression.Snapshot{}, fmt.Errorf("read progress: %w", err)
	}
	if lastPractice.String != "" {
		if day, err := progression.ParseDate(lastPractice.String); err == nil {
			snap.LastPractice = day
		}
	}
	return snap, nil
}

// GetProgress returns the user's durable progression state. A user with no
// recorded progress gets a zero-valued row, not an error.
func (s *Store) GetProgress(ctx context.Context, userID int64) (*Progress, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT user_id, total_xp, current_streak, longest_streak, last_practice_date, updated_at
         FROM user_progress WHERE user_id = ?`,
		userID,
	)
	var (
		progress     Progress
		lastPractice sql.NullString
		updatedRaw   sql.NullString
	)
	err := row.Scan(
		&progress.UserID,
		&progress.TotalXP,
		&progress.CurrentStreak,
		&progress.LongestStreak,
		&lastPractice,
		&updatedRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &Progress{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	progress.LastPracticeDate = lastPractice.String
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		progress.UpdatedAt = updated
	}
	return &progress, nil
}

// UnlockLessons marks lessons as unlocked for a user. Unlocks are monotonic:
// re-unlocking is a no-op.
func (s *Store) UnlockLessons(ctx context.Context, userID int64, lessonIDs ...int64) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	for _, lessonID := range lessonIDs {
		if err := s.execWithoutResultRetry(
			ctx,
			`INSERT OR IGNORE INTO lesson_unlocks (user_id, lesson_id, created_at) VALUES (?, ?, ?)`,
			userID, lessonID, timestamp,
		); err != nil {
			return fmt.Errorf("unlock lesson %d: %w", lessonID, err)
		}
	}
	return nil
}

// UnlockedLessonIDs returns the set of explicitly unlocked lessons for a user.
func (s *Store) UnlockedLessonIDs(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT lesson_id FROM lesson_unlocks WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list unlocks: %w", err)
	}
	defer rows.Close()

	unlocked := make(map[int64]struct{})
	for rows.Next() {
		var lessonID int64
		if err := rows.Scan(&lessonID); err != nil {
			return nil, err
		}
		unlocked[lessonID] = struct{}{}
	}
	return unlocked, rows.Err()
}

// PassedLessonIDs returns the set of lessons the user has passed at least
// once. Unlock cascade evaluation reads this.
func (s *Store) PassedLessonIDs(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT DISTINCT lesson_id FROM attempts WHERE user_id = ? AND status = ? AND is_passed = 1`,
		userID, AttemptCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("list passed lessons: %w", err)
	}
	defer rows.Close()

	passed := make(map[int64]struct{})
	for rows.Next() {
		var lessonID int64
		if err := rows.Scan(&lessonID); err != nil {
			return nil, err
		}
		passed[lessonID] = struct{}{}
	}
	return passed, rows.Err()
}

// LedgerEntries returns a user's XP awards, newest first.
func (s *Store) LedgerEntries(ctx context.Context, userID int64) ([]*LedgerEntry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, user_id, attempt_id, lesson_id, xp, base_xp,
                perfect_bonus, high_score_bonus, first_try_bonus, streak_bonus, created_at
         FROM xp_ledger WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		var (
			entry      LedgerEntry
			createdRaw sql.NullString
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.AttemptID,
			&entry.LessonID,
			&entry.XP,
			&entry.BaseXP,
			&entry.PerfectBonus,
			&entry.HighScoreBonus,
			&entry.FirstTryBonus,
			&entry.StreakBonus,
			&createdRaw,
		); err != nil {
			return nil, err
		}
		if created, err := parseTimeString(createdRaw.String); err == nil {
			entry.CreatedAt = created
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// GetUserStats aggregates a user's completed-attempt history.
func (s *Store) GetUserStats(ctx context.Context, userID int64) (*UserStats, error) {
	var stats UserStats
	err := s.db.QueryRowContext(
		ctx,
		`SELECT
             COUNT(DISTINCT CASE WHEN is_passed = 1 THEN lesson_id END),
             COUNT(1),
             COALESCE(AVG(overall_score), 0)
         FROM attempts WHERE user_id = ? AND status = ?`,
		userID, AttemptCompleted,
	).Scan(&stats.LessonsPassed, &stats.AttemptsCompleted, &stats.AverageScore)
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	return &stats, nil
}
