package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const attemptColumns = "id, user_id, lesson_id, attempt_number, status, started_at, completed_at, overall_score, is_passed, correct_count, total_count"

// StartAttempt creates a new attempt for a user on a lesson. The attempt
// number is assigned inside the same transaction as the insert so concurrent
// starts for the same user and lesson always receive distinct numbers.
func (s *Store) StartAttempt(ctx context.Context, userID, lessonID int64) (*Attempt, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var prior int
		if err := tx.QueryRowContext(
			ctx,
			`SELECT COUNT(1) FROM attempts WHERE user_id = ? AND lesson_id = ?`,
			userID, lessonID,
		).Scan(&prior); err != nil {
			return fmt.Errorf("count prior attempts: %w", err)
		}

		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO attempts (user_id, lesson_id, attempt_number, status, started_at)
             VALUES (?, ?, ?, ?, ?)`,
			userID,
			lessonID,
			prior+1,
			AttemptStarted,
			timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetAttempt(ctx, id)
}

// GetAttempt fetches an attempt by identifier, or nil when absent.
func (s *Store) GetAttempt(ctx context.Context, id int64) (*Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = ?`, id)
	attempt, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

// ActiveAttempt returns the user's most recent started attempt on a lesson,
// or nil when none is in flight.
func (s *Store) ActiveAttempt(ctx context.Context, userID, lessonID int64) (*Attempt, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+attemptColumns+` FROM attempts
         WHERE user_id = ? AND lesson_id = ? AND status = ?
         ORDER BY attempt_number DESC LIMIT 1`,
		userID, lessonID, AttemptStarted,
	)
	attempt, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active attempt: %w", err)
	}
	return attempt, nil
}

// ListAttempts returns a user's attempts, newest first. Pass lessonID 0 for
// all lessons.
func (s *Store) ListAttempts(ctx context.Context, userID, lessonID int64) ([]*Attempt, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if lessonID == 0 {
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT `+attemptColumns+` FROM attempts WHERE user_id = ? ORDER BY started_at DESC, id DESC`,
			userID,
		)
	} else {
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT `+attemptColumns+` FROM attempts WHERE user_id = ? AND lesson_id = ? ORDER BY started_at DESC, id DESC`,
			userID, lessonID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// SetVocabularyResult records the graded answer set on a started attempt.
// Resubmission while the attempt remains started replaces the counts.
func (s *Store) SetVocabularyResult(ctx context.Context, attemptID int64, correct, total int) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE attempts SET correct_count = ?, total_count = ?
         WHERE id = ? AND status = ?`,
		correct, total, attemptID, AttemptStarted,
	)
	if err != nil {
		return fmt.Errorf("set vocabulary result: %w", err)
	}
	return s.requireActiveUpdate(ctx, res, attemptID)
}

// AbandonAttempt transitions a started attempt to abandoned. Terminal
// attempts are left untouched and reported via ErrAttemptAlreadyCompleted.
func (s *Store) AbandonAttempt(ctx context.Context, attemptID int64) error {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE attempts SET status = ?, completed_at = ?
         WHERE id = ? AND status = ?`,
		AttemptAbandoned,
		now.Format(time.RFC3339Nano),
		attemptID,
		AttemptStarted,
	)
	if err != nil {
		return fmt.Errorf("abandon attempt: %w", err)
	}
	return s.requireActiveUpdate(ctx, res, attemptID)
}

// AbandonStale abandons started attempts whose start time is older than the
// cutoff. The daemon sweep calls this periodically so walked-away sessions
// reach a terminal state.
func (s *Store) AbandonStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	cutoff := now.Add(-olderThan).Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE attempts SET status = ?, completed_at = ?
         WHERE status = ? AND started_at < ?`,
		AttemptAbandoned,
		now.Format(time.RFC3339Nano),
		AttemptStarted,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("abandon stale attempts: %w", err)
	}
	return res.RowsAffected()
}

// requireActiveUpdate classifies a zero-row guarded update: missing attempt
// versus attempt already in a terminal state.
func (s *Store) requireActiveUpdate(ctx context.Context, res sql.Result, attemptID int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	attempt, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt == nil {
		return fmt.Errorf("attempt %d: %w", attemptID, ErrNotFound)
	}
	return fmt.Errorf("attempt %d is %s: %w", attemptID, attempt.Status, ErrAttemptAlreadyCompleted)
}

func scanAttempt(scanner interface{ Scan(dest ...any) error }) (*Attempt, error) {
	var (
		attempt      Attempt
		statusStr    string
		startedRaw   sql.NullString
		completedRaw sql.NullString
		score        sql.NullFloat64
		passed       sql.NullInt64
		correct      sql.NullInt64
		total        sql.NullInt64
	)
	if err := scanner.Scan(
		&attempt.ID,
		&attempt.UserID,
		&attempt.LessonID,
		&attempt.AttemptNumber,
		&statusStr,
		&startedRaw,
		&completedRaw,
		&score,
		&passed,
		&correct,
		&total,
	); err != nil {
		return nil, err
	}
	attempt.Status = AttemptStatus(statusStr)
	if started, err := parseTimeString(startedRaw.String); err == nil {
		attempt.StartedAt = started
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			attempt.CompletedAt = &completed
		}
	}
	if score.Valid {
		v := score.Float64
		attempt.OverallScore = &v
	}
	if passed.Valid {
		v := passed.Int64 != 0
		attempt.Passed = &v
	}
	if correct.Valid {
		v := int(correct.Int64)
		attempt.CorrectCount = &v
	}
	if total.Valid {
		v := int(total.Int64)
		attempt.TotalCount = &v
	}
	return &attempt, nil
}
