package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parlo/internal/conversation"
)

// UpsertPronunciationSubmission records a grading result for one exercise of
// a started attempt. A resubmission for the same exercise replaces the prior
// row: last write wins.
func (s *Store) UpsertPronunciationSubmission(ctx context.Context, sub *PronunciationSubmission) error {
	if sub == nil {
		return fmt.Errorf("submission is nil")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireStartedTx(ctx, tx, sub.AttemptID); err != nil {
			return err
		}
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO pronunciation_submissions (
                attempt_id, exercise_id, transcript,
                pronunciation_score, intonation_score, stress_score, accuracy_score,
                overall_score, is_passed, words_json, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(attempt_id, exercise_id) DO UPDATE SET
                transcript = excluded.transcript,
                pronunciation_score = excluded.pronunciation_score,
                intonation_score = excluded.intonation_score,
                stress_score = excluded.stress_score,
                accuracy_score = excluded.accuracy_score,
                overall_score = excluded.overall_score,
                is_passed = excluded.is_passed,
                words_json = excluded.words_json,
                updated_at = excluded.updated_at`,
			sub.AttemptID,
			sub.ExerciseID,
			nullableString(sub.Transcript),
			sub.Pronunciation,
			sub.Intonation,
			sub.Stress,
			sub.Accuracy,
			sub.Overall,
			boolToInt(sub.Passed),
			nullableString(sub.WordsJSON),
			timestamp,
			timestamp,
		)
		if err != nil {
			return fmt.Errorf("upsert pronunciation submission: %w", err)
		}
		if sub.ID == 0 {
			sub.ID, _ = res.LastInsertId()
		}
		sub.CreatedAt = now
		sub.UpdatedAt = now
		return nil
	})
}

// SubmissionsForAttempt returns the retained submissions of an attempt in
// exercise order.
func (s *Store) SubmissionsForAttempt(ctx context.Context, attemptID int64) ([]*PronunciationSubmission, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, attempt_id, exercise_id, transcript,
                pronunciation_score, intonation_score, stress_score, accuracy_score,
                overall_score, is_passed, words_json, created_at, updated_at
         FROM pronunciation_submissions WHERE attempt_id = ? ORDER BY exercise_id`,
		attemptID,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*PronunciationSubmission
	for rows.Next() {
		var (
			sub        PronunciationSubmission
			transcript sql.NullString
			passed     sql.NullInt64
			words      sql.NullString
			createdRaw sql.NullString
			updatedRaw sql.NullString
		)
		if err := rows.Scan(
			&sub.ID,
			&sub.AttemptID,
			&sub.ExerciseID,
			&transcript,
			&sub.Pronunciation,
			&sub.Intonation,
			&sub.Stress,
			&sub.Accuracy,
			&sub.Overall,
			&passed,
			&words,
			&createdRaw,
			&updatedRaw,
		); err != nil {
			return nil, err
		}
		sub.Transcript = transcript.String
		sub.Passed = passed.Int64 != 0
		sub.WordsJSON = words.String
		if created, err := parseTimeString(createdRaw.String); err == nil {
			sub.CreatedAt = created
		}
		if updated, err := parseTimeString(updatedRaw.String); err == nil {
			sub.UpdatedAt = updated
		}
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}

// AppendTurn records one conversation turn on a started attempt. The turn
// number must be exactly one past the last recorded turn; the check runs in
// the same transaction as the insert so interleaved appends cannot produce
// gaps or duplicates.
func (s *Store) AppendTurn(ctx context.Context, turn *ConversationTurn) error {
	if turn == nil {
		return fmt.Errorf("turn is nil")
	}
	now := time.Now().UTC()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireStartedTx(ctx, tx, turn.AttemptID); err != nil {
			return err
		}

		var last int
		if err := tx.QueryRowContext(
			ctx,
			`SELECT COALESCE(MAX(turn_number), 0) FROM conversation_turns WHERE attempt_id = ?`,
			turn.AttemptID,
		).Scan(&last); err != nil {
			return fmt.Errorf("last turn number: %w", err)
		}
		if err := conversation.CheckSequence(last, turn.TurnNumber); err != nil {
			return err
		}

		terms, err := encodeStrings(turn.VocabularyTerms)
		if err != nil {
			return fmt.Errorf("encode vocabulary terms: %w", err)
		}
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO conversation_turns (
                attempt_id, turn_number, user_message, reply,
                grammar_correct, vocabulary_json, fluency_score, sentiment, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			turn.AttemptID,
			turn.TurnNumber,
			turn.UserMessage,
			nullableString(turn.Reply),
			boolToInt(turn.GrammarCorrect),
			terms,
			turn.Fluency,
			nullableString(turn.Sentiment),
			now.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
		turn.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		turn.CreatedAt = now
		return nil
	})
}

// TurnsForAttempt returns an attempt's turns in sequence order.
func (s *Store) TurnsForAttempt(ctx context.Context, attemptID int64) ([]*ConversationTurn, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, attempt_id, turn_number, user_message, reply,
                grammar_correct, vocabulary_json, fluency_score, sentiment, created_at
         FROM conversation_turns WHERE attempt_id = ? ORDER BY turn_number`,
		attemptID,
	)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []*ConversationTurn
	for rows.Next() {
		var (
			turn       ConversationTurn
			reply      sql.NullString
			grammar    sql.NullInt64
			terms      sql.NullString
			sentiment  sql.NullString
			createdRaw sql.NullString
		)
		if err := rows.Scan(
			&turn.ID,
			&turn.AttemptID,
			&turn.TurnNumber,
			&turn.UserMessage,
			&reply,
			&grammar,
			&terms,
			&turn.Fluency,
			&sentiment,
			&createdRaw,
		); err != nil {
			return nil, err
		}
		turn.Reply = reply.String
		turn.GrammarCorrect = grammar.Int64 != 0
		turn.VocabularyTerms = decodeStrings(terms.String)
		turn.Sentiment = sentiment.String
		if created, err := parseTimeString(createdRaw.String); err == nil {
			turn.CreatedAt = created
		}
		turns = append(turns, &turn)
	}
	return turns, rows.Err()
}

// requireStartedTx verifies an attempt exists and remains started, inside an
// open transaction.
func requireStartedTx(ctx context.Context, tx *sql.Tx, attemptID int64) error {
	var statusStr string
	err := tx.QueryRowContext(ctx, `SELECT status FROM attempts WHERE id = ?`, attemptID).Scan(&statusStr)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("attempt %d: %w", attemptID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("attempt status: %w", err)
	}
	if AttemptStatus(statusStr) != AttemptStarted {
		return fmt.Errorf("attempt %d is %s: %w", attemptID, statusStr, ErrAttemptAlreadyCompleted)
	}
	return nil
}
