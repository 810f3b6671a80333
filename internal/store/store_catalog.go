package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const topicColumns = "id, slug, title, description, position, created_at"

const lessonColumns = "id, topic_id, slug, title, lesson_type, position, passing_score, active, created_at"

// CreateTopic inserts a topic and fills in its assigned identifier.
func (s *Store) CreateTopic(ctx context.Context, topic *Topic) error {
	if topic == nil {
		return errors.New("topic is nil")
	}
	topic.CreatedAt = time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO topics (slug, title, description, position, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		topic.Slug,
		topic.Title,
		nullableString(topic.Description),
		topic.Position,
		topic.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert topic: %w", err)
	}
	topic.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// TopicBySlug fetches a topic by its slug, or nil when absent.
func (s *Store) TopicBySlug(ctx context.Context, slug string) (*Topic, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+topicColumns+` FROM topics WHERE slug = ?`, slug)
	topic, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return topic, nil
}

// ListTopics returns all topics in catalog order.
func (s *Store) ListTopics(ctx context.Context) ([]*Topic, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+topicColumns+` FROM topics ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var topics []*Topic
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}

// CreateLesson inserts a lesson and fills in its assigned identifier.
func (s *Store) CreateLesson(ctx context.Context, lesson *Lesson) error {
	if lesson == nil {
		return errors.New("lesson is nil")
	}
	if _, ok := ParseLessonType(string(lesson.Type)); !ok {
		return fmt.Errorf("unknown lesson type %q", lesson.Type)
	}
	lesson.CreatedAt = time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO lessons (topic_id, slug, title, lesson_type, position, passing_score, active, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		lesson.TopicID,
		lesson.Slug,
		lesson.Title,
		lesson.Type,
		lesson.Position,
		lesson.PassingScore,
		boolToInt(lesson.Active),
		lesson.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert lesson: %w", err)
	}
	lesson.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// GetLesson fetches a lesson by identifier, or nil when absent.
func (s *Store) GetLesson(ctx context.Context, id int64) (*Lesson, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = ?`, id)
	lesson, err := scanLesson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	return lesson, nil
}

// LessonBySlug fetches a lesson by its slug, or nil when absent.
func (s *Store) LessonBySlug(ctx context.Context, slug string) (*Lesson, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE slug = ?`, slug)
	lesson, err := scanLesson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lesson by slug: %w", err)
	}
	return lesson, nil
}

// LessonsForTopic returns a topic's lessons in ordinal order.
func (s *Store) LessonsForTopic(ctx context.Context, topicID int64) ([]*Lesson, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE topic_id = ? ORDER BY position, id`,
		topicID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()

	var lessons []*Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, lesson)
	}
	return lessons, rows.Err()
}

// ListLessons returns every lesson in catalog order: topics by position, then
// lessons by ordinal within each topic. Unlock cascade evaluation walks this
// ordering.
func (s *Store) ListLessons(ctx context.Context) ([]*Lesson, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT l.id, l.topic_id, l.slug, l.title, l.lesson_type, l.position, l.passing_score, l.active, l.created_at
         FROM lessons l
         JOIN topics t ON t.id = l.topic_id
         ORDER BY t.position, t.id, l.position, l.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list all lessons: %w", err)
	}
	defer rows.Close()

	var lessons []*Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, lesson)
	}
	return lessons, rows.Err()
}

// AddVocabularyPair attaches a word/meaning card to a lesson.
func (s *Store) AddVocabularyPair(ctx context.Context, pair *VocabularyPair) error {
	if pair == nil {
		return errors.New("pair is nil")
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO vocabulary_pairs (lesson_id, word, meaning, position) VALUES (?, ?, ?, ?)`,
		pair.LessonID,
		pair.Word,
		pair.Meaning,
		pair.Position,
	)
	if err != nil {
		return fmt.Errorf("insert vocabulary pair: %w", err)
	}
	pair.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// VocabularyPairs returns a lesson's cards in presentation order.
func (s *Store) VocabularyPairs(ctx context.Context, lessonID int64) ([]*VocabularyPair, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, lesson_id, word, meaning, position FROM vocabulary_pairs WHERE lesson_id = ? ORDER BY position, id`,
		lessonID,
	)
	if err != nil {
		return nil, fmt.Errorf("list vocabulary pairs: %w", err)
	}
	defer rows.Close()

	var pairs []*VocabularyPair
	for rows.Next() {
		var pair VocabularyPair
		if err := rows.Scan(&pair.ID, &pair.LessonID, &pair.Word, &pair.Meaning, &pair.Position); err != nil {
			return nil, err
		}
		pairs = append(pairs, &pair)
	}
	return pairs, rows.Err()
}

// AddPronunciationExercise attaches a reference phrase to a lesson.
func (s *Store) AddPronunciationExercise(ctx context.Context, exercise *PronunciationExercise) error {
	if exercise == nil {
		return errors.New("exercise is nil")
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO pronunciation_exercises (lesson_id, content, phonetic, target_score, position)
         VALUES (?, ?, ?, ?, ?)`,
		exercise.LessonID,
		exercise.Content,
		nullableString(exercise.Phonetic),
		exercise.TargetScore,
		exercise.Position,
	)
	if err != nil {
		return fmt.Errorf("insert pronunciation exercise: %w", err)
	}
	exercise.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// PronunciationExercises returns a lesson's exercises in presentation order.
func (s *Store) PronunciationExercises(ctx context.Context, lessonID int64) ([]*PronunciationExercise, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, lesson_id, content, phonetic, target_score, position
         FROM pronunciation_exercises WHERE lesson_id = ? ORDER BY position, id`,
		lessonID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pronunciation exercises: %w", err)
	}
	defer rows.Close()

	var exercises []*PronunciationExercise
	for rows.Next() {
		var (
			exercise PronunciationExercise
			phonetic sql.NullString
		)
		if err := rows.Scan(
			&exercise.ID,
			&exercise.LessonID,
			&exercise.Content,
			&phonetic,
			&exercise.TargetScore,
			&exercise.Position,
		); err != nil {
			return nil, err
		}
		exercise.Phonetic = phonetic.String
		exercises = append(exercises, &exercise)
	}
	return exercises, rows.Err()
}

// GetPronunciationExercise fetches one exercise by identifier, or nil when absent.
func (s *Store) GetPronunciationExercise(ctx context.Context, id int64) (*PronunciationExercise, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, lesson_id, content, phonetic, target_score, position FROM pronunciation_exercises WHERE id = ?`,
		id,
	)
	var (
		exercise PronunciationExercise
		phonetic sql.NullString
	)
	err := row.Scan(
		&exercise.ID,
		&exercise.LessonID,
		&exercise.Content,
		&phonetic,
		&exercise.TargetScore,
		&exercise.Position,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pronunciation exercise: %w", err)
	}
	exercise.Phonetic = phonetic.String
	return &exercise, nil
}

// SetConversationTemplate attaches or replaces a lesson's roleplay scenario.
func (s *Store) SetConversationTemplate(ctx context.Context, template *ConversationTemplate) error {
	if template == nil {
		return errors.New("template is nil")
	}
	focus, err := encodeStrings(template.VocabularyFocus)
	if err != nil {
		return fmt.Errorf("encode vocabulary focus: %w", err)
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO conversation_templates (lesson_id, ai_role, scenario, min_turns, vocabulary_focus, vocabulary_target)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(lesson_id) DO UPDATE SET
             ai_role = excluded.ai_role,
             scenario = excluded.scenario,
             min_turns = excluded.min_turns,
             vocabulary_focus = excluded.vocabulary_focus,
             vocabulary_target = excluded.vocabulary_target`,
		template.LessonID,
		template.AIRole,
		template.Scenario,
		template.MinTurns,
		focus,
		template.VocabularyTarget,
	)
	if err != nil {
		return fmt.Errorf("set conversation template: %w", err)
	}
	if template.ID == 0 {
		template.ID, _ = res.LastInsertId()
	}
	return nil
}

// ConversationTemplateForLesson returns a lesson's scenario, or nil when absent.
func (s *Store) ConversationTemplateForLesson(ctx context.Context, lessonID int64) (*ConversationTemplate, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, lesson_id, ai_role, scenario, min_turns, vocabulary_focus, vocabulary_target
         FROM conversation_templates WHERE lesson_id = ?`,
		lessonID,
	)
	var (
		template ConversationTemplate
		focus    sql.NullString
	)
	err := row.Scan(
		&template.ID,
		&template.LessonID,
		&template.AIRole,
		&template.Scenario,
		&template.MinTurns,
		&focus,
		&template.VocabularyTarget,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation template: %w", err)
	}
	template.VocabularyFocus = decodeStrings(focus.String)
	return &template, nil
}

func scanTopic(scanner interface{ Scan(dest ...any) error }) (*Topic, error) {
	var (
		topic       Topic
		description sql.NullString
		createdRaw  sql.NullString
	)
	if err := scanner.Scan(
		&topic.ID,
		&topic.Slug,
		&topic.Title,
		&description,
		&topic.Position,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	topic.Description = description.String
	if created, err := parseTimeString(createdRaw.String); err == nil {
		topic.CreatedAt = created
	}
	return &topic, nil
}

func scanLesson(scanner interface{ Scan(dest ...any) error }) (*Lesson, error) {
	var (
		lesson     Lesson
		typeStr    string
		active     sql.NullInt64
		createdRaw sql.NullString
	)
	if err := scanner.Scan(
		&lesson.ID,
		&lesson.TopicID,
		&lesson.Slug,
		&lesson.Title,
		&typeStr,
		&lesson.Position,
		&lesson.PassingScore,
		&active,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	lesson.Type = LessonType(typeStr)
	if active.Valid {
		lesson.Active = active.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		lesson.CreatedAt = created
	}
	return &lesson, nil
}
