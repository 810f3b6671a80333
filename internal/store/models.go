package store

import (
	"strings"
	"time"
)

// LessonType identifies how a lesson is scored.
type LessonType string

const (
	LessonVocabulary    LessonType = "vocabulary_matching"
	LessonPronunciation LessonType = "pronunciation"
	LessonConversation  LessonType = "conversation"
)

var allLessonTypes = []LessonType{
	LessonVocabulary,
	LessonPronunciation,
	LessonConversation,
}

var lessonTypeSet = func() map[LessonType]struct{} {
	set := make(map[LessonType]struct{}, len(allLessonTypes))
	for _, lt := range allLessonTypes {
		set[lt] = struct{}{}
	}
	return set
}()

// AllLessonTypes returns the ordered list of known lesson types.
func AllLessonTypes() []LessonType {
	cp := make([]LessonType, len(allLessonTypes))
	copy(cp, allLessonTypes)
	return cp
}

// ParseLessonType converts a string into a known LessonType.
func ParseLessonType(value string) (LessonType, bool) {
	normalized := LessonType(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := lessonTypeSet[normalized]
	return normalized, ok
}

// AttemptStatus represents the lifecycle of a lesson attempt.
type AttemptStatus string

const (
	AttemptStarted   AttemptStatus = "started"
	AttemptCompleted AttemptStatus = "completed"
	AttemptAbandoned AttemptStatus = "abandoned"
)

var allAttemptStatuses = []AttemptStatus{
	AttemptStarted,
	AttemptCompleted,
	AttemptAbandoned,
}

var attemptStatusSet = func() map[AttemptStatus]struct{} {
	set := make(map[AttemptStatus]struct{}, len(allAttemptStatuses))
	for _, status := range allAttemptStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseAttemptStatus converts a string into a known AttemptStatus.
func ParseAttemptStatus(value string) (AttemptStatus, bool) {
	normalized := AttemptStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := attemptStatusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further transitions.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptCompleted || s == AttemptAbandoned
}

// Topic groups lessons into an ordered unit of the catalog.
type Topic struct {
	ID          int64
	Slug        string
	Title       string
	Description string
	Position    int
	CreatedAt   time.Time
}

// Lesson is a single unit of practice within a topic.
type Lesson struct {
	ID           int64
	TopicID      int64
	Slug         string
	Title        string
	Type         LessonType
	Position     int
	PassingScore float64
	Active       bool
	CreatedAt    time.Time
}

// VocabularyPair is one word/meaning card in a vocabulary lesson.
type VocabularyPair struct {
	ID       int64
	LessonID int64
	Word     string
	Meaning  string
	Position int
}

// PronunciationExercise is one reference phrase to be spoken aloud.
type PronunciationExercise struct {
	ID          int64
	LessonID    int64
	Content     string
	Phonetic    string
	TargetScore float64
	Position    int
}

// ConversationTemplate describes the roleplay scenario for a conversation lesson.
type ConversationTemplate struct {
	ID               int64
	LessonID         int64
	AIRole           string
	Scenario         string
	MinTurns         int
	VocabularyFocus  []string
	VocabularyTarget int
}

// Attempt is one run of a lesson by one user, persisted in SQLite.
type Attempt struct {
	ID            int64
	UserID        int64
	LessonID      int64
	AttemptNumber int
	Status        AttemptStatus
	StartedAt     time.Time
	CompletedAt   *time.Time
	OverallScore  *float64
	Passed        *bool
	CorrectCount  *int
	TotalCount    *int
}

// IsActive reports whether the attempt still accepts submissions.
func (a Attempt) IsActive() bool {
	return a.Status == AttemptStarted
}

// PronunciationSubmission is the retained grading result for one exercise
// within an attempt. Resubmission replaces the prior row.
type PronunciationSubmission struct {
	ID            int64
	AttemptID     int64
	ExerciseID    int64
	Transcript    string
	Pronunciation float64
	Intonation    float64
	Stress        float64
	Accuracy      float64
	Overall       float64
	Passed        bool
	WordsJSON     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ConversationTurn is one user message plus its analysed reply, append-only
// and strictly sequential within an attempt.
type ConversationTurn struct {
	ID              int64
	AttemptID       int64
	TurnNumber      int
	UserMessage     string
	Reply           string
	GrammarCorrect  bool
	VocabularyTerms []string
	Fluency         float64
	Sentiment       string
	CreatedAt       time.Time
}

// Progress is the durable per-user progression state. Level is derived from
// TotalXP on read and never stored.
type Progress struct {
	UserID           int64
	TotalXP          int64
	CurrentStreak    int
	LongestStreak    int
	LastPracticeDate string
	UpdatedAt        time.Time
}

// LedgerEntry records a single XP award. One row per completed passing
// attempt; the attempt_id uniqueness constraint backs the exactly-once
// guarantee.
type LedgerEntry struct {
	ID             int64
	UserID         int64
	AttemptID      int64
	LessonID       int64
	XP             int
	BaseXP         int
	PerfectBonus   int
	HighScoreBonus int
	FirstTryBonus  int
	StreakBonus    int
	CreatedAt      time.Time
}

// UserStats aggregates a user's practice history for the progress summary.
type UserStats struct {
	LessonsPassed     int
	AttemptsCompleted int
	AverageScore      float64
}
