package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Attempt describes a lesson attempt in a transport-friendly format.
type Attempt struct {
	ID            int64    `json:"id"`
	LessonID      int64    `json:"lessonId"`
	AttemptNumber int      `json:"attemptNumber"`
	Status        string   `json:"status"`
	StartedAt     string   `json:"startedAt,omitempty"`
	CompletedAt   string   `json:"completedAt,omitempty"`
	OverallScore  *float64 `json:"overallScore,omitempty"`
	Passed        *bool    `json:"passed,omitempty"`
}

// Lesson is one catalog lesson annotated with the caller's standing.
type Lesson struct {
	ID           int64   `json:"id"`
	Slug         string  `json:"slug"`
	Title        string  `json:"title"`
	Type         string  `json:"type"`
	Position     int     `json:"position"`
	PassingScore float64 `json:"passingScore"`
	Unlocked     bool    `json:"unlocked"`
	Passed       bool    `json:"passed"`
}

// Topic groups lessons in presentation order.
type Topic struct {
	ID      int64    `json:"id"`
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	Lessons []Lesson `json:"lessons"`
}

// CatalogResponse wraps the topic tree.
type CatalogResponse struct {
	Topics []Topic `json:"topics"`
}

// VocabularyItem is one graded word of an answer set.
type VocabularyItem struct {
	Word     string `json:"word"`
	Expected string `json:"expected"`
	Given    string `json:"given"`
	Correct  bool   `json:"correct"`
}

// VocabularyResult is the immediate grade for a vocabulary submission.
type VocabularyResult struct {
	Items   []VocabularyItem `json:"items"`
	Correct int              `json:"correct"`
	Total   int              `json:"total"`
	Score   float64          `json:"score"`
	Passed  bool             `json:"passed"`
}

// WordScore is the per-word breakdown of a pronunciation grade.
type WordScore struct {
	Word       string  `json:"word"`
	Expected   string  `json:"expected"`
	Correct    bool    `json:"correct"`
	Confidence float64 `json:"confidence"`
	Hint       string  `json:"hint,omitempty"`
}

// PronunciationResult is the grade for one exercise recording plus the
// running aggregate across the attempt.
type PronunciationResult struct {
	ExerciseID    int64       `json:"exerciseId"`
	Transcript    string      `json:"transcript"`
	Pronunciation float64     `json:"pronunciationScore"`
	Intonation    float64     `json:"intonationScore"`
	Stress        float64     `json:"stressScore"`
	Accuracy      float64     `json:"accuracyScore"`
	Overall       float64     `json:"overallScore"`
	Passed        bool        `json:"passed"`
	Words         []WordScore `json:"words"`
	Submitted     int         `json:"submittedCount"`
	Exercises     int         `json:"exerciseCount"`
	RunningScore  float64     `json:"runningScore"`
}

// TurnResult is the partner's reply and analysis for one conversation turn.
type TurnResult struct {
	TurnNumber      int      `json:"turnNumber"`
	Reply           string   `json:"reply"`
	GrammarCorrect  bool     `json:"grammarCorrect"`
	VocabularyTerms []string `json:"vocabularyTerms"`
	Fluency         float64  `json:"fluencyScore"`
	Sentiment       string   `json:"sentiment"`
}

// Award itemizes an XP grant.
type Award struct {
	XP             int `json:"xp"`
	Base           int `json:"base"`
	PerfectBonus   int `json:"perfectBonus"`
	HighScoreBonus int `json:"highScoreBonus"`
	FirstTryBonus  int `json:"firstTryBonus"`
	StreakBonus    int `json:"streakBonus"`
}

// CompletionResult is the outcome of finishing an attempt.
type CompletionResult struct {
	AttemptID         int64   `json:"attemptId"`
	Score             float64 `json:"score"`
	Passed            bool    `json:"passed"`
	Feedback          string  `json:"feedback"`
	Award             *Award  `json:"award,omitempty"`
	TotalXP           int64   `json:"totalXp"`
	Level             int     `json:"level"`
	LeveledUp         bool    `json:"leveledUp"`
	CurrentStreak     int     `json:"currentStreak"`
	UnlockedLessonIDs []int64 `json:"unlockedLessonIds,omitempty"`
}

// Progress is a learner's progression summary.
type Progress struct {
	UserID            int64   `json:"userId"`
	TotalXP           int64   `json:"totalXp"`
	Level             int     `json:"level"`
	XPToNextLevel     int     `json:"xpToNextLevel"`
	CurrentStreak     int     `json:"currentStreak"`
	LongestStreak     int     `json:"longestStreak"`
	LastPracticeDate  string  `json:"lastPracticeDate,omitempty"`
	LessonsPassed     int     `json:"lessonsPassed"`
	AttemptsCompleted int     `json:"attemptsCompleted"`
	AverageScore      float64 `json:"averageScore"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool   `json:"running"`
	PID          int    `json:"pid"`
	DBPath       string `json:"dbPath"`
	LockFilePath string `json:"lockFilePath"`
}

// AttemptListResponse wraps a collection of attempts.
type AttemptListResponse struct {
	Attempts []Attempt `json:"attempts"`
}

// AttemptResponse wraps a single attempt.
type AttemptResponse struct {
	Attempt Attempt `json:"attempt"`
}

// OpeningResponse carries the conversation partner's scenario opener.
type OpeningResponse struct {
	Message string `json:"message"`
}

// StartAttemptRequest asks to open an attempt at a lesson.
type StartAttemptRequest struct {
	LessonID int64 `json:"lessonId"`
}

// VocabularyRequest submits a full answer set keyed by word.
type VocabularyRequest struct {
	Answers map[string]string `json:"answers"`
}

// PronunciationRequest submits one exercise recording. Audio is base64 of the
// raw container bytes; Format names the container (webm, mp3, wav, ogg, m4a).
type PronunciationRequest struct {
	ExerciseID int64  `json:"exerciseId"`
	Format     string `json:"format"`
	Audio      string `json:"audio"`
}

// TurnRequest submits one conversation turn.
type TurnRequest struct {
	TurnNumber int    `json:"turnNumber"`
	Message    string `json:"message"`
}

// CompleteRequest finishes an attempt. Score is only honored for attempts
// with no recorded submissions.
type CompleteRequest struct {
	Score *float64 `json:"score,omitempty"`
}
