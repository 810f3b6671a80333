package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"parlo/internal/conversation"
	"parlo/internal/logging"
	"parlo/internal/pronunciation"
	"parlo/internal/scoring"
	"parlo/internal/services"
	"parlo/internal/services/dialogue"
	"parlo/internal/store"
)

// VocabularyItem is the graded outcome for one word in an answer set.
type VocabularyItem struct {
	Word     string
	Expected string
	Given    string
	Correct  bool
}

// VocabularyResult is the immediate grade for a vocabulary answer set.
type VocabularyResult struct {
	Items   []VocabularyItem
	Correct int
	Total   int
	Score   float64
	Passed  bool
}

// SubmitVocabulary grades a full answer set against the lesson's word pairs
// and records the counts on the attempt. Answers are keyed by word; matching
// is case-insensitive on trimmed text, and a missing answer counts as wrong.
func (e *Engine) SubmitVocabulary(ctx context.Context, p Principal, attemptID int64, answers map[string]string) (*VocabularyResult, error) {
	userID, err := p.requireUser()
	if err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return nil, services.Wrap(services.ErrValidation, "engine", "submit-vocabulary", "empty answer set", nil)
	}
	attempt, err := e.loadOwnedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	lesson, err := e.lessonForAttempt(ctx, attempt, store.LessonVocabulary)
	if err != nil {
		return nil, err
	}
	pairs, err := e.store.VocabularyPairs(ctx, lesson.ID)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "engine", "submit-vocabulary", fmt.Sprintf("lesson %q has no vocabulary pairs", lesson.Slug), nil)
	}

	normalized := make(map[string]string, len(answers))
	for word, meaning := range answers {
		normalized[normalizeAnswer(word)] = meaning
	}

	result := &VocabularyResult{Total: len(pairs)}
	for _, pair := range pairs {
		given := normalized[normalizeAnswer(pair.Word)]
		item := VocabularyItem{
			Word:     pair.Word,
			Expected: pair.Meaning,
			Given:    strings.TrimSpace(given),
			Correct:  normalizeAnswer(given) == normalizeAnswer(pair.Meaning) && strings.TrimSpace(given) != "",
		}
		if item.Correct {
			result.Correct++
		}
		result.Items = append(result.Items, item)
	}

	result.Score, err = scoring.VocabularyScore(result.Correct, result.Total)
	if err != nil {
		return nil, err
	}
	result.Passed = scoring.IsPassed(result.Score, lesson.PassingScore)

	if err := e.store.SetVocabularyResult(ctx, attemptID, result.Correct, result.Total); err != nil {
		return nil, err
	}
	e.logger.Info("vocabulary graded",
		logging.Int64("attempt_id", attemptID),
		logging.Int("correct", result.Correct),
		logging.Int("total", result.Total),
		logging.Float64("score", result.Score))
	return result, nil
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// PronunciationResult is the grade for one exercise recording plus the running
// aggregate across the attempt's submitted exercises.
type PronunciationResult struct {
	ExerciseID int64
	Transcript string
	Grade      pronunciation.Grade
	Passed     bool
	Summary    pronunciation.Summary
}

// SubmitPronunciation transcribes an exercise recording, grades it against
// the reference text, and retains the result. Resubmitting an exercise
// replaces its previous grade; transcription failures leave no record so the
// recording can be resubmitted.
func (e *Engine) SubmitPronunciation(ctx context.Context, p Principal, attemptID, exerciseID int64, audio []byte, format string) (*PronunciationResult, error) {
	userID, err := p.requireUser()
	if err != nil {
		return nil, err
	}
	attempt, err := e.loadOwnedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	lesson, err := e.lessonForAttempt(ctx, attempt, store.LessonPronunciation)
	if err != nil {
		return nil, err
	}
	exercise, err := e.store.GetPronunciationExercise(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	if exercise == nil || exercise.LessonID != lesson.ID {
		return nil, fmt.Errorf("exercise %d: %w", exerciseID, store.ErrNotFound)
	}

	recognized, err := e.transcriber.Transcribe(ctx, audio, format)
	if err != nil {
		return nil, err
	}
	obs := pronunciation.Observation{
		Transcript: recognized.Transcript,
		Confidence: recognized.Confidence,
		Utterances: recognized.Utterances,
		Words:      make([]pronunciation.Word, 0, len(recognized.Words)),
	}
	for _, w := range recognized.Words {
		obs.Words = append(obs.Words, pronunciation.Word{
			Text:       w.Text,
			Confidence: w.Confidence,
			Start:      w.Start,
			End:        w.End,
		})
	}
	grade, err := pronunciation.GradeExercise(exercise.Content, obs)
	if err != nil {
		return nil, err
	}
	passed := scoring.IsPassed(grade.Overall, exercise.TargetScore)

	wordsJSON, err := json.Marshal(grade.Words)
	if err != nil {
		return nil, fmt.Errorf("encode word results: %w", err)
	}
	sub := &store.PronunciationSubmission{
		AttemptID:     attemptID,
		ExerciseID:    exerciseID,
		Transcript:    recognized.Transcript,
		Pronunciation: grade.Pronunciation,
		Intonation:    grade.Intonation,
		Stress:        grade.Stress,
		Accuracy:      grade.Accuracy,
		Overall:       grade.Overall,
		Passed:        passed,
		WordsJSON:     string(wordsJSON),
	}
	if err := e.store.UpsertPronunciationSubmission(ctx, sub); err != nil {
		return nil, err
	}

	summary, err := e.pronunciationSummary(ctx, attemptID, lesson.ID)
	if err != nil {
		return nil, err
	}
	e.logger.Info("pronunciation graded",
		logging.Int64("attempt_id", attemptID),
		logging.Int64("exercise_id", exerciseID),
		logging.Float64("overall", grade.Overall),
		logging.Bool("passed", passed),
		logging.Int("submitted", summary.SubmittedCount))
	return &PronunciationResult{
		ExerciseID: exerciseID,
		Transcript: recognized.Transcript,
		Grade:      grade,
		Passed:     passed,
		Summary:    summary,
	}, nil
}

// pronunciationSummary aggregates the attempt's retained submissions. An
// attempt with no submissions summarizes as zero.
func (e *Engine) pronunciationSummary(ctx context.Context, attemptID, lessonID int64) (pronunciation.Summary, error) {
	subs, err := e.store.SubmissionsForAttempt(ctx, attemptID)
	if err != nil {
		return pronunciation.Summary{}, err
	}
	exercises, err := e.store.PronunciationExercises(ctx, lessonID)
	if err != nil {
		return pronunciation.Summary{}, err
	}
	if len(subs) == 0 {
		return pronunciation.Summary{ExerciseCount: len(exercises)}, nil
	}
	observed := make([]pronunciation.Submission, 0, len(subs))
	for _, sub := range subs {
		observed = append(observed, pronunciation.Submission{
			ExerciseID:    sub.ExerciseID,
			Pronunciation: sub.Pronunciation,
			Intonation:    sub.Intonation,
			Stress:        sub.Stress,
			Accuracy:      sub.Accuracy,
			Overall:       sub.Overall,
			Passed:        sub.Passed,
		})
	}
	return pronunciation.Summarize(observed, len(exercises))
}

// TurnResult is the partner's reply and analysis for one conversation turn.
type TurnResult struct {
	TurnNumber      int
	Reply           string
	GrammarCorrect  bool
	VocabularyTerms []string
	Fluency         float64
	Sentiment       string
}

// OpeningMessage asks the conversation partner to open the attempt's roleplay
// scenario. Nothing is recorded; the opening does not count as a turn.
func (e *Engine) OpeningMessage(ctx context.Context, p Principal, attemptID int64) (string, error) {
	userID, err := p.requireUser()
	if err != nil {
		return "", err
	}
	attempt, err := e.loadOwnedAttempt(ctx, userID, attemptID)
	if err != nil {
		return "", err
	}
	_, template, err := e.conversationContext(ctx, attempt)
	if err != nil {
		return "", err
	}
	return e.dialogue.OpeningMessage(ctx, scenarioFor(template))
}

// SubmitTurn sends a learner message to the conversation partner and records
// the analysed exchange. turnNumber must extend the session by exactly one;
// a partner failure leaves the turn unrecorded.
func (e *Engine) SubmitTurn(ctx context.Context, p Principal, attemptID int64, turnNumber int, message string) (*TurnResult, error) {
	userID, err := p.requireUser()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(message) == "" {
		return nil, services.Wrap(services.ErrValidation, "engine", "submit-turn", "empty message", nil)
	}
	attempt, err := e.loadOwnedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	_, template, err := e.conversationContext(ctx, attempt)
	if err != nil {
		return nil, err
	}
	turns, err := e.store.TurnsForAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	last := 0
	if len(turns) > 0 {
		last = turns[len(turns)-1].TurnNumber
	}
	// Reject out-of-order turns before spending a model call. The store
	// re-checks inside the insert transaction.
	if err := conversation.CheckSequence(last, turnNumber); err != nil {
		return nil, err
	}
	history := make([]dialogue.Exchange, 0, len(turns))
	for _, turn := range turns {
		history = append(history, dialogue.Exchange{UserMessage: turn.UserMessage, Reply: turn.Reply})
	}

	assessment, err := e.dialogue.Respond(ctx, scenarioFor(template), history, message)
	if err != nil {
		return nil, err
	}
	turn := &store.ConversationTurn{
		AttemptID:       attemptID,
		TurnNumber:      turnNumber,
		UserMessage:     message,
		Reply:           assessment.Reply,
		GrammarCorrect:  assessment.GrammarCorrect,
		VocabularyTerms: assessment.VocabularyTerms,
		Fluency:         assessment.Fluency,
		Sentiment:       assessment.Sentiment,
	}
	if err := e.store.AppendTurn(ctx, turn); err != nil {
		return nil, err
	}
	e.logger.Info("conversation turn recorded",
		logging.Int64("attempt_id", attemptID),
		logging.Int("turn", turnNumber),
		logging.Bool("grammar_correct", assessment.GrammarCorrect),
		logging.Float64("fluency", assessment.Fluency))
	return &TurnResult{
		TurnNumber:      turnNumber,
		Reply:           assessment.Reply,
		GrammarCorrect:  assessment.GrammarCorrect,
		VocabularyTerms: assessment.VocabularyTerms,
		Fluency:         assessment.Fluency,
		Sentiment:       assessment.Sentiment,
	}, nil
}

func (e *Engine) conversationContext(ctx context.Context, attempt *store.Attempt) (*store.Lesson, *store.ConversationTemplate, error) {
	lesson, err := e.lessonForAttempt(ctx, attempt, store.LessonConversation)
	if err != nil {
		return nil, nil, err
	}
	template, err := e.store.ConversationTemplateForLesson(ctx, lesson.ID)
	if err != nil {
		return nil, nil, err
	}
	if template == nil {
		return nil, nil, services.Wrap(services.ErrConfiguration, "engine", "conversation", fmt.Sprintf("lesson %q has no conversation template", lesson.Slug), nil)
	}
	if template.VocabularyTarget <= 0 {
		template.VocabularyTarget = conversation.DefaultVocabularyTarget
	}
	return lesson, template, nil
}

func scenarioFor(template *store.ConversationTemplate) dialogue.Scenario {
	return dialogue.Scenario{
		AIRole:          template.AIRole,
		Description:     template.Scenario,
		VocabularyFocus: template.VocabularyFocus,
	}
}
