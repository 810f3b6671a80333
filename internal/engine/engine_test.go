package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"parlo/internal/config"
	"parlo/internal/conversation"
	"parlo/internal/engine"
	"parlo/internal/logging"
	"parlo/internal/services/dialogue"
	"parlo/internal/services/transcriber"
	"parlo/internal/store"
	"parlo/internal/testsupport"
)

// echoTranscriber recognizes every recording as the given transcript with
// full confidence and uniform word timing.
type echoTranscriber struct {
	transcript string
	err        error
}

func (t *echoTranscriber) Transcribe(context.Context, []byte, string) (*transcriber.Result, error) {
	if t.err != nil {
		return nil, t.err
	}
	fields := strings.Fields(t.transcript)
	words := make([]transcriber.Word, 0, len(fields))
	start := 0.0
	for _, f := range fields {
		words = append(words, transcriber.Word{Text: f, Confidence: 1, Start: start, End: start + 0.3})
		start += 0.4
	}
	return &transcriber.Result{
		Transcript: t.transcript,
		Confidence: 1,
		Utterances: 1,
		Words:      words,
	}, nil
}

// scriptedDialogue replies with one scripted assessment per turn.
type scriptedDialogue struct {
	opening     string
	assessments []dialogue.Assessment
	calls       int
}

func (d *scriptedDialogue) OpeningMessage(context.Context, dialogue.Scenario) (string, error) {
	return d.opening, nil
}

func (d *scriptedDialogue) Respond(_ context.Context, _ dialogue.Scenario, _ []dialogue.Exchange, _ string) (dialogue.Assessment, error) {
	if d.calls >= len(d.assessments) {
		return dialogue.Assessment{}, errors.New("no scripted assessment left")
	}
	a := d.assessments[d.calls]
	d.calls++
	return a, nil
}

type fixture struct {
	engine  *engine.Engine
	store   *store.Store
	catalog *testsupport.Catalog
	cfg     *config.Config
	clock   *time.Time
}

func newFixture(t *testing.T, tr engine.Transcriber, dl engine.Dialogue) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	catalog := testsupport.SeedCatalog(t, st)

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	fx := &fixture{store: st, catalog: catalog, cfg: cfg, clock: &now}
	eng, err := engine.NewWithClients(cfg, st, logging.NewNop(), tr, dl, nil,
		engine.WithClock(func() time.Time { return *fx.clock }))
	if err != nil {
		t.Fatalf("NewWithClients: %v", err)
	}
	fx.engine = eng
	return fx
}

func (fx *fixture) advanceDays(n int) {
	next := fx.clock.AddDate(0, 0, n)
	*fx.clock = next
}

// passColors grades a perfect answer set and completes the attempt.
func (fx *fixture) passColors(t *testing.T, user engine.Principal) *engine.CompletionResult {
	t.Helper()
	ctx := context.Background()
	attempt, err := fx.engine.StartAttempt(ctx, user, fx.catalog.Lesson(t, "colors").ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	answers := map[string]string{"rojo": "red", "verde": "green", "azul": "blue"}
	if _, err := fx.engine.SubmitVocabulary(ctx, user, attempt.ID, answers); err != nil {
		t.Fatalf("SubmitVocabulary: %v", err)
	}
	result, err := fx.engine.Complete(ctx, user, attempt.ID, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	return result
}

func TestStartAttemptEnforcesUnlockOrder(t *testing.T) {
	fx := newFixture(t, nil, nil)
	ctx := context.Background()
	user := engine.User(1)

	if _, err := fx.engine.StartAttempt(ctx, engine.Anonymous(), fx.catalog.Lesson(t, "colors").ID); !errors.Is(err, engine.ErrAuthenticationRequired) {
		t.Fatalf("expected ErrAuthenticationRequired, got %v", err)
	}
	if _, err := fx.engine.StartAttempt(ctx, user, 9999); !errors.Is(err, engine.ErrLessonNotFound) {
		t.Fatalf("expected ErrLessonNotFound, got %v", err)
	}
	if _, err := fx.engine.StartAttempt(ctx, user, fx.catalog.Lesson(t, "greetings").ID); !errors.Is(err, engine.ErrLessonLocked) {
		t.Fatalf("expected ErrLessonLocked, got %v", err)
	}

	attempt, err := fx.engine.StartAttempt(ctx, user, fx.catalog.Lesson(t, "colors").ID)
	if err != nil {
		t.Fatalf("StartAttempt on first lesson: %v", err)
	}
	if attempt.AttemptNumber != 1 {
		t.Fatalf("expected attempt number 1, got %d", attempt.AttemptNumber)
	}
}

func TestConcurrentCompletionsAccumulateXP(t *testing.T) {
	fx := newFixture(t, nil, nil)
	ctx := context.Background()
	user := engine.User(1)
	lessonID := fx.catalog.Lesson(t, "colors").ID
	answers := map[string]string{"rojo": "red", "verde": "green", "azul": "blue"}

	attempts := make([]*store.Attempt, 2)
	for i := range attempts {
		attempt, err := fx.engine.StartAttempt(ctx, user, lessonID)
		if err != nil {
			t.Fatalf("StartAttempt %d: %v", i, err)
		}
		if _, err := fx.engine.SubmitVocabulary(ctx, user, attempt.ID, answers); err != nil {
			t.Fatalf("SubmitVocabulary %d: %v", i, err)
		}
		attempts[i] = attempt
	}

	results := make([]*engine.CompletionResult, len(attempts))
	errs := make([]error, len(attempts))
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func(i int, attemptID int64) {
			defer wg.Done()
			results[i], errs[i] = fx.engine.Complete(ctx, user, attemptID, nil)
		}(i, attempts[i].ID)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("Complete %d: %v", i, err)
		}
	}

	entries, err := fx.store.LedgerEntries(ctx, 1)
	if err != nil {
		t.Fatalf("LedgerEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	var ledgerTotal int64
	for _, entry := range entries {
		ledgerTotal += int64(entry.XP)
	}
	progress, err := fx.store.GetProgress(ctx, 1)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if progress.TotalXP != ledgerTotal {
		t.Fatalf("total xp %d disagrees with ledger sum %d", progress.TotalXP, ledgerTotal)
	}
	if awarded := int64(results[0].Award.XP + results[1].Award.XP); awarded != ledgerTotal {
		t.Fatalf("reported awards %d disagree with ledger sum %d", awarded, ledgerTotal)
	}
	// 50 base + 20 perfect on both, 15 first-try on attempt 1, and a 5 XP
	// same-day streak bonus for whichever completion lands second.
	if ledgerTotal != 160 {
		t.Fatalf("expected 160 total XP, got %d", ledgerTotal)
	}
}

func TestSubmitVocabularyGradesAnswerSet(t *testing.T) {
	fx := newFixture(t, nil, nil)
	ctx := context.Background()
	user := engine.User(1)

	attempt, err := fx.engine.StartAttempt(ctx, user, fx.catalog.Lesson(t, "colors").ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	result, err := fx.engine.SubmitVocabulary(ctx, user, attempt.ID, map[string]string{
		"rojo":  "  RED ",
		"verde": "green",
		"azul":  "yellow",
	})
	if err != nil {
		t.Fatalf("SubmitVocabulary: %v", err)
	}
	if result.Correct != 2 || result.Total != 3 {
		t.Fatalf("expected 2/3 correct, got %d/%d", result.Correct, result.Total)
	}
	if result.Score != 66.7 {
		t.Fatalf("expected score 66.7, got %v", result.Score)
	}
	if result.Passed {
		t.Fatal("expected failing score against threshold 70")
	}
	if len(result.Items) != 3 || !result.Items[0].Correct || result.Items[2].Correct {
		t.Fatalf("unexpected item grades: %+v", result.Items)
	}

	if _, err := fx.engine.SubmitVocabulary(ctx, user, attempt.ID, nil); err == nil {
		t.Fatal("expected validation error for empty answer set")
	}
}

func TestCompleteVocabularyPerfectFirstTry(t *testing.T) {
	fx := newFixture(t, nil, nil)
	user := engine.User(1)

	result := fx.passColors(t, user)
	if !result.Passed || result.Score != 100 {
		t.Fatalf("expected perfect pass, got score %v passed %v", result.Score, result.Passed)
	}
	if result.Award == nil {
		t.Fatal("expected an XP award")
	}
	// 50 base + 20 perfect + 15 first try, no streak yet.
	if result.Award.XP != 85 || result.TotalXP != 85 {
		t.Fatalf("expected 85 XP, got award %d total %d", result.Award.XP, result.TotalXP)
	}
	if result.CurrentStreak != 1 {
		t.Fatalf("expected streak 1, got %d", result.CurrentStreak)
	}
	if result.Feedback != "Excellent work! Keep it up." {
		t.Fatalf("unexpected feedback %q", result.Feedback)
	}

	greetings := fx.catalog.Lesson(t, "greetings").ID
	if len(result.UnlockedLessonIDs) != 1 || result.UnlockedLessonIDs[0] != greetings {
		t.Fatalf("expected unlock of greetings %d, got %v", greetings, result.UnlockedLessonIDs)
	}
	if _, err := fx.engine.StartAttempt(context.Background(), user, greetings); err != nil {
		t.Fatalf("StartAttempt on unlocked lesson: %v", err)
	}
}

func TestCompleteTwiceIsRejected(t *testing.T) {
	fx := newFixture(t, nil, nil)
	ctx := context.Background()
	user := engine.User(1)

	result := fx.passColors(t, user)
	if _, err := fx.engine.Complete(ctx, user, result.AttemptID, nil); !errors.Is(err, engine.ErrAttemptAlreadyCompleted) {
		t.Fatalf("expected ErrAttemptAlreadyCompleted, got %v", err)
	}
	entries, err := fx.store.LedgerEntries(ctx, 1)
	if err != nil {
		t.Fatalf("LedgerEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single ledger entry, got %d", len(entries))
	}
}

func TestCompleteFailedAttemptLeavesProgressionUntouched(t *testing.T) {
	fx := newFixture(t, nil, nil)
	ctx := context.Background()
	user := engine.User(1)

	attempt, err := fx.engine.StartAttempt(ctx, user, fx.catalog.Lesson(t, "colors").ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if _, err := fx.engine.SubmitVocabulary(ctx, user, attempt.ID, map[string]string{"rojo": "red"}); err != nil {
		t.Fatalf("SubmitVocabulary: %v", err)
	}
	result, err := fx.engine.Complete(ctx, user, attempt.ID, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if result.Passed || result.Score != 33.3 {
		t.Fatalf("expected 33.3 fail, got score %v passed %v", result.Score, result.Passed)
	}
	if result.Award != nil || len(result.UnlockedLessonIDs) != 0 {
		t.Fatalf("failed attempt must not award or unlock: %+v", result)
	}

	summary, err := fx.engine.Progress(ctx, user)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if summary.TotalXP != 0 || summary.CurrentStreak != 0 {
		t.Fatalf("expected untouched progression, got %+v", summary)
	}
	if summary.AttemptsCompleted != 1 || summary.LessonsPassed != 0 {
		t.Fatalf("expected the failed attempt on record, got %+v", summary)
	}
}

func TestCompletePronunciationRecordedSubmissionsWin(t *testing.T) {
	tr := &echoTranscriber{transcript: "hello how are you"}
	fx := newFixture(t, tr, nil)
	ctx := context.Background()
	user := engine.User(1)
	greetings := fx.catalog.Lesson(t, "greetings")

	if err := fx.store.UnlockLessons(ctx, 1, greetings.ID); err != nil {
		t.Fatalf("UnlockLessons: %v", err)
	}
	attempt, err := fx.engine.StartAttempt(ctx, user, greetings.ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}

	exercises, err := fx.store.PronunciationExercises(ctx, greetings.ID)
	if err != nil {
		t.Fatalf("PronunciationExercises: %v", err)
	}
	sub, err := fx.engine.SubmitPronunciation(ctx, user, attempt.ID, exercises[0].ID, []byte("audio"), "webm")
	if err != nil {
		t.Fatalf("SubmitPronunciation: %v", err)
	}
	// Perfect words with flat timing: 100/100/75/100 weighted to 95.
	if sub.Grade.Overall != 95 || !sub.Passed {
		t.Fatalf("expected overall 95 pass, got %v passed %v", sub.Grade.Overall, sub.Passed)
	}
	if sub.Summary.SubmittedCount != 1 || sub.Summary.ExerciseCount != 2 || sub.Summary.Complete {
		t.Fatalf("unexpected running summary %+v", sub.Summary)
	}

	// An explicit score never overrides the recorded submissions.
	low := 20.0
	result, err := fx.engine.Complete(ctx, user, attempt.ID, &low)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if result.Score != 95 || !result.Passed {
		t.Fatalf("expected aggregated 95, got %v passed %v", result.Score, result.Passed)
	}
	// 75 base + 10 high score + 15 first try.
	if result.Award == nil || result.Award.XP != 100 {
		t.Fatalf("expected 100 XP, got %+v", result.Award)
	}
}

func TestCompletePronunciationWithoutSubmissionsFails(t *testing.T) {
	fx := newFixture(t, &echoTranscriber{transcript: "unused"}, nil)
	ctx := context.Background()
	user := engine.User(1)
	greetings := fx.catalog.Lesson(t, "greetings")

	if err := fx.store.UnlockLessons(ctx, 1, greetings.ID); err != nil {
		t.Fatalf("UnlockLessons: %v", err)
	}
	attempt, err := fx.engine.StartAttempt(ctx, user, greetings.ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	result, err := fx.engine.Complete(ctx, user, attempt.ID, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if result.Passed || result.Score != 0 || result.Award != nil {
		t.Fatalf("expected zero-score fail, got %+v", result)
	}
}

func TestConversationTurnsAndMinimum(t *testing.T) {
	dl := &scriptedDialogue{
		opening: "Hola! What can I get you?",
		assessments: []dialogue.Assessment{
			{Reply: "One coffee coming up.", GrammarCorrect: true, VocabularyTerms: []string{"coffee", "order"}, Fluency: 90, Sentiment: "positive"},
			{Reply: "Anything else?", GrammarCorrect: true, VocabularyTerms: []string{"please"}, Fluency: 90, Sentiment: "positive"},
			{Reply: "Here you go!", GrammarCorrect: true, VocabularyTerms: []string{"menu"}, Fluency: 90, Sentiment: "positive"},
		},
	}
	fx := newFixture(t, nil, dl)
	ctx := context.Background()
	user := engine.User(1)
	cafe := fx.catalog.Lesson(t, "cafe")

	if err := fx.store.UnlockLessons(ctx, 1, cafe.ID); err != nil {
		t.Fatalf("UnlockLessons: %v", err)
	}
	attempt, err := fx.engine.StartAttempt(ctx, user, cafe.ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}

	opening, err := fx.engine.OpeningMessage(ctx, user, attempt.ID)
	if err != nil {
		t.Fatalf("OpeningMessage: %v", err)
	}
	if opening == "" {
		t.Fatal("expected an opening message")
	}

	if _, err := fx.engine.SubmitTurn(ctx, user, attempt.ID, 2, "hola"); !errors.Is(err, conversation.ErrTurnSequence) {
		t.Fatalf("expected ErrTurnSequence for gap, got %v", err)
	}

	for i := 1; i <= 2; i++ {
		if _, err := fx.engine.SubmitTurn(ctx, user, attempt.ID, i, "un cafe por favor"); err != nil {
			t.Fatalf("SubmitTurn %d: %v", i, err)
		}
	}
	if _, err := fx.engine.Complete(ctx, user, attempt.ID, nil); !errors.Is(err, conversation.ErrMinimumTurnsNotMet) {
		t.Fatalf("expected ErrMinimumTurnsNotMet at 2 of 3 turns, got %v", err)
	}

	turn, err := fx.engine.SubmitTurn(ctx, user, attempt.ID, 3, "gracias")
	if err != nil {
		t.Fatalf("SubmitTurn 3: %v", err)
	}
	if turn.Reply != "Here you go!" {
		t.Fatalf("unexpected reply %q", turn.Reply)
	}

	result, err := fx.engine.Complete(ctx, user, attempt.ID, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	// Grammar 100, vocabulary 4/4 distinct terms, fluency 90: (100+100+90)/3.
	if result.Score != 96.7 || !result.Passed {
		t.Fatalf("expected 96.7 pass, got %v passed %v", result.Score, result.Passed)
	}
	// 100 base + 10 high score + 15 first try.
	if result.Award == nil || result.Award.XP != 125 {
		t.Fatalf("expected 125 XP, got %+v", result.Award)
	}
}

func TestUnlockCascadeAcrossTopics(t *testing.T) {
	tr := &echoTranscriber{transcript: "hello how are you"}
	dl := &scriptedDialogue{
		opening: "Hola!",
		assessments: []dialogue.Assessment{
			{Reply: "Si.", GrammarCorrect: true, VocabularyTerms: []string{"coffee"}, Fluency: 85, Sentiment: "positive"},
			{Reply: "Claro.", GrammarCorrect: true, VocabularyTerms: []string{"order"}, Fluency: 85, Sentiment: "positive"},
			{Reply: "Adios.", GrammarCorrect: true, VocabularyTerms: []string{"please", "menu"}, Fluency: 85, Sentiment: "positive"},
		},
	}
	fx := newFixture(t, tr, dl)
	ctx := context.Background()
	user := engine.User(1)

	first := fx.passColors(t, user)
	greetingsID := fx.catalog.Lesson(t, "greetings").ID
	if len(first.UnlockedLessonIDs) != 1 || first.UnlockedLessonIDs[0] != greetingsID {
		t.Fatalf("expected colors to unlock greetings, got %v", first.UnlockedLessonIDs)
	}

	attempt, err := fx.engine.StartAttempt(ctx, user, greetingsID)
	if err != nil {
		t.Fatalf("StartAttempt greetings: %v", err)
	}
	exercises, err := fx.store.PronunciationExercises(ctx, greetingsID)
	if err != nil {
		t.Fatalf("PronunciationExercises: %v", err)
	}
	if _, err := fx.engine.SubmitPronunciation(ctx, user, attempt.ID, exercises[0].ID, []byte("a"), "webm"); err != nil {
		t.Fatalf("SubmitPronunciation: %v", err)
	}
	second, err := fx.engine.Complete(ctx, user, attempt.ID, nil)
	if err != nil {
		t.Fatalf("Complete greetings: %v", err)
	}
	cafeID := fx.catalog.Lesson(t, "cafe").ID
	if !second.Passed || len(second.UnlockedLessonIDs) != 1 || second.UnlockedLessonIDs[0] != cafeID {
		t.Fatalf("expected greetings to unlock cafe, got %+v", second)
	}

	attempt, err = fx.engine.StartAttempt(ctx, user, cafeID)
	if err != nil {
		t.Fatalf("StartAttempt cafe: %v", err)
	}
	for i := 1; i <= 3; i++ {
		if _, err := fx.engine.SubmitTurn(ctx, user, attempt.ID, i, "un cafe por favor"); err != nil {
			t.Fatalf("SubmitTurn %d: %v", i, err)
		}
	}
	third, err := fx.engine.Complete(ctx, user, attempt.ID, nil)
	if err != nil {
		t.Fatalf("Complete cafe: %v", err)
	}
	airportID := fx.catalog.Lesson(t, "airport").ID
	if !third.Passed {
		t.Fatalf("expected cafe pass, got %+v", third)
	}
	if len(third.UnlockedLessonIDs) != 1 || third.UnlockedLessonIDs[0] != airportID {
		t.Fatalf("expected topic completion to unlock airport, got %v", third.UnlockedLessonIDs)
	}
	if _, err := fx.engine.StartAttempt(ctx, user, airportID); err != nil {
		t.Fatalf("StartAttempt airport: %v", err)
	}
}

func TestStreakAdvancesAcrossDays(t *testing.T) {
	fx := newFixture(t, nil, nil)
	user := engine.User(1)

	day1 := fx.passColors(t, user)
	if day1.CurrentStreak != 1 || day1.Award.StreakBonus != 0 {
		t.Fatalf("expected fresh streak without bonus, got %+v", day1.Award)
	}

	fx.advanceDays(1)
	day2 := fx.passColors(t, user)
	if day2.CurrentStreak != 2 {
		t.Fatalf("expected streak 2, got %d", day2.CurrentStreak)
	}
	// 50 base + 20 perfect + 5 streak; the first-try bonus is gone on attempt 2.
	if day2.Award.XP != 75 || day2.Award.StreakBonus != 5 {
		t.Fatalf("expected 75 XP with streak bonus 5, got %+v", day2.Award)
	}

	fx.advanceDays(3)
	day5 := fx.passColors(t, user)
	if day5.CurrentStreak != 1 || day5.Award.StreakBonus != 0 {
		t.Fatalf("expected streak reset after a gap, got %+v", day5.Award)
	}
}

func TestProgressSummaryDerivesLevel(t *testing.T) {
	fx := newFixture(t, nil, nil)
	ctx := context.Background()
	user := engine.User(1)

	fx.passColors(t, user)
	fx.advanceDays(1)
	fx.passColors(t, user)

	summary, err := fx.engine.Progress(ctx, user)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if summary.TotalXP != 160 {
		t.Fatalf("expected 160 XP, got %d", summary.TotalXP)
	}
	if summary.Level != 2 || summary.XPToNextLevel != 140 {
		t.Fatalf("expected level 2 with 140 XP to go, got level %d to-go %d", summary.Level, summary.XPToNextLevel)
	}
	if summary.LessonsPassed != 1 || summary.AttemptsCompleted != 2 {
		t.Fatalf("unexpected stats %+v", summary)
	}
	if summary.AverageScore != 100 {
		t.Fatalf("expected average 100, got %v", summary.AverageScore)
	}
}

func TestCatalogReportsStanding(t *testing.T) {
	fx := newFixture(t, nil, nil)
	ctx := context.Background()
	user := engine.User(1)

	anon, err := fx.engine.Catalog(ctx, engine.Anonymous())
	if err != nil {
		t.Fatalf("Catalog anonymous: %v", err)
	}
	if len(anon) != 2 || len(anon[0].Lessons) != 3 {
		t.Fatalf("unexpected catalog shape: %+v", anon)
	}
	for _, topic := range anon {
		for _, lesson := range topic.Lessons {
			if lesson.Unlocked || lesson.Passed {
				t.Fatalf("anonymous catalog must carry no standing: %+v", lesson)
			}
		}
	}

	fx.passColors(t, user)
	mine, err := fx.engine.Catalog(ctx, user)
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	basics := mine[0].Lessons
	if !basics[0].Unlocked || !basics[0].Passed {
		t.Fatalf("expected colors unlocked and passed, got %+v", basics[0])
	}
	if !basics[1].Unlocked || basics[1].Passed {
		t.Fatalf("expected greetings unlocked only, got %+v", basics[1])
	}
	if basics[2].Unlocked {
		t.Fatalf("expected cafe still locked, got %+v", basics[2])
	}
}
