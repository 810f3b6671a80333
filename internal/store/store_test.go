package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"parlo/internal/conversation"
	"parlo/internal/progression"
	"parlo/internal/store"
	"parlo/internal/testsupport"
)

func TestOpenSeedsAndReadsCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	catalog := testsupport.SeedCatalog(t, st)

	ctx := context.Background()

	topics, err := st.ListTopics(ctx)
	if err != nil {
		t.Fatalf("ListTopics failed: %v", err)
	}
	if len(topics) != 2 || topics[0].Slug != "basics" || topics[1].Slug != "travel" {
		t.Fatalf("unexpected topics: %#v", topics)
	}

	lessons, err := st.ListLessons(ctx)
	if err != nil {
		t.Fatalf("ListLessons failed: %v", err)
	}
	if len(lessons) != 4 {
		t.Fatalf("expected 4 lessons, got %d", len(lessons))
	}
	if lessons[0].Slug != "colors" || lessons[3].Slug != "airport" {
		t.Fatalf("unexpected catalog order: first=%s last=%s", lessons[0].Slug, lessons[3].Slug)
	}

	pairs, err := st.VocabularyPairs(ctx, catalog.Lesson(t, "colors").ID)
	if err != nil {
		t.Fatalf("VocabularyPairs failed: %v", err)
	}
	if len(pairs) != 3 || pairs[0].Word != "rojo" {
		t.Fatalf("unexpected pairs: %#v", pairs)
	}

	template, err := st.ConversationTemplateForLesson(ctx, catalog.Lesson(t, "cafe").ID)
	if err != nil {
		t.Fatalf("ConversationTemplateForLesson failed: %v", err)
	}
	if template == nil || template.MinTurns != 3 || len(template.VocabularyFocus) != 3 {
		t.Fatalf("unexpected template: %#v", template)
	}

	missing, err := st.GetLesson(ctx, 9999)
	if err != nil {
		t.Fatalf("GetLesson failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown lesson, got %#v", missing)
	}
}

func TestStartAttemptAssignsSequentialNumbers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	catalog := testsupport.SeedCatalog(t, st)

	ctx := context.Background()
	lessonID := catalog.Lesson(t, "colors").ID

	for want := 1; want <= 3; want++ {
		attempt, err := st.StartAttempt(ctx, 7, lessonID)
		if err != nil {
			t.Fatalf("StartAttempt failed: %v", err)
		}
		if attempt.AttemptNumber != want {
			t.Fatalf("attempt number = %d, want %d", attempt.AttemptNumber, want)
		}
		if attempt.Status != store.AttemptStarted {
			t.Fatalf("new attempt status = %s", attempt.Status)
		}
	}

	other, err := st.StartAttempt(ctx, 8, lessonID)
	if err != nil {
		t.Fatalf("StartAttempt failed: %v", err)
	}
	if other.AttemptNumber != 1 {
		t.Fatalf("numbering should be per user+lesson, got %d", other.AttemptNumber)
	}
}

func TestAbandonAttemptGuardsTerminalStates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	catalog := testsupport.SeedCatalog(t, st)

	ctx := context.Background()
	attempt, err := st.StartAttempt(ctx, 7, catalog.Lesson(t, "colors").ID)
	if err != nil {
		t.Fatalf("StartAttempt failed: %v", err)
	}

	if err := st.AbandonAttempt(ctx, attempt.ID); err != nil {
		t.Fatalf("AbandonAttempt failed: %v", err)
	}
	if err := st.AbandonAttempt(ctx, attempt.ID); !errors.Is(err, store.ErrAttemptAlreadyCompleted) {
		t.Fatalf("second abandon = %v, want ErrAttemptAlreadyCompleted", err)
	}
	if err := st.AbandonAttempt(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("abandon unknown = %v, want ErrNotFound", err)
	}

	if err := st.SetVocabularyResult(ctx, attempt.ID, 2, 3); err == nil || !errors.Is(err, store.ErrAttemptAlreadyCompleted) {
		t.Fatalf("vocabulary result on abandoned attempt = %v, want ErrAttemptAlreadyCompleted", err)
	}
}

func TestUpsertPronunciationSubmissionLastWriteWins(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	catalog := testsupport.SeedCatalog(t, st)

	ctx := context.Background()
	attempt, err := st.StartAttempt(ctx, 7, catalog.Lesson(t, "greetings").ID)
	if err != nil {
		t.Fatalf("StartAttempt failed: %v", err)
	}
	exercises, err := st.PronunciationExercises(ctx, catalog.Lesson(t, "greetings").ID)
	if err != nil {
		t.Fatalf("PronunciationExercises failed: %v", err)
	}

	first := &store.PronunciationSubmission{
		AttemptID:     attempt.ID,
		ExerciseID:    exercises[0].ID,
		Transcript:    "helo how are you",
		Pronunciation: 60,
		Intonation:    70,
		Stress:        70,
		Accuracy:      55,
		Overall:       62.5,
		Passed:        false,
	}
	if err := st.UpsertPronunciationSubmission(ctx, first); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	second := &store.PronunciationSubmission{
		AttemptID:     attempt.ID,
		ExerciseID:    exercises[0].ID,
		Transcript:    "hello how are you",
		Pronunciation: 95,
		Intonation:    80,
		Stress:        85,
		Accuracy:      100,
		Overall:       91.5,
		Passed:        true,
	}
	if err := st.UpsertPronunciationSubmission(ctx, second); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	subs, err := st.SubmissionsForAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("SubmissionsForAttempt failed: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected one retained submission, got %d", len(subs))
	}
	if subs[0].Transcript != "hello how are you" || subs[0].Overall != 91.5 || !subs[0].Passed {
		t.Fatalf("resubmission did not replace prior row: %#v", subs[0])
	}
}

func TestAppendTurnEnforcesSequence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	catalog := testsupport.SeedCatalog(t, st)

	ctx := context.Background()
	attempt, err := st.StartAttempt(ctx, 7, catalog.Lesson(t, "cafe").ID)
	if err != nil {
		t.Fatalf("StartAttempt failed: %v", err)
	}

	turn := func(number int) *store.ConversationTurn {
		return &store.ConversationTurn{
			AttemptID:       attempt.ID,
			TurnNumber:      number,
			UserMessage:     "I would like a coffee",
			Reply:           "Of course! What size?",
			GrammarCorrect:  true,
			VocabularyTerms: []string{"coffee"},
			Fluency:         80,
			Sentiment:       "positive",
		}
	}

	if err := st.AppendTurn(ctx, turn(1)); err != nil {
		t.Fatalf("turn 1 failed: %v", err)
	}
	if err := st.AppendTurn(ctx, turn(3)); !errors.Is(err, conversation.ErrTurnSequence) {
		t.Fatalf("gap turn = %v, want ErrTurnSequence", err)
	}
	if err := st.AppendTurn(ctx, turn(1)); !errors.Is(err, conversation.ErrTurnSequence) {
		t.Fatalf("repeat turn = %v, want ErrTurnSequence", err)
	}
	if err := st.AppendTurn(ctx, turn(2)); err != nil {
		t.Fatalf("turn 2 failed: %v", err)
	}

	turns, err := st.TurnsForAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("TurnsForAttempt failed: %v", err)
	}
	if len(turns) != 2 || turns[0].TurnNumber != 1 || turns[1].TurnNumber != 2 {
		t.Fatalf("unexpected turns: %#v", turns)
	}
	if len(turns[0].VocabularyTerms) != 1 || turns[0].VocabularyTerms[0] != "coffee" {
		t.Fatalf("vocabulary terms lost in round trip: %#v", turns[0].VocabularyTerms)
	}
}

func TestApplyCompletionIsExactlyOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	catalog := testsupport.SeedCatalog(t, st)

	ctx := context.Background()
	lesson := catalog.Lesson(t, "colors")
	next := catalog.Lesson(t, "greetings")
	attempt, err := st.StartAttempt(ctx, 7, lesson.ID)
	if err != nil {
		t.Fatalf("StartAttempt failed: %v", err)
	}

	today := progression.Date{Year: 2026, Month: 8, Day: 31}
	rec := &store.CompletionRecord{
		AttemptID: attempt.ID,
		UserID:    7,
		LessonID:  lesson.ID,
		Score:     100,
		Passed:    true,
		Completion: &progression.Completion{
			BaseXP:    progression.BaseXPVocabulary,
			Score:     100,
			Passed:    true,
			FirstPass: true,
			Today:     today,
		},
		StreakBonusDayCap: 10,
		UnlockLessonIDs:   []int64{next.ID},
	}
	outcome, err := st.ApplyCompletion(ctx, rec)
	if err != nil {
		t.Fatalf("ApplyCompletion failed: %v", err)
	}
	if outcome == nil || outcome.Award.XP != 85 || outcome.State.TotalXP != 85 || outcome.State.CurrentStreak != 1 {
		t.Fatalf("unexpected completion outcome: %#v", outcome)
	}

	completed, err := st.GetAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("GetAttempt failed: %v", err)
	}
	if completed.Status != store.AttemptCompleted || completed.OverallScore == nil || *completed.OverallScore != 100 {
		t.Fatalf("unexpected completed attempt: %#v", completed)
	}
	if completed.Passed == nil || !*completed.Passed || completed.CompletedAt == nil {
		t.Fatalf("completion fields not set: %#v", completed)
	}

	progress, err := st.GetProgress(ctx, 7)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if progress.TotalXP != 85 || progress.CurrentStreak != 1 || progress.LastPracticeDate != "2026-08-31" {
		t.Fatalf("unexpected progress: %#v", progress)
	}

	unlocked, err := st.UnlockedLessonIDs(ctx, 7)
	if err != nil {
		t.Fatalf("UnlockedLessonIDs failed: %v", err)
	}
	if _, ok := unlocked[next.ID]; !ok {
		t.Fatalf("expected lesson %d unlocked, got %#v", next.ID, unlocked)
	}

	// Second completion must fail before touching progression.
	if _, err := st.ApplyCompletion(ctx, rec); !errors.Is(err, store.ErrAttemptAlreadyCompleted) {
		t.Fatalf("second completion = %v, want ErrAttemptAlreadyCompleted", err)
	}
	entries, err := st.LedgerEntries(ctx, 7)
	if err != nil {
		t.Fatalf("LedgerEntries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ledger applied more than once: %d entries", len(entries))
	}
	progressAfter, err := st.GetProgress(ctx, 7)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if progressAfter.TotalXP != 85 {
		t.Fatalf("total xp changed on rejected completion: %d", progressAfter.TotalXP)
	}
}

func TestApplyCompletionFailedAttemptLeavesProgressionUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	catalog := testsupport.SeedCatalog(t, st)

	ctx := context.Background()
	lesson := catalog.Lesson(t, "colors")
	attempt, err := st.StartAttempt(ctx, 7, lesson.ID)
	if err != nil {
		t.Fatalf("StartAttempt failed: %v", err)
	}

	rec := &store.CompletionRecord{
		AttemptID: attempt.ID,
		UserID:    7,
		LessonID:  lesson.ID,
		Score:     33.3,
		Passed:    false,
	}
	outcome, err := st.ApplyCompletion(ctx, rec)
	if err != nil {
		t.Fatalf("ApplyCompletion failed: %v", err)
	}
	if outcome != nil {
		t.Fatalf("failed attempt produced a progression outcome: %#v", outcome)
	}

	progress, err := st.GetProgress(ctx, 7)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if progress.TotalXP != 0 || progress.CurrentStreak != 0 || progress.LastPracticeDate != "" {
		t.Fatalf("failed attempt mutated progression: %#v", progress)
	}
	entries, err := st.LedgerEntries(ctx, 7)
	if err != nil {
		t.Fatalf("LedgerEntries failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed attempt produced ledger entries: %#v", entries)
	}

	stats, err := st.GetUserStats(ctx, 7)
	if err != nil {
		t.Fatalf("GetUserStats failed: %v", err)
	}
	if stats.AttemptsCompleted != 1 || stats.LessonsPassed != 0 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestAbandonStaleSweepsOldStartedAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	catalog := testsupport.SeedCatalog(t, st)

	ctx := context.Background()
	attempt, err := st.StartAttempt(ctx, 7, catalog.Lesson(t, "colors").ID)
	if err != nil {
		t.Fatalf("StartAttempt failed: %v", err)
	}

	// Recent attempts stay untouched.
	swept, err := st.AbandonStale(ctx, time.Hour)
	if err != nil {
		t.Fatalf("AbandonStale failed: %v", err)
	}
	if swept != 0 {
		t.Fatalf("swept %d recent attempts", swept)
	}

	time.Sleep(10 * time.Millisecond)
	swept, err = st.AbandonStale(ctx, time.Millisecond)
	if err != nil {
		t.Fatalf("AbandonStale failed: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	stale, err := st.GetAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("GetAttempt failed: %v", err)
	}
	if stale.Status != store.AttemptAbandoned {
		t.Fatalf("stale attempt status = %s", stale.Status)
	}
}

func TestProgressForFreshUserIsZeroValued(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	progress, err := st.GetProgress(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if progress.UserID != 42 || progress.TotalXP != 0 || progress.CurrentStreak != 0 {
		t.Fatalf("unexpected fresh progress: %#v", progress)
	}
}
