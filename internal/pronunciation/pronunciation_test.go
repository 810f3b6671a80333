package pronunciation_test

import (
	"errors"
	"testing"

	"parlo/internal/pronunciation"
	"parlo/internal/scoring"
)

func perfectObservation(text string) pronunciation.Observation {
	words := make([]pronunciation.Word, 0)
	start := 0.0
	for _, w := range []string{"the", "quick", "brown", "fox"} {
		words = append(words, pronunciation.Word{Text: w, Confidence: 1, Start: start, End: start + 0.3})
		start += 0.4
	}
	return pronunciation.Observation{
		Transcript: text,
		Confidence: 1,
		Utterances: 1,
		Words:      words,
	}
}

func TestGradeExercisePerfectMatch(t *testing.T) {
	grade, err := pronunciation.GradeExercise("The quick brown fox.", perfectObservation("the quick brown fox"))
	if err != nil {
		t.Fatalf("GradeExercise returned error: %v", err)
	}
	if grade.Accuracy != 100 {
		t.Fatalf("expected accuracy 100, got %v", grade.Accuracy)
	}
	if grade.Pronunciation != 100 {
		t.Fatalf("expected pronunciation 100, got %v", grade.Pronunciation)
	}
	if grade.Overall < 90 {
		t.Fatalf("expected high overall, got %v", grade.Overall)
	}
	for _, w := range grade.Words {
		if !w.Correct {
			t.Fatalf("expected word %q correct", w.Word)
		}
		if w.Hint != "" {
			t.Fatalf("unexpected hint for correct word: %q", w.Hint)
		}
	}
}

func TestGradeExerciseMisheardWordGetsHint(t *testing.T) {
	obs := perfectObservation("the quick brown fox")
	obs.Words[1].Text = "quite"
	obs.Words[1].Confidence = 0.4

	grade, err := pronunciation.GradeExercise("the quick brown fox", obs)
	if err != nil {
		t.Fatalf("GradeExercise returned error: %v", err)
	}
	if grade.Accuracy == 100 {
		t.Fatal("expected accuracy below 100 for mismatch")
	}
	var hinted bool
	for _, w := range grade.Words {
		if w.Hint != "" {
			hinted = true
		}
	}
	if !hinted {
		t.Fatal("expected at least one word hint")
	}
}

func TestGradeExerciseNearMatchCountsCorrect(t *testing.T) {
	obs := pronunciation.Observation{
		Confidence: 0.9,
		Words:      []pronunciation.Word{{Text: "helo", Confidence: 0.9, Start: 0, End: 0.4}},
	}
	grade, err := pronunciation.GradeExercise("hello", obs)
	if err != nil {
		t.Fatalf("GradeExercise returned error: %v", err)
	}
	// "helo" vs "hello" shares a 4-rune subsequence: ratio 8/9 > 0.8.
	if grade.Accuracy != 100 {
		t.Fatalf("expected near match to count, accuracy %v", grade.Accuracy)
	}
}

func TestGradeExerciseEmptyObservation(t *testing.T) {
	grade, err := pronunciation.GradeExercise("hello world", pronunciation.Observation{})
	if err != nil {
		t.Fatalf("GradeExercise returned error: %v", err)
	}
	if grade.Accuracy != 0 || grade.Pronunciation != 0 {
		t.Fatalf("expected zero word scores for empty observation, got %+v", grade)
	}
	// Intonation and stress fall back to neutral defaults with no signal.
	if grade.Intonation != 70 || grade.Stress != 70 {
		t.Fatalf("expected neutral defaults, got intonation %v stress %v", grade.Intonation, grade.Stress)
	}
}

func TestGradeExerciseEmptyReference(t *testing.T) {
	if _, err := pronunciation.GradeExercise("  ", pronunciation.Observation{}); !errors.Is(err, scoring.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSummarizeAveragesSubmittedOnly(t *testing.T) {
	subs := []pronunciation.Submission{
		{ExerciseID: 1, Pronunciation: 90, Intonation: 90, Stress: 90, Accuracy: 90, Overall: 90, Passed: true},
		{ExerciseID: 2, Pronunciation: 70, Intonation: 70, Stress: 70, Accuracy: 70, Overall: 70},
	}
	// Five exercises in the lesson, only two submitted: unsubmitted ones are
	// excluded from the average rather than counted as zero.
	sum, err := pronunciation.Summarize(subs, 5)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if sum.Overall != 80 {
		t.Fatalf("expected overall 80, got %v", sum.Overall)
	}
	if sum.SubmittedCount != 2 || sum.ExerciseCount != 5 {
		t.Fatalf("unexpected counts: %+v", sum)
	}
	if sum.Complete {
		t.Fatal("expected incomplete lesson")
	}
	if sum.PassedCount != 1 {
		t.Fatalf("expected 1 passed exercise, got %d", sum.PassedCount)
	}
}

func TestSummarizeComplete(t *testing.T) {
	subs := []pronunciation.Submission{
		{ExerciseID: 1, Overall: 88, Passed: true},
		{ExerciseID: 2, Overall: 92, Passed: true},
	}
	sum, err := pronunciation.Summarize(subs, 2)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if !sum.Complete {
		t.Fatal("expected complete lesson")
	}
	if sum.Overall != 90 {
		t.Fatalf("expected overall 90, got %v", sum.Overall)
	}
}

func TestSummarizeNoSubmissions(t *testing.T) {
	if _, err := pronunciation.Summarize(nil, 3); !errors.Is(err, pronunciation.ErrNoSubmissions) {
		t.Fatalf("expected ErrNoSubmissions, got %v", err)
	}
}

func TestSummarizeRejectsOutOfRangeScores(t *testing.T) {
	subs := []pronunciation.Submission{
		{ExerciseID: 1, Pronunciation: 120, Intonation: 90, Stress: 90, Accuracy: 90, Overall: 98},
	}
	if _, err := pronunciation.Summarize(subs, 1); !errors.Is(err, scoring.ErrInvalidInput) {
		t.Fatalf("Summarize = %v, want ErrInvalidInput", err)
	}
}
