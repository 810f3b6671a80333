package scoring_test

import (
	"errors"
	"testing"

	"parlo/internal/scoring"
)

func TestVocabularyScore(t *testing.T) {
	tests := []struct {
		name    string
		correct int
		total   int
		want    float64
		wantErr bool
	}{
		{name: "all correct", correct: 10, total: 10, want: 100},
		{name: "none correct", correct: 0, total: 10, want: 0},
		{name: "boundary seven of ten", correct: 7, total: 10, want: 70},
		{name: "one decimal rounding", correct: 2, total: 3, want: 66.7},
		{name: "zero total", correct: 0, total: 0, wantErr: true},
		{name: "negative correct", correct: -1, total: 5, wantErr: true},
		{name: "correct exceeds total", correct: 6, total: 5, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := scoring.VocabularyScore(tc.correct, tc.total)
			if tc.wantErr {
				if !errors.Is(err, scoring.ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("VocabularyScore(%d, %d) = %v, want %v", tc.correct, tc.total, got, tc.want)
			}
		})
	}
}

func TestPronunciationOverallWeights(t *testing.T) {
	// 80*0.3 + 70*0.2 + 60*0.2 + 90*0.3 = 77
	got, err := scoring.PronunciationOverall(80, 70, 60, 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 77 {
		t.Fatalf("PronunciationOverall = %v, want 77", got)
	}

	if _, err := scoring.PronunciationOverall(101, 50, 50, 50); !errors.Is(err, scoring.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for out-of-range sub-score, got %v", err)
	}
	if _, err := scoring.PronunciationOverall(-1, 50, 50, 50); !errors.Is(err, scoring.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative sub-score, got %v", err)
	}
}

func TestConversationOverallMean(t *testing.T) {
	got, err := scoring.ConversationOverall(90, 60, 75)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 75 {
		t.Fatalf("ConversationOverall = %v, want 75", got)
	}

	got, err = scoring.ConversationOverall(100, 100, 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 99.7 {
		t.Fatalf("ConversationOverall = %v, want 99.7", got)
	}
}

func TestMean(t *testing.T) {
	got, err := scoring.Mean([]float64{90, 70})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 80 {
		t.Fatalf("Mean = %v, want 80", got)
	}
	if _, err := scoring.Mean(nil); !errors.Is(err, scoring.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty slice, got %v", err)
	}
}

func TestIsPassedBoundaryInclusive(t *testing.T) {
	if !scoring.IsPassed(70, 70) {
		t.Fatal("score exactly at threshold must pass")
	}
	if scoring.IsPassed(69.9, 70) {
		t.Fatal("score below threshold must not pass")
	}
	if !scoring.IsPassed(70.1, 70) {
		t.Fatal("score above threshold must pass")
	}
}

func TestBandBoundaries(t *testing.T) {
	bands := scoring.Bands()
	if len(bands) == 0 {
		t.Fatal("empty band table")
	}
	if bands[len(bands)-1].Min != 0 {
		t.Fatalf("last band must catch all scores, has Min %v", bands[len(bands)-1].Min)
	}
	for i, spec := range bands {
		if i > 0 && spec.Min >= bands[i-1].Min {
			t.Fatalf("band table not ordered highest first: %v after %v", spec.Min, bands[i-1].Min)
		}
		if spec.Message == "" {
			t.Fatalf("band %s has no feedback text", spec.Band)
		}
		// A score exactly at the threshold lands in the tier; a hair
		// below drops to the next one down.
		if got := scoring.BandFor(spec.Min); got != spec.Band {
			t.Fatalf("BandFor(%v) = %s, want %s", spec.Min, got, spec.Band)
		}
		if i < len(bands)-1 {
			below := spec.Min - 0.1
			if got := scoring.BandFor(below); got != bands[i+1].Band {
				t.Fatalf("BandFor(%v) = %s, want %s", below, got, bands[i+1].Band)
			}
		}
		if spec.Band.Feedback() != spec.Message {
			t.Fatalf("Feedback for %s = %q, want %q", spec.Band, spec.Band.Feedback(), spec.Message)
		}
	}

	expected := map[float64]scoring.Band{
		100:  scoring.BandExcellent,
		85:   scoring.BandExcellent,
		84.9: scoring.BandGood,
		70:   scoring.BandGood,
		69.9: scoring.BandImproving,
		50:   scoring.BandImproving,
		49.9: scoring.BandNeedsPractice,
		0:    scoring.BandNeedsPractice,
	}
	for score, want := range expected {
		if got := scoring.BandFor(score); got != want {
			t.Fatalf("BandFor(%v) = %s, want %s", score, got, want)
		}
	}
}
