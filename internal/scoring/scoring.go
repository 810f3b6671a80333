package scoring

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput marks scoring calls whose inputs fall outside the valid
// domain (negative counts, sub-scores outside 0-100).
var ErrInvalidInput = errors.New("invalid scoring input")

// Weights applied to pronunciation sub-scores when deriving the overall
// exercise score. They sum to 1.
const (
	WeightPronunciation = 0.3
	WeightIntonation    = 0.2
	WeightStress        = 0.2
	WeightAccuracy      = 0.3
)

// Round1 rounds a score to one decimal place. All derived scores are reported
// at this precision.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// VocabularyScore computes the percentage score for a vocabulary matching
// attempt from the number of correct pairs.
func VocabularyScore(correct, total int) (float64, error) {
	if total <= 0 {
		return 0, fmt.Errorf("%w: total must be positive, got %d", ErrInvalidInput, total)
	}
	if correct < 0 || correct > total {
		return 0, fmt.Errorf("%w: correct %d out of range [0,%d]", ErrInvalidInput, correct, total)
	}
	return Round1(100 * float64(correct) / float64(total)), nil
}

// PronunciationOverall derives the weighted overall score for a single
// pronunciation exercise from its four sub-scores.
func PronunciationOverall(pronunciation, intonation, stress, accuracy float64) (float64, error) {
	for _, v := range []float64{pronunciation, intonation, stress, accuracy} {
		if err := checkScore(v); err != nil {
			return 0, err
		}
	}
	overall := pronunciation*WeightPronunciation +
		intonation*WeightIntonation +
		stress*WeightStress +
		accuracy*WeightAccuracy
	return Round1(overall), nil
}

// ConversationOverall derives the overall conversation score as the mean of
// the fluency, grammar, and vocabulary component scores.
func ConversationOverall(fluency, grammar, vocabulary float64) (float64, error) {
	for _, v := range []float64{fluency, grammar, vocabulary} {
		if err := checkScore(v); err != nil {
			return 0, err
		}
	}
	return Round1((fluency + grammar + vocabulary) / 3), nil
}

// Mean averages a non-empty slice of scores.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: mean of empty slice", ErrInvalidInput)
	}
	var sum float64
	for _, v := range values {
		if err := checkScore(v); err != nil {
			return 0, err
		}
		sum += v
	}
	return Round1(sum / float64(len(values))), nil
}

// IsPassed reports whether a score meets the lesson passing threshold. The
// boundary is inclusive: a score exactly at the threshold passes.
func IsPassed(score, passingScore float64) bool {
	return score >= passingScore
}

func checkScore(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return fmt.Errorf("%w: score %v out of range [0,100]", ErrInvalidInput, v)
	}
	return nil
}

// Band buckets an overall score into a coarse feedback tier.
type Band string

const (
	BandExcellent     Band = "excellent"
	BandGood          Band = "good"
	BandImproving     Band = "improving"
	BandNeedsPractice Band = "needs_practice"
)

// BandSpec is one tier of the feedback policy: scores at or above Min fall
// into Band.
type BandSpec struct {
	Min     float64
	Band    Band
	Message string
}

// bandTable is the feedback policy, highest tier first. The final entry's
// Min of 0 makes it the catch-all.
var bandTable = []BandSpec{
	{Min: 85, Band: BandExcellent, Message: "Excellent work! Keep it up."},
	{Min: 70, Band: BandGood, Message: "Good job! Keep practicing."},
	{Min: 50, Band: BandImproving, Message: "Getting better! Focus on your weak areas."},
	{Min: 0, Band: BandNeedsPractice, Message: "Needs more practice. Don't give up!"},
}

// Bands returns a copy of the feedback policy table, highest tier first.
func Bands() []BandSpec {
	out := make([]BandSpec, len(bandTable))
	copy(out, bandTable)
	return out
}

// BandFor returns the feedback band for a 0-100 score.
func BandFor(score float64) Band {
	for _, spec := range bandTable {
		if score >= spec.Min {
			return spec.Band
		}
	}
	return bandTable[len(bandTable)-1].Band
}

// Feedback returns the learner-facing message for the band.
func (b Band) Feedback() string {
	for _, spec := range bandTable {
		if spec.Band == b {
			return spec.Message
		}
	}
	return bandTable[len(bandTable)-1].Message
}
