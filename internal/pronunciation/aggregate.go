package pronunciation

import (
	"errors"

	"parlo/internal/scoring"
)

// ErrNoSubmissions indicates a lesson aggregate was requested before any
// exercise had been submitted.
var ErrNoSubmissions = errors.New("no pronunciation submissions")

// Submission is the retained score set for one exercise. Resubmitting an
// exercise replaces its previous submission, so at most one exists per
// exercise.
type Submission struct {
	ExerciseID    int64
	Pronunciation float64
	Intonation    float64
	Stress        float64
	Accuracy      float64
	Overall       float64
	Passed        bool
}

// Summary is the lesson-level aggregate over submitted exercises. Exercises
// never submitted do not drag the averages down; Complete reports whether
// every exercise has a submission.
type Summary struct {
	SubmittedCount int
	ExerciseCount  int
	Pronunciation  float64
	Intonation     float64
	Stress         float64
	Accuracy       float64
	Overall        float64
	PassedCount    int
	Complete       bool
}

// Summarize folds the retained submissions into the lesson aggregate.
func Summarize(subs []Submission, exerciseCount int) (Summary, error) {
	if len(subs) == 0 {
		return Summary{}, ErrNoSubmissions
	}

	var sum Summary
	sum.SubmittedCount = len(subs)
	sum.ExerciseCount = exerciseCount
	sum.Complete = exerciseCount > 0 && len(subs) >= exerciseCount

	n := len(subs)
	pron := make([]float64, 0, n)
	inton := make([]float64, 0, n)
	stress := make([]float64, 0, n)
	accuracy := make([]float64, 0, n)
	overall := make([]float64, 0, n)
	for _, s := range subs {
		pron = append(pron, s.Pronunciation)
		inton = append(inton, s.Intonation)
		stress = append(stress, s.Stress)
		accuracy = append(accuracy, s.Accuracy)
		overall = append(overall, s.Overall)
		if s.Passed {
			sum.PassedCount++
		}
	}
	for _, agg := range []struct {
		dst  *float64
		vals []float64
	}{
		{&sum.Pronunciation, pron},
		{&sum.Intonation, inton},
		{&sum.Stress, stress},
		{&sum.Accuracy, accuracy},
		{&sum.Overall, overall},
	} {
		avg, err := scoring.Mean(agg.vals)
		if err != nil {
			return Summary{}, err
		}
		*agg.dst = avg
	}
	return sum, nil
}
