package pronunciation

import (
	"fmt"
	"math"
	"strings"

	"parlo/internal/scoring"
)

// Observation is the transcriber's view of a single recording: the full
// transcript, its overall confidence, and word-level timing data.
type Observation struct {
	Transcript string
	Confidence float64
	Utterances int
	Words      []Word
}

// Word is one recognized word with its confidence and timing.
type Word struct {
	Text       string
	Confidence float64
	Start      float64
	End        float64
}

// WordResult reports how one spoken word compared against the reference text.
type WordResult struct {
	Word       string  `json:"word"`
	Expected   string  `json:"expected"`
	Correct    bool    `json:"correct"`
	Confidence float64 `json:"confidence"`
	Hint       string  `json:"hint,omitempty"`
}

// Grade holds the four sub-scores and derived overall for one exercise
// recording, plus the per-word breakdown.
type Grade struct {
	Pronunciation float64
	Intonation    float64
	Stress        float64
	Accuracy      float64
	Overall       float64
	Words         []WordResult
}

// Spoken words within this similarity of the expected word count as correct.
const wordMatchThreshold = 0.8

// GradeExercise scores a recognized recording against the exercise reference
// text. The reference must not be blank; an empty observation grades as zero.
func GradeExercise(reference string, obs Observation) (Grade, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Grade{}, fmt.Errorf("%w: empty reference text", scoring.ErrInvalidInput)
	}

	words := analyzeWords(obs.Words, reference)

	var grade Grade
	grade.Words = words
	grade.Pronunciation = pronunciationScore(words)
	grade.Intonation = intonationScore(obs)
	grade.Stress = stressScore(obs.Words, words)
	grade.Accuracy = accuracyScore(words)

	overall, err := scoring.PronunciationOverall(grade.Pronunciation, grade.Intonation, grade.Stress, grade.Accuracy)
	if err != nil {
		return Grade{}, err
	}
	grade.Overall = overall
	grade.Pronunciation = scoring.Round1(grade.Pronunciation)
	grade.Intonation = scoring.Round1(grade.Intonation)
	grade.Stress = scoring.Round1(grade.Stress)
	grade.Accuracy = scoring.Round1(grade.Accuracy)
	return grade, nil
}

// analyzeWords walks the recognized words against the normalized reference,
// advancing through the reference only when a word matches.
func analyzeWords(words []Word, reference string) []WordResult {
	refWords := normalizeWords(reference)

	results := make([]WordResult, 0, len(words))
	refIndex := 0
	for _, w := range words {
		spoken := strings.ToLower(strings.TrimSpace(w.Text))
		var expected string
		correct := false
		if refIndex < len(refWords) {
			expected = refWords[refIndex]
			if similarity(spoken, expected) >= wordMatchThreshold {
				correct = true
				refIndex++
			}
		}
		hint := ""
		if !correct && expected != "" {
			hint = fmt.Sprintf("expected %q, heard %q", expected, spoken)
		}
		results = append(results, WordResult{
			Word:       spoken,
			Expected:   expected,
			Correct:    correct,
			Confidence: w.Confidence,
			Hint:       hint,
		})
	}
	return results
}

func normalizeWords(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '?', '!', ';', ':':
			return -1
		}
		return r
	}, strings.ToLower(text))
	return strings.Fields(cleaned)
}

// similarity is the ratio of the longest common subsequence to the combined
// length, matching difflib-style 2M/T scoring.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

// pronunciationScore blends word accuracy (70%) with recognition confidence (30%).
func pronunciationScore(words []WordResult) float64 {
	if len(words) == 0 {
		return 0
	}
	correct := 0
	var confidence float64
	for _, w := range words {
		if w.Correct {
			correct++
		}
		confidence += w.Confidence
	}
	total := float64(len(words))
	score := (float64(correct)/total)*70 + (confidence/total)*30
	return math.Min(score, 100)
}

// intonationScore uses overall recognition confidence as a proxy, with a small
// bonus for natural pausing.
func intonationScore(obs Observation) float64 {
	if len(obs.Words) == 0 {
		return 70
	}
	score := obs.Confidence * 100
	if obs.Utterances > 0 {
		score += math.Min(float64(obs.Utterances)*2, 10)
	}
	return math.Min(math.Max(score, 0), 100)
}

// stressScore checks word-duration variation: some variance reads as natural
// stress, none reads as monotone.
func stressScore(observed []Word, words []WordResult) float64 {
	if len(words) == 0 {
		return 70
	}
	var durations []float64
	for _, w := range observed {
		if w.End > w.Start {
			durations = append(durations, w.End-w.Start)
		}
	}
	if len(durations) == 0 {
		return 70
	}
	var sum float64
	for _, d := range durations {
		sum += d
	}
	mean := sum / float64(len(durations))
	var variance float64
	for _, d := range durations {
		variance += (d - mean) * (d - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(durations)))
	base := 70.0
	switch {
	case stdDev >= 0.1 && stdDev <= 0.3:
		base = 90
	case stdDev < 0.1:
		base = 75
	}
	correct := 0
	for _, w := range words {
		if w.Correct {
			correct++
		}
	}
	ratio := float64(correct) / float64(len(words))
	return math.Min(base*(0.7+0.3*ratio), 100)
}

func accuracyScore(words []WordResult) float64 {
	if len(words) == 0 {
		return 0
	}
	correct := 0
	for _, w := range words {
		if w.Correct {
			correct++
		}
	}
	return 100 * float64(correct) / float64(len(words))
}
