package conversation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"parlo/internal/scoring"
)

var (
	// ErrTurnSequence indicates a turn arrived with a number other than
	// last+1. Turns are strictly ordered; gaps and repeats are rejected.
	ErrTurnSequence = errors.New("conversation turn out of order")
	// ErrMinimumTurnsNotMet indicates the session is too short to score.
	ErrMinimumTurnsNotMet = errors.New("minimum turns not met")
)

// DefaultVocabularyTarget is the distinct-term count that earns a full
// vocabulary score when a template does not set its own target.
const DefaultVocabularyTarget = 20

// Turn is one completed exchange: the learner's message, the partner's reply,
// and the partner's analysis of the learner's language.
type Turn struct {
	Number          int
	UserMessage     string
	Reply           string
	GrammarCorrect  bool
	VocabularyTerms []string
	Fluency         float64
	Sentiment       string
}

// Summary is the scored view of a finished conversation session.
type Summary struct {
	Turns         int
	Grammar       float64
	Vocabulary    float64
	Fluency       float64
	Overall       float64
	DistinctTerms []string
}

// CheckSequence validates that the incoming turn number extends the session
// by exactly one.
func CheckSequence(lastNumber, next int) error {
	if next != lastNumber+1 {
		return fmt.Errorf("%w: got turn %d after turn %d", ErrTurnSequence, next, lastNumber)
	}
	return nil
}

// Summarize scores a session from its recorded turns. minTurns gates
// completion; vocabularyTarget is the distinct-term count worth 100 points
// (DefaultVocabularyTarget when zero).
func Summarize(turns []Turn, minTurns, vocabularyTarget int) (Summary, error) {
	if len(turns) < minTurns {
		return Summary{}, fmt.Errorf("%w: %d of %d turns", ErrMinimumTurnsNotMet, len(turns), minTurns)
	}
	if len(turns) == 0 {
		return Summary{}, fmt.Errorf("%w: empty session", ErrMinimumTurnsNotMet)
	}
	if vocabularyTarget <= 0 {
		vocabularyTarget = DefaultVocabularyTarget
	}

	correct := 0
	var fluency float64
	seen := make(map[string]struct{})
	for _, t := range turns {
		if t.GrammarCorrect {
			correct++
		}
		fluency += clampScore(t.Fluency)
		for _, term := range t.VocabularyTerms {
			normalized := strings.ToLower(strings.TrimSpace(term))
			if normalized == "" {
				continue
			}
			seen[normalized] = struct{}{}
		}
	}

	distinct := make([]string, 0, len(seen))
	for term := range seen {
		distinct = append(distinct, term)
	}
	sort.Strings(distinct)

	n := float64(len(turns))
	grammar := 100 * float64(correct) / n
	vocabulary := math.Min(100*float64(len(distinct))/float64(vocabularyTarget), 100)
	fluency /= n

	overall, err := scoring.ConversationOverall(fluency, grammar, vocabulary)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		Turns:         len(turns),
		Grammar:       scoring.Round1(grammar),
		Vocabulary:    scoring.Round1(vocabulary),
		Fluency:       scoring.Round1(fluency),
		Overall:       overall,
		DistinctTerms: distinct,
	}, nil
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
