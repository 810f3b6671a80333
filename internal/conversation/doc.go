// Package conversation tracks scored dialogue sessions: strict turn ordering,
// the minimum-length gate, and the fold from per-turn analysis into grammar,
// vocabulary, and fluency component scores.
package conversation
