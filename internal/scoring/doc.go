// Package scoring holds the pure scoring primitives shared by every lesson
// type: percentage and weighted-mean derivations, pass/fail checks, and the
// coarse feedback bands.
//
// Functions here never touch storage or collaborators; they validate their
// numeric domain and return ErrInvalidInput for anything outside it, so the
// engine can trust every persisted score to be well-formed.
package scoring
