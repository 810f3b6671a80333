// Package pronunciation grades individual exercise recordings against their
// reference text and folds retained submissions into the lesson-level
// aggregate. Both halves are pure: the engine feeds them transcriber output
// and stored rows.
package pronunciation
