package engine

import (
	"errors"

	"parlo/internal/store"
)

var (
	// ErrAuthenticationRequired is returned when an anonymous principal
	// calls an operation that needs a learner identity.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrLessonNotFound covers missing, inactive, and foreign lessons.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrLessonLocked is returned when a learner starts a lesson they have
	// not yet unlocked.
	ErrLessonLocked = errors.New("lesson locked")
	// ErrWrongLessonType is returned when a submission does not match the
	// attempt's lesson type, e.g. audio sent to a vocabulary lesson.
	ErrWrongLessonType = errors.New("submission does not match lesson type")
)

// ErrAttemptAlreadyCompleted re-exports the store sentinel so callers can
// classify completion conflicts without importing the store package.
var ErrAttemptAlreadyCompleted = store.ErrAttemptAlreadyCompleted
