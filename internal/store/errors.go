package store

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAttemptAlreadyCompleted indicates an attempt has already reached a
	// terminal status and accepts no further mutation. It backs the
	// exactly-once ledger guarantee: a second completion fails with this
	// error and leaves progression untouched.
	ErrAttemptAlreadyCompleted = errors.New("attempt already completed")
)
