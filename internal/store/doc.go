// Package store persists the lesson catalog, attempts, submissions, and
// learner progression in SQLite.
//
// The Store manages database connections, schema initialization, attempt
// numbering, guarded status transitions, and the atomic completion write
// that applies an attempt's outcome to the XP ledger, the per-user progress
// row, and the unlock set in a single transaction.
//
// Treat this package as the single source of truth for persistence
// semantics; when you add new statuses or columns, update schema.sql and
// bump schemaVersion.
package store
