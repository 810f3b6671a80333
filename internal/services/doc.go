// Package services defines shared utilities consumed by the engine and the
// external service integrations.
//
// Key responsibilities:
//   - Context helpers that stamp learner, lesson, attempt, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so collaborator failures
//     classify consistently with errors.Is at the API boundary.
//
// Use these helpers when wiring new engine logic so operational behaviour
// (error handling, observability, retries) stays uniform across the system.
package services
