// Package daemon coordinates the long-running Parlo process.
//
// It enforces single-instance execution with a lock file, serves the
// localhost JSON API that fronts the lesson engine, and periodically
// abandons started attempts that have sat idle past the configured window.
// Callers identify themselves with the X-User-ID header; requests without
// it run as the anonymous principal and may only browse the catalog.
package daemon
