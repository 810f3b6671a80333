// Package progression is the pure XP, level, and streak calculator. The store
// persists snapshots; this package owns every rule about how a completed
// attempt changes them. Levels are derived from total XP on demand and never
// written to disk.
package progression
