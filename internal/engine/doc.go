// Package engine coordinates the lesson attempt lifecycle.
//
// The engine sits between the API surface and the store: it enforces the
// catalog's unlock order when attempts start, grades vocabulary answer sets
// itself, delegates pronunciation recordings to the transcription service and
// conversation turns to the dialogue service, and on completion folds the
// final grade into the progression ledger in a single transaction, so XP,
// streak, and lesson unlocks move together or not at all.
//
// Every operation takes a Principal. The zero (anonymous) principal may only
// browse the catalog; everything else requires an authenticated learner, and
// attempts belonging to other users read as not found.
package engine
