// Package transcriber talks to a Deepgram-style prerecorded transcription
// API to turn pronunciation recordings into text.
//
// Only the transcript, overall confidence, utterance count, and word-level
// confidences/timings come back from the network; all pronunciation scoring
// happens deterministically against the reference text elsewhere. Failures
// surface as services.ErrTranscriptionUnavailable so the exercise can be
// resubmitted while the attempt stays open.
package transcriber
