// Package dialogue talks to an OpenAI-compatible chat completion API to play
// the conversation partner in conversation lessons.
//
// The client requests JSON-only responses carrying both the in-character
// reply and a structured assessment of the learner's message (grammar flag,
// vocabulary terms used, fluency score, sentiment). Transport-level failures
// are retried with backoff; anything that still fails surfaces as
// services.ErrAIServiceUnavailable so the pending turn is never recorded
// with substituted scores.
package dialogue
