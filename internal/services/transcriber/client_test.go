package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"parlo/internal/services"
)

func transcriptionPayload(transcript string, confidence float64) map[string]any {
	return map[string]any{
		"results": map[string]any{
			"channels": []any{
				map[string]any{
					"alternatives": []any{
						map[string]any{
							"transcript": transcript,
							"confidence": confidence,
							"words": []any{
								map[string]any{"word": "hello", "start": 0.1, "end": 0.5, "confidence": 0.98},
								map[string]any{"word": "there", "start": 0.6, "end": 0.9, "confidence": 0.91},
							},
						},
					},
				},
			},
			"utterances": []any{
				map[string]any{"transcript": transcript},
			},
		},
	}
}

func TestTranscribeParsesFirstAlternative(t *testing.T) {
	var gotAuth, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		query := r.URL.Query()
		if query.Get("model") != "nova-2" || query.Get("language") != "en" {
			t.Fatalf("unexpected query: %v", query)
		}
		if query.Get("punctuate") != "true" || query.Get("utterances") != "true" {
			t.Fatalf("feature flags missing: %v", query)
		}
		if err := json.NewEncoder(w).Encode(transcriptionPayload("hello there", 0.95)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "secret", BaseURL: server.URL})
	result, err := client.Transcribe(context.Background(), []byte("audio-bytes"), "wav")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if gotAuth != "Token secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotContentType != "audio/wav" {
		t.Fatalf("unexpected content type %q", gotContentType)
	}
	if result.Transcript != "hello there" || result.Confidence != 0.95 {
		t.Fatalf("unexpected result: %#v", result)
	}
	if len(result.Words) != 2 || result.Words[0].Text != "hello" || result.Words[0].Confidence != 0.98 {
		t.Fatalf("unexpected words: %#v", result.Words)
	}
	if result.Utterances != 1 {
		t.Fatalf("unexpected utterance count %d", result.Utterances)
	}
}

func TestTranscribeRetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if err := json.NewEncoder(w).Encode(transcriptionPayload("good morning", 0.9)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "secret", BaseURL: server.URL},
		WithRetryBackoff(time.Millisecond, 2*time.Millisecond),
		WithSleeper(func(time.Duration) {}),
	)
	result, err := client.Transcribe(context.Background(), []byte("audio"), "webm")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if result.Transcript != "good morning" {
		t.Fatalf("unexpected transcript %q", result.Transcript)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestTranscribeSurfacesUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL})
	if _, err := client.Transcribe(context.Background(), []byte("audio"), "mp3"); !errors.Is(err, services.ErrTranscriptionUnavailable) {
		t.Fatalf("error = %v, want ErrTranscriptionUnavailable", err)
	}
}

func TestContentTypeMapping(t *testing.T) {
	cases := map[string]string{
		"webm":    "audio/webm",
		"mp3":     "audio/mpeg",
		"WAV":     "audio/wav",
		"ogg":     "audio/ogg",
		"m4a":     "audio/mp4",
		"unknown": "audio/webm",
	}
	for format, want := range cases {
		if got := ContentTypeFor(format); got != want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", format, got, want)
		}
	}
}

func TestTranscribeRequiresAudio(t *testing.T) {
	client := NewClient(Config{APIKey: "secret"})
	if _, err := client.Transcribe(context.Background(), nil, "wav"); err == nil {
		t.Fatal("expected error for empty audio")
	}
}
