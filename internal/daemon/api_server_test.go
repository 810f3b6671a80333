package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"parlo/internal/api"
	"parlo/internal/daemon"
	"parlo/internal/engine"
	"parlo/internal/logging"
	"parlo/internal/testsupport"
)

type harness struct {
	daemon  *daemon.Daemon
	base    string
	catalog *testsupport.Catalog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	catalog := testsupport.SeedCatalog(t, st)

	eng, err := engine.NewWithClients(cfg, st, logging.NewNop(), nil, nil, nil)
	if err != nil {
		t.Fatalf("NewWithClients: %v", err)
	}
	d, err := daemon.New(cfg, st, eng, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		d.Stop()
	})
	return &harness{daemon: d, base: "http://" + d.Addr(), catalog: catalog}
}

func (h *harness) do(t *testing.T, method, path string, userID int64, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, h.base+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID > 0 {
		req.Header.Set("X-User-ID", fmt.Sprintf("%d", userID))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp.StatusCode, payload
}

func TestAPIAttemptLifecycle(t *testing.T) {
	h := newHarness(t)

	status, payload := h.do(t, http.MethodGet, "/api/status", 0, nil)
	if status != http.StatusOK {
		t.Fatalf("status endpoint returned %d: %s", status, payload)
	}
	var ds api.DaemonStatus
	if err := json.Unmarshal(payload, &ds); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !ds.Running || ds.DBPath == "" {
		t.Fatalf("unexpected daemon status %+v", ds)
	}

	// Anonymous callers can browse the catalog but not start attempts.
	status, payload = h.do(t, http.MethodGet, "/api/catalog", 0, nil)
	if status != http.StatusOK {
		t.Fatalf("catalog returned %d: %s", status, payload)
	}
	var catalog api.CatalogResponse
	if err := json.Unmarshal(payload, &catalog); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if len(catalog.Topics) != 2 || len(catalog.Topics[0].Lessons) != 3 {
		t.Fatalf("unexpected catalog shape: %+v", catalog)
	}
	colorsID := h.catalog.Lesson(t, "colors").ID
	status, _ = h.do(t, http.MethodPost, "/api/attempts", 0, api.StartAttemptRequest{LessonID: colorsID})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous start, got %d", status)
	}

	status, _ = h.do(t, http.MethodPost, "/api/attempts", 1, api.StartAttemptRequest{LessonID: h.catalog.Lesson(t, "cafe").ID})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for locked lesson, got %d", status)
	}
	status, _ = h.do(t, http.MethodPost, "/api/attempts", 1, api.StartAttemptRequest{LessonID: 9999})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown lesson, got %d", status)
	}

	status, payload = h.do(t, http.MethodPost, "/api/attempts", 1, api.StartAttemptRequest{LessonID: colorsID})
	if status != http.StatusCreated {
		t.Fatalf("start attempt returned %d: %s", status, payload)
	}
	var started api.AttemptResponse
	if err := json.Unmarshal(payload, &started); err != nil {
		t.Fatalf("decode attempt: %v", err)
	}
	if started.Attempt.AttemptNumber != 1 || started.Attempt.Status != "started" {
		t.Fatalf("unexpected attempt %+v", started.Attempt)
	}

	attemptPath := fmt.Sprintf("/api/attempts/%d", started.Attempt.ID)
	status, payload = h.do(t, http.MethodPost, attemptPath+"/vocabulary", 1, api.VocabularyRequest{
		Answers: map[string]string{"rojo": "red", "verde": "green", "azul": "blue"},
	})
	if status != http.StatusOK {
		t.Fatalf("vocabulary returned %d: %s", status, payload)
	}
	var graded api.VocabularyResult
	if err := json.Unmarshal(payload, &graded); err != nil {
		t.Fatalf("decode grade: %v", err)
	}
	if graded.Score != 100 || !graded.Passed {
		t.Fatalf("expected perfect grade, got %+v", graded)
	}

	status, payload = h.do(t, http.MethodPost, attemptPath+"/complete", 1, api.CompleteRequest{})
	if status != http.StatusOK {
		t.Fatalf("complete returned %d: %s", status, payload)
	}
	var completed api.CompletionResult
	if err := json.Unmarshal(payload, &completed); err != nil {
		t.Fatalf("decode completion: %v", err)
	}
	if !completed.Passed || completed.Award == nil || completed.Award.XP != 85 {
		t.Fatalf("unexpected completion %+v", completed)
	}
	if len(completed.UnlockedLessonIDs) != 1 {
		t.Fatalf("expected an unlock, got %+v", completed.UnlockedLessonIDs)
	}

	status, _ = h.do(t, http.MethodPost, attemptPath+"/complete", 1, api.CompleteRequest{})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for double complete, got %d", status)
	}

	status, payload = h.do(t, http.MethodGet, "/api/progress", 1, nil)
	if status != http.StatusOK {
		t.Fatalf("progress returned %d: %s", status, payload)
	}
	var progress api.Progress
	if err := json.Unmarshal(payload, &progress); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if progress.TotalXP != 85 || progress.LessonsPassed != 1 {
		t.Fatalf("unexpected progress %+v", progress)
	}

	status, payload = h.do(t, http.MethodGet, "/api/attempts", 1, nil)
	if status != http.StatusOK {
		t.Fatalf("attempt list returned %d: %s", status, payload)
	}
	var history api.AttemptListResponse
	if err := json.Unmarshal(payload, &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Attempts) != 1 || history.Attempts[0].Status != "completed" {
		t.Fatalf("unexpected history %+v", history)
	}

	// Another user sees none of it.
	status, payload = h.do(t, http.MethodGet, "/api/attempts", 2, nil)
	if status != http.StatusOK {
		t.Fatalf("attempt list returned %d: %s", status, payload)
	}
	var other api.AttemptListResponse
	if err := json.Unmarshal(payload, &other); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(other.Attempts) != 0 {
		t.Fatalf("expected empty history for user 2, got %+v", other)
	}
	status, _ = h.do(t, http.MethodPost, attemptPath+"/abandon", 2, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign attempt, got %d", status)
	}
}

func TestAPIRejectsMalformedRequests(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(t, http.MethodPost, "/api/attempts/not-a-number/abandon", 1, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad attempt id, got %d", status)
	}

	req, err := http.NewRequest(http.MethodGet, h.base+"/api/progress", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-User-ID", "zero")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad user header, got %d", resp.StatusCode)
	}
}
