package daemon

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"parlo/internal/api"
	"parlo/internal/config"
	"parlo/internal/conversation"
	"parlo/internal/engine"
	"parlo/internal/logging"
	"parlo/internal/services"
	"parlo/internal/store"
)

// userHeader carries the learner identity resolved by the fronting layer.
// Requests without it run as the anonymous principal.
const userHeader = "X-User-ID"

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /api/catalog", srv.handleCatalog)
	mux.HandleFunc("GET /api/progress", srv.handleProgress)
	mux.HandleFunc("GET /api/attempts", srv.handleAttemptList)
	mux.HandleFunc("POST /api/attempts", srv.handleAttemptStart)
	mux.HandleFunc("GET /api/attempts/{id}/opening", srv.handleOpening)
	mux.HandleFunc("POST /api/attempts/{id}/vocabulary", srv.handleVocabulary)
	mux.HandleFunc("POST /api/attempts/{id}/pronunciation", srv.handlePronunciation)
	mux.HandleFunc("POST /api/attempts/{id}/turns", srv.handleTurn)
	mux.HandleFunc("POST /api/attempts/{id}/complete", srv.handleComplete)
	mux.HandleFunc("POST /api/attempts/{id}/abandon", srv.handleAbandon)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// principal resolves the caller identity from the user header.
func principal(r *http.Request) (engine.Principal, error) {
	raw := strings.TrimSpace(r.Header.Get(userHeader))
	if raw == "" {
		return engine.Anonymous(), nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return engine.Principal{}, fmt.Errorf("invalid %s header %q", userHeader, raw)
	}
	return engine.User(id), nil
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status()
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DBPath:       status.DBPath,
		LockFilePath: status.LockFilePath,
	})
}

func (s *apiServer) handleCatalog(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	topics, err := s.daemon.engine.Catalog(r.Context(), caller)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromCatalog(topics))
}

func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	summary, err := s.daemon.engine.Progress(r.Context(), caller)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromProgress(summary))
}

func (s *apiServer) handleAttemptList(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var lessonID int64
	if raw := strings.TrimSpace(r.URL.Query().Get("lesson")); raw != "" {
		lessonID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid lesson id")
			return
		}
	}
	attempts, err := s.daemon.engine.History(r.Context(), caller, lessonID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.AttemptListResponse{Attempts: api.FromAttempts(attempts)})
}

func (s *apiServer) handleAttemptStart(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req api.StartAttemptRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	attempt, err := s.daemon.engine.StartAttempt(r.Context(), caller, req.LessonID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.AttemptResponse{Attempt: api.FromAttempt(attempt)})
}

func (s *apiServer) handleOpening(w http.ResponseWriter, r *http.Request) {
	caller, attemptID, ok := s.attemptRequest(w, r)
	if !ok {
		return
	}
	message, err := s.daemon.engine.OpeningMessage(r.Context(), caller, attemptID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.OpeningResponse{Message: message})
}

func (s *apiServer) handleVocabulary(w http.ResponseWriter, r *http.Request) {
	caller, attemptID, ok := s.attemptRequest(w, r)
	if !ok {
		return
	}
	var req api.VocabularyRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.daemon.engine.SubmitVocabulary(r.Context(), caller, attemptID, req.Answers)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromVocabularyResult(result))
}

func (s *apiServer) handlePronunciation(w http.ResponseWriter, r *http.Request) {
	caller, attemptID, ok := s.attemptRequest(w, r)
	if !ok {
		return
	}
	var req api.PronunciationRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid base64 audio payload")
		return
	}
	result, err := s.daemon.engine.SubmitPronunciation(r.Context(), caller, attemptID, req.ExerciseID, audio, req.Format)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromPronunciationResult(result))
}

func (s *apiServer) handleTurn(w http.ResponseWriter, r *http.Request) {
	caller, attemptID, ok := s.attemptRequest(w, r)
	if !ok {
		return
	}
	var req api.TurnRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.daemon.engine.SubmitTurn(r.Context(), caller, attemptID, req.TurnNumber, req.Message)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromTurnResult(result))
}

func (s *apiServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	caller, attemptID, ok := s.attemptRequest(w, r)
	if !ok {
		return
	}
	var req api.CompleteRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.daemon.engine.Complete(r.Context(), caller, attemptID, req.Score)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromCompletionResult(result))
}

func (s *apiServer) handleAbandon(w http.ResponseWriter, r *http.Request) {
	caller, attemptID, ok := s.attemptRequest(w, r)
	if !ok {
		return
	}
	if err := s.daemon.engine.Abandon(r.Context(), caller, attemptID); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

// attemptRequest extracts the caller and attempt id shared by the per-attempt
// handlers.
func (s *apiServer) attemptRequest(w http.ResponseWriter, r *http.Request) (engine.Principal, int64, bool) {
	caller, err := principal(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return engine.Principal{}, 0, false
	}
	attemptID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid attempt id")
		return engine.Principal{}, 0, false
	}
	return caller, attemptID, true
}

func decodeBody(r *http.Request, target any) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// statusForError maps engine error classes onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, engine.ErrAuthenticationRequired):
		return http.StatusUnauthorized
	case errors.Is(err, engine.ErrLessonLocked):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrLessonNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAttemptAlreadyCompleted),
		errors.Is(err, conversation.ErrTurnSequence):
		return http.StatusConflict
	case errors.Is(err, conversation.ErrMinimumTurnsNotMet):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, engine.ErrWrongLessonType):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrTranscriptionUnavailable),
		errors.Is(err, services.ErrAIServiceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeEngineError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.log().Error("request failed", logging.Error(err))
	}
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
