package services

import "context"

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	attemptIDKey contextKey = "attempt_id"
	lessonIDKey  contextKey = "lesson_id"
	requestIDKey contextKey = "request_id"
)

// WithUserID annotates context with the learner identifier.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext extracts the learner identifier if present.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	return int64FromContext(ctx, userIDKey)
}

// WithAttemptID annotates context with the lesson attempt identifier.
func WithAttemptID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, attemptIDKey, id)
}

// AttemptIDFromContext extracts the lesson attempt identifier if present.
func AttemptIDFromContext(ctx context.Context) (int64, bool) {
	return int64FromContext(ctx, attemptIDKey)
}

// WithLessonID annotates context with the lesson identifier.
func WithLessonID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, lessonIDKey, id)
}

// LessonIDFromContext extracts the lesson identifier if present.
func LessonIDFromContext(ctx context.Context) (int64, bool) {
	return int64FromContext(ctx, lessonIDKey)
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

func int64FromContext(ctx context.Context, key contextKey) (int64, bool) {
	v := ctx.Value(key)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}
