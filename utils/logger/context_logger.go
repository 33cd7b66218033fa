package logger

import (
	"context"
	"log/slog"
)

type contextKey string

// Context keys for business fields attached to log lines. The dir.* keys
// follow the flow through the directory forest and the factor provider.
const (
	UserIDKey         contextKey = "user_id"
	RequestIDKey      contextKey = "request_id"
	DomainKey         contextKey = "dir.domain"
	IdentityKindKey   contextKey = "dir.identity.kind"
	LoginStageKey     contextKey = "dir.login.stage"
	ContinuationIDKey contextKey = "dir.continuation.id"
)

// WithUserID attaches the (sanitized) user identifier to the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// WithRequestID attaches the request identifier to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// WithDomain attaches the resolved directory domain to the context.
func WithDomain(ctx context.Context, domain string) context.Context {
	return context.WithValue(ctx, DomainKey, domain)
}

// WithIdentityKind attaches the parsed identity kind (upn, dn, sam).
func WithIdentityKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, IdentityKindKey, kind)
}

// WithLoginStage attaches the current login stage (credentials, factor,
// callback, continue).
func WithLoginStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, LoginStageKey, stage)
}

// WithContinuationID attaches the parked-continuation identifier.
func WithContinuationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContinuationIDKey, id)
}

// ContextLogger enriches log records with business fields carried in the
// request context.
type ContextLogger struct {
	logger *slog.Logger
}

// GlobalContext is the process-wide context logger set by Init.
var GlobalContext *ContextLogger

// NewContextLogger creates a context logger over the given slog logger.
func NewContextLogger(logger *slog.Logger) *ContextLogger {
	return &ContextLogger{logger: logger}
}

// WithContext returns a logger carrying every business field present in ctx.
func (cl *ContextLogger) WithContext(ctx context.Context) *slog.Logger {
	logger := cl.logger
	for _, key := range []contextKey{
		UserIDKey, RequestIDKey, DomainKey,
		IdentityKindKey, LoginStageKey, ContinuationIDKey,
	} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			logger = logger.With(string(key), v)
		}
	}
	return logger
}

// LogDuration records a completed operation with its duration in
// milliseconds.
func (cl *ContextLogger) LogDuration(ctx context.Context, operation string, ms int64) {
	cl.WithContext(ctx).InfoContext(ctx, "operation completed",
		"operation", operation,
		"duration_ms", ms,
	)
}

// LogError records a failed operation.
func (cl *ContextLogger) LogError(ctx context.Context, operation string, err error) {
	cl.WithContext(ctx).ErrorContext(ctx, "operation failed",
		"operation", operation,
		"error", err.Error(),
	)
}
