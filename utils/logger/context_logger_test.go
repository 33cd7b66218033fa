package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestContextLogger_WithContext_BusinessKeys(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(handler)
	cl := NewContextLogger(logger)

	ctx := context.Background()
	ctx = WithUserID(ctx, "alice")
	ctx = WithDomain(ctx, "emea.example.com")
	ctx = WithIdentityKind(ctx, "upn")
	ctx = WithLoginStage(ctx, "credentials")
	ctx = WithContinuationID(ctx, "cont-789")

	cl.WithContext(ctx).Info("test message")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	tests := []struct {
		key      string
		expected string
	}{
		{"user_id", "alice"},
		{"dir.domain", "emea.example.com"},
		{"dir.identity.kind", "upn"},
		{"dir.login.stage", "credentials"},
		{"dir.continuation.id", "cont-789"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := logEntry[tt.key]
			if !ok {
				t.Errorf("expected key %q to be present in log", tt.key)
				return
			}
			if got != tt.expected {
				t.Errorf("expected %q to be %q, got %q", tt.key, tt.expected, got)
			}
		})
	}
}

func TestContextLogger_WithContext_PartialKeys(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(handler)
	cl := NewContextLogger(logger)

	ctx := context.Background()
	ctx = WithUserID(ctx, "user-only")

	cl.WithContext(ctx).Info("test message")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	if got, ok := logEntry["user_id"]; !ok || got != "user-only" {
		t.Errorf("expected user_id to be 'user-only', got %v", got)
	}

	// Other keys should not be present
	for _, key := range []string{"dir.domain", "dir.identity.kind", "dir.login.stage", "dir.continuation.id"} {
		if _, ok := logEntry[key]; ok {
			t.Errorf("expected key %q to not be present in log", key)
		}
	}
}

func TestContextLogger_LogDuration(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(handler)
	cl := NewContextLogger(logger)

	ctx := context.Background()
	ctx = WithUserID(ctx, "user-timing")

	cl.LogDuration(ctx, "profile_load", 25)

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	if got := logEntry["operation"]; got != "profile_load" {
		t.Errorf("expected operation to be 'profile_load', got %v", got)
	}
	if got := logEntry["duration_ms"]; got != float64(25) {
		t.Errorf("expected duration_ms to be 25, got %v", got)
	}
	if got := logEntry["user_id"]; got != "user-timing" {
		t.Errorf("expected user_id to be 'user-timing', got %v", got)
	}
}

func TestContextLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(handler)
	cl := NewContextLogger(logger)

	ctx := context.Background()
	ctx = WithUserID(ctx, "user-error")

	testErr := &testError{msg: "bind failed"}
	cl.LogError(ctx, "credential_verify_failed", testErr)

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	if got := logEntry["operation"]; got != "credential_verify_failed" {
		t.Errorf("expected operation to be 'credential_verify_failed', got %v", got)
	}
	if got := logEntry["user_id"]; got != "user-error" {
		t.Errorf("expected user_id to be 'user-error', got %v", got)
	}
}

type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}

func TestWithUserID(t *testing.T) {
	ctx := context.Background()
	ctx = WithUserID(ctx, "test-user")

	got := ctx.Value(UserIDKey)
	if got != "test-user" {
		t.Errorf("expected 'test-user', got %v", got)
	}
}

func TestWithRequestID(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "test-request")

	got := ctx.Value(RequestIDKey)
	if got != "test-request" {
		t.Errorf("expected 'test-request', got %v", got)
	}
}

func TestWithDomain(t *testing.T) {
	ctx := context.Background()
	ctx = WithDomain(ctx, "corp.example.com")

	got := ctx.Value(DomainKey)
	if got != "corp.example.com" {
		t.Errorf("expected 'corp.example.com', got %v", got)
	}
}

func TestWithLoginStage(t *testing.T) {
	ctx := context.Background()
	ctx = WithLoginStage(ctx, "callback")

	got := ctx.Value(LoginStageKey)
	if got != "callback" {
		t.Errorf("expected 'callback', got %v", got)
	}
}
