package usecase

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirport/internal/domain"
)

func TestSignIn_Execute(t *testing.T) {
	validTo := time.Now().Add(time.Hour)
	verifier := &mockVerifier{
		verifyFunc: func(_ context.Context, raw string) (*domain.ValidatedToken, error) {
			assert.Equal(t, "raw-access-token", raw)
			return &domain.ValidatedToken{
				ID: "req-1", Subject: "jdoe@corp.example.com", ValidTo: validTo,
			}, nil
		},
	}
	uc := NewSignIn(verifier, &mockIssuer{principal: "principal-raw"}, slog.Default())

	session, tok, err := uc.Execute(context.Background(), "raw-access-token")

	require.NoError(t, err)
	assert.Equal(t, "raw-access-token", session.Token)
	assert.Equal(t, "principal-raw", session.Principal)
	assert.Equal(t, "jdoe@corp.example.com", session.Subject)
	assert.True(t, session.ValidTo.Equal(validTo))
	assert.Equal(t, "jdoe@corp.example.com", tok.Subject)
}

func TestSignIn_InvalidToken(t *testing.T) {
	verifier := &mockVerifier{
		verifyFunc: func(context.Context, string) (*domain.ValidatedToken, error) {
			return nil, domain.ErrTokenInvalid
		},
	}
	uc := NewSignIn(verifier, &mockIssuer{principal: "principal-raw"}, slog.Default())

	_, _, err := uc.Execute(context.Background(), "garbage")

	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestSignIn_IssueFailure(t *testing.T) {
	verifier := &mockVerifier{
		verifyFunc: func(context.Context, string) (*domain.ValidatedToken, error) {
			return &domain.ValidatedToken{Subject: "jdoe", ValidTo: time.Now().Add(time.Hour)}, nil
		},
	}
	issueErr := errors.New("signing failed")
	uc := NewSignIn(verifier, &mockIssuer{err: issueErr}, slog.Default())

	_, _, err := uc.Execute(context.Background(), "raw-access-token")

	assert.ErrorIs(t, err, issueErr)
}
