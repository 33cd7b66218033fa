package usecase

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"dirport/internal/domain"
)

// GenerateCSRF issues and checks form tokens for the anonymous login forms.
type GenerateCSRF struct {
	csrf   domain.CSRFTokenGenerator
	logger *slog.Logger
}

// NewGenerateCSRF creates a new GenerateCSRF usecase.
func NewGenerateCSRF(csrf domain.CSRFTokenGenerator, l *slog.Logger) *GenerateCSRF {
	return &GenerateCSRF{csrf: csrf, logger: l}
}

// Execute mints a fresh form id and its CSRF token.
func (uc *GenerateCSRF) Execute(ctx context.Context) (formID, token string, err error) {
	formID = uuid.NewString()
	token, err = uc.csrf.Generate(formID)
	if err != nil {
		uc.logger.ErrorContext(ctx, "failed to generate CSRF token", "error", err)
		return "", "", fmt.Errorf("%w: %w", domain.ErrCSRFSecretMissing, err)
	}
	return formID, token, nil
}

// Verify checks a submitted form id/token pair.
func (uc *GenerateCSRF) Verify(formID, token string) bool {
	expected, err := uc.csrf.Generate(formID)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
}
