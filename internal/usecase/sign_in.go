package usecase

import (
	"context"
	"log/slog"

	"dirport/internal/domain"
)

// SignIn turns a validated provider token into an authenticated session.
// This is the single point where "the factor succeeded" becomes "the portal
// considers the browser authenticated."
type SignIn struct {
	verifier   domain.TokenVerifier
	principals domain.PrincipalIssuer
	logger     *slog.Logger
}

// NewSignIn creates the session issuer.
func NewSignIn(verifier domain.TokenVerifier, principals domain.PrincipalIssuer, logger *slog.Logger) *SignIn {
	return &SignIn{verifier: verifier, principals: principals, logger: logger}
}

// Execute validates the token and builds the session material. Any
// validation failure surfaces as domain.ErrTokenInvalid (unauthorized).
func (uc *SignIn) Execute(ctx context.Context, accessToken string) (*domain.Session, *domain.ValidatedToken, error) {
	tok, err := uc.verifier.Verify(ctx, accessToken)
	if err != nil {
		return nil, nil, err
	}

	principal, err := uc.principals.Issue(tok.Subject, tok.ValidTo)
	if err != nil {
		uc.logger.ErrorContext(ctx, "failed to issue principal", "error", err)
		return nil, nil, err
	}

	uc.logger.InfoContext(ctx, "session established",
		"subject", tok.Subject, "valid_to", tok.ValidTo)

	return &domain.Session{
		Token:     accessToken,
		Principal: principal,
		Subject:   tok.Subject,
		ValidTo:   tok.ValidTo,
	}, tok, nil
}
