package usecase

import (
	"context"
	"log/slog"
	"strings"

	"dirport/internal/domain"
)

// ChangePassword consumes a parked expired-password session, performs the
// directory password write, then re-runs the credential-first flow with the
// new password.
type ChangePassword struct {
	manager       domain.PasswordManager
	continuations domain.ContinuationStore
	protector     domain.Protector
	login         *CredentialLogin
	logger        *slog.Logger
}

// NewChangePassword creates the password-change usecase.
func NewChangePassword(
	m domain.PasswordManager,
	c domain.ContinuationStore,
	protector domain.Protector,
	login *CredentialLogin,
	l *slog.Logger,
) *ChangePassword {
	return &ChangePassword{manager: m, continuations: c, protector: protector, login: login, logger: l}
}

// Execute changes the password for the identity whose expired-password
// session was parked under identityKey.
func (uc *ChangePassword) Execute(ctx context.Context, identityKey, newPassword, ssoSession string) (*Outcome, error) {
	session, ok := uc.continuations.TakeExpiredPassword(strings.ToLower(identityKey))
	if !ok {
		return nil, domain.ErrContinuationNotFound
	}

	oldPassword, err := uc.protector.Unprotect(session.ProtectedPassword)
	if err != nil {
		uc.logger.ErrorContext(ctx, "parked credentials unreadable", "error", err)
		return nil, domain.ErrContinuationNotFound
	}

	if err := uc.manager.ChangePassword(ctx, session.Login, string(oldPassword), newPassword); err != nil {
		return nil, err
	}

	uc.logger.InfoContext(ctx, "password changed", "user", session.Login)

	return uc.login.Execute(ctx, LoginInput{
		Username:   session.Login,
		Password:   newPassword,
		SSOSession: ssoSession,
	})
}
