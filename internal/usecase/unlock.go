package usecase

import (
	"context"
	"log/slog"

	"dirport/internal/domain"
)

// UnlockAccount clears a directory lockout for a signed-in user whose token
// carried the must-unlock flag.
type UnlockAccount struct {
	manager domain.PasswordManager
	logger  *slog.Logger
}

// NewUnlockAccount creates the unlock usecase.
func NewUnlockAccount(m domain.PasswordManager, l *slog.Logger) *UnlockAccount {
	return &UnlockAccount{manager: m, logger: l}
}

// Execute unlocks the given login.
func (uc *UnlockAccount) Execute(ctx context.Context, login string) error {
	if err := uc.manager.UnlockUser(ctx, login); err != nil {
		return err
	}
	uc.logger.InfoContext(ctx, "account unlocked", "user", login)
	return nil
}
