package handler

import (
	"net/http"

	"dirport/internal/usecase"

	"github.com/labstack/echo/v4"
)

// PasswordHandler exposes the password-change and account-unlock steps.
type PasswordHandler struct {
	change *usecase.ChangePassword
	unlock *usecase.UnlockAccount
}

// NewPasswordHandler creates the password handler.
func NewPasswordHandler(change *usecase.ChangePassword, unlock *usecase.UnlockAccount) *PasswordHandler {
	return &PasswordHandler{change: change, unlock: unlock}
}

// changePasswordRequest consumes a parked expired-password session.
type changePasswordRequest struct {
	Identity    string `json:"identity" form:"identity" validate:"required"`
	NewPassword string `json:"newPassword" form:"newPassword" validate:"required,min=8"`
	SSOSession  string `json:"ssoSession" form:"ssoSession"`
}

// unlockRequest clears a directory lockout post-session.
type unlockRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
}

// HandleChange processes the password change and resumes the login flow.
func (h *PasswordHandler) HandleChange(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	outcome, err := h.change.Execute(c.Request().Context(), req.Identity, req.NewPassword, req.SSOSession)
	if err != nil {
		return mapDomainError(err)
	}

	switch outcome.Kind {
	case usecase.OutcomeRedirect:
		return c.JSON(http.StatusOK, loginResponse{
			OK: true, Outcome: "redirect", RedirectURL: outcome.RedirectURL,
		})
	case usecase.OutcomeBypass:
		return c.JSON(http.StatusOK, loginResponse{
			OK: true, Outcome: "bypass", UserName: outcome.UserName,
		})
	default:
		return c.JSON(http.StatusUnauthorized, loginResponse{
			OK: false, Outcome: "rejected", Error: "wrong username or password",
		})
	}
}

// HandleUnlock processes the account unlock for a signed-in user.
func (h *PasswordHandler) HandleUnlock(c echo.Context) error {
	var req unlockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.unlock.Execute(c.Request().Context(), req.Username); err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
