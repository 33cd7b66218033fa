package handler

import (
	"errors"
	"net/http"

	"dirport/internal/domain"

	"github.com/labstack/echo/v4"
)

// mapDomainError converts a domain error into an appropriate echo.HTTPError.
// Rejections stay uniform: nothing here reveals whether the username or the
// password was wrong, or whether the user exists at all.
func mapDomainError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrTokenInvalid):
		return echo.NewHTTPError(http.StatusUnauthorized, "wrong username or password")

	case errors.Is(err, domain.ErrContinuationNotFound):
		return echo.NewHTTPError(http.StatusUnauthorized, "login attempt expired")

	case errors.Is(err, domain.ErrCaptchaFailed):
		return echo.NewHTTPError(http.StatusBadRequest, "captcha verification failed")

	case errors.Is(err, domain.ErrPasswordChangeFailed):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())

	case errors.Is(err, domain.ErrUnlockFailed):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())

	case errors.Is(err, domain.ErrDirectoryUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, "directory unavailable")

	case errors.Is(err, domain.ErrProviderUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, "authentication provider unavailable")

	case errors.Is(err, domain.ErrPrincipalSecretMissing),
		errors.Is(err, domain.ErrCSRFSecretMissing):
		return echo.NewHTTPError(http.StatusInternalServerError, "internal configuration error")

	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
