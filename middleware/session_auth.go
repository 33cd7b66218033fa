package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// PrincipalValidator checks a principal cookie payload and returns its
// subject.
type PrincipalValidator interface {
	Validate(raw string) (string, error)
}

// subjectContextKey is the echo context key carrying the authenticated
// subject.
const subjectContextKey = "auth.subject"

// SessionAuth creates middleware that requires a valid principal cookie on
// post-session routes (password change after sign-in, account unlock).
func SessionAuth(principals PrincipalValidator, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			subject, err := principals.Validate(cookie.Value)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			c.Set(subjectContextKey, subject)
			return next(c)
		}
	}
}

// SubjectFromContext returns the subject set by SessionAuth, or "".
func SubjectFromContext(c echo.Context) string {
	subject, _ := c.Get(subjectContextKey).(string)
	return subject
}
