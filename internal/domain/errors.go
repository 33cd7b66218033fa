package domain

import "errors"

// Directory errors.
var (
	ErrUserNotFound         = errors.New("user not found in directory")
	ErrDirectoryUnavailable = errors.New("directory unavailable")
	ErrPasswordChangeFailed = errors.New("password change rejected")
	ErrUnlockFailed         = errors.New("account unlock rejected")
)

// Authentication errors.
var (
	ErrTokenInvalid         = errors.New("access token invalid")
	ErrContinuationNotFound = errors.New("continuation not found or expired")
	ErrCaptchaFailed        = errors.New("captcha verification failed")
)

// Token issuing errors.
var (
	ErrPrincipalSecretMissing = errors.New("principal signing secret not configured")
	ErrCSRFSecretMissing      = errors.New("CSRF secret not configured")
)

// External service errors.
var (
	ErrProviderUnavailable = errors.New("authentication provider unavailable")
)
