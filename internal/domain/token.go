package domain

import "time"

// ValidatedToken is the result of a successful cryptographic validation of a
// provider access token. It exists only for the current request; the raw
// token string alone survives as the session cookie payload.
type ValidatedToken struct {
	ID                 string
	Subject            string
	MustChangePassword bool
	MustUnlockUser     bool
	PasswordExpiration *time.Time
	ValidTo            time.Time
}

// UnverifiedToken carries claims read from a token before any signature
// check. Used only to key a continuation; it confers no trust.
type UnverifiedToken struct {
	ID      string
	Subject string
}

// Session is what the portal hands the transport layer after a sign-in: the
// raw provider token for the session cookie and a signed principal for the
// portal's own authentication cookie, both expiring with the token.
type Session struct {
	Token     string
	Principal string
	Subject   string
	ValidTo   time.Time
}
