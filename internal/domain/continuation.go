package domain

// ExpiredPasswordSession survives the redirect round-trip for a user whose
// directory password has expired, pending the password-change step. The
// password is held only in protected form.
type ExpiredPasswordSession struct {
	Login             string
	ProtectedPassword []byte
}

// IdentityContinuation resumes a factor-first login after the provider
// callback: the not-yet-verified user name plus the access token that will be
// trusted once the directory credentials check out. Keyed by the token's own
// id claim and consumed exactly once.
type IdentityContinuation struct {
	UserName    string
	AccessToken string
}
