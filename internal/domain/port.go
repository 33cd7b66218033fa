package domain

import (
	"context"
	"time"
)

// CredentialValidator checks credentials and membership against the
// directory.
type CredentialValidator interface {
	// VerifyCredentials binds with the supplied credentials and enriches the
	// outcome with the user's profile.
	VerifyCredentials(ctx context.Context, login, password string) (*ValidationResult, error)
	// VerifyMembership resolves the user with the service account only,
	// deciding Ok/Bypass from factor-group membership rules.
	VerifyMembership(ctx context.Context, login string) (*ValidationResult, error)
}

// PasswordManager performs directory password writes.
type PasswordManager interface {
	ChangePassword(ctx context.Context, login, oldPassword, newPassword string) error
	UnlockUser(ctx context.Context, login string) error
}

// TokenVerifier validates provider access tokens against the remotely
// published signing-key set.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*ValidatedToken, error)
	// DecodeUnverified reads id and subject claims without trusting the
	// token. Only used to key continuations.
	DecodeUnverified(raw string) (*UnverifiedToken, error)
}

// PrincipalIssuer signs the portal's own authenticated-principal token.
type PrincipalIssuer interface {
	Issue(subject string, validTo time.Time) (string, error)
}

// ContinuationStore is the keyed mailbox that carries state across the
// redirect hop to the provider. Take removes on read: continuations are
// single-consume.
type ContinuationStore interface {
	SetExpiredPassword(key string, s ExpiredPasswordSession)
	TakeExpiredPassword(key string) (ExpiredPasswordSession, bool)
	SetIdentity(requestID string, c IdentityContinuation)
	TakeIdentity(requestID string) (IdentityContinuation, bool)
	Remove(key string)
}

// Protector shields secrets held in the continuation store. The concrete
// data-protection mechanism is a collaborator, not part of this core.
type Protector interface {
	Protect(plaintext []byte) ([]byte, error)
	Unprotect(ciphertext []byte) ([]byte, error)
}

// AccessRequest describes a redirect-based access request at the provider.
type AccessRequest struct {
	Identity    string
	DisplayName string
	Email       string
	Phone       string
	CallbackURL string
	Claims      map[string]string
}

// AccessRequester creates access requests at the external provider and
// returns the browser redirect URL.
type AccessRequester interface {
	CreateAccessRequest(ctx context.Context, req AccessRequest) (string, error)
}

// CaptchaVerifier is a pass/fail check consumed before orchestration.
type CaptchaVerifier interface {
	Verify(ctx context.Context, response, remoteIP string) (bool, error)
}

// CSRFTokenGenerator derives form tokens from opaque form ids.
type CSRFTokenGenerator interface {
	Generate(formID string) (string, error)
}
