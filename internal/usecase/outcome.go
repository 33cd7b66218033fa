package usecase

import (
	"context"
	"math/rand/v2"
	"time"

	"dirport/internal/domain"
)

// OutcomeKind tags where the login state machine landed.
type OutcomeKind int

const (
	// OutcomeRedirect sends the browser to the external factor.
	OutcomeRedirect OutcomeKind = iota
	// OutcomeBypass skips the factor for an exempt user with an SSO session.
	OutcomeBypass
	// OutcomeRejected is the uniform terminal rejection; it never reveals
	// which of username/password was wrong.
	OutcomeRejected
	// OutcomeCredentialsRequired re-renders the credentials form with a
	// factor-first continuation.
	OutcomeCredentialsRequired
	// OutcomeSignedIn carries an established session.
	OutcomeSignedIn
)

// Outcome is the orchestrator's answer to one login step.
type Outcome struct {
	Kind               OutcomeKind
	RedirectURL        string
	RequestID          string
	UserName           string
	MustChangePassword bool
	MustUnlockUser     bool
	Session            *domain.Session
}

// Claim names carried across the redirect to the provider.
const (
	claimRawUserName        = "rawUserName"
	claimSSOSession         = "ssoSession"
	claimChangePassword     = "changePassword"
	claimPasswordExpiration = "passwordExpirationDate"
)

// RejectionDelay stalls before a terminal rejection.
type RejectionDelay func(ctx context.Context)

// DefaultRejectionDelay waits a random 2–5 seconds to blunt brute-force
// timing, honoring context cancellation.
func DefaultRejectionDelay(ctx context.Context) {
	d := 2*time.Second + time.Duration(rand.Int64N(int64(3*time.Second)))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// resolvedIdentity picks the identity sent to the provider: the directory
// UPN when UPN-as-identity is configured and available, the submitted login
// otherwise.
func resolvedIdentity(res *domain.ValidationResult, fallback string, upnIdentity bool) string {
	if upnIdentity && res.Profile() != nil && res.Profile().UPN != "" {
		return res.Profile().UPN
	}
	return fallback
}

// continuationKey derives the per-identity key for expired-password state.
func continuationKey(res *domain.ValidationResult, login string) string {
	if res.Profile() != nil && res.Profile().UPN != "" {
		return res.Profile().UPN
	}
	return login
}
