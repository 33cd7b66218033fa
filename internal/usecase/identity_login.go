package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"dirport/internal/domain"
)

// IdentityLoginConfig tunes the factor-first (pre-authentication) ordering.
type IdentityLoginConfig struct {
	CallbackURL        string
	UPNIdentity        bool
	TwoFactorGroup     string
	PasswordManagement bool
}

// IdentityLogin is the factor-first ordering: the factor runs before the
// directory credentials are collected, with a continuation carrying the
// access token across the credentials form.
type IdentityLogin struct {
	validator     domain.CredentialValidator
	provider      domain.AccessRequester
	verifier      domain.TokenVerifier
	continuations domain.ContinuationStore
	protector     domain.Protector
	signIn        *SignIn
	cfg           IdentityLoginConfig
	delay         RejectionDelay
	logger        *slog.Logger
}

// NewIdentityLogin creates the factor-first usecase.
func NewIdentityLogin(
	v domain.CredentialValidator,
	p domain.AccessRequester,
	verifier domain.TokenVerifier,
	c domain.ContinuationStore,
	protector domain.Protector,
	signIn *SignIn,
	cfg IdentityLoginConfig,
	delay RejectionDelay,
	l *slog.Logger,
) *IdentityLogin {
	if delay == nil {
		delay = DefaultRejectionDelay
	}
	return &IdentityLogin{
		validator: v, provider: p, verifier: verifier, continuations: c,
		protector: protector, signIn: signIn, cfg: cfg, delay: delay, logger: l,
	}
}

// SubmitIdentity handles the username-only submission.
func (uc *IdentityLogin) SubmitIdentity(ctx context.Context, username, ssoSession string) (*Outcome, error) {
	// With no factor group and no UPN identity there is nothing to resolve
	// yet; the raw username goes straight to the provider and credentials
	// are deferred to the continuation step.
	if !uc.cfg.UPNIdentity && uc.cfg.TwoFactorGroup == "" {
		return uc.redirect(ctx, username, username, nil, ssoSession)
	}

	res, err := uc.validator.VerifyMembership(ctx, username)
	if err != nil {
		return nil, err
	}

	switch {
	case res.Bypass() && ssoSession != "":
		uc.logger.InfoContext(ctx, "factor bypassed", "user", username)
		return &Outcome{Kind: OutcomeBypass, UserName: username}, nil

	case res.Authenticated():
		identity := resolvedIdentity(res, username, uc.cfg.UPNIdentity)
		return uc.redirect(ctx, username, identity, res.Profile(), ssoSession)

	default:
		uc.logger.InfoContext(ctx, "identity submission rejected",
			"user", username, "reason", res.Reason())
		uc.delay(ctx)
		return &Outcome{Kind: OutcomeRejected}, nil
	}
}

// HandleCallback receives the provider's access token after the factor. The
// subject is read without cryptographic trust; trust is established only at
// Complete, after the directory accepts the credentials.
func (uc *IdentityLogin) HandleCallback(ctx context.Context, accessToken string) (*Outcome, error) {
	unverified, err := uc.verifier.DecodeUnverified(accessToken)
	if err != nil || unverified.ID == "" {
		uc.logger.WarnContext(ctx, "callback token undecodable", "error", err)
		return nil, domain.ErrTokenInvalid
	}

	uc.continuations.SetIdentity(unverified.ID, domain.IdentityContinuation{
		UserName:    unverified.Subject,
		AccessToken: accessToken,
	})

	return &Outcome{
		Kind:      OutcomeCredentialsRequired,
		RequestID: unverified.ID,
		UserName:  unverified.Subject,
	}, nil
}

// Complete consumes the continuation and performs the real credential check.
func (uc *IdentityLogin) Complete(ctx context.Context, requestID, password string) (*Outcome, error) {
	cont, ok := uc.continuations.TakeIdentity(requestID)
	if !ok {
		return nil, domain.ErrContinuationNotFound
	}

	res, err := uc.validator.VerifyCredentials(ctx, cont.UserName, password)
	if err != nil {
		return nil, err
	}

	switch {
	case res.Authenticated():
		return uc.establish(ctx, cont, false)

	case res.MustChangePassword() && uc.cfg.PasswordManagement:
		// The change-password step runs post-session, so the session is
		// still established; the parked credentials feed that step.
		protected, err := uc.protector.Protect([]byte(password))
		if err != nil {
			return nil, fmt.Errorf("protect expired credentials: %w", err)
		}
		key := strings.ToLower(continuationKey(res, cont.UserName))
		uc.continuations.SetExpiredPassword(key, domain.ExpiredPasswordSession{
			Login:             cont.UserName,
			ProtectedPassword: protected,
		})
		return uc.establish(ctx, cont, true)

	default:
		uc.logger.InfoContext(ctx, "continuation rejected",
			"user", cont.UserName, "reason", res.Reason())
		uc.delay(ctx)
		return &Outcome{Kind: OutcomeRejected}, nil
	}
}

func (uc *IdentityLogin) establish(ctx context.Context, cont domain.IdentityContinuation, mustChange bool) (*Outcome, error) {
	session, tok, err := uc.signIn.Execute(ctx, cont.AccessToken)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Kind:               OutcomeSignedIn,
		UserName:           cont.UserName,
		Session:            session,
		MustChangePassword: mustChange || tok.MustChangePassword,
		MustUnlockUser:     tok.MustUnlockUser,
	}, nil
}

func (uc *IdentityLogin) redirect(ctx context.Context, username, target string, profile *domain.DirectoryProfile, ssoSession string) (*Outcome, error) {
	claims := map[string]string{claimRawUserName: username}
	if ssoSession != "" {
		claims[claimSSOSession] = ssoSession
	}

	req := domain.AccessRequest{
		Identity:    target,
		CallbackURL: uc.cfg.CallbackURL,
		Claims:      claims,
	}
	if profile != nil {
		req.DisplayName = profile.DisplayName
		req.Email = profile.Email
		req.Phone = firstNonEmpty(profile.Mobile, profile.Phone)
	}

	url, err := uc.provider.CreateAccessRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Outcome{Kind: OutcomeRedirect, RedirectURL: url, UserName: username}, nil
}
