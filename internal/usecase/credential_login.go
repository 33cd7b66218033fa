package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dirport/internal/domain"
)

// CredentialLoginConfig tunes the credential-first ordering.
type CredentialLoginConfig struct {
	CallbackURL        string
	UPNIdentity        bool
	PasswordManagement bool
}

// CredentialLogin is the credential-first ordering: directory credentials
// are validated immediately, then the browser is redirected to the factor.
type CredentialLogin struct {
	validator     domain.CredentialValidator
	provider      domain.AccessRequester
	continuations domain.ContinuationStore
	protector     domain.Protector
	cfg           CredentialLoginConfig
	delay         RejectionDelay
	logger        *slog.Logger
}

// NewCredentialLogin creates the credential-first usecase.
func NewCredentialLogin(
	v domain.CredentialValidator,
	p domain.AccessRequester,
	c domain.ContinuationStore,
	protector domain.Protector,
	cfg CredentialLoginConfig,
	delay RejectionDelay,
	l *slog.Logger,
) *CredentialLogin {
	if delay == nil {
		delay = DefaultRejectionDelay
	}
	return &CredentialLogin{
		validator: v, provider: p, continuations: c, protector: protector,
		cfg: cfg, delay: delay, logger: l,
	}
}

// LoginInput is one credential submission.
type LoginInput struct {
	Username   string
	Password   string
	SSOSession string
}

// Execute runs one credential-first login attempt.
func (uc *CredentialLogin) Execute(ctx context.Context, in LoginInput) (*Outcome, error) {
	res, err := uc.validator.VerifyCredentials(ctx, in.Username, in.Password)
	if err != nil {
		return nil, err
	}

	switch {
	case res.Bypass() && in.SSOSession != "":
		uc.logger.InfoContext(ctx, "factor bypassed", "user", in.Username)
		return &Outcome{Kind: OutcomeBypass, UserName: in.Username}, nil

	case res.Authenticated():
		return uc.redirectToFactor(ctx, res, in, nil)

	case res.MustChangePassword() && uc.cfg.PasswordManagement:
		return uc.expiredPasswordRedirect(ctx, res, in)

	default:
		uc.logger.InfoContext(ctx, "login rejected",
			"user", in.Username, "reason", res.Reason())
		uc.delay(ctx)
		return &Outcome{Kind: OutcomeRejected}, nil
	}
}

// expiredPasswordRedirect parks the protected credentials for the
// password-change step and still sends the user through the factor, carrying
// the change-password claim.
func (uc *CredentialLogin) expiredPasswordRedirect(ctx context.Context, res *domain.ValidationResult, in LoginInput) (*Outcome, error) {
	protected, err := uc.protector.Protect([]byte(in.Password))
	if err != nil {
		return nil, fmt.Errorf("protect expired credentials: %w", err)
	}
	key := strings.ToLower(continuationKey(res, in.Username))
	uc.continuations.SetExpiredPassword(key, domain.ExpiredPasswordSession{
		Login:             in.Username,
		ProtectedPassword: protected,
	})

	extra := map[string]string{claimChangePassword: "true"}
	if exp := res.PasswordExpiration(); exp != nil {
		extra[claimPasswordExpiration] = exp.Format(time.RFC3339)
	}

	outcome, err := uc.redirectToFactor(ctx, res, in, extra)
	if err != nil {
		return nil, err
	}
	outcome.MustChangePassword = true
	return outcome, nil
}

func (uc *CredentialLogin) redirectToFactor(ctx context.Context, res *domain.ValidationResult, in LoginInput, extra map[string]string) (*Outcome, error) {
	claims := map[string]string{claimRawUserName: in.Username}
	if in.SSOSession != "" {
		claims[claimSSOSession] = in.SSOSession
	}
	for k, v := range extra {
		claims[k] = v
	}

	req := domain.AccessRequest{
		Identity:    resolvedIdentity(res, in.Username, uc.cfg.UPNIdentity),
		CallbackURL: uc.cfg.CallbackURL,
		Claims:      claims,
	}
	if p := res.Profile(); p != nil {
		req.DisplayName = p.DisplayName
		req.Email = p.Email
		req.Phone = firstNonEmpty(p.Mobile, p.Phone)
	}

	url, err := uc.provider.CreateAccessRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Outcome{Kind: OutcomeRedirect, RedirectURL: url, UserName: in.Username}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
