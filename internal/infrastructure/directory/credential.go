package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-ldap/ldap/v3"

	"dirport/internal/domain"
)

// ValidatorConfig carries the membership rules deciding who may bypass the
// second factor.
type ValidatorConfig struct {
	// DefaultDomain is the DN-form identity of the forest root, used as the
	// fallback search base and as the root for forest discovery.
	DefaultDomain domain.Identity

	// TwoFactorGroup is the CN of the group whose members always require the
	// factor. Empty means every user requires it.
	TwoFactorGroup string

	// UPNIdentity marks deployments where the UPN is the identity sent to
	// the provider; such users are never bypassed.
	UPNIdentity bool
}

// Validator implements domain.CredentialValidator and domain.PasswordManager
// against the directory.
type Validator struct {
	connector *Connector
	forest    *ForestResolver
	profiles  *ProfileLoader
	cfg       ValidatorConfig
	logger    *slog.Logger
}

// NewValidator wires the credential validator.
func NewValidator(connector *Connector, forest *ForestResolver, profiles *ProfileLoader, cfg ValidatorConfig, logger *slog.Logger) *Validator {
	return &Validator{connector: connector, forest: forest, profiles: profiles, cfg: cfg, logger: logger}
}

var (
	_ domain.CredentialValidator = (*Validator)(nil)
	_ domain.PasswordManager     = (*Validator)(nil)
)

// VerifyCredentials binds with the supplied credentials. Bind success is
// enriched with a profile load over the authenticated connection; bind
// failure is interpreted through the subcode table.
func (v *Validator) VerifyCredentials(ctx context.Context, login, password string) (*domain.ValidationResult, error) {
	id := domain.ParseIdentity(login)

	conn, err := v.connector.UserConn(ctx, login, password)
	if err != nil {
		return v.interpretBindError(ctx, id, err)
	}
	defer conn.Close()

	profile, err := v.loadProfile(ctx, conn, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		// The bind succeeded, so the account exists; a failed profile
		// resolution means the schema and search bases disagree with the
		// bind path.
		v.logger.ErrorContext(ctx, "authenticated user could not be resolved", "identity", id.Name)
		return domain.UnknownErrorResult("profile unavailable"), nil
	}

	return v.membershipOutcome(profile), nil
}

// VerifyMembership resolves the user with the service account, for the
// factor-first ordering where no credentials exist yet.
func (v *Validator) VerifyMembership(ctx context.Context, login string) (*domain.ValidationResult, error) {
	id := domain.ParseIdentity(login)

	conn, err := v.connector.ServiceConn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDirectoryUnavailable, err)
	}
	defer conn.Close()

	profile, err := v.loadProfile(ctx, conn, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return domain.UnknownErrorResult("user not found"), nil
	}

	return v.membershipOutcome(profile), nil
}

// ChangePassword performs the directory password write. Failure surfaces as
// a wrapped ErrPasswordChangeFailed carrying the server's reason.
func (v *Validator) ChangePassword(ctx context.Context, login, oldPassword, newPassword string) error {
	conn, err := v.connector.ServiceConn(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDirectoryUnavailable, err)
	}
	defer conn.Close()

	profile, err := v.loadProfile(ctx, conn, domain.ParseIdentity(login))
	if err != nil {
		return err
	}
	if profile == nil {
		return domain.ErrUserNotFound
	}

	req := ldap.NewPasswordModifyRequest(profile.DistinguishedName, oldPassword, newPassword)
	if _, err := conn.PasswordModify(req); err != nil {
		v.logger.ErrorContext(ctx, "password change failed", "identity", login, "error", err)
		return fmt.Errorf("%w: %s", domain.ErrPasswordChangeFailed, ldapReason(err))
	}
	return nil
}

// UnlockUser clears the account lockout marker.
func (v *Validator) UnlockUser(ctx context.Context, login string) error {
	conn, err := v.connector.ServiceConn(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDirectoryUnavailable, err)
	}
	defer conn.Close()

	profile, err := v.loadProfile(ctx, conn, domain.ParseIdentity(login))
	if err != nil {
		return err
	}
	if profile == nil {
		return domain.ErrUserNotFound
	}

	req := ldap.NewModifyRequest(profile.DistinguishedName, nil)
	req.Replace("lockoutTime", []string{"0"})
	if err := conn.Modify(req); err != nil {
		v.logger.ErrorContext(ctx, "account unlock failed", "identity", login, "error", err)
		return fmt.Errorf("%w: %s", domain.ErrUnlockFailed, ldapReason(err))
	}
	return nil
}

func (v *Validator) loadProfile(ctx context.Context, conn Conn, id domain.Identity) (*domain.DirectoryProfile, error) {
	schema := v.forest.Load(ctx, v.cfg.DefaultDomain)
	profile, err := v.profiles.Load(ctx, conn, schema, v.cfg.DefaultDomain, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil
	}
	return profile, err
}

// membershipOutcome applies the bypass rules: UPN-identity deployments and
// members of the configured factor group always require the factor; with no
// group configured everyone does.
func (v *Validator) membershipOutcome(profile *domain.DirectoryProfile) *domain.ValidationResult {
	if v.cfg.UPNIdentity || v.cfg.TwoFactorGroup == "" {
		return domain.OkResult(profile)
	}
	if profile.MemberOf(v.cfg.TwoFactorGroup) {
		return domain.OkResult(profile)
	}
	return domain.BypassResult(profile)
}

// interpretBindError turns a bind failure into a semantic outcome. A
// must-change-password condition is enriched with a best-effort profile load
// over the service account, since the user's own bind never opened.
func (v *Validator) interpretBindError(ctx context.Context, id domain.Identity, err error) (*domain.ValidationResult, error) {
	if ldap.IsErrorWithCode(err, ldap.ErrorNetwork) {
		return nil, fmt.Errorf("%w: %w", domain.ErrDirectoryUnavailable, err)
	}

	failure, known := parseBindFailure(err.Error())
	if !known {
		v.logger.ErrorContext(ctx, "unrecognized bind failure",
			"identity", id.Name, "error", err)
		return domain.UnknownErrorResult(err.Error()), nil
	}

	var profile *domain.DirectoryProfile
	if failure.MustChangePassword {
		if conn, serr := v.connector.ServiceConn(ctx); serr == nil {
			profile, _ = v.loadProfile(ctx, conn, id)
			conn.Close()
		}
	}

	v.logger.InfoContext(ctx, "directory rejected credentials",
		"identity", id.Name, "reason", failure.Reason)
	return domain.KnownErrorResult(failure.Reason, failure.MustChangePassword, profile), nil
}

// ldapReason extracts the human-readable part of a directory error.
func ldapReason(err error) string {
	if lerr, ok := err.(*ldap.Error); ok {
		return ldap.LDAPResultCodeMap[lerr.ResultCode]
	}
	return err.Error()
}
