package domain

import "time"

// ValidationStatus tags the outcome of a directory credential check.
type ValidationStatus int

const (
	// StatusOk means the bind succeeded and the user requires the factor.
	StatusOk ValidationStatus = iota
	// StatusBypass means the bind succeeded and the user is outside the
	// factor-required population.
	StatusBypass
	// StatusKnownError means the bind failed with a recognized directory
	// subcode.
	StatusKnownError
	// StatusUnknownError means the bind failed and the subcode was absent or
	// unrecognized.
	StatusUnknownError
)

// ValidationResult is the closed outcome set of a credential or membership
// check. Constructed only through OkResult, BypassResult, KnownErrorResult
// and UnknownErrorResult so that illegal combinations (bypass together with
// must-change-password, for instance) cannot be built.
type ValidationResult struct {
	status     ValidationStatus
	reason     string
	mustChange bool
	profile    *DirectoryProfile
}

// OkResult marks a successful bind for a user who requires the factor.
func OkResult(profile *DirectoryProfile) *ValidationResult {
	return &ValidationResult{status: StatusOk, profile: profile}
}

// BypassResult marks a successful bind for a user exempt from the factor.
func BypassResult(profile *DirectoryProfile) *ValidationResult {
	return &ValidationResult{status: StatusBypass, profile: profile}
}

// KnownErrorResult marks a bind failure mapped from a recognized subcode.
// The profile is attached only when a must-change-password condition was
// detected and the loader could still resolve the user.
func KnownErrorResult(reason string, mustChange bool, profile *DirectoryProfile) *ValidationResult {
	return &ValidationResult{status: StatusKnownError, reason: reason, mustChange: mustChange, profile: profile}
}

// UnknownErrorResult marks a bind failure with no recognizable subcode.
func UnknownErrorResult(reason string) *ValidationResult {
	return &ValidationResult{status: StatusUnknownError, reason: reason}
}

func (r *ValidationResult) Status() ValidationStatus { return r.status }

// Authenticated reports whether the directory accepted the credentials.
func (r *ValidationResult) Authenticated() bool {
	return r.status == StatusOk || r.status == StatusBypass
}

// Bypass reports whether the user is exempt from the second factor.
func (r *ValidationResult) Bypass() bool { return r.status == StatusBypass }

// MustChangePassword reports a password-expired or must-reset condition.
func (r *ValidationResult) MustChangePassword() bool {
	return r.status == StatusKnownError && r.mustChange
}

// Reason is the semantic failure reason, empty on success.
func (r *ValidationResult) Reason() string { return r.reason }

// Profile returns the loaded directory profile, which may be nil on failure
// outcomes.
func (r *ValidationResult) Profile() *DirectoryProfile { return r.profile }

// DisplayName is a nil-safe accessor over the attached profile.
func (r *ValidationResult) DisplayName() string {
	if r.profile == nil {
		return ""
	}
	return r.profile.DisplayName
}

// PasswordExpiration is a nil-safe accessor over the attached profile.
func (r *ValidationResult) PasswordExpiration() *time.Time {
	if r.profile == nil {
		return nil
	}
	return r.profile.PasswordExpiration
}
