package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the application configuration
type Config struct {
	// Directory settings
	LDAPURL          string `validate:"required,url"`
	LDAPBindDN       string `validate:"required"`
	LDAPBindPassword string `validate:"required"`
	LDAPDialTimeout  time.Duration
	DefaultDomain    string `validate:"required,fqdn"`
	IncludedDomains  []string
	ExcludedDomains  []string

	// Login policy
	TwoFactorGroup         string
	UPNIdentity            bool
	PreAuthentication      bool
	PasswordManagement     bool
	NestedGroups           bool
	NestedGroupsBases      []string
	ExtraIdentityAttribute string

	// Factor provider
	ProviderURL    string `validate:"required,url"`
	ProviderIssuer string `validate:"required"`
	ProviderAPIKey string
	CallbackURL    string `validate:"required,url"`

	// Cookies and secrets
	SessionCookieName   string `validate:"required"`
	PrincipalCookieName string `validate:"required"`
	SecureCookies       bool
	RequireCSRF         bool
	PrincipalSecret     string `validate:"required"`
	PrincipalIssuer     string
	PrincipalAudience   string
	CSRFSecret          string
	ProtectorKey        string `validate:"required"`

	// Continuation cache
	CacheByteBudget    int64         `validate:"gt=0"`
	ExpiredPasswordTTL time.Duration `validate:"gt=0"`
	ContinuationTTL    time.Duration `validate:"gt=0"`
	SchemaTTL          time.Duration

	// Server
	Port string `validate:"required"`
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	config := &Config{
		LDAPURL:          getEnv("LDAP_URL", "ldaps://localhost:636"),
		LDAPBindDN:       getEnv("LDAP_BIND_DN", ""),
		LDAPBindPassword: getEnv("LDAP_BIND_PASSWORD", ""),
		DefaultDomain:    getEnv("DEFAULT_DOMAIN", ""),
		IncludedDomains:  splitList(getEnv("INCLUDED_DOMAINS", "")),
		ExcludedDomains:  splitList(getEnv("EXCLUDED_DOMAINS", "")),

		TwoFactorGroup:         getEnv("TWO_FACTOR_GROUP", ""),
		UPNIdentity:            getBool("UPN_IDENTITY", false),
		PreAuthentication:      getBool("PRE_AUTHENTICATION", false),
		PasswordManagement:     getBool("PASSWORD_MANAGEMENT", true),
		NestedGroups:           getBool("NESTED_GROUPS", false),
		NestedGroupsBases:      splitList(getEnv("NESTED_GROUPS_BASES", "")),
		ExtraIdentityAttribute: getEnv("EXTRA_IDENTITY_ATTRIBUTE", ""),

		ProviderURL:    getEnv("PROVIDER_URL", ""),
		ProviderIssuer: getEnv("PROVIDER_ISSUER", ""),
		ProviderAPIKey: getEnv("PROVIDER_API_KEY", ""),
		CallbackURL:    getEnv("CALLBACK_URL", ""),

		SessionCookieName:   getEnv("SESSION_COOKIE_NAME", "portal_session"),
		PrincipalCookieName: getEnv("PRINCIPAL_COOKIE_NAME", "portal_auth"),
		SecureCookies:       getBool("SECURE_COOKIES", true),
		RequireCSRF:         getBool("REQUIRE_CSRF", true),
		PrincipalSecret:     getEnv("PRINCIPAL_SECRET", ""),
		PrincipalIssuer:     getEnv("PRINCIPAL_ISSUER", "dirport"),
		PrincipalAudience:   getEnv("PRINCIPAL_AUDIENCE", "portal"),
		CSRFSecret:          getEnv("CSRF_SECRET", ""),
		ProtectorKey:        getEnv("PROTECTOR_KEY", ""),

		CacheByteBudget:    10 * 1024 * 1024,
		ExpiredPasswordTTL: 5 * time.Minute,
		ContinuationTTL:    5 * time.Minute,
		SchemaTTL:          12 * time.Hour,
		LDAPDialTimeout:    10 * time.Second,

		Port: getEnv("PORT", "8888"),
	}

	if v := os.Getenv("CACHE_BYTE_BUDGET"); v != "" {
		budget, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CACHE_BYTE_BUDGET format: %w", err)
		}
		config.CacheByteBudget = budget
	}

	for _, d := range []struct {
		name string
		dst  *time.Duration
	}{
		{"EXPIRED_PASSWORD_TTL", &config.ExpiredPasswordTTL},
		{"CONTINUATION_TTL", &config.ContinuationTTL},
		{"SCHEMA_TTL", &config.SchemaTTL},
		{"LDAP_DIAL_TIMEOUT", &config.LDAPDialTimeout},
	} {
		if v := os.Getenv(d.name); v != "" {
			duration, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s format: %w", d.name, err)
			}
			*d.dst = duration
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// splitList parses a comma-separated list, trimming blanks.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getBool parses a boolean environment variable, defaulting on absence or
// parse failure.
func getBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// getEnv retrieves an environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	// Check for _FILE suffix
	if fileValue := os.Getenv(key + "_FILE"); fileValue != "" {
		content, err := os.ReadFile(fileValue)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
