package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dirport/internal/domain"
)

// PrincipalConfig holds principal-token signing configuration.
type PrincipalConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// principalClaims is the portal's authenticated-principal payload.
type principalClaims struct {
	jwt.RegisteredClaims
}

// PrincipalIssuer signs the portal's own authentication cookie payload,
// bound to the provider token's lifetime. Implements domain.PrincipalIssuer.
type PrincipalIssuer struct {
	cfg PrincipalConfig
}

// NewPrincipalIssuer creates a principal issuer.
func NewPrincipalIssuer(cfg PrincipalConfig) *PrincipalIssuer {
	return &PrincipalIssuer{cfg: cfg}
}

// Issue signs a principal token for the given subject, expiring with the
// validated provider token.
func (p *PrincipalIssuer) Issue(subject string, validTo time.Time) (string, error) {
	if p.cfg.Secret == "" {
		return "", domain.ErrPrincipalSecretMissing
	}

	now := time.Now()
	claims := principalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.cfg.Issuer,
			Audience:  jwt.ClaimStrings{p.cfg.Audience},
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(validTo),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(p.cfg.Secret))
}

// Validate parses a principal token previously produced by Issue and returns
// its subject.
func (p *PrincipalIssuer) Validate(raw string) (string, error) {
	if p.cfg.Secret == "" {
		return "", domain.ErrPrincipalSecretMissing
	}

	var claims principalClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return []byte(p.cfg.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.cfg.Issuer),
		jwt.WithAudience(p.cfg.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", domain.ErrTokenInvalid
	}
	return claims.Subject, nil
}
