package token

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"dirport/internal/domain"
)

// VerifierConfig configures access-token validation.
type VerifierConfig struct {
	// JWKSURL is the provider's signing-key endpoint,
	// <api-base>/.well-known/jwks.json.
	JWKSURL string
	// Issuer is the provider's fixed issuer string; tokens from any other
	// issuer are rejected regardless of signature.
	Issuer string
	// RefreshInterval bounds key-set staleness after the lazy first fetch.
	// Defaults to 15 minutes.
	RefreshInterval time.Duration
	// HTTPClient overrides the client used for JWKS fetches.
	HTTPClient *http.Client
	// AcceptableSkew tolerates clock drift on expiration checks.
	AcceptableSkew time.Duration
}

// Verifier validates provider access tokens against a shared, lazily
// populated signing-key cache. The cache swap is atomic: concurrent first
// uses may fetch redundantly but never observe a partial key set.
type Verifier struct {
	cfg    VerifierConfig
	cache  *jwk.Cache
	logger *slog.Logger

	registerOnce sync.Once
	registerErr  error

	// replay tracks consumed token ids for their validity window.
	replay *ttlcache.Cache[string, struct{}]
}

// NewVerifier creates a verifier. ctx bounds the background key refresh.
func NewVerifier(ctx context.Context, cfg VerifierConfig, logger *slog.Logger) *Verifier {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 15 * time.Minute
	}
	if cfg.AcceptableSkew < 0 {
		cfg.AcceptableSkew = 0
	}
	replay := ttlcache.New[string, struct{}]()
	go replay.Start()

	return &Verifier{
		cfg:    cfg,
		cache:  jwk.NewCache(ctx),
		logger: logger,
		replay: replay,
	}
}

var _ domain.TokenVerifier = (*Verifier)(nil)

// Verify checks signature, issuer, expiration and replay, and extracts the
// identity claims. Every failure collapses to domain.ErrTokenInvalid; the
// cause is logged, never surfaced to the end user.
func (v *Verifier) Verify(ctx context.Context, raw string) (*domain.ValidatedToken, error) {
	keys, err := v.keySet(ctx)
	if err != nil {
		v.logger.ErrorContext(ctx, "signing key set unavailable", "jwks_url", v.cfg.JWKSURL, "error", err)
		return nil, domain.ErrTokenInvalid
	}

	// Expiration is validated only when present, so its presence is enforced:
	// an exp-less token would otherwise live forever and dodge the replay
	// guard, whose window is the remaining validity.
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAcceptableSkew(v.cfg.AcceptableSkew),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	)
	if err != nil {
		v.logger.WarnContext(ctx, "access token rejected", "error", err)
		return nil, domain.ErrTokenInvalid
	}

	id := tokenID(tok)
	if id != "" {
		if v.replay.Has(id) {
			v.logger.WarnContext(ctx, "access token replayed", "token_id", id)
			return nil, domain.ErrTokenInvalid
		}
		if window := time.Until(tok.Expiration()); window > 0 {
			v.replay.Set(id, struct{}{}, window)
		}
	}

	return &domain.ValidatedToken{
		ID:                 id,
		Subject:            tok.Subject(),
		MustChangePassword: boolClaim(tok, "mustChangePassword"),
		MustUnlockUser:     boolClaim(tok, "mustUnlockUser"),
		PasswordExpiration: timeClaim(tok, "passwordExpirationDate"),
		ValidTo:            tok.Expiration(),
	}, nil
}

// DecodeUnverified reads the id and subject claims without any signature
// check. The result keys a continuation and confers no trust.
func (v *Verifier) DecodeUnverified(raw string) (*domain.UnverifiedToken, error) {
	tok, err := jwt.ParseInsecure([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenInvalid, err)
	}
	return &domain.UnverifiedToken{ID: tokenID(tok), Subject: tok.Subject()}, nil
}

// keySet registers the JWKS endpoint once and serves the shared cached set.
func (v *Verifier) keySet(ctx context.Context) (jwk.Set, error) {
	v.registerOnce.Do(func() {
		opts := []jwk.RegisterOption{
			jwk.WithRefreshInterval(v.cfg.RefreshInterval),
		}
		if v.cfg.HTTPClient != nil {
			opts = append(opts, jwk.WithHTTPClient(v.cfg.HTTPClient))
		}
		v.registerErr = v.cache.Register(v.cfg.JWKSURL, opts...)
	})
	if v.registerErr != nil {
		return nil, v.registerErr
	}
	return v.cache.Get(ctx, v.cfg.JWKSURL)
}

func tokenID(tok jwt.Token) string {
	if id := tok.JwtID(); id != "" {
		return id
	}
	if raw, ok := tok.Get("id"); ok {
		if s, ok := raw.(string); ok {
			return s
		}
	}
	return ""
}

// boolClaim accepts both boolean claims and the string form carried across
// the redirect.
func boolClaim(tok jwt.Token, name string) bool {
	raw, ok := tok.Get(name)
	if !ok {
		return false
	}
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "True"
	default:
		return false
	}
}

func timeClaim(tok jwt.Token, name string) *time.Time {
	raw, ok := tok.Get(name)
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
