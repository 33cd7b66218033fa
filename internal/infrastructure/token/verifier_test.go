package token

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirport/internal/domain"
)

const testIssuer = "https://mfa.example.com"

// signingEnv is an RSA key pair with its public half served as a JWKS.
type signingEnv struct {
	key    jwk.Key
	server *httptest.Server
}

func newSigningEnv(t *testing.T) *signingEnv {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))

	public, err := key.PublicKey()
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(public))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(server.Close)

	return &signingEnv{key: key, server: server}
}

type claimOverrides map[string]any

func (e *signingEnv) sign(t *testing.T, overrides claimOverrides) string {
	t.Helper()

	builder := jwt.NewBuilder().
		Issuer(testIssuer).
		Subject("jdoe@corp.example.com").
		JwtID("token-1").
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(10 * time.Minute))
	tok, err := builder.Build()
	require.NoError(t, err)
	for name, value := range overrides {
		require.NoError(t, tok.Set(name, value))
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, e.key))
	require.NoError(t, err)
	return string(signed)
}

func (e *signingEnv) verifier(t *testing.T) *Verifier {
	t.Helper()
	return NewVerifier(context.Background(), VerifierConfig{
		JWKSURL: e.server.URL,
		Issuer:  testIssuer,
	}, slog.Default())
}

func TestVerify_ValidToken(t *testing.T) {
	env := newSigningEnv(t)
	expiry := "2033-04-01T00:00:00Z"
	raw := env.sign(t, claimOverrides{
		"mustChangePassword":     "true",
		"mustUnlockUser":         true,
		"passwordExpirationDate": expiry,
	})

	tok, err := env.verifier(t).Verify(context.Background(), raw)

	require.NoError(t, err)
	assert.Equal(t, "token-1", tok.ID)
	assert.Equal(t, "jdoe@corp.example.com", tok.Subject)
	assert.True(t, tok.MustChangePassword)
	assert.True(t, tok.MustUnlockUser)
	require.NotNil(t, tok.PasswordExpiration)
	assert.Equal(t, expiry, tok.PasswordExpiration.Format(time.RFC3339))
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), tok.ValidTo, 5*time.Second)
}

func TestVerify_ReplayRejected(t *testing.T) {
	env := newSigningEnv(t)
	raw := env.sign(t, nil)
	v := env.verifier(t)

	_, err := v.Verify(context.Background(), raw)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestVerify_WrongIssuerRejected(t *testing.T) {
	env := newSigningEnv(t)
	v := NewVerifier(context.Background(), VerifierConfig{
		JWKSURL: env.server.URL,
		Issuer:  "https://other.example.com",
	}, slog.Default())

	_, err := v.Verify(context.Background(), env.sign(t, nil))
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestVerify_ExpiredTokenRejected(t *testing.T) {
	env := newSigningEnv(t)
	tok, err := jwt.NewBuilder().
		Issuer(testIssuer).
		Subject("jdoe").
		JwtID("stale").
		Expiration(time.Now().Add(-time.Minute)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, env.key))
	require.NoError(t, err)

	_, err = env.verifier(t).Verify(context.Background(), string(signed))
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestVerify_MissingExpirationRejected(t *testing.T) {
	env := newSigningEnv(t)
	// Properly signed, right issuer, but no exp claim at all.
	tok, err := jwt.NewBuilder().
		Issuer(testIssuer).
		Subject("jdoe").
		JwtID("eternal").
		IssuedAt(time.Now()).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, env.key))
	require.NoError(t, err)

	_, err = env.verifier(t).Verify(context.Background(), string(signed))
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestVerify_ForeignSignatureRejected(t *testing.T) {
	env := newSigningEnv(t)
	foreign := newSigningEnv(t) // different key pair, same issuer

	_, err := env.verifier(t).Verify(context.Background(), foreign.sign(t, nil))
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestVerify_GarbageRejected(t *testing.T) {
	env := newSigningEnv(t)

	_, err := env.verifier(t).Verify(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestDecodeUnverified(t *testing.T) {
	env := newSigningEnv(t)
	raw := env.sign(t, nil)

	// No JWKS interaction: the verifier never fetched keys.
	v := NewVerifier(context.Background(), VerifierConfig{
		JWKSURL: "http://127.0.0.1:1/jwks", // unreachable on purpose
		Issuer:  testIssuer,
	}, slog.Default())

	unverified, err := v.DecodeUnverified(raw)

	require.NoError(t, err)
	assert.Equal(t, "token-1", unverified.ID)
	assert.Equal(t, "jdoe@corp.example.com", unverified.Subject)
}

func TestDecodeUnverified_Garbage(t *testing.T) {
	env := newSigningEnv(t)
	_, err := env.verifier(t).DecodeUnverified("%%%")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}
