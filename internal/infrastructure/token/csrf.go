package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"dirport/internal/domain"
)

// HMACCSRFGenerator derives CSRF tokens from opaque form ids using
// HMAC-SHA256. Implements domain.CSRFTokenGenerator.
type HMACCSRFGenerator struct {
	secret []byte
}

// NewHMACCSRFGenerator creates a new CSRF token generator.
func NewHMACCSRFGenerator(secret string) *HMACCSRFGenerator {
	return &HMACCSRFGenerator{secret: []byte(secret)}
}

// Generate creates a deterministic CSRF token for a form id.
func (g *HMACCSRFGenerator) Generate(formID string) (string, error) {
	if len(g.secret) == 0 {
		return "", domain.ErrCSRFSecretMissing
	}

	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(formID))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}
