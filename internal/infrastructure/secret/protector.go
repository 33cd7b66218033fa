package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"dirport/internal/domain"
)

// AEADProtector shields credential material held in the continuation cache
// using XChaCha20-Poly1305 with a random nonce prepended to the box.
// Implements domain.Protector.
type AEADProtector struct {
	key []byte
}

// NewAEADProtector derives the sealing key from the configured secret.
func NewAEADProtector(secret string) *AEADProtector {
	key := sha256.Sum256([]byte(secret))
	return &AEADProtector{key: key[:]}
}

var _ domain.Protector = (*AEADProtector)(nil)

// Protect seals plaintext.
func (p *AEADProtector) Protect(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(p.key)
	if err != nil {
		return nil, fmt.Errorf("protect: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("protect: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Unprotect opens a sealed box; tampering or a wrong key fails.
func (p *AEADProtector) Unprotect(box []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(p.key)
	if err != nil {
		return nil, fmt.Errorf("unprotect: %w", err)
	}
	if len(box) < aead.NonceSize() {
		return nil, fmt.Errorf("unprotect: box too short")
	}
	nonce, sealed := box[:aead.NonceSize()], box[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("unprotect: %w", err)
	}
	return plaintext, nil
}
