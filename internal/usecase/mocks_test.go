package usecase

import (
	"bytes"
	"context"
	"errors"
	"time"

	"dirport/internal/domain"
)

// mockValidator implements domain.CredentialValidator.
type mockValidator struct {
	verifyCredentialsFunc func(ctx context.Context, login, password string) (*domain.ValidationResult, error)
	verifyMembershipFunc  func(ctx context.Context, login string) (*domain.ValidationResult, error)
}

func (m *mockValidator) VerifyCredentials(ctx context.Context, login, password string) (*domain.ValidationResult, error) {
	return m.verifyCredentialsFunc(ctx, login, password)
}

func (m *mockValidator) VerifyMembership(ctx context.Context, login string) (*domain.ValidationResult, error) {
	return m.verifyMembershipFunc(ctx, login)
}

// mockManager implements domain.PasswordManager.
type mockManager struct {
	changePasswordFunc func(ctx context.Context, login, oldPassword, newPassword string) error
	unlockUserFunc     func(ctx context.Context, login string) error
}

func (m *mockManager) ChangePassword(ctx context.Context, login, oldPassword, newPassword string) error {
	return m.changePasswordFunc(ctx, login, oldPassword, newPassword)
}

func (m *mockManager) UnlockUser(ctx context.Context, login string) error {
	return m.unlockUserFunc(ctx, login)
}

// mockProvider implements domain.AccessRequester, recording every request.
type mockProvider struct {
	redirectURL string
	err         error
	requests    []domain.AccessRequest
}

func (m *mockProvider) CreateAccessRequest(_ context.Context, req domain.AccessRequest) (string, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	return m.redirectURL, nil
}

func (m *mockProvider) last() domain.AccessRequest {
	return m.requests[len(m.requests)-1]
}

// mockVerifier implements domain.TokenVerifier.
type mockVerifier struct {
	verifyFunc func(ctx context.Context, raw string) (*domain.ValidatedToken, error)
	decodeFunc func(raw string) (*domain.UnverifiedToken, error)
}

func (m *mockVerifier) Verify(ctx context.Context, raw string) (*domain.ValidatedToken, error) {
	return m.verifyFunc(ctx, raw)
}

func (m *mockVerifier) DecodeUnverified(raw string) (*domain.UnverifiedToken, error) {
	return m.decodeFunc(raw)
}

// mockIssuer implements domain.PrincipalIssuer.
type mockIssuer struct {
	principal string
	err       error
}

func (m *mockIssuer) Issue(string, time.Time) (string, error) {
	return m.principal, m.err
}

// memStore is an unbounded in-memory domain.ContinuationStore.
type memStore struct {
	passwords  map[string]domain.ExpiredPasswordSession
	identities map[string]domain.IdentityContinuation
}

func newMemStore() *memStore {
	return &memStore{
		passwords:  make(map[string]domain.ExpiredPasswordSession),
		identities: make(map[string]domain.IdentityContinuation),
	}
}

func (s *memStore) SetExpiredPassword(key string, sess domain.ExpiredPasswordSession) {
	s.passwords[key] = sess
}

func (s *memStore) TakeExpiredPassword(key string) (domain.ExpiredPasswordSession, bool) {
	sess, ok := s.passwords[key]
	delete(s.passwords, key)
	return sess, ok
}

func (s *memStore) SetIdentity(requestID string, c domain.IdentityContinuation) {
	s.identities[requestID] = c
}

func (s *memStore) TakeIdentity(requestID string) (domain.IdentityContinuation, bool) {
	c, ok := s.identities[requestID]
	delete(s.identities, requestID)
	return c, ok
}

func (s *memStore) Remove(key string) {
	delete(s.passwords, key)
	delete(s.identities, key)
}

// plainProtector is a reversible domain.Protector for tests.
type plainProtector struct{}

var sealedPrefix = []byte("sealed:")

func (plainProtector) Protect(plaintext []byte) ([]byte, error) {
	return append(append([]byte{}, sealedPrefix...), plaintext...), nil
}

func (plainProtector) Unprotect(box []byte) ([]byte, error) {
	if !bytes.HasPrefix(box, sealedPrefix) {
		return nil, errors.New("not sealed")
	}
	return box[len(sealedPrefix):], nil
}

// noDelay replaces the 2-5s rejection stall in tests.
func noDelay(context.Context) {}
