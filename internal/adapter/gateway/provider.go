package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dirport/internal/domain"
)

// ProviderGateway talks to the external MFA provider's REST API. Implements
// domain.AccessRequester.
type ProviderGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewProviderGateway creates a provider gateway with a tuned HTTP transport.
func NewProviderGateway(baseURL, apiKey string, timeout time.Duration) *ProviderGateway {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &ProviderGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

var _ domain.AccessRequester = (*ProviderGateway)(nil)

// accessRequestBody is the provider's access-request creation payload.
type accessRequestBody struct {
	Identity    string            `json:"identity"`
	DisplayName string            `json:"displayName,omitempty"`
	Email       string            `json:"email,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	CallbackURL string            `json:"callbackUrl"`
	Claims      map[string]string `json:"claims,omitempty"`
}

// accessRequestResponse carries the browser redirect URL back.
type accessRequestResponse struct {
	RedirectURL string `json:"redirectUrl"`
}

// CreateAccessRequest registers an access request and returns the redirect
// URL the browser should follow to perform the factor.
func (g *ProviderGateway) CreateAccessRequest(ctx context.Context, req domain.AccessRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	body, err := json.Marshal(accessRequestBody{
		Identity:    req.Identity,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Phone:       req.Phone,
		CallbackURL: req.CallbackURL,
		Claims:      req.Claims,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/v1/access-requests", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: provider returned status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	var parsed accessRequestResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	if parsed.RedirectURL == "" {
		return "", fmt.Errorf("%w: empty redirect URL", domain.ErrProviderUnavailable)
	}
	return parsed.RedirectURL, nil
}

// JWKSURL is the provider's signing-key endpoint, by URL convention.
func (g *ProviderGateway) JWKSURL() string {
	return g.baseURL + "/.well-known/jwks.json"
}
