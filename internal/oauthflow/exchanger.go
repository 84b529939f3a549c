package oauthflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mrlokans/stagesync/internal/entities"
)

const defaultExchangeTimeout = 30 * time.Second

// TokenExchanger performs the authorization-code grant against each
// provider's token endpoint.
type TokenExchanger struct {
	httpClient *http.Client
	providers  map[string]ProviderConfig
}

// NewTokenExchanger creates an exchanger over the given provider set.
func NewTokenExchanger(providers map[string]ProviderConfig, timeout time.Duration) *TokenExchanger {
	if timeout <= 0 {
		timeout = defaultExchangeTimeout
	}
	return &TokenExchanger{
		httpClient: &http.Client{Timeout: timeout},
		providers:  providers,
	}
}

// tokenResponse is the provider's token endpoint reply.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// ExchangeCode swaps an authorization code for an access credential.
func (e *TokenExchanger) ExchangeCode(ctx context.Context, platformID, code, redirectURL string) (*entities.DecryptedCredential, error) {
	provider, ok := e.providers[platformID]
	if !ok {
		return nil, fmt.Errorf("%w for platform %q", ErrUnknownProvider, platformID)
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURL)
	form.Set("client_id", provider.ClientID)
	if provider.ClientSecret != "" {
		form.Set("client_secret", provider.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned no access token")
	}

	cred := &entities.DecryptedCredential{
		PlatformID: platformID,
		Secret:     token.AccessToken,
		TokenType:  token.TokenType,
		Scope:      token.Scope,
	}
	if token.ExpiresIn > 0 {
		exp := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
		cred.ExpiresAt = &exp
	}
	return cred, nil
}
