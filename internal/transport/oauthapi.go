package transport

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mrlokans/stagesync/internal/entities"
)

// OAuthAPIAdapter serves platforms whose API is authenticated with an
// OAuth bearer token. Expired tokens are refused locally before any
// network call.
type OAuthAPIAdapter struct {
	api apiClient
}

// OAuthAPIConfig configures the oauth-api adapter.
type OAuthAPIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewOAuthAPIAdapter creates an adapter for the oauth-api connection class.
func NewOAuthAPIAdapter(cfg OAuthAPIConfig) *OAuthAPIAdapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OAuthAPIAdapter{
		api: apiClient{
			baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
			httpClient: &http.Client{Timeout: timeout},
			authorize: func(req *http.Request, cred *entities.DecryptedCredential) {
				if cred != nil {
					req.Header.Set("Authorization", "Bearer "+cred.Secret)
				}
			},
		},
	}
}

func (a *OAuthAPIAdapter) ConnectionType() entities.ConnectionType {
	return entities.ConnectionTypeOAuthAPI
}

func (a *OAuthAPIAdapter) checkCredential(cred *entities.DecryptedCredential) error {
	if cred == nil || cred.Secret == "" {
		return ErrAuthRequired
	}
	if cred.IsExpired() {
		return ErrAuthRequired
	}
	return nil
}

func (a *OAuthAPIAdapter) platformURL(platformID string, parts ...string) string {
	url := a.api.baseURL + "/v1/platforms/" + platformID
	if len(parts) > 0 {
		url += "/" + strings.Join(parts, "/")
	}
	return url
}

func (a *OAuthAPIAdapter) Handshake(ctx context.Context, platformID string, cred *entities.DecryptedCredential) error {
	if err := a.checkCredential(cred); err != nil {
		return err
	}
	resp, err := a.api.do(ctx, "handshake", platformID, http.MethodPost, a.platformURL(platformID, "handshake"), nil, cred)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (a *OAuthAPIAdapter) Ping(ctx context.Context, platformID string, cred *entities.DecryptedCredential) error {
	if err := a.checkCredential(cred); err != nil {
		return err
	}
	resp, err := a.api.do(ctx, "ping", platformID, http.MethodGet, a.platformURL(platformID, "ping"), nil, cred)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (a *OAuthAPIAdapter) Push(ctx context.Context, platformID string, dataType entities.DataType, payload string, cred *entities.DecryptedCredential) (*Result, error) {
	if err := a.checkCredential(cred); err != nil {
		return nil, err
	}
	resp, err := a.api.do(ctx, "push", platformID, http.MethodPost,
		a.platformURL(platformID, string(dataType)), strings.NewReader(payload), cred)
	if err != nil {
		return nil, err
	}
	return decodeResult(resp)
}

func (a *OAuthAPIAdapter) Pull(ctx context.Context, platformID string, dataType entities.DataType, cred *entities.DecryptedCredential) (string, error) {
	if err := a.checkCredential(cred); err != nil {
		return "", err
	}
	resp, err := a.api.do(ctx, "pull", platformID, http.MethodGet,
		a.platformURL(platformID, string(dataType)), nil, cred)
	if err != nil {
		return "", err
	}
	return readBody(resp)
}

func (a *OAuthAPIAdapter) Revoke(ctx context.Context, platformID string, cred *entities.DecryptedCredential) error {
	if cred == nil || cred.Secret == "" {
		return ErrAuthRequired
	}
	// Revocation of an already expired token still goes to the platform
	resp, err := a.api.do(ctx, "revoke", platformID, http.MethodDelete,
		a.platformURL(platformID, "authorization"), nil, cred)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
