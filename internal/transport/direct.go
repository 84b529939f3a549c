package transport

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mrlokans/stagesync/internal/entities"
)

// DirectAdapter serves platforms that expose a plain JSON API
// authenticated with a static API key.
type DirectAdapter struct {
	api apiClient
}

// DirectConfig configures the direct API adapter.
type DirectConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewDirectAdapter creates an adapter for the api connection class.
func NewDirectAdapter(cfg DirectConfig) *DirectAdapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &DirectAdapter{
		api: apiClient{
			baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
			httpClient: &http.Client{Timeout: timeout},
			authorize: func(req *http.Request, cred *entities.DecryptedCredential) {
				if cred != nil {
					req.Header.Set("X-API-Key", cred.Secret)
				}
			},
		},
	}
}

func (a *DirectAdapter) ConnectionType() entities.ConnectionType {
	return entities.ConnectionTypeAPI
}

func (a *DirectAdapter) platformURL(platformID string, parts ...string) string {
	url := a.api.baseURL + "/v1/platforms/" + platformID
	if len(parts) > 0 {
		url += "/" + strings.Join(parts, "/")
	}
	return url
}

func (a *DirectAdapter) Handshake(ctx context.Context, platformID string, cred *entities.DecryptedCredential) error {
	if cred == nil || cred.Secret == "" {
		return ErrAuthRequired
	}
	resp, err := a.api.do(ctx, "handshake", platformID, http.MethodPost, a.platformURL(platformID, "handshake"), nil, cred)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (a *DirectAdapter) Ping(ctx context.Context, platformID string, cred *entities.DecryptedCredential) error {
	resp, err := a.api.do(ctx, "ping", platformID, http.MethodGet, a.platformURL(platformID, "ping"), nil, cred)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (a *DirectAdapter) Push(ctx context.Context, platformID string, dataType entities.DataType, payload string, cred *entities.DecryptedCredential) (*Result, error) {
	if cred == nil || cred.Secret == "" {
		return nil, ErrAuthRequired
	}
	resp, err := a.api.do(ctx, "push", platformID, http.MethodPost,
		a.platformURL(platformID, string(dataType)), strings.NewReader(payload), cred)
	if err != nil {
		return nil, err
	}
	return decodeResult(resp)
}

func (a *DirectAdapter) Pull(ctx context.Context, platformID string, dataType entities.DataType, cred *entities.DecryptedCredential) (string, error) {
	if cred == nil || cred.Secret == "" {
		return "", ErrAuthRequired
	}
	resp, err := a.api.do(ctx, "pull", platformID, http.MethodGet,
		a.platformURL(platformID, string(dataType)), nil, cred)
	if err != nil {
		return "", err
	}
	return readBody(resp)
}

func (a *DirectAdapter) Revoke(ctx context.Context, platformID string, cred *entities.DecryptedCredential) error {
	if cred == nil || cred.Secret == "" {
		return ErrAuthRequired
	}
	resp, err := a.api.do(ctx, "revoke", platformID, http.MethodDelete,
		a.platformURL(platformID, "authorization"), nil, cred)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
