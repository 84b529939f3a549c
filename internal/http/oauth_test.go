package http

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/stagesync/internal/entities"
)

type stubExchanger struct {
	calls int
	err   error
}

func (s *stubExchanger) ExchangeCode(ctx context.Context, platformID, code, redirectURL string) (*entities.DecryptedCredential, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &entities.DecryptedCredential{
		PlatformID: platformID,
		Secret:     "access-token-for-" + code,
		TokenType:  "Bearer",
	}, nil
}

func TestOAuthInitFlow(t *testing.T) {
	exchanger := &stubExchanger{}
	e, cleanup := setupAPI(t, acceptAllPlatform(), exchanger)
	defer cleanup()

	w := doJSON(t, e.router, "POST", "/api/oauth/stagebook/init", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	authURL, ok := body["auth_url"].(string)
	require.True(t, ok)
	state, ok := body["state"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, state)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, state, parsed.Query().Get("state"))
	assert.Equal(t, "client-id", parsed.Query().Get("client_id"))
}

func TestOAuthInitUnknownProvider(t *testing.T) {
	e, cleanup := setupAPI(t, acceptAllPlatform(), &stubExchanger{})
	defer cleanup()

	w := doJSON(t, e.router, "POST", "/api/oauth/venuewire/init", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOAuthCallbackConnectsPlatform(t *testing.T) {
	exchanger := &stubExchanger{}
	e, cleanup := setupAPI(t, acceptAllPlatform(), exchanger)
	defer cleanup()

	w := doJSON(t, e.router, "POST", "/api/oauth/stagebook/init", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decodeBody(t, w)["state"].(string)

	w = doJSON(t, e.router, "GET", "/api/oauth/stagebook/callback?code=auth-code&state="+url.QueryEscape(state), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, exchanger.calls)

	platform, err := e.platforms.Get("stagebook")
	require.NoError(t, err)
	assert.True(t, platform.Connected)

	w = doJSON(t, e.router, "GET", "/api/oauth/stagebook/status", nil)
	body := decodeBody(t, w)
	assert.Equal(t, "completed", body["status"])
}

func TestOAuthCallbackStateMismatch(t *testing.T) {
	exchanger := &stubExchanger{}
	e, cleanup := setupAPI(t, acceptAllPlatform(), exchanger)
	defer cleanup()

	w := doJSON(t, e.router, "POST", "/api/oauth/stagebook/init", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, e.router, "GET", "/api/oauth/stagebook/callback?code=auth-code&state=forged", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The code must never be exchanged on a forged state
	assert.Equal(t, 0, exchanger.calls)

	platform, err := e.platforms.Get("stagebook")
	require.NoError(t, err)
	assert.False(t, platform.Connected)
}

func TestOAuthCallbackMissingParams(t *testing.T) {
	e, cleanup := setupAPI(t, acceptAllPlatform(), &stubExchanger{})
	defer cleanup()

	w := doJSON(t, e.router, "GET", "/api/oauth/stagebook/callback", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOAuthCallbackWithoutPendingFlow(t *testing.T) {
	e, cleanup := setupAPI(t, acceptAllPlatform(), &stubExchanger{})
	defer cleanup()

	w := doJSON(t, e.router, "GET", "/api/oauth/stagebook/callback?code=auth-code&state=anything", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}
