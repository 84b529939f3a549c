package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/stagesync/internal/entities"
)

func apiCred(secret string) *entities.DecryptedCredential {
	return &entities.DecryptedCredential{PlatformID: "gigdesk", Secret: secret}
}

func TestDirectAdapter_PushSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/platforms/gigdesk/profile", r.URL.Path)
		assert.Equal(t, "api-key-123", r.Header.Get("X-API-Key"))

		json.NewEncoder(w).Encode(pushResponse{
			Accepted: []string{"bio", "stage_name"},
		})
	}))
	defer server.Close()

	adapter := NewDirectAdapter(DirectConfig{BaseURL: server.URL})

	result, err := adapter.Push(context.Background(), "gigdesk", entities.DataTypeProfile, `{"bio":"x"}`, apiCred("api-key-123"))
	require.NoError(t, err)
	assert.Equal(t, []string{"bio", "stage_name"}, result.Accepted)
	assert.Empty(t, result.Rejected)
	assert.Equal(t, 2, result.Total())
}

func TestDirectAdapter_PushPartial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pushResponse{
			Accepted: []string{"a", "b", "c"},
			Rejected: []RejectedItem{
				{ItemID: "d", Reason: "image too large"},
				{ItemID: "e", Reason: "unsupported format"},
			},
		})
	}))
	defer server.Close()

	adapter := NewDirectAdapter(DirectConfig{BaseURL: server.URL})

	result, err := adapter.Push(context.Background(), "gigdesk", entities.DataTypeMedia, `[]`, apiCred("k"))
	require.NoError(t, err)
	assert.Len(t, result.Accepted, 3)
	assert.Len(t, result.Rejected, 2)
	assert.Equal(t, 5, result.Total())
}

func TestDirectAdapter_ValidationRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(pushResponse{
			Rejected: []RejectedItem{{ItemID: "bio", Reason: "exceeds length limit"}},
		})
	}))
	defer server.Close()

	adapter := NewDirectAdapter(DirectConfig{BaseURL: server.URL})

	_, err := adapter.Push(context.Background(), "gigdesk", entities.DataTypeProfile, `{}`, apiCred("k"))
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	require.Len(t, valErr.Rejected, 1)
	assert.Equal(t, "exceeds length limit", valErr.Rejected[0].Reason)
}

func TestDirectAdapter_AuthRequired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	adapter := NewDirectAdapter(DirectConfig{BaseURL: server.URL})

	_, err := adapter.Push(context.Background(), "gigdesk", entities.DataTypeProfile, `{}`, apiCred("stale"))
	assert.ErrorIs(t, err, ErrAuthRequired)

	// A missing credential is refused before any request is made
	err = adapter.Handshake(context.Background(), "gigdesk", nil)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestDirectAdapter_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	adapter := NewDirectAdapter(DirectConfig{BaseURL: server.URL})

	_, err := adapter.Push(context.Background(), "gigdesk", entities.DataTypeProfile, `{}`, apiCred("k"))
	var trErr *TransportError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, http.StatusBadGateway, trErr.StatusCode)
	assert.Equal(t, "push", trErr.Op)
}

func TestDirectAdapter_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	adapter := NewDirectAdapter(DirectConfig{BaseURL: server.URL, Timeout: 20 * time.Millisecond})

	_, err := adapter.Push(context.Background(), "gigdesk", entities.DataTypeProfile, `{}`, apiCred("k"))
	var trErr *TransportError
	require.ErrorAs(t, err, &trErr)
	assert.Zero(t, trErr.StatusCode)
}

func TestDirectAdapter_PullAndRevoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			w.Write([]byte(`{"bio":"remote copy"}`))
		case r.Method == http.MethodDelete:
			assert.Equal(t, "/v1/platforms/gigdesk/authorization", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	adapter := NewDirectAdapter(DirectConfig{BaseURL: server.URL})

	payload, err := adapter.Pull(context.Background(), "gigdesk", entities.DataTypeProfile, apiCred("k"))
	require.NoError(t, err)
	assert.Equal(t, `{"bio":"remote copy"}`, payload)

	require.NoError(t, adapter.Revoke(context.Background(), "gigdesk", apiCred("k")))
}

func TestOAuthAPIAdapter_BearerHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(pushResponse{Accepted: []string{"a"}})
	}))
	defer server.Close()

	adapter := NewOAuthAPIAdapter(OAuthAPIConfig{BaseURL: server.URL})

	result, err := adapter.Push(context.Background(), "stagebook", entities.DataTypeProfile, `{}`,
		&entities.DecryptedCredential{PlatformID: "stagebook", Secret: "access-token", TokenType: "Bearer"})
	require.NoError(t, err)
	assert.Len(t, result.Accepted, 1)
}

func TestOAuthAPIAdapter_ExpiredTokenRefusedLocally(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	adapter := NewOAuthAPIAdapter(OAuthAPIConfig{BaseURL: server.URL})

	expired := time.Now().Add(-time.Hour)
	_, err := adapter.Push(context.Background(), "stagebook", entities.DataTypeProfile, `{}`,
		&entities.DecryptedCredential{PlatformID: "stagebook", Secret: "old", ExpiresAt: &expired})

	assert.ErrorIs(t, err, ErrAuthRequired)
	assert.False(t, called, "expired token must not reach the platform")
}

func TestAgentAdapter_PushSubmitsJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agent/jobs", r.URL.Path)
		assert.Equal(t, "relay-token", r.Header.Get("X-Agent-Token"))

		var job jobEnvelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&job))
		assert.Equal(t, "promoly", job.PlatformID)
		assert.Equal(t, "push", job.Action)
		assert.Equal(t, "media", job.DataType)

		json.NewEncoder(w).Encode(jobOutcome{Accepted: []string{"clip-1"}})
	}))
	defer server.Close()

	adapter := NewAgentAdapter(AgentConfig{RelayURL: server.URL})

	result, err := adapter.Push(context.Background(), "promoly", entities.DataTypeMedia, `["clip-1"]`,
		&entities.DecryptedCredential{PlatformID: "promoly", Secret: "relay-token"})
	require.NoError(t, err)
	assert.Equal(t, []string{"clip-1"}, result.Accepted)
}

func TestAgentAdapter_Pull(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(jobOutcome{Payload: `{"stageName":"remote"}`})
	}))
	defer server.Close()

	adapter := NewAgentAdapter(AgentConfig{RelayURL: server.URL})

	payload, err := adapter.Pull(context.Background(), "promoly", entities.DataTypeProfile,
		&entities.DecryptedCredential{PlatformID: "promoly", Secret: "relay-token"})
	require.NoError(t, err)
	assert.Equal(t, `{"stageName":"remote"}`, payload)
}

func TestRegistry_GetAndMissing(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewDirectAdapter(DirectConfig{BaseURL: "http://127.0.0.1:1"}))

	adapter, err := reg.Get(entities.ConnectionTypeAPI)
	require.NoError(t, err)
	assert.Equal(t, entities.ConnectionTypeAPI, adapter.ConnectionType())

	_, err = reg.Get(entities.ConnectionTypeManual)
	assert.Error(t, err)
}

func TestProbe(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	ctx := context.Background()
	assert.True(t, Probe(ctx, up.URL, time.Second))
	assert.False(t, Probe(ctx, down.URL, time.Second))
	assert.False(t, Probe(ctx, "http://127.0.0.1:1", 200*time.Millisecond))
}

func TestValidationErrorIsNotTransportError(t *testing.T) {
	err := error(&ValidationError{PlatformID: "gigdesk", Rejected: []RejectedItem{{ItemID: "x"}}})

	var trErr *TransportError
	assert.False(t, errors.As(err, &trErr))
	assert.NotErrorIs(t, err, ErrAuthRequired)
}
