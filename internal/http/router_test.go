package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/stagesync/internal/credstore"
	"github.com/mrlokans/stagesync/internal/crypto"
	"github.com/mrlokans/stagesync/internal/database"
	"github.com/mrlokans/stagesync/internal/database/audit"
	"github.com/mrlokans/stagesync/internal/database/history"
	"github.com/mrlokans/stagesync/internal/database/platforms"
	"github.com/mrlokans/stagesync/internal/oauthflow"
	"github.com/mrlokans/stagesync/internal/orchestrator"
	"github.com/mrlokans/stagesync/internal/profilestore"
	"github.com/mrlokans/stagesync/internal/registry"
	"github.com/mrlokans/stagesync/internal/state"
	"github.com/mrlokans/stagesync/internal/transport"
)

type apiEnv struct {
	router    *gin.Engine
	orch      *orchestrator.Orchestrator
	platforms *platforms.Repository
	history   *history.Repository
	profiles  *profilestore.Store
	flows     *oauthflow.Coordinator
	serverURL string
}

// acceptAllPlatform stubs a platform API that accepts every pushed item.
func acceptAllPlatform() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || strings.HasSuffix(r.URL.Path, "/handshake") {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var arr []struct {
			ID string `json:"id"`
		}
		accepted := []string{"payload"}
		if err := json.Unmarshal(body, &arr); err == nil && len(arr) > 0 {
			accepted = accepted[:0]
			for _, item := range arr {
				accepted = append(accepted, item.ID)
			}
		}
		json.NewEncoder(w).Encode(transport.Result{Accepted: accepted})
	}
}

func setupAPI(t *testing.T, handler http.Handler, exchanger oauthflow.Exchanger) (*apiEnv, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := "./test_http_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"

	db, err := database.NewDatabase(dbPath + "?_busy_timeout=5000")
	require.NoError(t, err)

	reg := registry.New()
	require.NoError(t, db.SeedPlatforms(reg))

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	creds, err := credstore.New(db.DB, credstore.Config{EncryptionKey: key})
	require.NoError(t, err)

	profiles := profilestore.New(db.DB)
	auditRepo := audit.NewRepository(db.DB)

	server := httptest.NewServer(handler)

	transports := transport.NewRegistry()
	transports.Register(transport.NewDirectAdapter(transport.DirectConfig{BaseURL: server.URL, Timeout: 2 * time.Second}))
	transports.Register(transport.NewOAuthAPIAdapter(transport.OAuthAPIConfig{BaseURL: server.URL, Timeout: 2 * time.Second}))
	transports.Register(transport.NewAgentAdapter(transport.AgentConfig{RelayURL: server.URL, Timeout: 2 * time.Second}))

	e := &apiEnv{
		platforms: platforms.NewRepository(db.DB),
		history:   history.NewRepository(db.DB),
		profiles:  profiles,
		serverURL: server.URL,
	}
	e.orch = orchestrator.New(orchestrator.Options{
		Config:      orchestrator.Config{ProbeURL: server.URL, ProbeTimeout: 500 * time.Millisecond},
		Registry:    reg,
		Platforms:   e.platforms,
		History:     e.history,
		Credentials: creds,
		State:       state.NewManager(profiles),
		Transports:  transports,
		Audit:       auditRepo,
	})

	e.flows = oauthflow.NewCoordinator(oauthflow.Config{
		RedirectBaseURL: "http://localhost:8188",
		FlowTTL:         time.Minute,
	}, exchanger, auditRepo)
	e.flows.RegisterProvider("stagebook", oauthflow.ProviderConfig{
		ClientID: "client-id",
		AuthURL:  server.URL + "/oauth/authorize",
		TokenURL: server.URL + "/oauth/token",
		Scopes:   []string{"profile.write"},
	})

	e.router = NewRouter(RouterConfig{
		Database:     db,
		Registry:     reg,
		Platforms:    e.platforms,
		History:      e.history,
		Audit:        auditRepo,
		Orchestrator: e.orch,
		OAuth:        e.flows,
		Version:      "test",
	})

	cleanup := func() {
		server.Close()
		db.Close()
		os.Remove(dbPath)
	}
	return e, cleanup
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
