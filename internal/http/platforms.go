package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/stagesync/internal/database/platforms"
	"github.com/mrlokans/stagesync/internal/entities"
	"github.com/mrlokans/stagesync/internal/orchestrator"
	"github.com/mrlokans/stagesync/internal/registry"
)

// PlatformView merges the static capability catalog with the stored
// connection state for one platform.
type PlatformView struct {
	ID                 string                     `json:"id"`
	Name               string                     `json:"name"`
	ConnectionType     entities.ConnectionType    `json:"connection_type"`
	SupportedDataTypes []entities.DataType        `json:"supported_data_types"`
	Regions            []string                   `json:"regions"`
	Connected          bool                       `json:"connected"`
	SyncSettings       map[entities.DataType]bool `json:"sync_settings"`
	LastSync           *time.Time                 `json:"last_sync,omitempty"`
	LastTested         *time.Time                 `json:"last_tested,omitempty"`
	TestResult         entities.TestOutcome       `json:"test_result,omitempty"`
	LastError          string                     `json:"last_error,omitempty"`
}

type PlatformsController struct {
	reg  *registry.Registry
	repo *platforms.Repository
	orch *orchestrator.Orchestrator
}

func NewPlatformsController(reg *registry.Registry, repo *platforms.Repository, orch *orchestrator.Orchestrator) *PlatformsController {
	return &PlatformsController{
		reg:  reg,
		repo: repo,
		orch: orch,
	}
}

func buildView(caps registry.Capabilities, platform *entities.Platform) PlatformView {
	view := PlatformView{
		ID:                 caps.ID,
		Name:               caps.Name,
		ConnectionType:     caps.ConnectionType,
		SupportedDataTypes: caps.SupportedDataTypes,
		Regions:            caps.Regions,
	}
	if platform != nil {
		view.Connected = platform.Connected
		view.SyncSettings = platform.SettingsMap()
		view.LastSync = platform.LastSync
		view.LastTested = platform.LastTested
		view.TestResult = platform.TestResult
		view.LastError = platform.LastError
	}
	return view
}

// ListPlatforms returns every platform in the catalog with its stored state
// GET /api/platforms
func (pc *PlatformsController) ListPlatforms(c *gin.Context) {
	stored, err := pc.repo.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load platforms"})
		return
	}

	byID := make(map[string]*entities.Platform, len(stored))
	for i := range stored {
		byID[stored[i].ID] = &stored[i]
	}

	views := make([]PlatformView, 0)
	for _, caps := range pc.reg.All() {
		views = append(views, buildView(caps, byID[caps.ID]))
	}

	c.JSON(http.StatusOK, gin.H{"platforms": views})
}

// GetPlatform returns one platform's catalog entry and stored state
// GET /api/platforms/:id
func (pc *PlatformsController) GetPlatform(c *gin.Context) {
	platformID := c.Param("id")

	caps, err := pc.reg.CapabilitiesOf(platformID)
	if err != nil {
		respondError(c, err)
		return
	}

	platform, err := pc.repo.Get(platformID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load platform"})
		return
	}

	c.JSON(http.StatusOK, buildView(caps, platform))
}

type connectRequest struct {
	Secret    string     `json:"secret" binding:"required"`
	TokenType string     `json:"token_type"`
	ExpiresAt *time.Time `json:"expires_at"`
	Scope     string     `json:"scope"`
}

// Connect stores a credential and establishes the platform connection
// POST /api/platforms/:id/connect
func (pc *PlatformsController) Connect(c *gin.Context) {
	platformID := c.Param("id")

	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "secret is required"})
		return
	}

	cred := &entities.DecryptedCredential{
		PlatformID: platformID,
		Secret:     req.Secret,
		TokenType:  req.TokenType,
		ExpiresAt:  req.ExpiresAt,
		Scope:      req.Scope,
	}

	if err := pc.orch.Connect(c.Request.Context(), platformID, cred); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "connected", "platform": platformID})
}

// Disconnect revokes the credential and marks the platform disconnected
// POST /api/platforms/:id/disconnect
func (pc *PlatformsController) Disconnect(c *gin.Context) {
	platformID := c.Param("id")

	if err := pc.orch.Disconnect(c.Request.Context(), platformID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "disconnected", "platform": platformID})
}

// TestConnection pings the platform and records the outcome
// POST /api/platforms/:id/test
func (pc *PlatformsController) TestConnection(c *gin.Context) {
	platformID := c.Param("id")

	outcome, err := pc.orch.TestConnection(c.Request.Context(), platformID)
	if err != nil && outcome == "" {
		respondError(c, err)
		return
	}

	resp := gin.H{"platform": platformID, "result": outcome}
	if err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

type settingsRequest struct {
	Settings map[entities.DataType]bool `json:"settings" binding:"required"`
}

// UpdateSettings toggles per-data-type syncing for a platform
// PATCH /api/platforms/:id/settings
func (pc *PlatformsController) UpdateSettings(c *gin.Context) {
	platformID := c.Param("id")

	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "settings object is required"})
		return
	}

	if err := pc.orch.UpdateSettings(platformID, req.Settings); err != nil {
		respondError(c, err)
		return
	}

	platform, err := pc.repo.Get(platformID)
	if err != nil || platform == nil {
		c.JSON(http.StatusOK, gin.H{"status": "updated", "platform": platformID})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "updated",
		"platform":      platformID,
		"sync_settings": platform.SettingsMap(),
	})
}
