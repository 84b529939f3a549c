package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/stagesync/internal/oauthflow"
	"github.com/mrlokans/stagesync/internal/orchestrator"
)

type OAuthController struct {
	flows *oauthflow.Coordinator
	orch  *orchestrator.Orchestrator
}

func NewOAuthController(flows *oauthflow.Coordinator, orch *orchestrator.Orchestrator) *OAuthController {
	return &OAuthController{
		flows: flows,
		orch:  orch,
	}
}

// InitFlow starts an authorization flow and returns the provider URL to
// redirect the user to
// POST /api/oauth/:id/init
func (oc *OAuthController) InitFlow(c *gin.Context) {
	platformID := c.Param("id")

	initiation, err := oc.flows.Initiate(platformID)
	if err != nil {
		if errors.Is(err, oauthflow.ErrUnknownProvider) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, initiation)
}

// Callback completes the flow: it verifies the state token, exchanges the
// code, and connects the platform with the received credential.
// GET /api/oauth/:id/callback
func (oc *OAuthController) Callback(c *gin.Context) {
	platformID := c.Param("id")
	code := c.Query("code")
	state := c.Query("state")

	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and state are required"})
		return
	}

	cred, err := oc.flows.Complete(c.Request.Context(), platformID, code, state)
	if err != nil {
		switch {
		case errors.Is(err, oauthflow.ErrStateMismatch):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, oauthflow.ErrFlowExpired):
			c.JSON(http.StatusGone, gin.H{"error": err.Error()})
		case errors.Is(err, oauthflow.ErrNoPendingFlow):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, oauthflow.ErrUnknownProvider):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}

	if err := oc.orch.Connect(c.Request.Context(), platformID, cred); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "connected", "platform": platformID})
}

// FlowStatus reports where the platform's authorization flow stands
// GET /api/oauth/:id/status
func (oc *OAuthController) FlowStatus(c *gin.Context) {
	platformID := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"platform": platformID,
		"status":   oc.flows.StatusOf(platformID),
	})
}
