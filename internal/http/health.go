package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/stagesync/internal/database"
	"github.com/mrlokans/stagesync/internal/database/platforms"
	"github.com/mrlokans/stagesync/internal/entities"
	"github.com/mrlokans/stagesync/internal/orchestrator"
)

type HealthResponse struct {
	Status   string            `json:"status"`
	Time     string            `json:"time"`
	Version  string            `json:"version,omitempty"`
	SyncMode entities.SyncMode `json:"sync_mode,omitempty"`
	Checks   map[string]string `json:"checks"`
}

type HealthController struct {
	db        *database.Database
	platforms *platforms.Repository
	orch      *orchestrator.Orchestrator
	version   string
}

func NewHealthController(db *database.Database, repo *platforms.Repository, orch *orchestrator.Orchestrator, version string) *HealthController {
	return &HealthController{
		db:        db,
		platforms: repo,
		orch:      orch,
		version:   version,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	// Check database connectivity
	if h.db != nil {
		sqlDB, err := h.db.DB.DB()
		if err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else if err := sqlDB.Ping(); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not configured"
	}

	// Summarise the platform connections this instance manages
	if h.platforms != nil {
		if all, err := h.platforms.List(); err != nil {
			checks["platforms"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			connected := 0
			for _, platform := range all {
				if platform.Connected {
					connected++
				}
			}
			checks["platforms"] = fmt.Sprintf("%d/%d connected", connected, len(all))
		}
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}
	if h.orch != nil {
		health.SyncMode = h.orch.Mode(c.Request.Context())
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
