package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/stagesync/internal/database/history"
	"github.com/mrlokans/stagesync/internal/entities"
	"github.com/mrlokans/stagesync/internal/orchestrator"
	"github.com/mrlokans/stagesync/internal/tasks"
)

type SyncController struct {
	orch       *orchestrator.Orchestrator
	history    *history.Repository
	taskClient *tasks.Client
}

func NewSyncController(orch *orchestrator.Orchestrator, historyRepo *history.Repository, taskClient *tasks.Client) *SyncController {
	return &SyncController{
		orch:       orch,
		history:    historyRepo,
		taskClient: taskClient,
	}
}

type syncRequest struct {
	DataTypes []string          `json:"data_types"`
	Updates   map[string]string `json:"updates"`
}

// SyncPlatform pushes data to one platform and returns the per-data-type
// outcome. Partial acceptance is a 200 with rejected items listed.
// POST /api/platforms/:id/sync
func (sc *SyncController) SyncPlatform(c *gin.Context) {
	platformID := c.Param("id")

	var body syncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	req := orchestrator.SyncRequest{PlatformID: platformID}
	for _, dt := range body.DataTypes {
		req.DataTypes = append(req.DataTypes, entities.DataType(dt))
	}
	if len(body.Updates) > 0 {
		req.Updates = make(map[entities.DataType]string, len(body.Updates))
		for dt, payload := range body.Updates {
			req.Updates[entities.DataType(dt)] = payload
		}
	}

	report, err := sc.orch.SyncOne(c.Request.Context(), req)
	if err != nil && report == nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"report": report}
	if err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

type pullRequest struct {
	DataTypes []string `json:"data_types"`
}

// PullPlatform fetches the platform's copy of the requested data types
// and applies it as the new local state.
// POST /api/platforms/:id/pull
func (sc *SyncController) PullPlatform(c *gin.Context) {
	platformID := c.Param("id")

	var body pullRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	req := orchestrator.PullRequest{PlatformID: platformID}
	for _, dt := range body.DataTypes {
		req.DataTypes = append(req.DataTypes, entities.DataType(dt))
	}

	report, err := sc.orch.PullOne(c.Request.Context(), req)
	if err != nil && report == nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"report": report}
	if err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

type bulkSyncRequest struct {
	PlatformIDs []string `json:"platform_ids"`
	DataTypes   []string `json:"data_types"`
	// Background enqueues the sync instead of running it inline
	Background bool `json:"background"`
}

// BulkSync pushes to many platforms at once. With "background": true the
// work is queued and a task ID returned; otherwise the result is inline.
// POST /api/sync/bulk
func (sc *SyncController) BulkSync(c *gin.Context) {
	var body bulkSyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	if body.Background {
		if sc.taskClient == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "background tasks are not enabled"})
			return
		}
		task := tasks.BulkSyncTask{
			PlatformIDs: body.PlatformIDs,
			DataTypes:   body.DataTypes,
		}
		ids, err := sc.taskClient.Add(task).Save()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue bulk sync"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "task_ids": ids})
		return
	}

	dataTypes := make([]entities.DataType, 0, len(body.DataTypes))
	for _, dt := range body.DataTypes {
		dataTypes = append(dataTypes, entities.DataType(dt))
	}

	result, err := sc.orch.SyncMany(c.Request.Context(), body.PlatformIDs, dataTypes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetHistory returns recent sync records, newest first
// GET /api/sync/history
func (sc *SyncController) GetHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}
	platformID := c.Query("platform")

	records, err := sc.history.Recent(limit, platformID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load sync history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
}

// GetMode reports whether syncing runs live or in local fallback
// GET /api/sync/mode
func (sc *SyncController) GetMode(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"mode": sc.orch.Mode(c.Request.Context())})
}
