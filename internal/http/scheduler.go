package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/stagesync/internal/scheduler"
)

type SchedulerController struct {
	sched *scheduler.SyncScheduler
}

func NewSchedulerController(sched *scheduler.SyncScheduler) *SchedulerController {
	return &SchedulerController{sched: sched}
}

// GetStatus reports whether scheduled syncing is active and its next run
// GET /api/scheduler/status
func (sc *SchedulerController) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running":  sc.sched.IsRunning(),
		"next_run": sc.sched.GetNextRunTime(),
	})
}

// RunNow triggers an immediate bulk sync in the background
// POST /api/scheduler/run
func (sc *SchedulerController) RunNow(c *gin.Context) {
	if err := sc.sched.RunNow(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
