package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Create controllers with appropriate dependencies
	health := NewHealthController(cfg.Database, cfg.Platforms, cfg.Orchestrator, cfg.Version)
	platformsController := NewPlatformsController(cfg.Registry, cfg.Platforms, cfg.Orchestrator)
	syncController := NewSyncController(cfg.Orchestrator, cfg.History, cfg.TaskClient)
	auditController := NewAuditController(cfg.Audit)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Platform catalog and connection endpoints
	router.GET("/api/platforms", platformsController.ListPlatforms)
	router.GET("/api/platforms/:id", platformsController.GetPlatform)
	router.POST("/api/platforms/:id/connect", platformsController.Connect)
	router.POST("/api/platforms/:id/disconnect", platformsController.Disconnect)
	router.POST("/api/platforms/:id/test", platformsController.TestConnection)
	router.PATCH("/api/platforms/:id/settings", platformsController.UpdateSettings)

	// Sync endpoints
	router.POST("/api/platforms/:id/sync", syncController.SyncPlatform)
	router.POST("/api/platforms/:id/pull", syncController.PullPlatform)
	router.POST("/api/sync/bulk", syncController.BulkSync)
	router.GET("/api/sync/history", syncController.GetHistory)
	router.GET("/api/sync/mode", syncController.GetMode)

	// OAuth flow endpoints
	if cfg.OAuth != nil {
		oauthController := NewOAuthController(cfg.OAuth, cfg.Orchestrator)
		router.POST("/api/oauth/:id/init", oauthController.InitFlow)
		router.GET("/api/oauth/:id/callback", oauthController.Callback)
		router.GET("/api/oauth/:id/status", oauthController.FlowStatus)
	}

	// Audit log endpoint
	router.GET("/api/audit", auditController.GetAuditEvents)

	// Scheduler control endpoints
	if cfg.Scheduler != nil {
		schedulerController := NewSchedulerController(cfg.Scheduler)
		router.GET("/api/scheduler/status", schedulerController.GetStatus)
		router.POST("/api/scheduler/run", schedulerController.RunNow)
	}

	return router
}
