package http

import (
	"github.com/mrlokans/stagesync/internal/database"
	"github.com/mrlokans/stagesync/internal/database/audit"
	"github.com/mrlokans/stagesync/internal/database/history"
	"github.com/mrlokans/stagesync/internal/database/platforms"
	"github.com/mrlokans/stagesync/internal/oauthflow"
	"github.com/mrlokans/stagesync/internal/orchestrator"
	"github.com/mrlokans/stagesync/internal/registry"
	"github.com/mrlokans/stagesync/internal/scheduler"
	"github.com/mrlokans/stagesync/internal/tasks"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router. This replaces a long parameter list
// in NewRouter for better maintainability.
type RouterConfig struct {
	// Core dependencies
	Database     *database.Database
	Registry     *registry.Registry
	Platforms    *platforms.Repository
	History      *history.Repository
	Audit        *audit.Repository
	Orchestrator *orchestrator.Orchestrator

	// OAuth flow coordination (optional)
	OAuth *oauthflow.Coordinator

	// Task queue client (optional); bulk syncs run inline when absent
	TaskClient *tasks.Client

	// Scheduled sync control (optional)
	Scheduler *scheduler.SyncScheduler

	// Application info
	Version string
}
