package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/stagesync/internal/config"
	"github.com/mrlokans/stagesync/internal/credstore"
	"github.com/mrlokans/stagesync/internal/database"
	"github.com/mrlokans/stagesync/internal/database/audit"
	"github.com/mrlokans/stagesync/internal/database/history"
	"github.com/mrlokans/stagesync/internal/database/platforms"
	http_controllers "github.com/mrlokans/stagesync/internal/http"
	"github.com/mrlokans/stagesync/internal/oauthflow"
	"github.com/mrlokans/stagesync/internal/orchestrator"
	"github.com/mrlokans/stagesync/internal/profilestore"
	"github.com/mrlokans/stagesync/internal/registry"
	"github.com/mrlokans/stagesync/internal/scheduler"
	"github.com/mrlokans/stagesync/internal/state"
	"github.com/mrlokans/stagesync/internal/tasks"
	"github.com/mrlokans/stagesync/internal/transport"
)

// Services bundles the wired application components so that both the
// HTTP server and the CLI commands can share one construction path.
type Services struct {
	Database     *database.Database
	Registry     *registry.Registry
	Platforms    *platforms.Repository
	History      *history.Repository
	Audit        *audit.Repository
	Credentials  *credstore.Store
	Profiles     *profilestore.Store
	Orchestrator *orchestrator.Orchestrator
	OAuth        *oauthflow.Coordinator
}

// BuildServices wires the storage, transport and sync layers from config.
func BuildServices(cfg *config.Config) (*Services, error) {
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	reg := registry.New()
	if err := db.SeedPlatforms(reg); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed platform catalog: %w", err)
	}

	creds, err := credstore.New(db.DB, credstore.Config{
		EncryptionKey: cfg.Credentials.EncryptionKey,
		Passphrase:    cfg.Credentials.Passphrase,
		KeyFilePath:   cfg.Credentials.KeyFilePath,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	profiles := profilestore.New(db.DB)
	auditRepo := audit.NewRepository(db.DB)
	platformRepo := platforms.NewRepository(db.DB)
	historyRepo := history.NewRepository(db.DB)

	transports := transport.NewRegistry()
	transports.Register(transport.NewDirectAdapter(transport.DirectConfig{
		BaseURL: cfg.Sync.PlatformAPIURL,
		Timeout: cfg.Sync.TransportTimeout,
	}))
	transports.Register(transport.NewOAuthAPIAdapter(transport.OAuthAPIConfig{
		BaseURL: cfg.Sync.OAuthAPIURL,
		Timeout: cfg.Sync.TransportTimeout,
	}))
	transports.Register(transport.NewAgentAdapter(transport.AgentConfig{
		RelayURL: cfg.Sync.AgentRelayURL,
		Timeout:  cfg.Sync.TransportTimeout,
	}))

	orch := orchestrator.New(orchestrator.Options{
		Config: orchestrator.Config{
			ProbeURL:     cfg.Sync.ProbeURL,
			ProbeTimeout: cfg.Sync.ProbeTimeout,
		},
		Registry:    reg,
		Platforms:   platformRepo,
		History:     historyRepo,
		Credentials: creds,
		State:       state.NewManager(profiles),
		Transports:  transports,
		Audit:       auditRepo,
	})

	flows := buildOAuthCoordinator(cfg, auditRepo)

	return &Services{
		Database:     db,
		Registry:     reg,
		Platforms:    platformRepo,
		History:      historyRepo,
		Audit:        auditRepo,
		Credentials:  creds,
		Profiles:     profiles,
		Orchestrator: orch,
		OAuth:        flows,
	}, nil
}

// Close releases the database connection.
func (s *Services) Close() error {
	return s.Database.Close()
}

func buildOAuthCoordinator(cfg *config.Config, auditRepo *audit.Repository) *oauthflow.Coordinator {
	providers := make(map[string]oauthflow.ProviderConfig)
	if cfg.OAuth.StageBook.ClientID != "" {
		providers["stagebook"] = oauthflow.ProviderConfig{
			ClientID:     cfg.OAuth.StageBook.ClientID,
			ClientSecret: cfg.OAuth.StageBook.ClientSecret,
			AuthURL:      cfg.OAuth.StageBook.AuthURL,
			TokenURL:     cfg.OAuth.StageBook.TokenURL,
			Scopes:       []string{"profile.write", "availability.write", "media.write"},
		}
	}
	if cfg.OAuth.VenueWire.ClientID != "" {
		providers["venuewire"] = oauthflow.ProviderConfig{
			ClientID:     cfg.OAuth.VenueWire.ClientID,
			ClientSecret: cfg.OAuth.VenueWire.ClientSecret,
			AuthURL:      cfg.OAuth.VenueWire.AuthURL,
			TokenURL:     cfg.OAuth.VenueWire.TokenURL,
			Scopes:       []string{"profile.write", "availability.write"},
		}
	}

	exchanger := oauthflow.NewTokenExchanger(providers, cfg.Sync.TransportTimeout)
	flows := oauthflow.NewCoordinator(oauthflow.Config{
		RedirectBaseURL: cfg.OAuth.RedirectBaseURL,
		FlowTTL:         cfg.OAuth.FlowTTL,
	}, exchanger, auditRepo)

	for platformID, provider := range providers {
		flows.RegisterProvider(platformID, provider)
	}
	return flows
}

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting StageSync v%s", version)

	services, err := BuildServices(cfg)
	if err != nil {
		log.Fatalf("Failed to build services: %v", err)
	}
	defer func() {
		if err := services.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	if cfg.Sync.ProbeURL == "" {
		log.Printf("WARNING: SYNC_PROBE_URL is not set. Reachability probing is disabled; syncs assume the backing services are live.")
	}

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		// Register task queues
		taskClient.Register(
			tasks.NewBulkSyncQueue(services.Orchestrator),
			tasks.NewCleanupHistoryQueue(services.History, services.Audit),
		)

		// Start task workers in background
		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		// Prune aged history and audit rows once per boot
		if _, err := taskClient.Add(tasks.CleanupHistoryTask{
			RetentionDays: cfg.Audit.RetentionDays,
		}).Save(); err != nil {
			log.Printf("WARNING: Failed to queue history cleanup: %v", err)
		}
	}

	// Start the scheduled bulk sync if configured
	syncScheduler := scheduler.NewSyncScheduler(scheduler.Config{
		Enabled:  cfg.Sync.ScheduleEnabled,
		Schedule: cfg.Sync.Schedule,
	}, services.Orchestrator, services.Audit)

	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	if err := syncScheduler.Start(schedulerCtx); err != nil {
		log.Fatalf("Failed to start sync scheduler: %v", err)
	}

	// Build router configuration with all dependencies
	routerCfg := http_controllers.RouterConfig{
		Database:     services.Database,
		Registry:     services.Registry,
		Platforms:    services.Platforms,
		History:      services.History,
		Audit:        services.Audit,
		Orchestrator: services.Orchestrator,
		OAuth:        services.OAuth,
		TaskClient:   taskClient,
		Scheduler:    syncScheduler,
		Version:      version,
	}

	router := http_controllers.NewRouter(routerCfg)

	// Shutdown callback for graceful cleanup
	onShutdown := func(ctx context.Context) {
		schedulerCancel()
		syncScheduler.Stop()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
