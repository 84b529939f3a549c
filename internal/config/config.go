package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Sync
		OAuth
		Credentials
		Tasks
		Audit
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Sync struct {
		// TransportTimeout bounds every platform HTTP call
		TransportTimeout time.Duration

		// ProbeURL is the backing service health endpoint probed once per
		// session to decide live vs fallback mode; empty skips the probe
		ProbeURL     string
		ProbeTimeout time.Duration

		// Base URLs per connection class
		PlatformAPIURL string
		OAuthAPIURL    string
		AgentRelayURL  string

		// Scheduled bulk sync
		ScheduleEnabled bool
		Schedule        string // Cron format: "0 */6 * * *" = every 6 hours
	}
	OAuth struct {
		FlowTTL         time.Duration
		RedirectBaseURL string
		StageBook       OAuthClient
		VenueWire       OAuthClient
	}
	OAuthClient struct {
		ClientID     string
		ClientSecret string
		AuthURL      string
		TokenURL     string
	}
	Credentials struct {
		EncryptionKey string // base64-encoded 32-byte key
		Passphrase    string // scrypt-derived key when no raw key is set
		KeyFilePath   string
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Audit struct {
		RetentionDays int // Days to keep history and audit events (default: 90)
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Sync defaults
	v.SetDefault("sync_transport_timeout", "30s")
	v.SetDefault("sync_probe_url", "")
	v.SetDefault("sync_probe_timeout", "5s")
	v.SetDefault("platform_api_url", "")
	v.SetDefault("oauth_api_url", "")
	v.SetDefault("agent_relay_url", "")
	v.SetDefault("sync_schedule_enabled", false)
	v.SetDefault("sync_schedule", "0 */6 * * *") // Every 6 hours

	// OAuth defaults
	v.SetDefault("oauth_flow_ttl", "10m")
	v.SetDefault("oauth_redirect_base_url", "http://localhost:8188")
	v.SetDefault("stagebook_auth_url", "https://auth.stagebook.com/oauth/authorize")
	v.SetDefault("stagebook_token_url", "https://auth.stagebook.com/oauth/token")
	v.SetDefault("venuewire_auth_url", "https://id.venuewire.eu/authorize")
	v.SetDefault("venuewire_token_url", "https://id.venuewire.eu/token")

	// Audit defaults
	v.SetDefault("audit_retention_days", 90)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Sync: Sync{
			TransportTimeout: v.GetDuration("SYNC_TRANSPORT_TIMEOUT"),
			ProbeURL:         v.GetString("SYNC_PROBE_URL"),
			ProbeTimeout:     v.GetDuration("SYNC_PROBE_TIMEOUT"),
			PlatformAPIURL:   v.GetString("PLATFORM_API_URL"),
			OAuthAPIURL:      v.GetString("OAUTH_API_URL"),
			AgentRelayURL:    v.GetString("AGENT_RELAY_URL"),
			ScheduleEnabled:  v.GetBool("SYNC_SCHEDULE_ENABLED"),
			Schedule:         v.GetString("SYNC_SCHEDULE"),
		},
		OAuth: OAuth{
			FlowTTL:         v.GetDuration("OAUTH_FLOW_TTL"),
			RedirectBaseURL: v.GetString("OAUTH_REDIRECT_BASE_URL"),
			StageBook: OAuthClient{
				ClientID:     v.GetString("STAGEBOOK_CLIENT_ID"),
				ClientSecret: v.GetString("STAGEBOOK_CLIENT_SECRET"),
				AuthURL:      v.GetString("STAGEBOOK_AUTH_URL"),
				TokenURL:     v.GetString("STAGEBOOK_TOKEN_URL"),
			},
			VenueWire: OAuthClient{
				ClientID:     v.GetString("VENUEWIRE_CLIENT_ID"),
				ClientSecret: v.GetString("VENUEWIRE_CLIENT_SECRET"),
				AuthURL:      v.GetString("VENUEWIRE_AUTH_URL"),
				TokenURL:     v.GetString("VENUEWIRE_TOKEN_URL"),
			},
		},
		Credentials: Credentials{
			EncryptionKey: v.GetString("CREDENTIAL_ENCRYPTION_KEY"),
			Passphrase:    v.GetString("CREDENTIAL_PASSPHRASE"),
			KeyFilePath:   v.GetString("CREDENTIAL_KEY_FILE"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Audit: Audit{
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
	}
}
