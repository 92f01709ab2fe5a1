package config

import "time"

// Default values for configuration.
const (
	// API defaults
	DefaultAPIBaseURL = "https://api-prod.3sum.me/"
	DefaultAPITimeout = 30 * time.Second

	// Sync defaults
	DefaultSyncWindow           = 1 * time.Hour
	DefaultSyncRetries          = 0
	DefaultSyncRetryInitial     = 1 * time.Second
	DefaultSyncRetryMaxInterval = 30 * time.Second

	// Reconcile defaults
	DefaultFolderLimit    = 5
	DefaultIncludeChatIDs = true
	DefaultConcurrency    = 1

	// Messages defaults
	DefaultMessagePageSize = 4
	DefaultMaxMessages     = 12

	// Server defaults
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultCleanupInterval = 1 * time.Hour

	// Processing defaults
	DefaultTaskTimeout = 600 * time.Second
	DefaultCacheTTL    = 60 * time.Minute

	// Telegram API defaults
	DefaultSessionFile         = "tg.session"
	DefaultHealthCheckInterval = 30 * time.Second

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)
