// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Tree     TreeConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Archive  ArchiveConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 5m, uploads are large)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"5m"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// MigrateOnStart applies the embedded schema at startup (default: true)
	MigrateOnStart bool `env:"DB_MIGRATE_ON_START" default:"true"`
}

// ImportConfig holds GEDCOM file import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed upload size in bytes (default: 512MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"536870912"`

	// MaxConcurrent is the maximum number of parallel imports (default: 3)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"3"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single import (default: 30m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"30m"`

	// ProgressInterval is how many records pass between progress events (default: 100)
	ProgressInterval int `env:"IMPORT_PROGRESS_INTERVAL" default:"100"`

	// ResultRetention is how long finished imports stay queryable in memory (default: 5m)
	ResultRetention time.Duration `env:"IMPORT_RESULT_RETENTION" default:"5m"`

	// ChangeTimeout bounds accepting or rejecting pending changes (default: 2m)
	ChangeTimeout time.Duration `env:"IMPORT_CHANGE_TIMEOUT" default:"2m"`
}

// TreeConfig holds the defaults for per-tree settings that a tree has not
// overridden in gedcom_setting.
type TreeConfig struct {
	// GenerateUIDs adds a _UID to records that lack one (default: false)
	GenerateUIDs bool `env:"TREE_GENERATE_UIDS" default:"false"`

	// UseRIN stores the RIN value instead of the xref in individuals (default: false)
	UseRIN bool `env:"TREE_USE_RIN" default:"false"`

	// KeepMedia preserves media objects and links across re-imports (default: false)
	KeepMedia bool `env:"TREE_KEEP_MEDIA" default:"false"`

	// WordWrappedNotes inserts a space before CONC text (default: false)
	WordWrappedNotes bool `env:"TREE_WORD_WRAPPED_NOTES" default:"false"`

	// MediaPath is stripped from the start of FILE values
	MediaPath string `env:"TREE_MEDIA_PATH"`

	// MediaIDPrefix starts the xref of hoisted media objects (default: M)
	MediaIDPrefix string `env:"TREE_MEDIA_ID_PREFIX" default:"M"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit is requests per minute for import endpoints (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ArchiveConfig holds audit log archiving settings.
type ArchiveConfig struct {
	// HotRetentionDays is days to keep entries in the hot table (default: 90)
	HotRetentionDays int `env:"ARCHIVE_HOT_RETENTION_DAYS" default:"90"`

	// ArchiveRetentionYears is years to keep archived entries (default: 7)
	ArchiveRetentionYears int `env:"ARCHIVE_RETENTION_YEARS" default:"7"`

	// BatchSize is rows to process per archive batch (default: 5000)
	BatchSize int `env:"ARCHIVE_BATCH_SIZE" default:"5000"`

	// CheckInterval is how often to run the archive job (default: 24h)
	CheckInterval time.Duration `env:"ARCHIVE_CHECK_INTERVAL" default:"24h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
