// Package config provides centralized configuration management for silverload.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Pipeline PipelineConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds settings for the HTTP trigger server.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// Schema is the schema silver tables are created in (default: public)
	Schema string `env:"DB_SCHEMA" default:"public"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// MigrationsTable records applied ledger migrations (default: schema_migrations)
	MigrationsTable string `env:"DB_MIGRATIONS_TABLE" default:"schema_migrations"`
}

// PipelineConfig holds bronze and silver processing settings.
type PipelineConfig struct {
	// SnapshotDir is the bronze root holding one directory per batch (required)
	SnapshotDir string `env:"SNAPSHOT_DIR" envAlt:"BRONZE_DIR" required:"true"`

	// RawDir is the landing area watched for new workbooks (default: ./raw)
	RawDir string `env:"RAW_DIR" default:"./raw"`

	// LoadBatchSize is the number of rows per INSERT statement (default: 1000)
	LoadBatchSize int `env:"LOAD_BATCH_SIZE" default:"1000"`

	// RunTimeout bounds a single triggered run (default: 10m)
	RunTimeout time.Duration `env:"RUN_TIMEOUT" default:"10m"`

	// WatchInterval is how often the landing area is polled (default: 5s)
	WatchInterval time.Duration `env:"WATCH_INTERVAL" default:"5s"`

	// ParquetBatchRows is the row group size used when writing parquet (default: 4096)
	ParquetBatchRows int `env:"PARQUET_BATCH_ROWS" default:"4096"`
}

// SecurityConfig holds settings for the trigger API.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
