// Package config loads service settings from the environment.
//
// Every setting has a default, so a bare checkout runs against a local SQLite
// file. Values are validated on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Ingest   IngestConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`

	// ReadTimeout bounds reading a request, including the uploaded file.
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"0s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"5m"`

	// APIKeys guard the ingestion endpoint when set (comma-separated).
	APIKeys []string `env:"SERVER_API_KEYS" envSeparator:","`
}

// DatabaseConfig holds store settings.
type DatabaseConfig struct {
	// URL selects the backend: postgres:// or postgresql:// for PostgreSQL,
	// sqlite:// or a plain path for SQLite.
	URL string `env:"DATABASE_URL" envDefault:"sqlite://data/processed/etl_pipeline.db"`

	// Pool settings, PostgreSQL only.
	MaxConns        int           `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" envDefault:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
}

// IngestConfig holds ingestion settings.
type IngestConfig struct {
	// ConfigDir holds the clients/, mappings/ and schemas/ directories.
	ConfigDir string `env:"INGEST_CONFIG_DIR" envDefault:"config"`

	// Workers is the number of records transformed and validated in parallel.
	Workers int `env:"INGEST_WORKERS" envDefault:"1"`

	// MaxFileSize is the largest accepted input in bytes (default: 100MB)
	MaxFileSize int64 `env:"INGEST_MAX_FILE_SIZE" envDefault:"104857600"`

	MaxConcurrent int           `env:"INGEST_MAX_CONCURRENT" envDefault:"5"`
	MaxWaitTime   time.Duration `env:"INGEST_MAX_WAIT_TIME" envDefault:"30s"`
	Timeout       time.Duration `env:"INGEST_TIMEOUT" envDefault:"10m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Format is the log format: text or json
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
