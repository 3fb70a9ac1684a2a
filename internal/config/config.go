// Package config provides configuration management for Aether.
package config

import (
	"strconv"
	"time"
)

// Config is the root configuration structure for Aether.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Registry RegistryConfig `mapstructure:"registry"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Listener ListenerConfig `mapstructure:"listener"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Results  ResultsConfig  `mapstructure:"results"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind the server to
	Host string `mapstructure:"host"`

	// Port to listen on
	Port int `mapstructure:"port"`

	// Enable CORS
	CORS CORSConfig `mapstructure:"cors"`

	// Request timeout
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// Maximum request body size in bytes
	MaxBodySize int64 `mapstructure:"max_body_size"`

	// Rate limit applied to job submission, per client address
	SubmitRateLimit RateLimitRule `mapstructure:"submit_rate_limit"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	// Enable CORS
	Enabled bool `mapstructure:"enabled"`

	// Allowed origins (use ["*"] for all)
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// Exposed headers
	ExposedHeaders []string `mapstructure:"exposed_headers"`

	// Max age for preflight cache
	MaxAge time.Duration `mapstructure:"max_age"`
}

// AllowedMethods returns the methods the API answers preflight requests with.
func (c CORSConfig) AllowedMethods() []string {
	return []string{"GET", "POST", "OPTIONS"}
}

// AllowedHeaders returns the request headers accepted from browsers.
func (c CORSConfig) AllowedHeaders() []string {
	return []string{"Accept", "Content-Type", "X-Request-ID"}
}

// RateLimitRule defines a token bucket: Max requests per Window, refilled continuously.
type RateLimitRule struct {
	// Maximum burst of requests
	Max int `mapstructure:"max"`

	// Time window over which Max requests are replenished
	Window time.Duration `mapstructure:"window"`
}

// DatabaseConfig holds SQLite settings. The database backs the function
// registry (when registry.driver is sqlite) and the local ledger topics.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string `mapstructure:"path"`

	// Enable WAL mode (recommended)
	WALMode bool `mapstructure:"wal_mode"`

	// Busy timeout
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`

	// Maximum open connections
	MaxOpenConns int `mapstructure:"max_open_conns"`
}

// RegistryConfig selects the function registry backend.
type RegistryConfig struct {
	// Driver is "sqlite" or "postgres"
	Driver string `mapstructure:"driver"`

	// DSN for the postgres driver
	DSN string `mapstructure:"dsn"`

	// Directory of YAML descriptor files loaded at startup (optional)
	SeedDir string `mapstructure:"seed_dir"`

	// Re-seed when files in SeedDir change
	Watch bool `mapstructure:"watch"`
}

// LedgerConfig holds the ledger network, operator and topic settings.
type LedgerConfig struct {
	// Network is testnet, mainnet, previewnet or local
	Network string `mapstructure:"network"`

	// Operator account used to sign topic submissions, e.g. 0.0.12345
	OperatorID string `mapstructure:"operator_id"`

	// Operator ED25519 private key
	OperatorKey string `mapstructure:"operator_key"`

	// Topic that carries job messages
	JobTopicID string `mapstructure:"job_topic_id"`

	// Topic that receives receipts
	ReceiptTopicID string `mapstructure:"receipt_topic_id"`

	// Mirror node REST base URL, e.g. https://testnet.mirrornode.hedera.com
	MirrorURL string `mapstructure:"mirror_url"`

	// Timeout for mirror REST calls
	MirrorTimeout time.Duration `mapstructure:"mirror_timeout"`
}

// ListenerConfig controls the job topic subscription.
type ListenerConfig struct {
	// Enable the job listener
	Enabled bool `mapstructure:"enabled"`

	// Source is "sdk" (gRPC mirror subscription) or "mirror" (REST polling)
	Source string `mapstructure:"source"`

	// Consensus time to start consuming from (RFC3339, empty for the beginning)
	StartTime string `mapstructure:"start_time"`

	// Number of concurrent job handlers
	Workers int `mapstructure:"workers"`

	// Buffered messages waiting for a worker
	QueueSize int `mapstructure:"queue_size"`

	// Poll interval for the REST and local sources
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// DispatchConfig holds execution settings.
type DispatchConfig struct {
	// Timeout for remote function calls
	Timeout time.Duration `mapstructure:"timeout"`
}

// ResultsConfig selects the result store backend.
type ResultsConfig struct {
	// Backend is "memory" or "redis"
	Backend string `mapstructure:"backend"`

	// How long a result stays pollable after it is recorded
	TTL time.Duration `mapstructure:"ttl"`

	// Cron spec for the memory sweeper
	SweepSchedule string `mapstructure:"sweep_schedule"`

	// Redis settings for the redis backend
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `mapstructure:"level"`

	// Log format (json, console)
	Format string `mapstructure:"format"`

	// Include caller info
	Caller bool `mapstructure:"caller"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// ListenerStart parses StartTime. An empty value means the beginning of the topic.
func (l *ListenerConfig) ListenerStart() (time.Time, error) {
	if l.StartTime == "" {
		return time.Unix(0, 0).UTC(), nil
	}
	return time.Parse(time.RFC3339Nano, l.StartTime)
}
