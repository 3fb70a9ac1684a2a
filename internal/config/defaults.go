package config

import "time"

// Default configuration values.
const (
	// Server defaults.
	DefaultHost         = "localhost"
	DefaultPort         = 5000
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 120 * time.Second
	DefaultMaxBodySize  = 1024 * 1024 // 1MB

	// Database defaults.
	DefaultDBPath       = "aether.db"
	DefaultBusyTimeout  = 5 * time.Second
	DefaultMaxOpenConns = 1 // SQLite works best with single writer

	// Ledger defaults.
	DefaultNetwork       = "testnet"
	DefaultMirrorURL     = "https://testnet.mirrornode.hedera.com"
	DefaultMirrorTimeout = 10 * time.Second

	// Listener defaults.
	DefaultListenerSource = "sdk"
	DefaultWorkers        = 4
	DefaultQueueSize      = 64
	DefaultPollInterval   = 2 * time.Second

	// Dispatch defaults.
	DefaultDispatchTimeout = 15 * time.Second

	// Results defaults.
	DefaultResultsBackend = "memory"
	DefaultResultTTL      = 24 * time.Hour
	DefaultSweepSchedule  = "@every 1m"
	DefaultRedisPrefix    = "aether:result:"

	// Logging defaults.
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
			MaxBodySize:  DefaultMaxBodySize,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
				ExposedHeaders: []string{"X-Request-ID"},
				MaxAge:         12 * time.Hour,
			},
			SubmitRateLimit: RateLimitRule{
				Max:    30,
				Window: time.Minute,
			},
		},
		Database: DatabaseConfig{
			Path:         DefaultDBPath,
			WALMode:      true,
			BusyTimeout:  DefaultBusyTimeout,
			MaxOpenConns: DefaultMaxOpenConns,
		},
		Registry: RegistryConfig{
			Driver: "sqlite",
			Watch:  false,
		},
		Ledger: LedgerConfig{
			Network:       DefaultNetwork,
			MirrorURL:     DefaultMirrorURL,
			MirrorTimeout: DefaultMirrorTimeout,
		},
		Listener: ListenerConfig{
			Enabled:      true,
			Source:       DefaultListenerSource,
			Workers:      DefaultWorkers,
			QueueSize:    DefaultQueueSize,
			PollInterval: DefaultPollInterval,
		},
		Dispatch: DispatchConfig{
			Timeout: DefaultDispatchTimeout,
		},
		Results: ResultsConfig{
			Backend:       DefaultResultsBackend,
			TTL:           DefaultResultTTL,
			SweepSchedule: DefaultSweepSchedule,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: DefaultRedisPrefix,
			},
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
