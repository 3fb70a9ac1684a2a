package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

type LoadOptions struct {
	ConfigFile string
	EnvPrefix  string
	Defaults   *Config

	// EnvFiles are dotenv files loaded before the environment is read.
	// Missing files are ignored. Defaults to ".env".
	EnvFiles []string
}

func Load(opts LoadOptions) (*Config, error) {
	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return nil, err
	}

	v := viper.New()

	defaults := opts.Defaults
	if defaults == nil {
		defaults = Default()
	}
	setViperDefaults(v, defaults)

	if opts.EnvPrefix == "" {
		opts.EnvPrefix = "AETHER"
	}
	v.SetEnvPrefix(opts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("aether")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/aether")
		v.AddConfigPath("/etc/aether")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	expandEnvInConfig(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func LoadFromFile(path string) (*Config, error) {
	return Load(LoadOptions{ConfigFile: path})
}

func LoadWithDefaults() (*Config, error) {
	return Load(LoadOptions{})
}

// loadEnvFiles populates the process environment from dotenv files without
// overriding variables that are already set.
func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading env file %s: %w", f, err)
		}
	}
	return nil
}

func setViperDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", cfg.Server.IdleTimeout)
	v.SetDefault("server.max_body_size", cfg.Server.MaxBodySize)
	v.SetDefault("server.submit_rate_limit.max", cfg.Server.SubmitRateLimit.Max)
	v.SetDefault("server.submit_rate_limit.window", cfg.Server.SubmitRateLimit.Window)

	v.SetDefault("server.cors.enabled", cfg.Server.CORS.Enabled)
	v.SetDefault("server.cors.allowed_origins", cfg.Server.CORS.AllowedOrigins)
	v.SetDefault("server.cors.exposed_headers", cfg.Server.CORS.ExposedHeaders)
	// CORS methods and headers are hard-coded (see CORSConfig methods)
	v.SetDefault("server.cors.max_age", cfg.Server.CORS.MaxAge)

	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.wal_mode", cfg.Database.WALMode)
	v.SetDefault("database.busy_timeout", cfg.Database.BusyTimeout)
	v.SetDefault("database.max_open_conns", cfg.Database.MaxOpenConns)

	v.SetDefault("registry.driver", cfg.Registry.Driver)
	v.SetDefault("registry.dsn", cfg.Registry.DSN)
	v.SetDefault("registry.seed_dir", cfg.Registry.SeedDir)
	v.SetDefault("registry.watch", cfg.Registry.Watch)

	// Empty defaults still register the keys so AutomaticEnv can bind them.
	v.SetDefault("ledger.network", cfg.Ledger.Network)
	v.SetDefault("ledger.operator_id", cfg.Ledger.OperatorID)
	v.SetDefault("ledger.operator_key", cfg.Ledger.OperatorKey)
	v.SetDefault("ledger.job_topic_id", cfg.Ledger.JobTopicID)
	v.SetDefault("ledger.receipt_topic_id", cfg.Ledger.ReceiptTopicID)
	v.SetDefault("ledger.mirror_url", cfg.Ledger.MirrorURL)
	v.SetDefault("ledger.mirror_timeout", cfg.Ledger.MirrorTimeout)

	v.SetDefault("listener.enabled", cfg.Listener.Enabled)
	v.SetDefault("listener.source", cfg.Listener.Source)
	v.SetDefault("listener.start_time", cfg.Listener.StartTime)
	v.SetDefault("listener.workers", cfg.Listener.Workers)
	v.SetDefault("listener.queue_size", cfg.Listener.QueueSize)
	v.SetDefault("listener.poll_interval", cfg.Listener.PollInterval)

	v.SetDefault("dispatch.timeout", cfg.Dispatch.Timeout)

	v.SetDefault("results.backend", cfg.Results.Backend)
	v.SetDefault("results.ttl", cfg.Results.TTL)
	v.SetDefault("results.sweep_schedule", cfg.Results.SweepSchedule)
	v.SetDefault("results.redis.addr", cfg.Results.Redis.Addr)
	v.SetDefault("results.redis.password", cfg.Results.Redis.Password)
	v.SetDefault("results.redis.db", cfg.Results.Redis.DB)
	v.SetDefault("results.redis.prefix", cfg.Results.Redis.Prefix)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.caller", cfg.Logging.Caller)
}

func expandEnvInConfig(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envVar := val[2 : len(val)-1]
			if envVal := os.Getenv(envVar); envVal != "" {
				v.Set(key, envVal)
			}
		}
	}
}

func ConfigFilePath(customPath string) (string, error) {
	if customPath != "" {
		absPath, err := filepath.Abs(customPath)
		if err != nil {
			return "", fmt.Errorf("resolving config path: %w", err)
		}
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", absPath)
		}
		return absPath, nil
	}

	searchPaths := []string{
		"aether.yaml",
		"aether.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "aether", "aether.yaml"),
		"/etc/aether/aether.yaml",
	}

	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return filepath.Abs(p)
		}
	}

	return "", ErrConfigNotFound
}
