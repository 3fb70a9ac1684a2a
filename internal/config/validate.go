package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}

var entityIDPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

func Validate(cfg *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateDatabase(&cfg.Database)...)
	errs = append(errs, validateRegistry(&cfg.Registry)...)
	errs = append(errs, validateLedger(&cfg.Ledger)...)
	errs = append(errs, validateListener(&cfg.Listener)...)
	errs = append(errs, validateDispatch(&cfg.Dispatch)...)
	errs = append(errs, validateResults(&cfg.Results)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateServer(cfg *ServerConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "must be between 1 and 65535",
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.read_timeout",
			Message: "must be non-negative",
		})
	}

	if cfg.WriteTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.write_timeout",
			Message: "must be non-negative",
		})
	}

	if cfg.MaxBodySize < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.max_body_size",
			Message: "must be non-negative",
		})
	}

	if cfg.SubmitRateLimit.Max < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.submit_rate_limit.max",
			Message: "must be non-negative (0 disables limiting)",
		})
	}

	if cfg.SubmitRateLimit.Max > 0 && cfg.SubmitRateLimit.Window <= 0 {
		errs = append(errs, ValidationError{
			Field:   "server.submit_rate_limit.window",
			Message: "must be positive when max is set",
		})
	}

	return errs
}

func validateDatabase(cfg *DatabaseConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "database.path",
			Message: "required",
		})
	}

	if cfg.BusyTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "database.busy_timeout",
			Message: "must be non-negative",
		})
	}

	return errs
}

func validateRegistry(cfg *RegistryConfig) ValidationErrors {
	var errs ValidationErrors

	switch cfg.Driver {
	case "sqlite":
	case "postgres":
		if cfg.DSN == "" {
			errs = append(errs, ValidationError{
				Field:   "registry.dsn",
				Message: "required when driver is 'postgres'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "registry.driver",
			Message: "must be 'sqlite' or 'postgres'",
		})
	}

	if cfg.Watch && cfg.SeedDir == "" {
		errs = append(errs, ValidationError{
			Field:   "registry.watch",
			Message: "requires registry.seed_dir",
		})
	}

	return errs
}

func validateLedger(cfg *LedgerConfig) ValidationErrors {
	var errs ValidationErrors

	validNetworks := map[string]bool{"testnet": true, "mainnet": true, "previewnet": true, "local": true}
	if !validNetworks[cfg.Network] {
		errs = append(errs, ValidationError{
			Field:   "ledger.network",
			Message: "must be one of: testnet, mainnet, previewnet, local",
		})
	}

	for field, id := range map[string]string{
		"ledger.operator_id":      cfg.OperatorID,
		"ledger.job_topic_id":     cfg.JobTopicID,
		"ledger.receipt_topic_id": cfg.ReceiptTopicID,
	} {
		if id != "" && !entityIDPattern.MatchString(id) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "must be an entity id of the form shard.realm.num",
			})
		}
	}

	if cfg.Network != "local" {
		if (cfg.OperatorID == "") != (cfg.OperatorKey == "") {
			errs = append(errs, ValidationError{
				Field:   "ledger.operator_key",
				Message: "operator_id and operator_key must be set together",
			})
		}
		if cfg.MirrorURL == "" {
			errs = append(errs, ValidationError{
				Field:   "ledger.mirror_url",
				Message: "required",
			})
		}
	}

	return errs
}

func validateListener(cfg *ListenerConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Source != "sdk" && cfg.Source != "mirror" {
		errs = append(errs, ValidationError{
			Field:   "listener.source",
			Message: "must be 'sdk' or 'mirror'",
		})
	}

	if cfg.Workers < 1 {
		errs = append(errs, ValidationError{
			Field:   "listener.workers",
			Message: "must be at least 1",
		})
	}

	if cfg.QueueSize < 0 {
		errs = append(errs, ValidationError{
			Field:   "listener.queue_size",
			Message: "must be non-negative",
		})
	}

	if cfg.PollInterval < 100*time.Millisecond {
		errs = append(errs, ValidationError{
			Field:   "listener.poll_interval",
			Message: "must be at least 100ms",
		})
	}

	if _, err := cfg.ListenerStart(); err != nil {
		errs = append(errs, ValidationError{
			Field:   "listener.start_time",
			Message: "must be an RFC3339 timestamp",
		})
	}

	return errs
}

func validateDispatch(cfg *DispatchConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Timeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "dispatch.timeout",
			Message: "must be positive",
		})
	}

	return errs
}

func validateResults(cfg *ResultsConfig) ValidationErrors {
	var errs ValidationErrors

	switch cfg.Backend {
	case "memory":
		if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
			errs = append(errs, ValidationError{
				Field:   "results.sweep_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	case "redis":
		if cfg.Redis.Addr == "" {
			errs = append(errs, ValidationError{
				Field:   "results.redis.addr",
				Message: "required when backend is 'redis'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "results.backend",
			Message: "must be 'memory' or 'redis'",
		})
	}

	if cfg.TTL <= 0 {
		errs = append(errs, ValidationError{
			Field:   "results.ttl",
			Message: "must be positive",
		})
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[cfg.Level] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be one of: trace, debug, info, warn, error, fatal, panic",
		})
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Format] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'console'",
		})
	}

	return errs
}
