package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Praises003/aether/internal/config"
	"github.com/Praises003/aether/internal/database"
	"github.com/Praises003/aether/internal/ledger"
	"github.com/Praises003/aether/internal/ledger/hedera"
	"github.com/Praises003/aether/internal/ledger/local"
	"github.com/Praises003/aether/internal/ledger/mirror"
	"github.com/Praises003/aether/internal/registry"
	"github.com/Praises003/aether/internal/results"
)

// topicCreator is implemented by the hedera client and the local log.
type topicCreator interface {
	CreateTopic(ctx context.Context, memo string) (string, error)
}

// ledgerBackend bundles the ledger clients selected by configuration.
type ledgerBackend struct {
	Submitter  ledger.Submitter
	Subscriber ledger.Subscriber
	Topics     topicCreator
	Mirror     *mirror.Client

	closers []func() error
}

func (b *ledgerBackend) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// openLedger builds the submitter and subscriber for cfg.Ledger.Network.
// The local network uses db as its topic log; the mirror client is always
// built from ledger.mirror_url for payment verification.
func openLedger(cfg *config.Config, db *database.DB) (*ledgerBackend, error) {
	mc := mirror.NewClient(cfg.Ledger.MirrorURL, cfg.Ledger.MirrorTimeout)
	b := &ledgerBackend{Mirror: mc}

	if cfg.Ledger.Network == "local" {
		if db == nil {
			return nil, errors.New("the local ledger requires the database")
		}
		topicLog := local.New(db, cfg.Listener.PollInterval)
		b.Submitter = topicLog
		b.Subscriber = topicLog
		b.Topics = topicLog
		return b, nil
	}

	client, err := hedera.New(cfg.Ledger.Network, cfg.Ledger.OperatorID, cfg.Ledger.OperatorKey)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, client.Close)
	b.Submitter = client
	b.Topics = client

	switch cfg.Listener.Source {
	case "mirror":
		b.Subscriber = mirror.NewSubscriber(mc, cfg.Listener.PollInterval)
	default:
		b.Subscriber = client
	}

	if cfg.Ledger.OperatorID == "" {
		log.Warn().Msg("Ledger operator not configured, submissions and receipts will fail")
	}

	return b, nil
}

// openRegistry returns the function store for cfg.Registry.Driver and a
// function releasing it.
func openRegistry(ctx context.Context, cfg *config.Config, db *database.DB) (registry.Store, func(), error) {
	switch cfg.Registry.Driver {
	case "postgres":
		store, err := registry.NewPostgresStore(ctx, cfg.Registry.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "sqlite", "":
		if db == nil {
			return nil, nil, errors.New("the sqlite registry requires the database")
		}
		return registry.NewSQLiteStore(db), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown registry driver %q", cfg.Registry.Driver)
	}
}

// resultBackend is the result store plus its lifecycle hooks.
type resultBackend struct {
	Store results.Store
	// Ping is nil for backends without a remote connection.
	Ping func(ctx context.Context) error

	closers []func() error
}

func (b *resultBackend) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func openResults(ctx context.Context, cfg *config.ResultsConfig) (*resultBackend, error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return &resultBackend{
			Store: results.NewRedisStore(client, cfg.Redis.Prefix, cfg.TTL),
			Ping: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
			closers: []func() error{client.Close},
		}, nil
	default:
		mem := results.NewMemoryStore(cfg.TTL)
		if cfg.TTL > 0 {
			if err := mem.StartSweeper(cfg.SweepSchedule); err != nil {
				return nil, err
			}
		}
		return &resultBackend{
			Store: mem,
			closers: []func() error{func() error {
				mem.Stop()
				return nil
			}},
		}, nil
	}
}

// needsDatabase reports whether any configured component is backed by sqlite.
func needsDatabase(cfg *config.Config) bool {
	return cfg.Registry.Driver != "postgres" || cfg.Ledger.Network == "local"
}

func openDatabase(cfg *config.Config) (*database.DB, error) {
	if !needsDatabase(cfg) {
		return nil, nil
	}
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}
