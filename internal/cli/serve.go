package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Praises003/aether/internal/config"
	"github.com/Praises003/aether/internal/coordinator"
	"github.com/Praises003/aether/internal/dispatch"
	"github.com/Praises003/aether/internal/dispatch/builtin"
	"github.com/Praises003/aether/internal/jobs"
	"github.com/Praises003/aether/internal/payment"
	"github.com/Praises003/aether/internal/realtime"
	"github.com/Praises003/aether/internal/receipts"
	"github.com/Praises003/aether/internal/registry"
	"github.com/Praises003/aether/internal/server"
)

const shutdownTimeout = 15 * time.Second

var (
	servePort       int
	serveHost       string
	serveNoListener bool
	serveNoWatch    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the broker",
	Long: `Start the Aether broker.

The broker will:
  - Open the function registry and load descriptors from registry.seed_dir
  - Subscribe to the job topic and process paid jobs
  - Publish a receipt for every processed job
  - Serve the HTTP API and the receipt stream

A missing ledger.job_topic_id disables the listener; the HTTP API keeps running.
Use --no-listener to serve the API only.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", config.DefaultPort, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHost, "host", config.DefaultHost, "Host to bind to")
	serveCmd.Flags().BoolVar(&serveNoListener, "no-listener", false, "Do not consume the job topic")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Disable watching registry.seed_dir")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if serveNoListener {
		cfg.Listener.Enabled = false
	}
	if serveNoWatch {
		cfg.Registry.Watch = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg)
}

// serve runs the broker until ctx is cancelled or a component fails.
func serve(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	functions, closeRegistry, err := openRegistry(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeRegistry()

	if dir := cfg.Registry.SeedDir; dir != "" {
		n, err := registry.Seed(ctx, functions, dir)
		if err != nil {
			return fmt.Errorf("seeding registry: %w", err)
		}
		log.Info().Str("dir", dir).Int("functions", n).Msg("Function registry seeded")
	}

	ledgerClients, err := openLedger(cfg, db)
	if err != nil {
		return err
	}
	defer ledgerClients.Close()

	resultStore, err := openResults(ctx, &cfg.Results)
	if err != nil {
		return err
	}
	defer resultStore.Close()

	broker := realtime.NewBroker(nil)
	publisher := receipts.NewPublisher(ledgerClients.Submitter)
	publisher.Observe(broker.Publish)

	start, err := cfg.Listener.ListenerStart()
	if err != nil {
		return fmt.Errorf("parsing listener start time: %w", err)
	}

	coord := coordinator.New(coordinator.Config{
		JobTopic:     cfg.Ledger.JobTopicID,
		ReceiptTopic: cfg.Ledger.ReceiptTopicID,
		StartTime:    start,
		Workers:      cfg.Listener.Workers,
		QueueSize:    cfg.Listener.QueueSize,
	}, coordinator.Deps{
		Subscriber: ledgerClients.Subscriber,
		Functions:  functions,
		Verifier:   payment.NewVerifier(ledgerClients.Mirror),
		Executor:   dispatch.New(functions, builtin.Handlers(), cfg.Dispatch.Timeout),
		Results:    resultStore.Store,
		Publisher:  publisher,
	})

	jobService := jobs.NewService(ledgerClients.Submitter, cfg.Ledger.JobTopicID, resultStore.Store)

	opts := []server.Option{
		server.WithDatabase(db),
		server.WithBroker(broker),
		server.WithVersion(version),
	}
	if resultStore.Ping != nil {
		opts = append(opts, server.WithHealthCheck("results", resultStore.Ping))
	}
	srv := server.New(cfg, jobService, functions, opts...)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Listener.Enabled {
		g.Go(func() error {
			runListener(gctx, coord)
			return nil
		})
	} else {
		log.Info().Msg("Job listener disabled")
	}

	if cfg.Registry.Watch {
		watcher, err := registry.NewWatcher(functions, cfg.Registry.SeedDir)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up registry watcher, continuing without it")
		} else if err := watcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start registry watcher, continuing without it")
		} else {
			defer func() { _ = watcher.Stop() }()
			log.Info().Str("dir", cfg.Registry.SeedDir).Msg("Watching function descriptors")
		}
	}

	logServerInfo(cfg)

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Broker stopped with error")
		return err
	}

	log.Info().Msg("Broker stopped")
	return nil
}

type listener interface {
	Start(ctx context.Context) error
}

// runListener consumes the job topic until ctx ends. A listener that cannot
// start or stops with an error is logged; the HTTP API keeps serving.
func runListener(ctx context.Context, l listener) {
	err := l.Start(ctx)
	switch {
	case err == nil, ctx.Err() != nil, errors.Is(err, coordinator.ErrListenerDisabled):
	default:
		log.Error().Err(err).Msg("Job listener stopped, the HTTP API keeps serving")
	}
}

func logServerInfo(cfg *config.Config) {
	base := "http://" + cfg.Server.Address()

	log.Info().
		Str("url", base).
		Str("network", cfg.Ledger.Network).
		Msg("Server started")

	log.Info().
		Str("submit", base+"/api/jobs").
		Str("results", base+"/api/results/{jobId}").
		Str("functions", base+"/api/functions").
		Msg("API endpoints")

	log.Info().
		Str("ws", "ws://"+cfg.Server.Address()+"/api/receipts/stream").
		Msg("Receipt stream endpoint")

	if cfg.Listener.Enabled && cfg.Ledger.JobTopicID != "" {
		log.Info().
			Str("job_topic", cfg.Ledger.JobTopicID).
			Str("receipt_topic", cfg.Ledger.ReceiptTopicID).
			Str("source", cfg.Listener.Source).
			Int("workers", cfg.Listener.Workers).
			Msg("Job listener enabled")
	}
}
