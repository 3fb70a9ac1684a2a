package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Praises003/aether/internal/config"
)

var (
	cfgFile string
	verbose bool
)

// version is overridden at build time with -ldflags "-X".
var version = "0.1.0-dev"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "aether",
	Short: "A decentralized job broker on Hedera consensus topics",
	Long: `Aether brokers paid function executions over Hedera consensus topics:

  - Clients publish job messages to a job topic
  - The broker verifies the hbar payment on the mirror node
  - The function runs in-process or on a remote HTTP endpoint
  - The outcome is stored for polling and a receipt is published

Start the broker:
  aether serve

Create a starter project:
  aether init my-broker`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./aether.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// loadConfig reads the configuration file named by --config, or searches the
// default locations, and applies its logging section.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: cfgFile})
	if err != nil {
		return nil, err
	}

	configureLogging(&cfg.Logging)

	if verbose {
		if path, err := config.ConfigFilePath(cfgFile); err == nil {
			log.Debug().Str("file", path).Msg("Using config file")
		}
	}
	return cfg, nil
}

// setupLogging configures zerolog for output produced before the config is read.
func setupLogging() {
	output := zerolog.ConsoleWriter{Out: os.Stderr}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// configureLogging applies the logging section of the config. --verbose
// always wins over the configured level.
func configureLogging(cfg *config.LoggingConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	lctx := logger.With().Timestamp()
	if cfg.Caller {
		lctx = lctx.Caller()
	}
	log.Logger = lctx.Logger()
}

// AddCommand adds a command to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// Version returns the version string.
func Version() string {
	return fmt.Sprintf("aether version %s", version)
}
