package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/server"
	"mercator-hq/gatekeeper/pkg/telemetry/health"
	"mercator-hq/gatekeeper/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gatekeeper server",
	Long: `Start the gatekeeper server with the specified configuration.

SIGHUP reloads API keys and tenant profiles from the configuration file.
SIGINT or SIGTERM drain in-flight requests and stop the server.

Examples:
  # Start with default config
  gatekeeper run

  # Start with custom config
  gatekeeper run --config /etc/gatekeeper/gatekeeper.yaml

  # Override listen address
  gatekeeper run --listen 0.0.0.0:8080

  # Validate config without starting server
  gatekeeper run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	cfg := config.MustGetConfig()

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := newLogger(&cfg.Telemetry.Logging)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Fprintln(stdout(cmd), "✓ Configuration valid")
		return nil
	}

	srv, err := server.New(cfg, server.Options{
		Logger:  logger,
		Version: health.NewVersionInfo(Version, GitCommit, BuildDate),
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	parent := context.Background()
	if cmd != nil && cmd.Context() != nil {
		parent = cmd.Context()
	}
	ctx, stop := cli.SetupSignalHandler(parent)
	defer stop()

	cli.OnReload(ctx, func() {
		next, err := config.ReloadConfig(cfgFile)
		if err != nil {
			logger.Error("configuration reload failed, keeping current configuration", "error", err)
			return
		}
		if err := srv.Reload(ctx, next); err != nil {
			logger.Error("reload failed", "error", err)
		}
	})

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

func newLogger(cfg *config.LoggingConfig) (*slog.Logger, error) {
	return logging.New(logging.Config{
		Level:      cfg.Level,
		Format:     cfg.Format,
		AddSource:  cfg.AddSource,
		RedactKeys: cfg.RedactKeys,
		Writer:     os.Stdout,
	})
}
