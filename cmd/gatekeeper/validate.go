package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/server"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and every tenant profile",
	Long: `Load the configuration file with environment overrides applied, report every
problem found, then open the configured profile store and parse the rule
strings of every tenant profile.

Examples:
  gatekeeper validate --config gatekeeper.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	w := stdout(cmd)

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		printValidationErrors(w, err)
		return cli.NewConfigError(cfgFile, err)
	}
	fmt.Fprintf(w, "✓ Configuration valid: %s\n", cfgFile)

	n, err := validateProfiles(commandContext(cmd), &cfg.Profiles)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	fmt.Fprintf(w, "✓ %d tenant profiles valid (source: %s)\n", n, cfg.Profiles.Source)
	return nil
}

// printValidationErrors lists each field error on its own line.
func printValidationErrors(w io.Writer, err error) {
	var verr *config.ValidationError
	if !errors.As(err, &verr) {
		return
	}
	fmt.Fprintf(w, "✗ %d configuration errors:\n", len(verr.Errors))
	for _, fe := range verr.Errors {
		fmt.Fprintf(w, "  - %s: %s\n", fe.Field, fe.Message)
	}
}

// validateProfiles opens the store read-only and validates every profile.
// File and inline profiles are already checked on load; database rows are
// checked here.
func validateProfiles(ctx context.Context, cfg *config.ProfilesConfig) (int, error) {
	store, err := server.OpenProfileStore(ctx, cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		return 0, err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	profiles, err := store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list profiles: %w", err)
	}
	var errs []error
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return len(profiles), errors.Join(errs...)
}
