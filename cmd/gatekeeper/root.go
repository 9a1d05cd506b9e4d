package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/gatekeeper/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	output  string
)

var rootCmd = &cobra.Command{
	Use:   "gatekeeper",
	Short: "Gatekeeper - per-tenant and per-customer admission control",
	Long: `Gatekeeper protects a multi-tenant HTTP service from overload.

Every request is resolved to a tenant and optionally a customer by its API
key. Each tenant profile carries token-bucket rules such as "100:1,3000:60"
(100 per second and 3000 per minute) for the tenant as a whole and for each
of its customers. Requests over a limit are rejected with 429 and a
Retry-After header; the rest are forwarded to the upstream.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "gatekeeper.yaml", "config file path")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format (text, json, csv)")
}

// stdout returns the command's output stream; commands invoked directly
// from tests pass a nil cmd.
func stdout(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stdout
	}
	return cmd.OutOrStdout()
}

// commandContext returns cmd's context, or Background when there is none.
func commandContext(cmd *cobra.Command) context.Context {
	if cmd == nil || cmd.Context() == nil {
		return context.Background()
	}
	return cmd.Context()
}

// render writes result in the --output format.
func render(cmd *cobra.Command, result any) error {
	format, err := cli.ParseFormat(output)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(stdout(cmd), result)
}
