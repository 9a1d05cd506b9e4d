package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/profile"
	"mercator-hq/gatekeeper/pkg/server"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage tenant profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tenant profiles of the configured store",
	RunE:  listProfiles,
}

var importFlags struct {
	db       string
	progress bool
}

var profilesImportCmd = &cobra.Command{
	Use:   "import <profiles.yaml>",
	Short: "Import a profiles YAML document into a profile store",
	Long: `Validate every profile of a YAML document and upsert them into a persistent
profile store. Nothing is written if any profile is invalid.

Without --db the configured store is used. Its source must be sqlite,
mongodb or redis.

Examples:
  gatekeeper profiles import profiles.yaml --db data/profiles.db
  gatekeeper profiles import profiles.yaml -c gatekeeper.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: importProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesListCmd, profilesImportCmd)

	profilesImportCmd.Flags().StringVar(&importFlags.db, "db", "", "SQLite database path")
	profilesImportCmd.Flags().BoolVar(&importFlags.progress, "progress", false, "show a progress bar")
}

type profileList []*profile.Profile

func (pl profileList) Table() *cli.Table {
	t := &cli.Table{Headers: []string{"TENANT", "NAME", "TENANT_RULES", "CUSTOMER_RULES"}}
	for _, p := range pl {
		t.AddRow(string(p.TenantID), orDash(p.Name), orDash(p.RateLimits.Tenant), orDash(p.RateLimits.Customer))
	}
	return t
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func listProfiles(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	ctx := commandContext(cmd)
	store, err := server.OpenProfileStore(ctx, &cfg.Profiles, slog.New(slog.DiscardHandler))
	if err != nil {
		return cli.NewCommandError("profiles list", err)
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	profiles, err := store.List(ctx)
	if err != nil {
		return cli.NewCommandError("profiles list", err)
	}
	return render(cmd, profileList(profiles))
}

func importProfiles(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	store, target, err := importTarget(ctx)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	profiles, err := profile.LoadDocument(args[0])
	if err != nil {
		return cli.NewCommandError("profiles import", err)
	}

	var progress cli.ProgressReporter
	if importFlags.progress {
		progress = cli.NewProgressReporter(nil, "importing")
		progress.Start(int64(len(profiles)))
	}

	for i, p := range profiles {
		if err := store.Put(ctx, p); err != nil {
			if progress != nil {
				progress.Error(err)
			}
			return cli.NewCommandError("profiles import", fmt.Errorf("tenant %s: %w", p.TenantID, err))
		}
		if progress != nil {
			progress.Update(int64(i + 1))
		}
	}
	if progress != nil {
		progress.Finish()
	}

	fmt.Fprintf(stdout(cmd), "✓ Imported %d profiles into %s\n", len(profiles), target)
	return nil
}

// importTarget opens the store to write to: the SQLite database named by
// --db, or the configured store when it is persistent.
func importTarget(ctx context.Context) (profile.Writer, string, error) {
	if importFlags.db != "" {
		store, err := profile.NewSQLiteStore(profile.SQLiteConfig{Path: importFlags.db})
		if err != nil {
			return nil, "", cli.NewCommandError("profiles import", err)
		}
		return store, importFlags.db, nil
	}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, "", cli.NewConfigError(cfgFile, err)
	}
	target := cfg.Profiles.Source
	switch cfg.Profiles.Source {
	case "sqlite":
		target = cfg.Profiles.Path
	case "mongodb", "redis":
	default:
		return nil, "", cli.NewCommandError("profiles import",
			fmt.Errorf("profile source is %q, pass --db to choose a database", cfg.Profiles.Source))
	}

	store, err := server.OpenProfileStore(ctx, &cfg.Profiles, slog.New(slog.DiscardHandler))
	if err != nil {
		return nil, "", cli.NewCommandError("profiles import", err)
	}
	w, ok := store.(profile.Writer)
	if !ok {
		return nil, "", cli.NewCommandError("profiles import",
			fmt.Errorf("profile source %q is read-only", cfg.Profiles.Source))
	}
	return w, target, nil
}
