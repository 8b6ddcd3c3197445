// Package cli provides the command-line interface for crynn.
package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/crynn/crynn/internal/application/port"
	"github.com/crynn/crynn/internal/config"
	"github.com/crynn/crynn/internal/infrastructure/persistence/filestore"
	"github.com/crynn/crynn/internal/infrastructure/persistence/sqlite"
	"github.com/crynn/crynn/internal/logging"
)

// env bundles the loaded configuration and logger shared by commands.
type env struct {
	manager *config.Manager
	cfg     *config.Config
	log     zerolog.Logger
}

func loadEnv() (*env, error) {
	manager, err := config.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	if err := manager.Load(); err != nil {
		return nil, err
	}

	cfg := manager.Get()
	log := logging.NewFromConfigValues(cfg.Logging.Level, cfg.Logging.Format)

	return &env{manager: manager, cfg: cfg, log: log}, nil
}

// openStore builds the snapshot store selected by session.store.
// The returned func releases any underlying resources.
func openStore(ctx context.Context, cfg *config.Config) (port.SnapshotStore, func(), error) {
	if cfg.Session.Store == "sqlite" {
		dbPath, err := config.SessionDatabase()
		if err != nil {
			return nil, nil, err
		}
		db, err := sqlite.NewConnection(ctx, dbPath)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewStore(db), func() { _ = sqlite.Close(db) }, nil
	}

	path, err := config.SessionFile()
	if err != nil {
		return nil, nil, err
	}
	return filestore.New(path), func() {}, nil
}

// NewRootCmd creates the root command for crynn.
func NewRootCmd(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "crynn [url]",
		Short: "A tab and view lifecycle shell for the crynn browser",
		Long:  `crynn manages tabs, pooled rendering views, content filtering, and session persistence behind a pluggable rendering engine.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := ""
			if len(args) > 0 {
				url = args[0]
			}
			trace, _ := cmd.Flags().GetBool("trace")
			return runBrowse(cmd.Context(), url, trace)
		},
	}

	rootCmd.Flags().Bool("trace", false, "Log lifecycle trace spans")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("crynn %s\n", version)
			fmt.Printf("commit: %s\n", commit)
			fmt.Printf("built: %s\n", buildDate)
		},
	}

	rootCmd.AddCommand(versionCmd, newSessionCmd(), newConfigCmd())
	return rootCmd
}
