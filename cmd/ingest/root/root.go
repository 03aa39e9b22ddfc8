// Package root wires the ingest command line.
package root

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/LoanIngest/internal/config"
	"github.com/JonMunkholm/LoanIngest/internal/logging"
	"github.com/JonMunkholm/LoanIngest/internal/storage"
)

// globalFlags override the environment for a single invocation.
type globalFlags struct {
	configDir   string
	databaseURL string
	logLevel    string
}

// NewRootCmd creates the root command for ingest.
func NewRootCmd() *cobra.Command {
	var g globalFlags

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Normalize and validate lender loan files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configDir, "config-dir", "", "Directory with clients/, mappings/ and schemas/ (default $INGEST_CONFIG_DIR)")
	pf.StringVar(&g.databaseURL, "database-url", "", "Store URL (default $DATABASE_URL)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error (default $LOG_LEVEL)")

	cmd.AddCommand(newRunCmd(&g))
	cmd.AddCommand(newClientsCmd(&g))
	cmd.AddCommand(newMigrateCmd(&g))

	return cmd
}

// Execute runs the root command with provided args.
func Execute(ctx context.Context, args []string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// setup loads .env and the environment, applies flag overrides and installs
// a logger on stderr so stdout carries only reports.
func (g *globalFlags) setup() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if g.configDir != "" {
		cfg.Ingest.ConfigDir = g.configDir
	}
	if g.databaseURL != "" {
		cfg.Database.URL = g.databaseURL
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))
	return cfg, nil
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	store, err := storage.Open(ctx, cfg.Database.URL, storage.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	slog.Debug("store ready", "backend", storage.Backend(cfg.Database.URL), "url", config.MaskURL(cfg.Database.URL))
	return store, nil
}
