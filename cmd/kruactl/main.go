// Command kruactl is the operator CLI for the delivery backend: schema
// migrations, demo data, admin accounts and one-off optimization runs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/werawoot/Krua-Thai1-sub006/internal/config"
	"github.com/werawoot/Krua-Thai1-sub006/internal/database"
	"github.com/werawoot/Krua-Thai1-sub006/internal/logging"
)

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	envFile     string
	databaseURL string
	dbPath      string
	logLevel    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "kruactl",
		Short:         "Operate the Krua Thai delivery backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file to load if present")
	root.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "Postgres URL (overrides DATABASE_URL)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db-path", "", "SQLite file (overrides DB_PATH)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	root.AddCommand(
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newCreateAdminCmd(opts),
		newOptimizeCmd(opts),
	)
	return root
}

// env is what a subcommand needs once flags are parsed
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
}

func (e *env) Close() {
	if e.db != nil {
		e.db.Close()
	}
	e.logger.Sync()
}

// setup loads configuration, applies flag overrides and connects to the database
func (o *globalOptions) setup(ctx context.Context) (*env, error) {
	if _, err := config.LoadEnvFile(o.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
		if o.databaseURL == "" {
			// an explicit SQLite file beats an ambient Postgres URL
			cfg.DatabaseURL = ""
		}
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL, cfg.DBPath, logger)
	if err != nil {
		logger.Sync()
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, db: db}, nil
}
