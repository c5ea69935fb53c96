// Package commands implements planctl, the operator CLI for the content
// calendar service.
package commands

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"contentcal/api/internal/config"
	"contentcal/api/internal/logger"
	"contentcal/api/internal/store"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "planctl",
		Short: "Operate the content calendar service",
		Long: `planctl generates sample plans, applies database migrations, sweeps
expired edit locks, rebuilds the search index, runs notification sweeps
and issues development tokens.

Connection settings are read from the same environment variables and .env
file as the API server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(
		newGenerateCmd(),
		newMigrateCmd(),
		newSweepLocksCmd(),
		newReindexCmd(),
		newNotifyCmd(),
		newTokenCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

type env struct {
	cfg config.Config
	log logger.Logger
	db  *sql.DB
}

func (e *env) Close() {
	if e.db != nil {
		_ = e.db.Close()
	}
	_ = e.log.Sync()
}

// openEnv loads config, builds a logger and connects to Postgres.
func openEnv(ctx context.Context) (*env, error) {
	cfg := config.Load()
	log, err := logger.New(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, db: db}, nil
}
