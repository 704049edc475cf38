package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/pregclass/internal/db"
	"github.com/gyeh/pregclass/internal/exitcode"
	"github.com/gyeh/pregclass/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the pregclass result schema",
	Long: `Apply pending migrations to the pregclass schema: the runs table and
the long-format entity_flags and entity_scores tables that --store writes.
Applied files are recorded in pregclass.schema_migrations and never rerun.`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	if cfg.DSN == "" {
		log.Error().Msg("--dsn or PREGCLASS_DSN is required")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	applied, err := db.ApplyMigrations(ctx, pool, log)
	if err != nil {
		log.Error().Err(err).Strs("applied", applied).Msg("migration failed")
		os.Exit(exitcode.StoreError)
	}

	if len(applied) == 0 {
		log.Info().Msg("pregclass schema already current")
		return nil
	}
	log.Info().Strs("applied", applied).Msg("pregclass schema migrated")
	return nil
}
