package main

import (
	"errors"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/viralforge/mesh/services/core-platform/M04-credential-lifecycle-service/internal/app/bootstrap"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending goose migrations to the PostgreSQL database named by DB_URL.`,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cmd.Println("Running migrations...")
	version, err := bootstrap.Migrate(cmd.Context(), configFile)
	if errors.Is(err, bootstrap.ErrInvalidConfig) || errors.Is(err, bootstrap.ErrStoreUnavailable) {
		return wrapBootstrap("migrate", err)
	}
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	cmd.Printf("Migrations completed successfully (version %d)\n", version)
	return nil
}
