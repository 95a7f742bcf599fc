package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"portfolio-backend/app"
	"portfolio-backend/internal/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(true)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			database, err := app.OpenDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := db.RunMigrations(cmd.Context(), database); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}
