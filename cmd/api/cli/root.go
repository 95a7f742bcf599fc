package cli

import (
	"github.com/spf13/cobra"
)

// Execute builds the command tree and runs it. Without a subcommand the
// API server starts, matching the container entrypoint.
func Execute(version, commit, date string) error {
	return newRootCmd(version, commit, date).Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "portfolio-api",
		Short:         "Portfolio backend API",
		Long:          "Serves the portfolio REST API and provides maintenance commands for its database and admin accounts.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), version, false)
		},
	}

	cmd.AddCommand(newServeCmd(version))
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}
