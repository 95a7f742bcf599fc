package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"portfolio-backend/app"
	"portfolio-backend/internal/auth"
)

const minPasswordLength = 6

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	cmd.AddCommand(newAdminCreateCmd())

	return cmd
}

func newAdminCreateCmd() *cobra.Command {
	var (
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin or reset its password",
		Long:  "Creates the admin account, or resets the password of an existing one. Resetting also ends any active session.",
		Example: `  portfolio-api admin create --email admin@example.com --password secret
  portfolio-api admin create --email admin@example.com  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				password, err = promptPassword(cmd.OutOrStdout(), readTerminalPassword)
				if err != nil {
					return err
				}
			}
			if err := validateAdminInput(email, password); err != nil {
				return err
			}

			cfg, err := app.LoadConfig(true)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			database, err := app.OpenDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			tokens := auth.NewTokenIssuer(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
			service, err := auth.NewService(auth.NewRepository(database), tokens, cfg.BcryptCost)
			if err != nil {
				return err
			}

			return provisionAdmin(cmd.Context(), cmd.OutOrStdout(), service, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

type adminProvisioner interface {
	ProvisionAdmin(ctx context.Context, email, password string) (auth.Admin, bool, error)
}

func provisionAdmin(ctx context.Context, out io.Writer, service adminProvisioner, email, password string) error {
	admin, created, err := service.ProvisionAdmin(ctx, email, password)
	if err != nil {
		return fmt.Errorf("provision admin: %w", err)
	}

	if created {
		fmt.Fprintf(out, "Created admin %q\n", admin.Email)
	} else {
		fmt.Fprintf(out, "Updated password for admin %q\n", admin.Email)
	}
	return nil
}

func validateAdminInput(email, password string) error {
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %q", email)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

func readTerminalPassword() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

func promptPassword(out io.Writer, read func() ([]byte, error)) (string, error) {
	fmt.Fprint(out, "Password: ")
	password, err := read()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(out)

	fmt.Fprint(out, "Confirm password: ")
	confirm, err := read()
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Fprintln(out)

	if string(password) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(password), nil
}
