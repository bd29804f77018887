package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewLoginCmd creates the login command
func NewLoginCmd(resolve Resolver) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to VagALI",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := resolve()
			if err != nil {
				return err
			}
			return runLogin(cmd.Context(), d, cmd.OutOrStdout(), email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set VAGALI_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set VAGALI_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(ctx context.Context, d *Deps, out io.Writer, email, password string) error {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = d.Getenv("VAGALI_EMAIL")
	}
	if password == "" {
		password = d.Getenv("VAGALI_PASSWORD")
	}

	if email == "" {
		if hint := d.LastKnown().Email; hint != "" && d.Prompt.Interactive() {
			email = hint
		} else {
			return fmt.Errorf("email is required (use --email flag or VAGALI_EMAIL env var)")
		}
	}

	if password == "" {
		p, err := d.Prompt.Password("Password")
		if errors.Is(err, errNonInteractive) {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or VAGALI_PASSWORD env var)")
		}
		if err != nil {
			return err
		}
		password = p
	}

	fmt.Fprintf(out, "Logging in as %s...\n", email)

	s, err := d.Account.Login(ctx, email, password)
	if err != nil {
		return fail("Login failed", err)
	}

	fmt.Fprintln(out, "✓ Login successful!")
	printSession(out, s)
	return nil
}
