package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewPasswordCmd groups the password commands
func NewPasswordCmd(resolve Resolver) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change or reset your password",
	}
	cmd.AddCommand(newPasswordChangeCmd(resolve))
	cmd.AddCommand(newPasswordResetCmd(resolve))
	return cmd
}

func newPasswordChangeCmd(resolve Resolver) *cobra.Command {
	return &cobra.Command{
		Use:   "change",
		Short: "Change your password",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := resolve()
			if err != nil {
				return err
			}
			return runPasswordChange(cmd.Context(), d, cmd.OutOrStdout())
		},
	}
}

func runPasswordChange(ctx context.Context, d *Deps, out io.Writer) error {
	if err := requireSession(d); err != nil {
		return err
	}

	var answers [3]string
	for i, label := range []string{"Current password", "New password", "Confirm new password"} {
		v, err := d.Prompt.Password(label)
		if errors.Is(err, errNonInteractive) {
			return fmt.Errorf("password change needs an interactive terminal")
		}
		if err != nil {
			return err
		}
		answers[i] = v
	}

	if err := d.Account.ChangePassword(ctx, answers[0], answers[1], answers[2]); err != nil {
		return fail("Password change failed", err)
	}
	fmt.Fprintln(out, "✓ Password changed")
	return nil
}

func newPasswordResetCmd(resolve Resolver) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "E-mail a password reset link",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := resolve()
			if err != nil {
				return err
			}
			return runPasswordReset(cmd.Context(), d, cmd.OutOrStdout(), email)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (or set VAGALI_EMAIL)")

	return cmd
}

func runPasswordReset(ctx context.Context, d *Deps, out io.Writer, email string) error {
	if email == "" {
		email = d.Getenv("VAGALI_EMAIL")
	}
	if email == "" {
		email = d.LastKnown().Email
	}
	if email == "" {
		return fmt.Errorf("email is required (use --email flag or VAGALI_EMAIL env var)")
	}

	if err := d.Account.RequestPasswordReset(ctx, email); err != nil {
		return fail("Password reset failed", err)
	}
	fmt.Fprintf(out, "✓ If %s has an account, a reset link is on its way.\n", email)
	return nil
}
