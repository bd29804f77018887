package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vagali-dev/vagali/internal/cli/session"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(resolve Resolver) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := resolve()
			if err != nil {
				return err
			}
			return runLogout(cmd.Context(), d, cmd.OutOrStdout())
		},
	}
}

func runLogout(ctx context.Context, d *Deps, out io.Writer) error {
	if err := d.Account.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "✓ Logged out")
	return nil
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(resolve Resolver) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := resolve()
			if err != nil {
				return err
			}
			return runWhoami(d, cmd.OutOrStdout())
		},
	}
}

func runWhoami(d *Deps, out io.Writer) error {
	s := d.Account.Session()
	if !s.IsAuthenticated() {
		fmt.Fprintln(out, "Not logged in.")
		if hint := d.LastKnown(); hint.Email != "" {
			fmt.Fprintf(out, "  Last seen: %s\n", hint.Email)
		}
		fmt.Fprintln(out, "\nLog in with: vagali login")
		return nil
	}

	fmt.Fprintf(out, "Logged in (id %s)\n", s.UserID)
	printSession(out, s)
	if s.Role == session.RoleClient {
		fmt.Fprintln(out, "\nOffer your services with: vagali role become-professional")
	}
	return nil
}
