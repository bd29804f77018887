package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/vagali-dev/vagali/internal/cli/session"
)

// NewRoleCmd groups the role switching commands
func NewRoleCmd(resolve Resolver) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Switch between the client and professional roles",
	}
	cmd.AddCommand(newRoleToggleCmd(resolve))
	cmd.AddCommand(newBecomeProfessionalCmd(resolve))
	return cmd
}

func newRoleToggleCmd(resolve Resolver) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "toggle",
		Short: "Switch to the other role",
		Long: `Switch to the other role.

By default the change is saved on the server first. With --local only the
cached role changes; the server's record wins again on the next command,
when the session is restored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := resolve()
			if err != nil {
				return err
			}
			return runRoleToggle(cmd.Context(), d, cmd.OutOrStdout(), local)
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Preview the other role without saving it on the server")

	return cmd
}

func runRoleToggle(ctx context.Context, d *Deps, out io.Writer, local bool) error {
	if err := requireSession(d); err != nil {
		return err
	}

	if local {
		s, err := d.Account.Toggle()
		if err != nil {
			return fail("Role change failed", err)
		}
		fmt.Fprintf(out, "✓ Now previewing as %s (not saved on the server)\n", s.Role)
		return nil
	}

	s, err := d.Account.ConfirmedToggle(ctx)
	if err != nil {
		return fail("Role change failed", err)
	}
	fmt.Fprintf(out, "✓ Role changed to %s\n", s.Role)
	return nil
}

type becomeProfessionalOptions struct {
	profession string
	cnpj       string
	yes        bool
}

func newBecomeProfessionalCmd(resolve Resolver) *cobra.Command {
	var opts becomeProfessionalOptions

	cmd := &cobra.Command{
		Use:   "become-professional",
		Short: "Offer your services as a professional",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := resolve()
			if err != nil {
				return err
			}
			return runBecomeProfessional(cmd.Context(), d, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.profession, "profession", "", "Your profession")
	cmd.Flags().StringVar(&opts.cnpj, "cnpj", "", "Your MEI CNPJ, if you have one")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Skip the confirmation")

	return cmd
}

func runBecomeProfessional(ctx context.Context, d *Deps, out io.Writer, opts becomeProfessionalOptions) error {
	if err := requireSession(d); err != nil {
		return err
	}
	if d.Account.IsProfessional() {
		fmt.Fprintln(out, "You are already a professional.")
		return nil
	}

	if !opts.yes {
		ok, err := d.Prompt.Confirm("Your profile will be listed publicly as a professional. Continue")
		if errors.Is(err, errNonInteractive) {
			return fmt.Errorf("confirmation required in non-interactive mode (use --yes)")
		}
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	details := session.ProfessionalDetails{Profession: opts.profession, CNPJ: opts.cnpj, HasCNPJ: opts.cnpj != ""}

	if details.Profession == "" && d.Prompt.Interactive() {
		i, err := d.Prompt.Select("Select your profession", session.Professions)
		if err != nil {
			return err
		}
		details.Profession = session.Professions[i]
	}

	if !details.HasCNPJ && d.Prompt.Interactive() {
		has, err := d.Prompt.Confirm("Do you have a CNPJ (MEI)")
		if err != nil {
			return err
		}
		if has {
			cnpj, err := d.Prompt.Input("CNPJ", validateCNPJ)
			if err != nil {
				return err
			}
			details.HasCNPJ, details.CNPJ = true, cnpj
		}
	}

	s, err := d.Account.BecomeProfessional(ctx, details)
	if err != nil {
		return fail("Could not become a professional", err)
	}

	fmt.Fprintln(out, "✓ You are now a professional!")
	printSession(out, s)
	return nil
}

func validateCNPJ(v string) error {
	digits := session.DigitsOnly(v)
	if len(digits) < 11 || len(digits) > 14 {
		return errors.New("CNPJ must have 11 to 14 digits")
	}
	return nil
}

func validProfession(p string) bool {
	return slices.Contains(session.Professions, p)
}
