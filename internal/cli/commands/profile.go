package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vagali-dev/vagali/internal/cli/client"
	"github.com/vagali-dev/vagali/internal/cli/session"
)

// NewProfileCmd groups the profile commands
func NewProfileCmd(resolve Resolver) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage your profile",
	}
	cmd.AddCommand(newProfileSetCmd(resolve))
	return cmd
}

// profileFlags maps flag names onto the profile fields they set
var profileFlags = []struct {
	name  string
	usage string
	field func(*client.ProfileFields) **string
}{
	{"full-name", "Full name", func(f *client.ProfileFields) **string { return &f.FullName }},
	{"phone", "Phone number", func(f *client.ProfileFields) **string { return &f.PhoneNumber }},
	{"bio", "Short description of your work", func(f *client.ProfileFields) **string { return &f.Bio }},
	{"address", "Address", func(f *client.ProfileFields) **string { return &f.Address }},
	{"cep", "Postal code (CEP)", func(f *client.ProfileFields) **string { return &f.CEP }},
	{"profession", "Profession", func(f *client.ProfileFields) **string { return &f.Profession }},
	{"cnpj", "MEI CNPJ", func(f *client.ProfileFields) **string { return &f.CNPJ }},
	{"keywords", "Search keywords", func(f *client.ProfileFields) **string { return &f.Keywords }},
}

func newProfileSetCmd(resolve Resolver) *cobra.Command {
	values := make(map[string]*string, len(profileFlags))

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update profile fields",
		Example: `  vagali profile set --full-name "Ana Souza" --phone "(11) 99999-0000"
  vagali profile set --profession Pintor --cnpj 12.345.678/0001-90`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := resolve()
			if err != nil {
				return err
			}

			var fields client.ProfileFields
			changed := false
			for _, f := range profileFlags {
				if cmd.Flags().Changed(f.name) {
					*f.field(&fields) = values[f.name]
					changed = true
				}
			}
			if !changed {
				return errors.New("nothing to update (see 'vagali profile set --help')")
			}
			return runProfileSet(cmd.Context(), d, cmd.OutOrStdout(), fields)
		},
	}

	for _, f := range profileFlags {
		values[f.name] = cmd.Flags().String(f.name, "", f.usage)
	}

	return cmd
}

func runProfileSet(ctx context.Context, d *Deps, out io.Writer, fields client.ProfileFields) error {
	if err := requireSession(d); err != nil {
		return err
	}
	if fields.Profession != nil && !validProfession(*fields.Profession) {
		return fail("Profile update failed", &session.InputError{Fields: map[string]string{
			"profession": fmt.Sprintf("Choose one of: %s.", strings.Join(session.Professions, ", ")),
		}})
	}

	s, err := d.Account.UpdateProfile(ctx, client.ProfileUpdate{Profile: &fields})
	if err != nil {
		return fail("Profile update failed", err)
	}

	fmt.Fprintln(out, "✓ Profile updated")
	printSession(out, s)
	return nil
}
