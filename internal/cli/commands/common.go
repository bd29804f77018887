package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/vagali-dev/vagali/internal/cli/account"
	"github.com/vagali-dev/vagali/internal/cli/auth"
	"github.com/vagali-dev/vagali/internal/cli/session"
)

// Deps is what a command needs from the running session
type Deps struct {
	Account *account.Account
	// LastKnown returns the cached display hints of the previous session
	LastKnown func() auth.Record
	Prompt    Prompter
	// Getenv reads CI-friendly overrides such as VAGALI_EMAIL
	Getenv func(string) string
}

// Resolver hands out the process session. The root command builds it before
// any subcommand runs.
type Resolver func() (*Deps, error)

// commandError prefixes an action to the user-facing description of err
type commandError struct {
	action string
	err    error
}

func (e *commandError) Error() string {
	return fmt.Sprintf("%s:\n%s", e.action, account.Describe(e.err))
}

func (e *commandError) Unwrap() error { return e.err }

func fail(action string, err error) error {
	return &commandError{action: action, err: err}
}

func requireSession(d *Deps) error {
	if !d.Account.IsAuthenticated() {
		return session.ErrNotAuthenticated
	}
	return nil
}

func printSession(w io.Writer, s session.Session) {
	fmt.Fprintf(w, "  User: %s (%s)\n", s.DisplayName, s.Email)
	fmt.Fprintf(w, "  Role: %s\n", s.Role)
}

var errNonInteractive = errors.New("input required in non-interactive mode")
