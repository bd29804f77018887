package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vagali-dev/vagali/internal/cli/account"
	"github.com/vagali-dev/vagali/internal/cli/auth"
	"github.com/vagali-dev/vagali/internal/cli/client"
	"github.com/vagali-dev/vagali/internal/cli/commands"
	"github.com/vagali-dev/vagali/internal/cli/session"
	"github.com/vagali-dev/vagali/internal/config"
	"github.com/vagali-dev/vagali/internal/logger"
)

var version = "dev" // Will be set during build

// app owns the one session of this process, from PersistentPreRunE until
// teardown
type app struct {
	ephemeral bool
	prompt    commands.Prompter
	getenv    func(string) string
	// newStore is swapped in tests
	newStore func(cfg *config.Config) (auth.Store, error)

	store auth.Store
	ctrl  *session.Controller
	acct  *account.Account
	log   zerolog.Logger
}

func (a *app) openStore(cfg *config.Config) (auth.Store, error) {
	if a.ephemeral {
		return auth.NewMemoryStore(), nil
	}
	return auth.Open(cfg.Credentials, auth.Namespace(cfg.API.URL))
}

// setup builds config, logger, credential store, HTTP client and session
// controller, then restores any stored session
func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	a.log = logger.GetLogger()

	store, err := a.newStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	a.store = store

	api := client.New(cfg.API.URL,
		client.WithTimeout(cfg.API.Timeout),
		client.WithAuthScheme(cfg.API.AuthScheme),
		client.WithLogger(a.log.With().Str("component", "client").Logger()),
	)

	a.ctrl = session.New(store, api, session.WithLogger(a.log.With().Str("component", "session").Logger()))
	if err := a.ctrl.Start(ctx); err != nil {
		return err
	}
	a.acct = account.Mount(a.ctrl)
	return nil
}

func (a *app) deps() (*commands.Deps, error) {
	if a.acct == nil {
		return nil, errors.New("session not initialised")
	}
	return &commands.Deps{
		Account:   a.acct,
		LastKnown: a.ctrl.LastKnown,
		Prompt:    a.prompt,
		Getenv:    a.getenv,
	}, nil
}

// teardown unmounts the consumer and closes the session. Safe to call more
// than once and before setup.
func (a *app) teardown() {
	if a.acct != nil {
		a.acct.Unmount()
		a.acct = nil
	}
	if a.ctrl != nil {
		a.ctrl.Close()
		a.ctrl = nil
	}
	if closer, ok := a.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close credential store")
		}
	}
	a.store = nil
}

func newApp() *app {
	a := &app{
		prompt: commands.TerminalPrompter{},
		getenv: os.Getenv,
		log:    zerolog.Nop(),
	}
	a.newStore = a.openStore
	return a
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vagali",
		Short: "VagALI - find and offer local services",
		Long: `VagALI CLI - sign in to the VagALI marketplace and manage your account.

Switch between hiring as a client and offering your services as a
professional, and keep your profile up to date.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// version and help need no session
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			return a.setup(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&a.ephemeral, "ephemeral", false, "Keep the credential in memory only for this run")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vagali version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewLoginCmd(a.deps))
	rootCmd.AddCommand(commands.NewLogoutCmd(a.deps))
	rootCmd.AddCommand(commands.NewWhoamiCmd(a.deps))
	rootCmd.AddCommand(commands.NewRoleCmd(a.deps))
	rootCmd.AddCommand(commands.NewProfileCmd(a.deps))
	rootCmd.AddCommand(commands.NewPasswordCmd(a.deps))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	a := newApp()
	defer a.teardown()

	if err := newRootCmd(a).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
