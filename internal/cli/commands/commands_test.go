package commands

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vagali-dev/vagali/internal/cli/account"
	"github.com/vagali-dev/vagali/internal/cli/auth"
	"github.com/vagali-dev/vagali/internal/cli/client"
	"github.com/vagali-dev/vagali/internal/cli/fakeapi"
	"github.com/vagali-dev/vagali/internal/cli/session"
)

const (
	testEmail    = "ana@vagali.com"
	testPassword = "secret123"
)

// scriptedPrompter answers prompts from queues; an empty queue fails the test
type scriptedPrompter struct {
	t           *testing.T
	interactive bool
	passwords   []string
	inputs      []string
	confirms    []bool
	selects     []int
	asked       []string
}

func (p *scriptedPrompter) Interactive() bool { return p.interactive }

func (p *scriptedPrompter) Password(label string) (string, error) {
	p.asked = append(p.asked, label)
	if !p.interactive {
		return "", errNonInteractive
	}
	require.NotEmpty(p.t, p.passwords, "unexpected password prompt %q", label)
	v := p.passwords[0]
	p.passwords = p.passwords[1:]
	return v, nil
}

func (p *scriptedPrompter) Input(label string, validate func(string) error) (string, error) {
	p.asked = append(p.asked, label)
	if !p.interactive {
		return "", errNonInteractive
	}
	require.NotEmpty(p.t, p.inputs, "unexpected input prompt %q", label)
	v := p.inputs[0]
	p.inputs = p.inputs[1:]
	if validate != nil {
		if err := validate(v); err != nil {
			return "", err
		}
	}
	return v, nil
}

func (p *scriptedPrompter) Confirm(label string) (bool, error) {
	p.asked = append(p.asked, label)
	if !p.interactive {
		return false, errNonInteractive
	}
	require.NotEmpty(p.t, p.confirms, "unexpected confirm prompt %q", label)
	v := p.confirms[0]
	p.confirms = p.confirms[1:]
	return v, nil
}

func (p *scriptedPrompter) Select(label string, items []string) (int, error) {
	p.asked = append(p.asked, label)
	if !p.interactive {
		return 0, errNonInteractive
	}
	require.NotEmpty(p.t, p.selects, "unexpected select prompt %q", label)
	v := p.selects[0]
	p.selects = p.selects[1:]
	return v, nil
}

type testEnv struct {
	api    *fakeapi.Server
	store  *auth.MemoryStore
	ctrl   *session.Controller
	prompt *scriptedPrompter
	env    map[string]string
	deps   *Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	api, err := fakeapi.New()
	require.NoError(t, err)
	t.Cleanup(func() { api.Close() })
	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)

	_, err = api.CreateUser(testEmail, testPassword, false)
	require.NoError(t, err)

	e := &testEnv{
		api:    api,
		store:  auth.NewMemoryStore(),
		prompt: &scriptedPrompter{t: t},
		env:    map[string]string{},
	}
	e.ctrl = session.New(e.store, client.New(ts.URL+fakeapi.Prefix))
	require.NoError(t, e.ctrl.Start(context.Background()))
	acct := account.Mount(e.ctrl)
	t.Cleanup(func() {
		acct.Unmount()
		e.ctrl.Close()
	})

	e.deps = &Deps{
		Account:   acct,
		LastKnown: e.ctrl.LastKnown,
		Prompt:    e.prompt,
		Getenv:    func(k string) string { return e.env[k] },
	}
	return e
}

func (e *testEnv) resolve() (*Deps, error) { return e.deps, nil }

// newTestRoot mounts the commands the way the CLI root does, without the
// session setup hooks
func newTestRoot(resolve Resolver) *cobra.Command {
	root := &cobra.Command{Use: "vagali", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(
		NewLoginCmd(resolve),
		NewLogoutCmd(resolve),
		NewWhoamiCmd(resolve),
		NewRoleCmd(resolve),
		NewProfileCmd(resolve),
		NewPasswordCmd(resolve),
	)
	return root
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newTestRoot(e.resolve)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	_, err := e.run(t, "login", "--email", testEmail, "--password", testPassword)
	require.NoError(t, err)
	require.True(t, e.deps.Account.IsAuthenticated())
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)

	out, err := e.run(t, "login", "--email", testEmail, "--password", testPassword)
	require.NoError(t, err)

	assert.Contains(t, out, "Login successful")
	assert.Contains(t, out, "Role: Client")
	assert.True(t, e.deps.Account.IsAuthenticated())
	assert.NotEmpty(t, e.store.Snapshot().Token)
	assert.Equal(t, "Client", e.store.Snapshot().Role)
}

func TestLogin_FromEnvironment(t *testing.T) {
	e := newTestEnv(t)
	e.env["VAGALI_EMAIL"] = testEmail
	e.env["VAGALI_PASSWORD"] = testPassword

	_, err := e.run(t, "login")
	require.NoError(t, err)
	assert.True(t, e.deps.Account.IsAuthenticated())
}

func TestLogin_PromptsForPassword(t *testing.T) {
	e := newTestEnv(t)
	e.prompt.interactive = true
	e.prompt.passwords = []string{testPassword}

	_, err := e.run(t, "login", "--email", testEmail)
	require.NoError(t, err)
	assert.Equal(t, []string{"Password"}, e.prompt.asked)
}

func TestLogin_NonInteractiveNeedsPassword(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.run(t, "login", "--email", testEmail)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VAGALI_PASSWORD")

	_, err = e.run(t, "login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email is required")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.run(t, "login", "--email", testEmail, "--password", "wrong")
	require.Error(t, err)
	assert.True(t, client.IsValidation(err))
	assert.Contains(t, err.Error(), "Unable to log in with provided credentials.")
	assert.False(t, e.deps.Account.IsAuthenticated())
	assert.Equal(t, auth.Record{}, e.store.Snapshot())
}

func TestLogin_ProfileFailureLeavesNoSession(t *testing.T) {
	e := newTestEnv(t)
	e.api.Fail(http.MethodGet, "accounts/perfil/me/", http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})

	_, err := e.run(t, "login", "--email", testEmail, "--password", testPassword)
	require.Error(t, err)
	assert.True(t, client.IsAuth(err))
	assert.Equal(t, auth.Record{}, e.store.Snapshot())
}

func TestLogoutAndWhoami(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	out, err := e.run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in")
	assert.Contains(t, out, testEmail)
	assert.Contains(t, out, "become-professional")

	out, err = e.run(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
	assert.Equal(t, auth.Record{}, e.store.Snapshot())
	assert.Equal(t, 1, e.api.Calls(http.MethodPost, "auth/logout/"))

	out, err = e.run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in.")

	_, err = e.run(t, "logout")
	require.NoError(t, err, "logout twice is fine")
}

func TestRoleToggle(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		e := newTestEnv(t)
		e.login(t)
		patches := e.api.Calls(http.MethodPatch, "accounts/perfil/me/")

		out, err := e.run(t, "role", "toggle", "--local")
		require.NoError(t, err)
		assert.Contains(t, out, "previewing as Professional")
		assert.Equal(t, patches, e.api.Calls(http.MethodPatch, "accounts/perfil/me/"))
		assert.Equal(t, "Professional", e.store.Snapshot().Role)

		user, err := e.api.User(testEmail)
		require.NoError(t, err)
		assert.False(t, user.IsProfessional, "server record untouched")
	})

	t.Run("confirmed", func(t *testing.T) {
		e := newTestEnv(t)
		e.login(t)

		out, err := e.run(t, "role", "toggle")
		require.NoError(t, err)
		assert.Contains(t, out, "Role changed to Professional")

		user, err := e.api.User(testEmail)
		require.NoError(t, err)
		assert.True(t, user.IsProfessional)
	})

	t.Run("confirmed failure keeps role", func(t *testing.T) {
		e := newTestEnv(t)
		e.login(t)
		e.api.Fail(http.MethodPatch, "accounts/perfil/me/", http.StatusInternalServerError, nil)

		_, err := e.run(t, "role", "toggle")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "try again later")
		assert.False(t, e.deps.Account.IsProfessional())
		assert.Equal(t, "Client", e.store.Snapshot().Role)
	})

	t.Run("needs session", func(t *testing.T) {
		e := newTestEnv(t)
		_, err := e.run(t, "role", "toggle", "--local")
		assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	})
}

func TestRoleToggle_HelpDescribesRestore(t *testing.T) {
	e := newTestEnv(t)
	out, err := e.run(t, "role", "toggle", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "on the next command,\nwhen the session is restored")
	assert.NotContains(t, out, "next login")
}

func TestBecomeProfessional(t *testing.T) {
	t.Run("flags", func(t *testing.T) {
		e := newTestEnv(t)
		e.login(t)

		out, err := e.run(t, "role", "become-professional", "--profession", "Eletricista", "--cnpj", "12.345.678/0001-90", "--yes")
		require.NoError(t, err)
		assert.Contains(t, out, "You are now a professional!")

		user, err := e.api.User(testEmail)
		require.NoError(t, err)
		assert.True(t, user.IsProfessional)
		assert.Equal(t, "Eletricista", user.Profession)
		assert.Equal(t, "12345678000190", user.CNPJ)

		out, err = e.run(t, "role", "become-professional", "--yes")
		require.NoError(t, err)
		assert.Contains(t, out, "already a professional")
	})

	t.Run("wizard", func(t *testing.T) {
		e := newTestEnv(t)
		e.login(t)
		e.prompt.interactive = true
		e.prompt.confirms = []bool{true, true}
		e.prompt.selects = []int{3}
		e.prompt.inputs = []string{"12345678901"}

		_, err := e.run(t, "role", "become-professional")
		require.NoError(t, err)

		user, err := e.api.User(testEmail)
		require.NoError(t, err)
		assert.Equal(t, session.Professions[3], user.Profession)
		assert.Equal(t, "12345678901", user.CNPJ)
	})

	t.Run("declined", func(t *testing.T) {
		e := newTestEnv(t)
		e.login(t)
		e.prompt.interactive = true
		e.prompt.confirms = []bool{false}

		out, err := e.run(t, "role", "become-professional")
		require.NoError(t, err)
		assert.Contains(t, out, "Cancelled.")
		assert.False(t, e.deps.Account.IsProfessional())
	})

	t.Run("non-interactive needs yes", func(t *testing.T) {
		e := newTestEnv(t)
		e.login(t)

		_, err := e.run(t, "role", "become-professional", "--profession", "Pintor")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--yes")
	})

	t.Run("unknown profession", func(t *testing.T) {
		e := newTestEnv(t)
		e.login(t)

		_, err := e.run(t, "role", "become-professional", "--profession", "Astronauta", "--yes")
		var inErr *session.InputError
		require.ErrorAs(t, err, &inErr)
		assert.Contains(t, err.Error(), "profession: Choose one of")
		assert.Equal(t, 0, e.api.Calls(http.MethodPatch, "accounts/perfil/me/"))
	})
}

func TestProfileSet(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	out, err := e.run(t, "profile", "set", "--full-name", "Ana Souza", "--cep", "01001-000")
	require.NoError(t, err)
	assert.Contains(t, out, "User: Ana Souza")

	user, err := e.api.User(testEmail)
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", user.FullName)
	assert.Equal(t, "01001-000", user.CEP)
	assert.Empty(t, user.Bio, "unset flags are not sent")

	_, err = e.run(t, "profile", "set")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to update")

	_, err = e.run(t, "profile", "set", "--cnpj", "123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile.cnpj: Enter a valid CNPJ.")
}

func TestProfileSet_ExpiredSession(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	require.NoError(t, e.api.ExpireSessions())

	_, err := e.run(t, "profile", "set", "--bio", "Pinturas em geral")
	require.Error(t, err)
	assert.True(t, client.IsAuth(err))
	assert.Equal(t, session.StateAuthenticationFailed, e.deps.Account.Session().State)
	assert.Equal(t, auth.Record{}, e.store.Snapshot())
}

func TestPasswordChange(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	e.prompt.interactive = true
	e.prompt.passwords = []string{testPassword, "novasenha", "novasenha"}

	out, err := e.run(t, "password", "change")
	require.NoError(t, err)
	assert.Contains(t, out, "Password changed")

	e.prompt.passwords = []string{testPassword, "abc", "abd"}
	_, err = e.run(t, "password", "change")
	var inErr *session.InputError
	require.ErrorAs(t, err, &inErr)
	assert.Contains(t, err.Error(), "re_new_password: Passwords do not match.")
}

func TestPasswordReset(t *testing.T) {
	e := newTestEnv(t)

	out, err := e.run(t, "password", "reset", "--email", testEmail)
	require.NoError(t, err)
	assert.Contains(t, out, "reset link")
	assert.Equal(t, []string{testEmail}, e.api.ResetRequests())

	_, err = e.run(t, "password", "reset")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email is required")
}

func TestCommandError_Unwraps(t *testing.T) {
	err := fail("Login failed", session.ErrLoginInProgress)
	assert.ErrorIs(t, err, session.ErrLoginInProgress)
	assert.Equal(t, "Login failed:\nA login is already in progress.", err.Error())
	assert.False(t, errors.Is(err, session.ErrClosed))
}
