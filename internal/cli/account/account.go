// Package account is what commands see of the session: derived flags and
// the user-facing operations, delegated to the session controller.
package account

import (
	"context"
	"errors"
	"sync"

	"github.com/vagali-dev/vagali/internal/cli/client"
	"github.com/vagali-dev/vagali/internal/cli/session"
)

// ErrUnmounted is returned by operations after Unmount
var ErrUnmounted = errors.New("account view is no longer mounted")

// Controller is the slice of *session.Controller an Account needs
type Controller interface {
	Current() session.Session
	Subscribe(fn func(session.Session)) (unsubscribe func())
	Login(ctx context.Context, email, password string) (session.Session, error)
	Logout(ctx context.Context)
	ToggleRole() (session.Session, error)
	ConfirmedToggle(ctx context.Context) (session.Session, error)
	BecomeProfessional(ctx context.Context, details session.ProfessionalDetails) (session.Session, error)
	UpdateProfile(ctx context.Context, update client.ProfileUpdate) (session.Session, error)
	Refresh(ctx context.Context) (session.Session, error)
	ChangePassword(ctx context.Context, current, next, confirm string) error
	RequestPasswordReset(ctx context.Context, email string) error
}

var _ Controller = (*session.Controller)(nil)

// Account mirrors the latest session snapshot
type Account struct {
	ctrl        Controller
	unsubscribe func()

	mu       sync.RWMutex
	sess     session.Session
	mounted  bool
	onChange []func(session.Session)
}

// Mount subscribes to ctrl and returns a view of its session
func Mount(ctrl Controller) *Account {
	a := &Account{ctrl: ctrl, mounted: true}
	a.unsubscribe = ctrl.Subscribe(a.receive)
	a.mu.Lock()
	a.sess = ctrl.Current()
	a.mu.Unlock()
	return a
}

func (a *Account) receive(s session.Session) {
	a.mu.Lock()
	if !a.mounted {
		a.mu.Unlock()
		return
	}
	a.sess = s
	listeners := append(([]func(session.Session))(nil), a.onChange...)
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

// OnChange registers fn to run on every session change while mounted
func (a *Account) OnChange(fn func(session.Session)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onChange = append(a.onChange, fn)
}

// Unmount stops listening. Responses arriving afterwards are dropped.
func (a *Account) Unmount() {
	a.mu.Lock()
	if !a.mounted {
		a.mu.Unlock()
		return
	}
	a.mounted = false
	a.onChange = nil
	a.mu.Unlock()
	a.unsubscribe()
}

// Mounted reports whether the view still listens
func (a *Account) Mounted() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mounted
}

// Session returns the last snapshot received
func (a *Account) Session() session.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sess
}

func (a *Account) IsAuthenticated() bool {
	return a.Session().IsAuthenticated()
}

func (a *Account) IsProfessional() bool {
	return a.Session().IsProfessional()
}

func (a *Account) Login(ctx context.Context, email, password string) (session.Session, error) {
	if !a.Mounted() {
		return session.Session{}, ErrUnmounted
	}
	return a.ctrl.Login(ctx, email, password)
}

func (a *Account) Logout(ctx context.Context) error {
	if !a.Mounted() {
		return ErrUnmounted
	}
	a.ctrl.Logout(ctx)
	return nil
}

// Toggle is the local-only preview toggle
func (a *Account) Toggle() (session.Session, error) {
	if !a.Mounted() {
		return session.Session{}, ErrUnmounted
	}
	return a.ctrl.ToggleRole()
}

func (a *Account) ConfirmedToggle(ctx context.Context) (session.Session, error) {
	if !a.Mounted() {
		return session.Session{}, ErrUnmounted
	}
	return a.ctrl.ConfirmedToggle(ctx)
}

func (a *Account) BecomeProfessional(ctx context.Context, details session.ProfessionalDetails) (session.Session, error) {
	if !a.Mounted() {
		return session.Session{}, ErrUnmounted
	}
	return a.ctrl.BecomeProfessional(ctx, details)
}

func (a *Account) UpdateProfile(ctx context.Context, update client.ProfileUpdate) (session.Session, error) {
	if !a.Mounted() {
		return session.Session{}, ErrUnmounted
	}
	return a.ctrl.UpdateProfile(ctx, update)
}

func (a *Account) Refresh(ctx context.Context) (session.Session, error) {
	if !a.Mounted() {
		return session.Session{}, ErrUnmounted
	}
	return a.ctrl.Refresh(ctx)
}

func (a *Account) ChangePassword(ctx context.Context, current, next, confirm string) error {
	if !a.Mounted() {
		return ErrUnmounted
	}
	return a.ctrl.ChangePassword(ctx, current, next, confirm)
}

func (a *Account) RequestPasswordReset(ctx context.Context, email string) error {
	if !a.Mounted() {
		return ErrUnmounted
	}
	return a.ctrl.RequestPasswordReset(ctx, email)
}
