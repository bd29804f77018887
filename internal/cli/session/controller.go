package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/vagali-dev/vagali/internal/cli/auth"
	"github.com/vagali-dev/vagali/internal/cli/client"
)

const defaultLogoutTimeout = 5 * time.Second

// API is the part of the HTTP client the controller drives
type API interface {
	SetToken(token string)
	ClearToken()
	Login(ctx context.Context, email, password string) (*client.LoginResponse, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context) (*client.Profile, error)
	UpdateMe(ctx context.Context, update client.ProfileUpdate) (*client.Profile, error)
	ChangePassword(ctx context.Context, req client.ChangePasswordRequest) error
	RequestPasswordReset(ctx context.Context, email string) error
}

var _ API = (*client.Client)(nil)

// transitions lists the allowed state changes
var transitions = map[State]map[State]struct{}{
	StateUnauthenticated: {
		StateRestoring:       {},
		StateUnauthenticated: {},
	},
	StateRestoring: {
		StateAuthenticated:   {},
		StateUnauthenticated: {},
	},
	StateAuthenticated: {
		StateAuthenticated:        {},
		StateRestoring:            {},
		StateUnauthenticated:      {},
		StateAuthenticationFailed: {},
	},
	StateAuthenticationFailed: {
		StateRestoring:       {},
		StateUnauthenticated: {},
	},
}

// Option customizes a Controller
type Option func(*Controller)

// WithLogger sets the controller logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithLogoutTimeout bounds the best-effort remote logout call
func WithLogoutTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.logoutTimeout = d
		}
	}
}

// Controller owns the one Session of a running process. It is the only
// writer of the credential store and of the client's attached token.
//
// Network-backed transitions are serialised by opMu, so a login issued
// while a restore is in flight waits for it to settle. Every operation
// captures a generation number when it starts; results whose generation is
// no longer current (a logout or newer login happened) are discarded.
type Controller struct {
	store         auth.Store
	api           API
	logger        zerolog.Logger
	validate      *validator.Validate
	logoutTimeout time.Duration

	opMu      sync.Mutex
	loginBusy atomic.Bool

	// notifyMu orders subscriber delivery by commit order. It is always
	// taken before mu and held while subscribers run, never with mu held.
	notifyMu sync.Mutex

	mu    sync.Mutex
	sess  Session
	token string
	// confirmed is the role the backend last reported. sess.Role may
	// differ after a local-only toggle.
	confirmed Role
	gen       uint64
	started   bool
	closed    bool
	subs      map[int]func(Session)
	nextSub   int
}

// New creates a controller in the Unauthenticated state. Call Start to
// restore a stored credential.
func New(store auth.Store, api API, opts ...Option) *Controller {
	c := &Controller{
		store:         store,
		api:           api,
		logger:        zerolog.Nop(),
		validate:      newValidator(),
		logoutTimeout: defaultLogoutTimeout,
		sess:          Session{State: StateUnauthenticated},
		subs:          map[int]func(Session){},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current returns the latest snapshot
func (c *Controller) Current() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// LastKnown returns the cached role and email hints. They are for display
// only and say nothing about whether a session is valid.
func (c *Controller) LastKnown() auth.Record {
	hints, err := c.store.Hints()
	if err != nil {
		c.logger.Debug().Err(err).Msg("Failed to read cached session hints")
		return auth.Record{}
	}
	return hints
}

// Subscribe registers fn to receive every new snapshot, in commit order.
// fn may read the controller but must not start operations synchronously.
func (c *Controller) Subscribe(fn func(Session)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
		})
	}
}

// Close tears the session down. In-flight operations finish but their
// results are dropped; the stored credential is kept for the next process.
func (c *Controller) Close() {
	_ = c.update(func() error {
		c.closed = true
		c.subs = map[int]func(Session){}
		return nil
	})
}

// update runs fn under the state lock, then delivers the new snapshot to
// subscribers if it changed. Subscribers run without the state lock held.
func (c *Controller) update(fn func() error) error {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	before := c.sess
	err := fn()
	after := c.sess
	var subs []func(Session)
	if after != before && !c.closed {
		subs = make([]func(Session), 0, len(c.subs))
		for _, s := range c.subs {
			subs = append(subs, s)
		}
	}
	c.mu.Unlock()

	for _, s := range subs {
		s(after)
	}
	return err
}

func (c *Controller) transitionLocked(to State) error {
	if _, ok := transitions[c.sess.State][to]; !ok {
		c.logger.Error().
			Str("from", c.sess.State.String()).
			Str("to", to.String()).
			Msg("Rejected session transition")
		return ErrInvalidTransition
	}
	return nil
}

// currentLocked reports whether gen is still the live operation
func (c *Controller) currentLocked(gen uint64) bool {
	return !c.closed && gen == c.gen
}

// begin moves to Restoring for a new restore or login and returns the
// generation that owns the outcome.
func (c *Controller) begin(token string) (uint64, error) {
	var gen uint64
	err := c.update(func() error {
		if c.closed {
			return ErrClosed
		}
		if err := c.transitionLocked(StateRestoring); err != nil {
			return err
		}
		c.started = true
		c.gen++
		gen = c.gen
		c.setTokenLocked(token)
		c.confirmed = RoleNone
		c.sess = Session{State: StateRestoring, AuthLoading: true, Generation: gen}
		return nil
	})
	return gen, err
}

func (c *Controller) setTokenLocked(token string) {
	c.token = token
	if token == "" {
		c.api.ClearToken()
	} else {
		c.api.SetToken(token)
	}
}

// invalidate drops the credential and moves to state `to`, unless gen has
// been superseded.
func (c *Controller) invalidate(gen uint64, to State) error {
	return c.update(func() error {
		if !c.currentLocked(gen) {
			return ErrSuperseded
		}
		if err := c.transitionLocked(to); err != nil {
			return err
		}
		c.setTokenLocked("")
		if err := c.store.Clear(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to clear stored credential")
		}
		c.confirmed = RoleNone
		c.sess = Session{State: to, Generation: gen}
		return nil
	})
}

// authenticate installs profile as the session and persists token, role
// and email together. With mustPersist a failed write leaves the session
// untouched and is returned; otherwise it is only logged.
func (c *Controller) authenticate(gen uint64, profile *client.Profile, mustPersist bool) error {
	return c.update(func() error {
		if !c.currentLocked(gen) {
			return ErrSuperseded
		}
		if err := c.transitionLocked(StateAuthenticated); err != nil {
			return err
		}
		next := fromProfile(profile, gen)
		if err := c.store.Put(auth.Record{Token: c.token, Role: string(next.Role), Email: next.Email}); err != nil {
			if mustPersist {
				return fmt.Errorf("failed to save session: %w", err)
			}
			c.logger.Warn().Err(err).Msg("Failed to cache session in credential store")
		}
		c.confirmed = next.Role
		c.sess = next
		return nil
	})
}

// authenticated returns the live generation of an authenticated session
// and the role the backend last confirmed for it.
func (c *Controller) authenticated() (uint64, Role, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, RoleNone, ErrClosed
	}
	if c.sess.State != StateAuthenticated {
		return 0, RoleNone, ErrNotAuthenticated
	}
	return c.gen, c.confirmed, nil
}

// rejected handles an error from an authenticated call: a credential the
// server no longer accepts ends the session.
func (c *Controller) rejected(gen uint64, err error) {
	if !client.IsAuth(err) {
		return
	}
	c.logger.Warn().Err(err).Msg("Session rejected by server, signing out")
	_ = c.invalidate(gen, StateAuthenticationFailed)
}

// Start restores a stored credential. Restore failures are never returned:
// the user simply ends up unauthenticated. Only lifecycle misuse errors.
func (c *Controller) Start(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.started:
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	token, err := c.store.Load()
	if err != nil {
		if !errors.Is(err, auth.ErrNotFound) {
			c.logger.Warn().Err(err).Msg("Credential store unavailable, continuing signed out")
		}
		return nil
	}

	gen, err := c.begin(token)
	if err != nil {
		return err
	}

	profile, err := c.api.Me(ctx)
	if err != nil {
		if client.IsAuth(err) {
			c.logger.Warn().Err(err).Msg("Stored session expired")
		} else {
			c.logger.Info().Err(err).Msg("Could not restore session")
		}
		if ierr := c.invalidate(gen, StateUnauthenticated); errors.Is(ierr, ErrClosed) {
			return ierr
		}
		return nil
	}

	if err := c.authenticate(gen, profile, false); err != nil && !errors.Is(err, ErrSuperseded) {
		return err
	}
	c.logger.Debug().Str("email", profile.Email).Msg("Session restored")
	return nil
}

// Login authenticates with email and password, replacing any current
// session. Every failure is returned to the caller.
func (c *Controller) Login(ctx context.Context, email, password string) (Session, error) {
	if err := check(c.validate, loginInput{Email: email, Password: password}); err != nil {
		return c.Current(), err
	}
	if !c.loginBusy.CompareAndSwap(false, true) {
		return c.Current(), ErrLoginInProgress
	}
	defer c.loginBusy.Store(false)

	c.opMu.Lock()
	defer c.opMu.Unlock()

	gen, err := c.begin("")
	if err != nil {
		return c.Current(), err
	}

	fail := func(cause error) (Session, error) {
		if ierr := c.invalidate(gen, StateUnauthenticated); errors.Is(ierr, ErrSuperseded) {
			return c.Current(), ErrSuperseded
		}
		return c.Current(), cause
	}

	resp, err := c.api.Login(ctx, email, password)
	if err != nil {
		c.logger.Debug().Err(err).Str("email", email).Msg("Login rejected")
		return fail(err)
	}
	token := resp.Token()
	if token == "" {
		c.logger.Error().Str("email", email).Msg("Login response carried no token")
		return fail(ErrMissingToken)
	}

	err = c.update(func() error {
		if !c.currentLocked(gen) {
			return ErrSuperseded
		}
		// role is unknown until the profile arrives; drop any stale hint
		if err := c.store.Put(auth.Record{Token: token, Email: email}); err != nil {
			return err
		}
		c.setTokenLocked(token)
		return nil
	})
	if errors.Is(err, ErrSuperseded) {
		return c.Current(), err
	}
	if err != nil {
		return fail(err)
	}

	profile, err := c.api.Me(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Profile fetch after login failed")
		return fail(err)
	}

	if err := c.authenticate(gen, profile, true); err != nil {
		if errors.Is(err, ErrSuperseded) {
			return c.Current(), err
		}
		c.logger.Warn().Err(err).Msg("Could not save session after login")
		return fail(err)
	}
	c.logger.Info().Str("email", profile.Email).Str("role", string(RoleFor(profile.IsProfessional))).Msg("Logged in")
	return c.Current(), nil
}

// Logout ends the session locally right away and then tells the backend,
// ignoring its answer. It cannot fail and may be called repeatedly.
func (c *Controller) Logout(ctx context.Context) {
	var token string
	_ = c.update(func() error {
		token = c.token
		c.gen++
		c.confirmed = RoleNone
		c.setTokenLocked("")
		if err := c.store.Clear(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to clear stored credential")
		}
		c.sess = Session{State: StateUnauthenticated, Generation: c.gen}
		return nil
	})

	if token == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.logoutTimeout)
	defer cancel()
	if err := c.api.Logout(ctx, token); err != nil {
		c.logger.Debug().Err(err).Msg("Remote logout failed, ignoring")
	}
}

// ToggleRole flips the role locally and updates the cached hint, without
// asking the backend. The backend's record wins on the next restore or
// Refresh.
func (c *Controller) ToggleRole() (Session, error) {
	var out Session
	err := c.update(func() error {
		if c.closed {
			return ErrClosed
		}
		if c.sess.State != StateAuthenticated {
			return ErrNotAuthenticated
		}
		role := c.sess.Role.Opposite()
		if err := c.store.Put(auth.Record{Token: c.token, Role: string(role), Email: c.sess.Email}); err != nil {
			return err
		}
		c.sess.Role = role
		out = c.sess
		return nil
	})
	if err != nil {
		return c.Current(), err
	}
	return out, nil
}

// ConfirmedToggle asks the backend to switch away from the role it last
// confirmed and only changes the local role once it agrees. A local-only
// toggle does not affect the target.
func (c *Controller) ConfirmedToggle(ctx context.Context) (Session, error) {
	return c.patch(ctx, func(confirmed Role) (client.ProfileUpdate, bool) {
		isProfessional := confirmed.Opposite() == RoleProfessional
		return client.ProfileUpdate{IsProfessional: &isProfessional}, true
	})
}

// BecomeProfessional switches a client to the professional role on the
// backend, recording profession and CNPJ. Already professional is a no-op.
func (c *Controller) BecomeProfessional(ctx context.Context, details ProfessionalDetails) (Session, error) {
	details.CNPJ = DigitsOnly(details.CNPJ)
	if err := check(c.validate, details); err != nil {
		return c.Current(), err
	}

	return c.patch(ctx, func(confirmed Role) (client.ProfileUpdate, bool) {
		if confirmed == RoleProfessional {
			return client.ProfileUpdate{}, false
		}
		isProfessional := true
		fields := &client.ProfileFields{Profession: &details.Profession}
		if details.HasCNPJ {
			fields.CNPJ = &details.CNPJ
		}
		return client.ProfileUpdate{IsProfessional: &isProfessional, Profile: fields}, true
	})
}

// UpdateProfile patches profile fields. Role and display name follow the
// backend's answer.
func (c *Controller) UpdateProfile(ctx context.Context, update client.ProfileUpdate) (Session, error) {
	if update.Profile != nil && update.Profile.CNPJ != nil {
		digits := DigitsOnly(*update.Profile.CNPJ)
		update.Profile.CNPJ = &digits
	}
	return c.patch(ctx, func(Role) (client.ProfileUpdate, bool) { return update, true })
}

// patch builds the update from the confirmed role under opMu, so no other
// confirmed operation can change it in between. build returning false
// means there is nothing to send.
func (c *Controller) patch(ctx context.Context, build func(confirmed Role) (client.ProfileUpdate, bool)) (Session, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	gen, confirmed, err := c.authenticated()
	if err != nil {
		return c.Current(), err
	}
	update, ok := build(confirmed)
	if !ok {
		return c.Current(), nil
	}

	profile, err := c.api.UpdateMe(ctx, update)
	if err != nil {
		c.rejected(gen, err)
		return c.Current(), err
	}

	if err := c.authenticate(gen, profile, false); err != nil {
		return c.Current(), err
	}
	return c.Current(), nil
}

// Refresh re-reads the profile, reconciling any local-only role change
func (c *Controller) Refresh(ctx context.Context) (Session, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	gen, _, err := c.authenticated()
	if err != nil {
		return c.Current(), err
	}

	profile, err := c.api.Me(ctx)
	if err != nil {
		c.rejected(gen, err)
		return c.Current(), err
	}

	if err := c.authenticate(gen, profile, false); err != nil {
		return c.Current(), err
	}
	return c.Current(), nil
}

// ChangePassword changes the password of the signed-in user
func (c *Controller) ChangePassword(ctx context.Context, current, next, confirm string) error {
	in := passwordChangeInput{CurrentPassword: current, NewPassword: next, ReNewPassword: confirm}
	if err := check(c.validate, in); err != nil {
		return err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	gen, _, err := c.authenticated()
	if err != nil {
		return err
	}

	err = c.api.ChangePassword(ctx, client.ChangePasswordRequest{
		CurrentPassword: current,
		NewPassword:     next,
		ReNewPassword:   confirm,
	})
	if err != nil {
		c.rejected(gen, err)
		return err
	}
	return nil
}

// RequestPasswordReset asks the backend to e-mail a reset link. No session
// is needed.
func (c *Controller) RequestPasswordReset(ctx context.Context, email string) error {
	if err := check(c.validate, resetInput{Email: email}); err != nil {
		return err
	}
	return c.api.RequestPasswordReset(ctx, email)
}
