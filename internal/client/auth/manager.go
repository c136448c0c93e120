// Package auth tracks who is signed in on the client and keeps the stored
// session in step with the server's answers.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/bug-tracker/internal/client/api"
	"github.com/99minutos/bug-tracker/internal/client/session"
)

const (
	minPasswordLength     = 6
	backgroundLogoutLimit = 5 * time.Second

	msgRequiredFields     = "Please fill in all required fields"
	msgPasswordMismatch   = "Passwords do not match"
	msgPasswordTooShort   = "Password must be at least 6 characters"
	msgNewPasswordsDiffer = "New passwords do not match."
	msgRegisterFailed     = "Registration failed. Please try again."
	msgLoginFailed        = "Login failed. Please try again."
	msgProfileFailed      = "Failed to update profile. Please try again."
	msgSessionExpired     = "Your session has expired. Please log in again."
)

// ErrNoSession is the cause of errors from calls that need a signed-in user.
var ErrNoSession = errors.New("auth: no active session")

type State int

const (
	Unknown State = iota
	Anonymous
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is what subscribers see. User is nil unless State is Authenticated.
type Snapshot struct {
	State State
	User  *session.User
}

// Error carries a message meant for the user. Err is the cause, if any.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// Backend is the part of the API the manager talks to.
type Backend interface {
	Login(ctx context.Context, in api.Credentials) (*api.AuthResponse, error)
	Register(ctx context.Context, in api.Registration) (*api.AuthResponse, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, in api.ProfileUpdate) (*api.User, error)
}

type LoginInput struct {
	Email    string
	Password string
}

type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

type ProfileInput struct {
	Name            string
	Email           string
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

type Manager struct {
	store   *session.Store
	backend Backend
	log     zerolog.Logger

	mu      sync.RWMutex
	state   State
	user    *session.User
	token   string
	subs    map[int]func(Snapshot)
	nextSub int

	pending sync.WaitGroup
}

func NewManager(store *session.Store, backend Backend, log zerolog.Logger) *Manager {
	return &Manager{
		store:   store,
		backend: backend,
		log:     log,
		subs:    map[int]func(Snapshot){},
	}
}

// NewWithClient builds a manager together with the API client it drives. The
// client reads its bearer token from the manager and reports 401s back to it.
func NewWithClient(store *session.Store, baseURL string, log zerolog.Logger, opts ...api.Option) (*Manager, *api.Client) {
	m := NewManager(store, nil, log)
	opts = append(opts,
		api.WithTokenSource(m.Token),
		api.WithUnauthorizedHandler(m.HandleUnauthorized),
	)
	client := api.New(baseURL, opts...)
	m.backend = client
	return m, client
}

// Bootstrap reads the stored session and settles the initial state.
func (m *Manager) Bootstrap() Snapshot {
	sess, err := m.store.Current()
	if err != nil {
		m.log.Warn().Err(err).Msg("reading stored session")
	}
	if sess == nil {
		if err == nil {
			_ = m.store.Clear()
		}
		return m.set(Anonymous, nil, "")
	}
	u := sess.User
	return m.set(Authenticated, &u, sess.Token)
}

// CurrentUser returns the stored user while its token is unexpired.
func (m *Manager) CurrentUser() *session.User {
	sess, err := m.store.Current()
	if err != nil || sess == nil {
		return nil
	}
	u := sess.User
	return &u
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Token returns the bearer token of the current session, or "".
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Subscribe calls fn on every state change until the returned func is called.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) Login(ctx context.Context, in LoginInput) (*session.User, error) {
	email := strings.TrimSpace(in.Email)
	switch {
	case email == "":
		return nil, &Error{Message: "Email is required"}
	case in.Password == "":
		return nil, &Error{Message: "Password is required"}
	}

	resp, err := m.backend.Login(ctx, api.Credentials{Email: email, Password: in.Password})
	if err != nil {
		return nil, &Error{Message: api.UserMessage(err, msgLoginFailed), Err: err}
	}
	return m.establish(resp)
}

// Register validates locally before any request is sent.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (*session.User, error) {
	name, email := strings.TrimSpace(in.Name), strings.TrimSpace(in.Email)
	switch {
	case name == "" || email == "" || in.Password == "":
		return nil, &Error{Message: msgRequiredFields}
	case in.Password != in.ConfirmPassword:
		return nil, &Error{Message: msgPasswordMismatch}
	case len(in.Password) < minPasswordLength:
		return nil, &Error{Message: msgPasswordTooShort}
	}

	resp, err := m.backend.Register(ctx, api.Registration{Name: name, Email: email, Password: in.Password})
	if err != nil {
		return nil, &Error{Message: api.UserMessage(err, msgRegisterFailed), Err: err}
	}
	return m.establish(resp)
}

// Logout forgets the session immediately. The server is told in the
// background and its answer is ignored.
func (m *Manager) Logout() {
	token := m.Token()
	if err := m.store.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("clearing stored session")
	}
	m.set(Anonymous, nil, "")

	if token == "" || m.backend == nil {
		return
	}
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundLogoutLimit)
		defer cancel()
		if err := m.backend.Logout(api.WithBearer(ctx, token)); err != nil {
			m.log.Debug().Err(err).Msg("server logout")
		}
	}()
}

// Wait blocks until background logout requests have finished.
func (m *Manager) Wait() { m.pending.Wait() }

// HandleUnauthorized drops the session after the server rejected its token.
func (m *Manager) HandleUnauthorized() {
	if m.Snapshot().State != Authenticated {
		return
	}
	if err := m.store.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("clearing stored session")
	}
	m.set(Anonymous, nil, "")
}

// UpdateProfile saves profile changes and refreshes the stored user. The
// token is unchanged.
func (m *Manager) UpdateProfile(ctx context.Context, in ProfileInput) (*session.User, error) {
	token := m.Token()
	if token == "" || m.Snapshot().State != Authenticated {
		return nil, &Error{Message: msgSessionExpired, Err: ErrNoSession}
	}
	if in.NewPassword != in.ConfirmPassword {
		return nil, &Error{Message: msgNewPasswordsDiffer}
	}

	req := api.ProfileUpdate{Name: in.Name, Email: in.Email}
	if in.CurrentPassword != "" {
		req.CurrentPassword = in.CurrentPassword
		req.NewPassword = in.NewPassword
	}

	updated, err := m.backend.UpdateProfile(ctx, req)
	if err != nil {
		return nil, &Error{Message: api.UserMessage(err, msgProfileFailed), Err: err}
	}

	u := session.User{ID: updated.ID, Name: updated.Name, Email: updated.Email, Role: updated.Role}
	if token != m.Token() {
		// Logged out or replaced while the request was in flight.
		return nil, &Error{Message: msgSessionExpired, Err: ErrNoSession}
	}
	if err := m.store.Save(session.Session{Token: token, User: u}); err != nil {
		return nil, err
	}
	m.set(Authenticated, &u, token)
	return &u, nil
}

func (m *Manager) establish(resp *api.AuthResponse) (*session.User, error) {
	u := session.User{ID: resp.User.ID, Name: resp.User.Name, Email: resp.User.Email, Role: resp.User.Role}
	if err := m.store.Save(session.Session{Token: resp.Token, User: u}); err != nil {
		return nil, err
	}
	m.set(Authenticated, &u, resp.Token)
	return &u, nil
}

func (m *Manager) set(state State, u *session.User, token string) Snapshot {
	m.mu.Lock()
	m.state, m.user, m.token = state, u, token
	snap := m.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return snap
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{State: m.state}
	if m.user != nil {
		u := *m.user
		snap.User = &u
	}
	return snap
}
