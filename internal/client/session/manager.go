package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/orderdesk/internal/core/domain"
	"github.com/99minutos/orderdesk/internal/core/ports"
	"github.com/99minutos/orderdesk/internal/metrics"
)

// EventKind names the transition that produced an Event.
type EventKind string

const (
	EventRestore EventKind = "restore"
	EventLogin   EventKind = "login"
	EventLogout  EventKind = "logout"
	EventExpired EventKind = "expired"
)

// Destination is the navigation hint attached to an Event.
type Destination int

const (
	StayPut Destination = iota
	GoHome
	GoLogin
)

// Event is delivered to listeners after every committed session change.
type Event struct {
	Kind     EventKind
	Session  domain.Session
	Navigate Destination
	// Cause is set for EventExpired and for degraded logins.
	Cause error
}

// Listener receives session events. It runs on the goroutine that caused the
// change and must not call back into Login or Logout.
type Listener func(Event)

// Manager owns the in-memory session and keeps it in sync with the
// persistent store.
type Manager struct {
	api   ports.AuthAPI
	store ports.SessionStore
	log   zerolog.Logger

	// opMu serialises state transitions so a rollback never clobbers a
	// concurrent commit.
	opMu sync.Mutex

	mu      sync.RWMutex
	current domain.Session

	lmu       sync.Mutex
	listeners []subscription
	nextID    uint64
}

type subscription struct {
	id uint64
	fn Listener
}

// NewManager returns a logged-out Manager. Call Restore to rehydrate.
func NewManager(api ports.AuthAPI, store ports.SessionStore, log zerolog.Logger) *Manager {
	return &Manager{
		api:       api,
		store:     store,
		log:       log,
	}
}

// Current returns the session held in memory. It performs no I/O.
func (m *Manager) Current() domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Token returns the bearer token for outgoing requests, or "".
func (m *Manager) Token() string {
	return m.Current().Token
}

// Subscribe registers fn and returns a function that removes it.
func (m *Manager) Subscribe(fn Listener) func() {
	m.lmu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners = append(m.listeners, subscription{id: id, fn: fn})
	m.lmu.Unlock()

	return func() {
		m.lmu.Lock()
		defer m.lmu.Unlock()
		for i, sub := range m.listeners {
			if sub.id == id {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// Restore loads the session persisted by a previous run. The token is not
// checked against the API; the first rejected request will end the session.
func (m *Manager) Restore(ctx context.Context) error {
	m.opMu.Lock()
	stored, err := m.store.Get(ctx)
	if err != nil {
		m.opMu.Unlock()
		m.log.Warn().Err(err).Msg("could not read persisted session, starting logged out")
		return &domain.PersistenceError{Op: "restore", Err: err}
	}

	s := stored.Normalize()
	if stored.Token == "" && stored.Role != "" {
		// A role without a token is a leftover from a partial write by an
		// older client; drop it.
		if err := m.store.Clear(ctx); err != nil {
			m.log.Warn().Err(err).Msg("could not clear orphaned user_type")
		}
	}
	m.set(s)
	m.opMu.Unlock()

	m.log.Debug().Bool("authenticated", s.Authenticated()).Str("role", string(s.Role)).Msg("session restored")
	m.emit(Event{Kind: EventRestore, Session: s})
	return nil
}

// Login exchanges credentials for a token and persists the resulting session.
//
// A token whose claims cannot be read still logs the user in: the returned
// session has no role and the error is a *domain.DecodeError. Any other error
// leaves the current session untouched.
func (m *Manager) Login(ctx context.Context, username, password string) (domain.Session, error) {
	token, err := m.api.Login(ctx, username, password)
	if err != nil {
		metrics.SessionLoginsTotal.WithLabelValues("rejected").Inc()
		m.log.Info().Err(err).Str("username", username).Msg("login failed")
		return m.Current(), err
	}

	next := domain.Session{Token: token}
	role, decodeErr := RoleOf(token)
	if decodeErr == nil {
		next.Role = role
	} else {
		m.log.Warn().Err(decodeErr).Str("username", username).Msg("unable to parse token payload, continuing without role")
	}

	if err := m.commit(ctx, next, "login"); err != nil {
		metrics.SessionLoginsTotal.WithLabelValues("store_failed").Inc()
		return m.Current(), err
	}

	outcome := "ok"
	if decodeErr != nil {
		outcome = "degraded"
	}
	metrics.SessionLoginsTotal.WithLabelValues(outcome).Inc()
	m.log.Info().Str("username", username).Str("role", string(next.Role)).Msg("logged in")

	m.emit(Event{Kind: EventLogin, Session: next, Navigate: GoHome, Cause: decodeErr})
	return next, decodeErr
}

// Logout drops the session from memory and from the store. Calling it when
// already logged out is a no-op apart from the navigation event.
func (m *Manager) Logout(ctx context.Context) error {
	return m.end(ctx, EventLogout, nil)
}

// ForceLogout ends the session because the API rejected the token.
func (m *Manager) ForceLogout(ctx context.Context, cause error) error {
	if !m.Current().Authenticated() {
		return nil
	}
	m.log.Warn().Err(cause).Msg("session rejected by api, logging out")
	return m.end(ctx, EventExpired, cause)
}

// HandleUnauthorized is a querycache hook: it ends the session when err is a
// *domain.AuthorizationError.
func (m *Manager) HandleUnauthorized(ctx context.Context, err error) {
	var authzErr *domain.AuthorizationError
	if !errors.As(err, &authzErr) {
		return
	}
	if lerr := m.ForceLogout(ctx, err); lerr != nil {
		m.log.Error().Err(lerr).Msg("forced logout failed")
	}
}

func (m *Manager) end(ctx context.Context, kind EventKind, cause error) error {
	if err := m.commit(ctx, domain.Session{}, "logout"); err != nil {
		return err
	}
	metrics.SessionLogoutsTotal.WithLabelValues(string(kind)).Inc()
	m.log.Info().Str("reason", string(kind)).Msg("logged out")
	m.emit(Event{Kind: kind, Navigate: GoLogin, Cause: cause})
	return nil
}

// commit swaps the in-memory session and persists it, rolling the memory
// change back when the store write fails.
func (m *Manager) commit(ctx context.Context, next domain.Session, op string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	prev := m.Current()
	m.set(next)

	var err error
	if next.Authenticated() {
		err = m.store.Set(ctx, next)
	} else {
		err = m.store.Clear(ctx)
	}
	if err != nil {
		m.set(prev)
		m.log.Error().Err(err).Str("op", op).Msg("session store write failed, rolled back")
		return &domain.PersistenceError{Op: op, Err: err}
	}
	return nil
}

func (m *Manager) set(s domain.Session) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
}

func (m *Manager) emit(ev Event) {
	m.lmu.Lock()
	fns := make([]Listener, 0, len(m.listeners))
	for _, sub := range m.listeners {
		fns = append(fns, sub.fn)
	}
	m.lmu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
