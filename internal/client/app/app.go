// Package app wires the session manager, the navigation router and the query
// cache around one API client. It is what the CLI drives.
package app

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/99minutos/orderdesk/internal/client/authz"
	"github.com/99minutos/orderdesk/internal/client/querycache"
	"github.com/99minutos/orderdesk/internal/client/session"
	"github.com/99minutos/orderdesk/internal/core/domain"
	"github.com/99minutos/orderdesk/internal/core/ports"
	"github.com/99minutos/orderdesk/internal/pkg/validation"
)

// Query keys.
const (
	KeyOrders = "orders"
	KeyUsers  = "users"
)

// UserKey is the query key of a single user.
func UserKey(id int64) string {
	return "user:" + strconv.FormatInt(id, 10)
}

// App is the client runtime. Views read through the cache and write through
// the Mutate helpers; session changes reset the cache and re-run the gate.
type App struct {
	api      ports.RemoteAPI
	sessions *session.Manager
	router   *authz.Router
	cache    *querycache.Cache
	validate *validation.Validator
	log      zerolog.Logger

	unsubscribe func()
}

// New builds an App. The API client should read its bearer token from the
// returned App's Sessions().
func New(api ports.RemoteAPI, store ports.SessionStore, log zerolog.Logger) *App {
	a := &App{
		api:      api,
		validate: validation.New(),
		log:      log,
	}
	a.sessions = session.NewManager(api, store, log.With().Str("component", "session").Logger())
	a.cache = querycache.New(
		log.With().Str("component", "querycache").Logger(),
		querycache.WithUnauthorizedHandler(a.sessions.HandleUnauthorized),
	)
	// Subscribed before the router so the cache is already empty when a view
	// reacts to the navigation.
	a.unsubscribe = a.sessions.Subscribe(a.onSessionEvent)
	a.router = authz.NewRouter(a.sessions, log.With().Str("component", "router").Logger())

	a.cache.Register(KeyOrders, func(ctx context.Context) (any, error) {
		return api.ListOrders(ctx)
	})
	a.cache.Register(KeyUsers, func(ctx context.Context) (any, error) {
		return api.ListUsers(ctx)
	})
	return a
}

func (a *App) Sessions() *session.Manager { return a.sessions }
func (a *App) Router() *authz.Router      { return a.router }
func (a *App) Cache() *querycache.Cache   { return a.cache }

// Start rehydrates the persisted session without contacting the API.
func (a *App) Start(ctx context.Context) error {
	return a.sessions.Restore(ctx)
}

// Close detaches the router and the cache from the session manager.
func (a *App) Close() {
	a.router.Close()
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}

// Open navigates to path through the authorization gate.
func (a *App) Open(path string) authz.Transition {
	return a.router.Navigate(path)
}

// Login authenticates; a *domain.DecodeError return still means logged in.
func (a *App) Login(ctx context.Context, username, password string) (domain.Session, error) {
	if err := a.validate.Struct(domain.Credentials{Username: username, Password: password}); err != nil {
		return a.sessions.Current(), err
	}
	return a.sessions.Login(ctx, username, password)
}

func (a *App) Logout(ctx context.Context) error {
	return a.sessions.Logout(ctx)
}

// Orders returns the caller's orders through the cache.
func (a *App) Orders(ctx context.Context) ([]domain.Order, error) {
	e, err := a.cache.Fetch(ctx, KeyOrders)
	if rejected(err) {
		return nil, err
	}
	return querycache.ValueOf[[]domain.Order](e), err
}

// CreateOrder validates in, creates the order and invalidates the order list.
func (a *App) CreateOrder(ctx context.Context, in domain.CreateOrderInput) (*domain.Order, error) {
	if err := a.validate.Struct(in); err != nil {
		return nil, err
	}
	v, err := a.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		return a.api.CreateOrder(ctx, in)
	}, KeyOrders)
	if err != nil {
		return nil, err
	}
	return v.(*domain.Order), nil
}

// Users returns every account through the cache. Admin only.
func (a *App) Users(ctx context.Context) ([]domain.User, error) {
	e, err := a.cache.Fetch(ctx, KeyUsers)
	if rejected(err) {
		return nil, err
	}
	return querycache.ValueOf[[]domain.User](e), err
}

// User returns one account through the cache. Admin only.
func (a *App) User(ctx context.Context, id int64) (*domain.User, error) {
	key := UserKey(id)
	a.cache.Register(key, func(ctx context.Context) (any, error) {
		return a.api.GetUser(ctx, id)
	})
	e, err := a.cache.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	return querycache.ValueOf[*domain.User](e), nil
}

// CreateUser validates in, creates the account and invalidates the user list.
func (a *App) CreateUser(ctx context.Context, in domain.CreateUserInput) (*domain.User, error) {
	if err := a.validate.Struct(in); err != nil {
		return nil, err
	}
	v, err := a.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		return a.api.CreateUser(ctx, in)
	}, KeyUsers)
	if err != nil {
		return nil, err
	}
	return v.(*domain.User), nil
}

// UpdateUser applies a partial update and invalidates the list and the user.
func (a *App) UpdateUser(ctx context.Context, id int64, in domain.UpdateUserInput) (*domain.User, error) {
	if in.Empty() {
		return nil, &domain.ValidationError{Message: "nothing to update"}
	}
	if err := a.validate.Struct(in); err != nil {
		return nil, err
	}
	v, err := a.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		return a.api.UpdateUser(ctx, id, in)
	}, KeyUsers, UserKey(id))
	if err != nil {
		return nil, err
	}
	return v.(*domain.User), nil
}

// DeleteUser removes an account and invalidates the list and the user.
func (a *App) DeleteUser(ctx context.Context, id int64) error {
	_, err := a.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		if err := a.api.DeleteUser(ctx, id); err != nil {
			return nil, err
		}
		return struct{}{}, nil
	}, KeyUsers, UserKey(id))
	return err
}

// rejected reports whether err ended the session. Values cached for that
// session are not handed out next to it.
func rejected(err error) bool {
	var authzErr *domain.AuthorizationError
	return errors.As(err, &authzErr)
}

func (a *App) onSessionEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventLogin, session.EventLogout, session.EventExpired:
		// Cached collections belong to the previous identity.
		a.cache.Reset()
	}
}
