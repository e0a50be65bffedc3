package authz

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/orderdesk/internal/client/session"
	"github.com/99minutos/orderdesk/internal/core/domain"
)

// maxHops bounds redirect chains; login -> home is the longest legal one.
const maxHops = 3

// SessionSource is the part of session.Manager the router depends on.
type SessionSource interface {
	Current() domain.Session
	Subscribe(fn session.Listener) func()
}

// Transition describes a completed navigation.
type Transition struct {
	From      View
	To        View
	Requested View
	Decision  Decision
}

// Router is the navigation layer. Every navigation and every session change
// re-runs Authorize against the session as it is at that moment.
type Router struct {
	sessions SessionSource
	log      zerolog.Logger

	mu       sync.Mutex
	current  View
	watchers []func(Transition)

	unsubscribe func()
}

// NewRouter starts on the login view and follows session changes until Close.
func NewRouter(sessions SessionSource, log zerolog.Logger) *Router {
	r := &Router{
		sessions: sessions,
		log:      log,
		current:  LoginView,
	}
	r.unsubscribe = sessions.Subscribe(r.onSessionEvent)
	return r
}

// Close stops following session changes.
func (r *Router) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

// Current returns the view on screen.
func (r *Router) Current() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Watch registers fn to be called after every navigation.
func (r *Router) Watch(fn func(Transition)) {
	r.mu.Lock()
	r.watchers = append(r.watchers, fn)
	r.mu.Unlock()
}

// Navigate resolves path, applies the gate and lands on the final view. The
// returned decision is the one taken for the requested view.
func (r *Router) Navigate(path string) Transition {
	requested, _ := Lookup(path)
	return r.navigateTo(requested)
}

// Check evaluates the gate for path without navigating.
func (r *Router) Check(path string) (View, Decision) {
	v, _ := Lookup(path)
	return v, Authorize(r.sessions.Current(), v.Requires)
}

func (r *Router) navigateTo(requested View) Transition {
	s := r.sessions.Current()
	first := Authorize(s, requested.Requires)

	target, decision := requested, first
	for hop := 0; decision != Allow && hop < maxHops; hop++ {
		switch decision {
		case RedirectLogin:
			target = LoginView
		case RedirectHome:
			target = HomeView
		}
		decision = Authorize(s, target.Requires)
	}
	if decision != Allow {
		target = LoginView
	}

	r.mu.Lock()
	t := Transition{From: r.current, To: target, Requested: requested, Decision: first}
	r.current = target
	watchers := append([]func(Transition){}, r.watchers...)
	r.mu.Unlock()

	if first != Allow {
		r.log.Debug().
			Str("requested", requested.Path).
			Str("decision", first.String()).
			Str("landed", target.Path).
			Msg("navigation redirected")
	}
	for _, fn := range watchers {
		fn(t)
	}
	return t
}

func (r *Router) onSessionEvent(ev session.Event) {
	switch ev.Navigate {
	case session.GoHome:
		r.navigateTo(HomeView)
	case session.GoLogin:
		r.navigateTo(LoginView)
	default:
		r.navigateTo(r.Current())
	}
}
