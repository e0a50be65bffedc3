// Package querycache mediates between views and the remote API: a keyed cache
// of fetched collections with request deduplication and invalidation on
// mutation.
//
// Each network call carries a per-key request id. Only the completion whose
// id is still the latest one recorded for its key may write the entry;
// anything older (superseded by an invalidation or a Reset) is discarded.
// There is no time-based expiry.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/99minutos/orderdesk/internal/core/domain"
	"github.com/99minutos/orderdesk/internal/metrics"
)

// maxAttempts bounds how many superseded flights a blocking Fetch will follow.
const maxAttempts = 4

var (
	ErrUnknownKey = errors.New("querycache: no fetcher registered for key")
	// ErrReset is returned to callers whose request was dropped by Reset.
	ErrReset = errors.New("querycache: cache reset while request was in flight")
	// ErrSuperseded is returned when invalidations kept outrunning a Fetch.
	ErrSuperseded = errors.New("querycache: request superseded")
)

// FetchFunc loads the value for one key.
type FetchFunc func(ctx context.Context) (any, error)

// MutationFunc performs a write against the API.
type MutationFunc func(ctx context.Context) (any, error)

// UnauthorizedFunc is called with any *domain.AuthorizationError returned by
// a fetch or a mutation.
type UnauthorizedFunc func(ctx context.Context, err error)

// Option configures a Cache.
type Option func(*Cache)

// WithUnauthorizedHandler installs the hook that ends the session on 401/403.
func WithUnauthorizedHandler(fn UnauthorizedFunc) Option {
	return func(c *Cache) { c.onUnauthorized = fn }
}

// WithClock overrides time.Now for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithBackgroundContext sets the context used for refetches triggered by
// Invalidate.
func WithBackgroundContext(ctx context.Context) Option {
	return func(c *Cache) { c.bg = ctx }
}

type state struct {
	entry Entry
	// seq is the last request id issued for the key; latest is the id whose
	// completion may still be applied, 0 when none; settled is the id of the
	// last applied completion.
	seq      uint64
	latest   uint64
	settled  uint64
	inflight bool
	subs     []subscriber
}

type subscriber struct {
	id uint64
	fn func(Entry)
}

// outcome is what a flight reports back to every caller sharing it.
type outcome struct {
	entry   Entry
	applied bool
	reset   bool
}

// Cache is safe for concurrent use.
type Cache struct {
	log            zerolog.Logger
	onUnauthorized UnauthorizedFunc
	now            func() time.Time
	bg             context.Context
	group          singleflight.Group

	mu         sync.Mutex
	fetchers   map[string]FetchFunc
	states     map[string]*state
	generation uint64
	nextSubID  uint64
}

func New(log zerolog.Logger, opts ...Option) *Cache {
	c := &Cache{
		log:      log,
		now:      time.Now,
		bg:       context.Background(),
		fetchers: make(map[string]FetchFunc),
		states:   make(map[string]*state),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register sets the fetcher for key, replacing any previous one.
func (c *Cache) Register(key string, fetch FetchFunc) {
	c.mu.Lock()
	c.fetchers[key] = fetch
	c.mu.Unlock()
}

// Get returns the current entry for key without I/O.
func (c *Cache) Get(key string) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.states[key]; ok {
		return st.entry
	}
	return Entry{Key: key, Status: StatusIdle}
}

// Fetch returns the entry for key, issuing at most one network request per
// key at a time. A fresh success is returned without I/O; a loading entry is
// joined. Cancelling ctx abandons the wait but not the shared request.
func (c *Cache) Fetch(ctx context.Context, key string) (Entry, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		c.mu.Lock()
		gen := c.generation
		entry, flight, err := c.beginLocked(ctx, key)
		c.mu.Unlock()
		if err != nil {
			return Entry{Key: key, Status: StatusIdle}, err
		}
		if flight == nil {
			return entry, nil
		}

		c.notify(key)
		ch := c.group.DoChan(flight.name, flight.run)

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return c.Get(key), ctx.Err()
		case res = <-ch:
		}

		out := res.Val.(outcome)
		if out.applied {
			return out.entry, out.entry.Err
		}
		if out.reset || c.generationChanged(gen) {
			return Entry{Key: key, Status: StatusIdle}, ErrReset
		}
		c.log.Debug().Str("key", key).Int("attempt", attempt+1).Msg("fetch superseded, following newer request")
	}
	return c.Get(key), ErrSuperseded
}

// FetchAsync applies the same decision as Fetch but never waits: it starts
// or joins the request in the background and returns the current entry.
func (c *Cache) FetchAsync(ctx context.Context, key string) Entry {
	c.mu.Lock()
	entry, flight, err := c.beginLocked(ctx, key)
	c.mu.Unlock()
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("async fetch rejected")
		return entry
	}
	if flight != nil {
		c.notify(key)
		c.group.DoChan(flight.name, flight.run)
	}
	return entry
}

// Mutate runs fn and, only if it succeeds, invalidates keys.
func (c *Cache) Mutate(ctx context.Context, fn MutationFunc, keys ...string) (any, error) {
	v, err := fn(ctx)
	if err != nil {
		c.handleUnauthorized(ctx, err)
		c.log.Debug().Err(err).Strs("keys", keys).Msg("mutation failed, cache left untouched")
		return nil, err
	}
	c.Invalidate(keys...)
	return v, nil
}

// Invalidate marks keys stale so the next Fetch re-requests them. A request
// already in flight for one of the keys is superseded. Keys that currently
// have subscribers are refetched straight away.
func (c *Cache) Invalidate(keys ...string) {
	var refetch []string
	c.mu.Lock()
	for _, key := range keys {
		metrics.CacheInvalidationsTotal.WithLabelValues(key).Inc()
		st, ok := c.states[key]
		if !ok {
			continue
		}
		st.latest = 0
		st.inflight = false
		st.entry.Stale = true
		if st.entry.Status == StatusLoading {
			if st.entry.HasValue() {
				st.entry.Status = StatusSuccess
			} else {
				st.entry.Status = StatusIdle
			}
		}
		if len(st.subs) > 0 {
			refetch = append(refetch, key)
		}
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.notify(key)
	}
	for _, key := range refetch {
		c.FetchAsync(c.bg, key)
	}
}

// Reset drops every entry and supersedes all in-flight requests. Fetchers and
// subscribers are kept. It runs on logout so that no response to an
// authenticated request lands after the session ended.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.generation++
	keys := make([]string, 0, len(c.states))
	for key, st := range c.states {
		st.entry = Entry{Key: key, Status: StatusIdle}
		st.latest = 0
		st.settled = 0
		st.inflight = false
		keys = append(keys, key)
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.notify(key)
	}
	c.log.Debug().Int("keys", len(keys)).Msg("query cache reset")
}

// Subscribe calls fn after every change to key and returns a function that
// removes the subscription.
func (c *Cache) Subscribe(key string, fn func(Entry)) func() {
	c.mu.Lock()
	st := c.stateLocked(key)
	id := c.nextSubID
	c.nextSubID++
	st.subs = append(st.subs, subscriber{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		st, ok := c.states[key]
		if !ok {
			return
		}
		for i, sub := range st.subs {
			if sub.id == id {
				st.subs = append(st.subs[:i:i], st.subs[i+1:]...)
				return
			}
		}
	}
}

type flight struct {
	name string
	run  func() (any, error)
}

// beginLocked decides between serving, joining and starting a request.
// c.mu must be held.
func (c *Cache) beginLocked(ctx context.Context, key string) (Entry, *flight, error) {
	fetch, ok := c.fetchers[key]
	if !ok {
		return Entry{Key: key, Status: StatusIdle}, nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	st := c.stateLocked(key)
	switch {
	case st.entry.Fresh():
		metrics.CacheLookupsTotal.WithLabelValues(key, "hit").Inc()
		return st.entry, nil, nil
	case st.inflight:
		metrics.CacheLookupsTotal.WithLabelValues(key, "join").Inc()
		return st.entry, c.flightFor(ctx, key, st.latest, fetch), nil
	}

	metrics.CacheLookupsTotal.WithLabelValues(key, "miss").Inc()
	st.seq++
	st.latest = st.seq
	st.inflight = true
	st.entry.Status = StatusLoading
	st.entry.Err = nil

	return st.entry, c.flightFor(ctx, key, st.latest, fetch), nil
}

// flightFor builds the shared call for request id. Every caller builds an
// identical closure, so it does not matter which one singleflight runs.
func (c *Cache) flightFor(ctx context.Context, key string, id uint64, fetch FetchFunc) *flight {
	detached := context.WithoutCancel(ctx)
	return &flight{
		name: key + "#" + strconv.FormatUint(id, 10),
		run: func() (any, error) {
			// A caller that joined just before the flight settled may get here
			// after singleflight forgot the name; never hit the network twice
			// for one request id.
			if out, done := c.alreadyDone(key, id); done {
				return out, nil
			}
			start := time.Now()
			v, err := fetch(detached)
			metrics.CacheFetchDuration.WithLabelValues(key).Observe(time.Since(start).Seconds())
			return c.settle(detached, key, id, v, err), nil
		},
	}
}

func (c *Cache) settle(ctx context.Context, key string, id uint64, v any, err error) outcome {
	c.mu.Lock()
	st, ok := c.states[key]
	if !ok || st.latest != id {
		c.mu.Unlock()
		metrics.CacheRequestsTotal.WithLabelValues(key, "discarded").Inc()
		c.log.Debug().Str("key", key).Uint64("request_id", id).Msg("discarding superseded response")
		return outcome{reset: !ok}
	}

	st.inflight = false
	st.latest = 0
	st.settled = id
	if err != nil {
		st.entry.Status = StatusError
		st.entry.Err = err
	} else {
		st.entry.Value = v
		st.entry.Status = StatusSuccess
		st.entry.Err = nil
		st.entry.Stale = false
		st.entry.UpdatedAt = c.now()
	}
	entry := st.entry
	c.mu.Unlock()

	if err != nil {
		metrics.CacheRequestsTotal.WithLabelValues(key, "error").Inc()
		c.log.Warn().Err(err).Str("key", key).Msg("fetch failed")
		c.handleUnauthorized(ctx, err)
	} else {
		metrics.CacheRequestsTotal.WithLabelValues(key, "success").Inc()
	}

	c.notify(key)
	return outcome{entry: entry, applied: true}
}

func (c *Cache) alreadyDone(key string, id uint64) (outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[key]
	switch {
	case !ok:
		return outcome{reset: true}, true
	case st.latest == id:
		return outcome{}, false
	case st.settled == id:
		return outcome{entry: st.entry, applied: true}, true
	default:
		return outcome{}, true
	}
}

func (c *Cache) handleUnauthorized(ctx context.Context, err error) {
	var authzErr *domain.AuthorizationError
	if c.onUnauthorized != nil && errors.As(err, &authzErr) {
		c.onUnauthorized(ctx, err)
	}
}

func (c *Cache) stateLocked(key string) *state {
	st, ok := c.states[key]
	if !ok {
		st = &state{entry: Entry{Key: key, Status: StatusIdle}}
		c.states[key] = st
	}
	return st
}

func (c *Cache) generationChanged(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation != gen
}

func (c *Cache) notify(key string) {
	c.mu.Lock()
	st, ok := c.states[key]
	if !ok || len(st.subs) == 0 {
		c.mu.Unlock()
		return
	}
	entry := st.entry
	fns := make([]func(Entry), 0, len(st.subs))
	for _, sub := range st.subs {
		fns = append(fns, sub.fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(entry)
	}
}
