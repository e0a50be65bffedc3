package querycache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/orderdesk/internal/core/domain"
)

// scripted is a FetchFunc whose nth call (1-based) returns respond(n). Calls
// listed in block wait until their channel is closed.
type scripted struct {
	mu      sync.Mutex
	calls   int
	started chan int
	block   map[int]chan struct{}
	respond func(n int) (any, error)
	ctxErrs []error
}

func newScripted(respond func(n int) (any, error)) *scripted {
	return &scripted{started: make(chan int, 16), block: make(map[int]chan struct{}), respond: respond}
}

func (s *scripted) hold(n int) chan struct{} {
	ch := make(chan struct{})
	s.mu.Lock()
	s.block[n] = ch
	s.mu.Unlock()
	return ch
}

func (s *scripted) fetch(ctx context.Context) (any, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	gate := s.block[n]
	s.mu.Unlock()

	s.started <- n
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	s.mu.Unlock()
	return s.respond(n)
}

func (s *scripted) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func versioned(n int) (any, error) { return n, nil }

func waitStarted(t *testing.T, s *scripted, want int) {
	t.Helper()
	select {
	case n := <-s.started:
		if n != want {
			t.Fatalf("expected call %d to start, got %d", want, n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("call %d never started", want)
	}
}

func newCache(opts ...Option) *Cache {
	return New(zerolog.Nop(), opts...)
}

func TestFetch_ServesFreshEntryWithoutIO(t *testing.T) {
	c := newCache()
	s := newScripted(versioned)
	c.Register("orders", s.fetch)

	for i := 0; i < 3; i++ {
		e, err := c.Fetch(context.Background(), "orders")
		if err != nil {
			t.Fatalf("Fetch returned error: %v", err)
		}
		if ValueOf[int](e) != 1 || e.Status != StatusSuccess {
			t.Fatalf("unexpected entry: %+v", e)
		}
	}
	if s.count() != 1 {
		t.Fatalf("expected a single request, got %d", s.count())
	}
}

func TestFetch_ConcurrentCallersShareOneRequest(t *testing.T) {
	c := newCache()
	s := newScripted(versioned)
	release := s.hold(1)
	c.Register("orders", s.fetch)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan Entry, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := c.Fetch(context.Background(), "orders")
			if err != nil {
				t.Errorf("Fetch returned error: %v", err)
			}
			results <- e
		}()
	}

	waitStarted(t, s, 1)
	if got := c.Get("orders"); got.Status != StatusLoading {
		t.Fatalf("expected loading while in flight, got %s", got.Status)
	}
	close(release)
	wg.Wait()
	close(results)

	for e := range results {
		if ValueOf[int](e) != 1 {
			t.Fatalf("unexpected entry: %+v", e)
		}
	}
	if s.count() != 1 {
		t.Fatalf("expected one request for %d callers, got %d", callers, s.count())
	}
}

func TestInvalidate_ForcesRefetchAndKeepsValue(t *testing.T) {
	c := newCache()
	s := newScripted(versioned)
	c.Register("orders", s.fetch)

	if _, err := c.Fetch(context.Background(), "orders"); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	c.Invalidate("orders")

	e := c.Get("orders")
	if !e.Stale || ValueOf[int](e) != 1 || e.Fresh() {
		t.Fatalf("expected stale entry keeping its value, got %+v", e)
	}

	e, err := c.Fetch(context.Background(), "orders")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if ValueOf[int](e) != 2 || e.Stale {
		t.Fatalf("expected refetched value, got %+v", e)
	}
}

func TestFetch_DiscardsSupersededResponse(t *testing.T) {
	c := newCache()
	s := newScripted(versioned)
	releaseFirst := s.hold(1)
	c.Register("orders", s.fetch)

	first := make(chan Entry, 1)
	go func() {
		e, _ := c.Fetch(context.Background(), "orders")
		first <- e
	}()
	waitStarted(t, s, 1)

	c.Invalidate("orders")
	e, err := c.Fetch(context.Background(), "orders")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if ValueOf[int](e) != 2 {
		t.Fatalf("expected the newer response, got %+v", e)
	}

	close(releaseFirst)
	got := <-first
	if ValueOf[int](got) != 2 {
		t.Fatalf("superseded caller should observe the newer entry, got %+v", got)
	}
	if ValueOf[int](c.Get("orders")) != 2 {
		t.Fatalf("stale response overwrote the entry: %+v", c.Get("orders"))
	}
}

func TestFetch_ErrorKeepsPreviousValue(t *testing.T) {
	c := newCache()
	boom := errors.New("boom")
	s := newScripted(func(n int) (any, error) {
		if n == 2 {
			return nil, boom
		}
		return n, nil
	})
	c.Register("orders", s.fetch)

	_, _ = c.Fetch(context.Background(), "orders")
	c.Invalidate("orders")

	e, err := c.Fetch(context.Background(), "orders")
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if e.Status != StatusError || ValueOf[int](e) != 1 || !errors.Is(e.Err, boom) {
		t.Fatalf("expected error entry with previous value, got %+v", e)
	}

	// An error entry is not fresh: the next Fetch retries.
	if e, err = c.Fetch(context.Background(), "orders"); err != nil || ValueOf[int](e) != 3 {
		t.Fatalf("expected retry to succeed, got %+v %v", e, err)
	}
}

func TestMutate(t *testing.T) {
	c := newCache()
	s := newScripted(versioned)
	c.Register("orders", s.fetch)
	_, _ = c.Fetch(context.Background(), "orders")

	failure := errors.New("rejected")
	_, err := c.Mutate(context.Background(), func(context.Context) (any, error) {
		return nil, failure
	}, "orders")
	if !errors.Is(err, failure) {
		t.Fatalf("expected mutation error, got %v", err)
	}
	if e := c.Get("orders"); !e.Fresh() {
		t.Fatalf("failed mutation must not invalidate, got %+v", e)
	}

	v, err := c.Mutate(context.Background(), func(context.Context) (any, error) {
		return "created", nil
	}, "orders")
	if err != nil || v != "created" {
		t.Fatalf("unexpected mutation result: %v %v", v, err)
	}
	if e := c.Get("orders"); !e.Stale {
		t.Fatalf("successful mutation must invalidate, got %+v", e)
	}
	if e, _ := c.Fetch(context.Background(), "orders"); ValueOf[int](e) != 2 {
		t.Fatalf("expected refetch after mutation, got %+v", e)
	}
}

func TestUnauthorizedHook(t *testing.T) {
	var mu sync.Mutex
	var hooked []error
	c := newCache(WithUnauthorizedHandler(func(ctx context.Context, err error) {
		mu.Lock()
		hooked = append(hooked, err)
		mu.Unlock()
	}))

	rejected := &domain.AuthorizationError{Status: 401}
	c.Register("orders", func(context.Context) (any, error) { return nil, rejected })
	c.Register("users", func(context.Context) (any, error) { return nil, errors.New("500") })

	if _, err := c.Fetch(context.Background(), "orders"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	_, _ = c.Fetch(context.Background(), "users")
	_, _ = c.Mutate(context.Background(), func(context.Context) (any, error) {
		return nil, &domain.AuthorizationError{Status: 403}
	})

	mu.Lock()
	defer mu.Unlock()
	if len(hooked) != 2 {
		t.Fatalf("expected the hook for the two authorization errors, got %v", hooked)
	}
}

func TestReset(t *testing.T) {
	c := newCache()
	s := newScripted(versioned)
	c.Register("orders", s.fetch)
	_, _ = c.Fetch(context.Background(), "orders")

	c.Reset()
	if e := c.Get("orders"); e.Status != StatusIdle || e.HasValue() {
		t.Fatalf("expected empty idle entry, got %+v", e)
	}
	if e, _ := c.Fetch(context.Background(), "orders"); ValueOf[int](e) != 2 {
		t.Fatalf("expected a new request after reset, got %+v", e)
	}
}

func TestReset_DropsInFlightResponse(t *testing.T) {
	c := newCache()
	s := newScripted(versioned)
	release := s.hold(1)
	c.Register("orders", s.fetch)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background(), "orders")
		errCh <- err
	}()
	waitStarted(t, s, 1)

	c.Reset()
	close(release)

	if err := <-errCh; !errors.Is(err, ErrReset) {
		t.Fatalf("expected ErrReset, got %v", err)
	}
	if e := c.Get("orders"); e.Status != StatusIdle || e.HasValue() {
		t.Fatalf("response from before the reset must be dropped, got %+v", e)
	}
}

func TestFetch_CallerCancellationDoesNotCancelRequest(t *testing.T) {
	c := newCache()
	s := newScripted(versioned)
	release := s.hold(1)
	c.Register("orders", s.fetch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx, "orders")
		done <- err
	}()
	waitStarted(t, s, 1)

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	updated := make(chan Entry, 4)
	c.Subscribe("orders", func(e Entry) {
		if e.Status == StatusSuccess {
			updated <- e
		}
	})
	close(release)

	select {
	case e := <-updated:
		if ValueOf[int](e) != 1 {
			t.Fatalf("unexpected entry: %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("shared request never settled")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctxErrs[0] != nil {
		t.Fatalf("fetcher saw a cancelled context: %v", s.ctxErrs[0])
	}
}

func TestFetchAsyncAndSubscribers(t *testing.T) {
	c := newCache()
	s := newScripted(versioned)
	c.Register("orders", s.fetch)

	var mu sync.Mutex
	var statuses []Status
	settled := make(chan struct{}, 4)
	unsubscribe := c.Subscribe("orders", func(e Entry) {
		mu.Lock()
		statuses = append(statuses, e.Status)
		mu.Unlock()
		if e.Fresh() {
			settled <- struct{}{}
		}
	})

	if e := c.FetchAsync(context.Background(), "orders"); e.Status != StatusLoading {
		t.Fatalf("expected loading entry, got %+v", e)
	}
	<-settled

	// With a subscriber present, invalidation refetches in the background.
	c.Invalidate("orders")
	select {
	case <-settled:
	case <-time.After(2 * time.Second):
		t.Fatalf("invalidation did not refetch")
	}
	if ValueOf[int](c.Get("orders")) != 2 {
		t.Fatalf("unexpected entry after background refetch: %+v", c.Get("orders"))
	}

	unsubscribe()
	c.Invalidate("orders")
	if s.count() != 2 {
		t.Fatalf("no refetch expected without subscribers, got %d calls", s.count())
	}

	mu.Lock()
	defer mu.Unlock()
	if statuses[0] != StatusLoading {
		t.Fatalf("expected the first notification to be loading, got %v", statuses)
	}
}

func TestFetch_UnknownKey(t *testing.T) {
	c := newCache()
	if _, err := c.Fetch(context.Background(), "nope"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}
