package sessionstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/99minutos/orderdesk/internal/core/domain"
	"github.com/99minutos/orderdesk/internal/core/ports"
	"github.com/99minutos/orderdesk/internal/infrastructure/db/redis"
)

// exerciseStore runs the behaviour every backend shares.
func exerciseStore(t *testing.T, store ports.SessionStore) {
	t.Helper()
	ctx := context.Background()

	s, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get on empty store returned error: %v", err)
	}
	if s.Authenticated() {
		t.Fatalf("expected empty session, got %+v", s)
	}

	if err := store.Set(ctx, domain.Session{Token: "tok", Role: domain.RoleAdmin}); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if s, _ = store.Get(ctx); s.Token != "tok" || s.Role != domain.RoleAdmin {
		t.Fatalf("unexpected session after Set: %+v", s)
	}

	// A degraded session drops the stale role.
	if err := store.Set(ctx, domain.Session{Token: "tok-2"}); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if s, _ = store.Get(ctx); s.Token != "tok-2" || s.Role != "" {
		t.Fatalf("expected role to be removed, got %+v", s)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second Clear returned error: %v", err)
	}
	if s, _ = store.Get(ctx); s.Authenticated() || s.Role != "" {
		t.Fatalf("expected empty session after Clear, got %+v", s)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exerciseStore(t, m)
	if raw := m.Raw(); len(raw) != 0 {
		t.Fatalf("expected no keys after Clear, got %v", raw)
	}
}

func TestMemory_RawKeys(t *testing.T) {
	m := NewMemory()
	_ = m.Set(context.Background(), domain.Session{Token: "tok", Role: domain.RoleDefault})

	raw := m.Raw()
	if raw[KeyToken] != "tok" || raw[KeyUserType] != "default" {
		t.Fatalf("unexpected raw keys: %v", raw)
	}
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	exerciseStore(t, NewFile(path))

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file removed after Clear, stat err %v", err)
	}
}

func TestFile_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	if err := NewFile(path).Set(ctx, domain.Session{Token: "tok", Role: domain.RoleDefault}); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("session file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected mode 0600, got %o", perm)
	}

	s, err := NewFile(path).Get(ctx)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if s.Token != "tok" || s.Role != domain.RoleDefault {
		t.Fatalf("unexpected session: %+v", s)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".session-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFile_CorruptContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := NewFile(path).Get(context.Background()); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestFile_EmptyFileIsLoggedOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	s, err := NewFile(path).Get(context.Background())
	if err != nil || s.Authenticated() {
		t.Fatalf("expected empty session, got %+v %v", s, err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, closer, err := Open(ctx, Options{FilePath: filepath.Join(t.TempDir(), "s.json")})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if _, ok := store.(*File); !ok {
		t.Fatalf("expected file backend by default, got %T", store)
	}
	_ = closer.Close()

	if store, _, err = Open(ctx, Options{Backend: BackendMemory}); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if _, ok := store.(*Memory); !ok {
		t.Fatalf("expected memory backend, got %T", store)
	}

	if _, _, err := Open(ctx, Options{Backend: BackendFile}); err == nil {
		t.Fatalf("expected error for file backend without path")
	}
	if _, _, err := Open(ctx, Options{Backend: "etcd"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestOpen_RedisUnreachable(t *testing.T) {
	_, _, err := Open(context.Background(), Options{
		Backend: BackendRedis,
		Redis:   redis.Config{Addr: "127.0.0.1:1", Timeout: 200 * time.Millisecond},
	})
	if err == nil {
		t.Fatalf("expected connection error")
	}
}

func TestRedis_KeyPrefix(t *testing.T) {
	if got := NewRedis(nil, "").key(KeyToken); got != "orderdesk:session:token" {
		t.Fatalf("unexpected default key %q", got)
	}
	if got := NewRedis(nil, "app:").key(KeyUserType); got != "app:user_type" {
		t.Fatalf("unexpected prefixed key %q", got)
	}
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedis(t *testing.T) {
	_, client := newMiniRedis(t)
	exerciseStore(t, NewRedis(client, ""))
}

func TestRedis_WritesBothKeysTogether(t *testing.T) {
	mr, client := newMiniRedis(t)
	store := NewRedis(client, "app:")
	ctx := context.Background()

	if err := store.Set(ctx, domain.Session{Token: "tok", Role: domain.RoleAdmin}); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if got, _ := mr.Get("app:token"); got != "tok" {
		t.Fatalf("unexpected token key %q", got)
	}
	if got, _ := mr.Get("app:user_type"); got != "admin" {
		t.Fatalf("unexpected user_type key %q", got)
	}

	if err := store.Set(ctx, domain.Session{Token: "tok-2"}); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if got, _ := mr.Get("app:token"); got != "tok-2" {
		t.Fatalf("unexpected token key %q", got)
	}
	if mr.Exists("app:user_type") {
		t.Fatalf("degraded session must not keep user_type")
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if mr.Exists("app:token") || mr.Exists("app:user_type") {
		t.Fatalf("expected both keys removed, got %v", mr.Keys())
	}
	s, err := store.Get(ctx)
	if err != nil || s.Authenticated() || s.Role != "" {
		t.Fatalf("expected empty session after Clear, got %+v %v", s, err)
	}
}

func TestRedis_OpenThroughBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	store, closer, err := Open(context.Background(), Options{
		Backend: BackendRedis,
		Redis:   redis.Config{Addr: mr.Addr()},
	})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer closer.Close()
	exerciseStore(t, store)
}

func TestRedis_ServerDownIsAnError(t *testing.T) {
	mr, client := newMiniRedis(t)
	store := NewRedis(client, "")
	mr.Close()

	if err := store.Set(context.Background(), domain.Session{Token: "tok"}); err == nil {
		t.Fatalf("expected Set to fail with the server down")
	}
	if _, err := store.Get(context.Background()); err == nil {
		t.Fatalf("expected Get to fail with the server down")
	}
}
