package sessionstore

import (
	"context"
	"fmt"
	"io"

	"github.com/99minutos/orderdesk/internal/core/ports"
	"github.com/99minutos/orderdesk/internal/infrastructure/db/redis"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	FilePath    string
	Redis       redis.Config
	RedisPrefix string
}

// Open builds the store named by opts.Backend. The returned closer releases
// any connection the backend holds.
func Open(ctx context.Context, opts Options) (ports.SessionStore, io.Closer, error) {
	switch opts.Backend {
	case "", BackendFile:
		if opts.FilePath == "" {
			return nil, nil, fmt.Errorf("session store: file backend needs a path")
		}
		return NewFile(opts.FilePath), nopCloser{}, nil
	case BackendMemory:
		return NewMemory(), nopCloser{}, nil
	case BackendRedis:
		client, err := redis.Connect(ctx, opts.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("session store: %w", err)
		}
		return NewRedis(client, opts.RedisPrefix), client, nil
	default:
		return nil, nil, fmt.Errorf("session store: unknown backend %q", opts.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
