// Package config loads the orderdesk client configuration. A .env file in the
// working directory is applied first, then the process environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	APIURL      string        `env:"ORDERDESK_API_URL,      default=http://localhost:8001"`
	HTTPTimeout time.Duration `env:"ORDERDESK_HTTP_TIMEOUT, default=15s"`
	LogLevel    string        `env:"LOG_LEVEL,              default=warn"`
	LogPretty   bool          `env:"LOG_PRETTY,             default=true"`

	Session SessionConfig
}

// SessionConfig selects where the session survives between runs.
type SessionConfig struct {
	Backend       string `env:"ORDERDESK_SESSION_BACKEND, default=file"`
	File          string `env:"ORDERDESK_SESSION_FILE"`
	RedisAddr     string `env:"ORDERDESK_REDIS_ADDR,      default=localhost:6379"`
	RedisPassword string `env:"ORDERDESK_REDIS_PASSWORD"`
	RedisDB       int    `env:"ORDERDESK_REDIS_DB,        default=0"`
	RedisPrefix   string `env:"ORDERDESK_REDIS_PREFIX"`
}

// Load applies envFile (ignored when missing) and reads the environment.
func Load(ctx context.Context, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration through l without touching .env files.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Session.File == "" {
		cfg.Session.File = DefaultSessionFile()
	}
	return &cfg, nil
}

// DefaultSessionFile is <user config dir>/orderdesk/session.json, falling back
// to the working directory when no config dir is known.
func DefaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".orderdesk", "session.json")
	}
	return filepath.Join(dir, "orderdesk", "session.json")
}
