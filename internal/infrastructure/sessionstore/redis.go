package sessionstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/orderdesk/internal/core/domain"
)

const defaultPrefix = "orderdesk:session:"

// Redis stores the session under <prefix>token and <prefix>user_type.
// Writes run in a MULTI/EXEC transaction so both keys change together.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an already connected client. An empty prefix selects
// "orderdesk:session:".
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context) (domain.Session, error) {
	vals, err := r.client.MGet(ctx, r.key(KeyToken), r.key(KeyUserType)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.Session{}, fmt.Errorf("redis session get: %w", err)
	}

	var s domain.Session
	if len(vals) == 2 {
		if v, ok := vals[0].(string); ok {
			s.Token = v
		}
		if v, ok := vals[1].(string); ok {
			s.Role = domain.Role(v)
		}
	}
	return s, nil
}

func (r *Redis) Set(ctx context.Context, s domain.Session) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(KeyToken), s.Token, 0)
		if s.Role != "" {
			pipe.Set(ctx, r.key(KeyUserType), string(s.Role), 0)
		} else {
			pipe.Del(ctx, r.key(KeyUserType))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis session set: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key(KeyToken), r.key(KeyUserType)).Err(); err != nil {
		return fmt.Errorf("redis session clear: %w", err)
	}
	return nil
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}
