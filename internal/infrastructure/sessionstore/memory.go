// Package sessionstore provides the durable key/value backends behind the
// client session: an in-process map, a JSON file and Redis. Every backend
// stores the same two keys, token and user_type.
package sessionstore

import (
	"context"
	"sync"

	"github.com/99minutos/orderdesk/internal/core/domain"
)

const (
	KeyToken    = "token"
	KeyUserType = "user_type"
)

// Memory keeps the session in process memory. It is used by tests and by
// one-shot invocations that must not touch disk.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.Session{
		Token: m.values[KeyToken],
		Role:  domain.Role(m.values[KeyUserType]),
	}, nil
}

func (m *Memory) Set(_ context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[KeyToken] = s.Token
	if s.Role != "" {
		m.values[KeyUserType] = string(s.Role)
	} else {
		delete(m.values, KeyUserType)
	}
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, KeyToken)
	delete(m.values, KeyUserType)
	return nil
}

// Raw returns a copy of the stored keys.
func (m *Memory) Raw() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}
