package ports

import (
	"context"

	"github.com/99minutos/orderdesk/internal/core/domain"
)

// SessionStore persists the token and user_type fields across restarts.
// Set writes both fields together and Clear removes both; implementations
// must never leave one written without the other.
type SessionStore interface {
	Get(ctx context.Context) (domain.Session, error)
	Set(ctx context.Context, s domain.Session) error
	Clear(ctx context.Context) error
}
