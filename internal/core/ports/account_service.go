package ports

import (
	"context"

	"github.com/99minutos/orderdesk/internal/core/domain"
)

// AccountService implements login and user administration for the reference API.
type AccountService interface {
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
	CreateUser(ctx context.Context, in domain.CreateUserInput, createdBy int64) (*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	UpdateUser(ctx context.Context, id int64, in domain.UpdateUserInput) (*domain.User, error)
	DeleteUser(ctx context.Context, id int64) error
	// EnsureAdmin creates the bootstrap admin account when it is missing.
	EnsureAdmin(ctx context.Context, username, password, email string) (*domain.User, error)
}
