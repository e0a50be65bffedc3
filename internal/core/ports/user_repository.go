package ports

import (
	"context"

	"github.com/99minutos/orderdesk/internal/core/domain"
)

// UserRepository defines persistence operations for accounts.
type UserRepository interface {
	// Create assigns the ID and stores the user. Returns domain.ErrUserExists
	// or domain.ErrEmailExists on uniqueness violations.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Update(ctx context.Context, id int64, in domain.UpdateUserInput) (*domain.User, error)
	Delete(ctx context.Context, id int64) error
}
