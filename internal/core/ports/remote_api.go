package ports

import (
	"context"

	"github.com/99minutos/orderdesk/internal/core/domain"
)

// AuthAPI exchanges credentials for a bearer token.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// OrdersAPI covers the purchases endpoints.
type OrdersAPI interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
	CreateOrder(ctx context.Context, in domain.CreateOrderInput) (*domain.Order, error)
}

// UsersAPI covers the admin-only accounts endpoints.
type UsersAPI interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	CreateUser(ctx context.Context, in domain.CreateUserInput) (*domain.User, error)
	UpdateUser(ctx context.Context, id int64, in domain.UpdateUserInput) (*domain.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// RemoteAPI is the full client surface of the order/user management API.
type RemoteAPI interface {
	AuthAPI
	OrdersAPI
	UsersAPI
}
