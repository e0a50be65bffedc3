package ports

import (
	"context"

	"github.com/99minutos/orderdesk/internal/core/domain"
)

// OrderService implements the purchases endpoints for the reference API.
type OrderService interface {
	CreateOrder(ctx context.Context, in domain.CreateOrderInput, userID int64) (*domain.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error)
}
