package ports

import (
	"context"

	"github.com/99minutos/orderdesk/internal/core/domain"
)

// OrderRepository defines persistence operations for orders.
type OrderRepository interface {
	// Create assigns ID and CreatedAt.
	Create(ctx context.Context, order *domain.Order) (*domain.Order, error)
	// ListByCreator returns the orders created by userID, oldest first.
	ListByCreator(ctx context.Context, userID int64) ([]*domain.Order, error)
}
