package memory

import (
	"context"
	"sync"
	"time"

	"github.com/99minutos/orderdesk/internal/core/domain"
)

type OrderRepository struct {
	mu     sync.RWMutex
	orders []*domain.Order
	nextID int64
	now    func() time.Time
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{nextID: 1, now: time.Now}
}

func (r *OrderRepository) Create(_ context.Context, order *domain.Order) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *order
	stored.ID = r.nextID
	stored.CreatedAt = r.now().UTC()
	r.nextID++
	r.orders = append(r.orders, &stored)

	out := stored
	return &out, nil
}

func (r *OrderRepository) ListByCreator(_ context.Context, userID int64) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Order, 0)
	for _, o := range r.orders {
		if o.CreatedBy == userID {
			c := *o
			out = append(out, &c)
		}
	}
	return out, nil
}
