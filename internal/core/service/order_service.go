package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/orderdesk/internal/core/domain"
	"github.com/99minutos/orderdesk/internal/core/ports"
	"github.com/99minutos/orderdesk/internal/metrics"
)

type OrderService struct {
	repo   ports.OrderRepository
	logger zerolog.Logger
}

func NewOrderService(repo ports.OrderRepository, logger zerolog.Logger) *OrderService {
	return &OrderService{repo: repo, logger: logger}
}

// CreateOrder stores an order on behalf of userID.
func (s *OrderService) CreateOrder(ctx context.Context, in domain.CreateOrderInput, userID int64) (*domain.Order, error) {
	in.Address = strings.TrimSpace(in.Address)
	in.Item = strings.TrimSpace(in.Item)
	if in.Address == "" || in.Item == "" || userID == 0 {
		return nil, domain.ErrInvalidInput
	}

	order := &domain.Order{
		Address:   in.Address,
		Item:      in.Item,
		CreatedBy: userID,
	}
	created, err := s.repo.Create(ctx, order)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create order")
		return nil, err
	}

	metrics.OrdersCreatedTotal.Inc()
	s.logger.Info().Int64("order_id", created.ID).Int64("created_by", userID).Msg("order created")
	return created, nil
}

// ListOrders returns only the orders created by userID.
func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	return s.repo.ListByCreator(ctx, userID)
}
