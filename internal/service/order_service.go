package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/emmanuelselicour/ES-Company-API/internal/domain"
	"github.com/emmanuelselicour/ES-Company-API/internal/events"
	"github.com/emmanuelselicour/ES-Company-API/internal/repository"
)

// OrderService reads orders and drives their status lifecycle.
type OrderService struct {
	orders repository.OrderRepository
	ledger repository.StockLedger
	events *events.Publisher
}

func NewOrderService(orders repository.OrderRepository, ledger repository.StockLedger, publisher *events.Publisher) *OrderService {
	return &OrderService{
		orders: orders,
		ledger: ledger,
		events: publisher,
	}
}

// GetOrder returns one of the user's orders. Orders belonging to someone else
// look exactly like missing ones.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.OrderNotFoundError(orderID)
	}
	return order, nil
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	orders, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, domain.UnavailableError("failed to list orders", err)
	}
	return orders, nil
}

// ListAllOrders is the admin view: every order, optionally filtered by
// status, newest first.
func (s *OrderService) ListAllOrders(ctx context.Context, status domain.OrderStatus, limit int64) ([]*domain.Order, error) {
	orders, err := s.orders.ListOrders(ctx, status, limit)
	if err != nil {
		return nil, domain.UnavailableError("failed to list orders", err)
	}
	return orders, nil
}

// Transition moves an order to target according to the transition table:
// pending -> processing or cancelled, processing -> shipped or cancelled,
// shipped -> delivered. Delivered and cancelled are terminal. The swap is a
// conditional update on the stored status, so concurrent transitions cannot
// both apply; cancellation releases each line's stock exactly once, on the
// winning side of that swap.
func (s *OrderService) Transition(ctx context.Context, orderID string, target domain.OrderStatus) (*domain.Order, error) {
	for attempt := 0; attempt < 2; attempt++ {
		order, err := s.loadOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}

		if !domain.CanTransition(order.Status, target) {
			return nil, domain.InvalidTransitionError(orderID, order.Status, target)
		}

		updated, err := s.orders.TransitionStatus(ctx, orderID, order.Status, target, time.Now())
		if errors.Is(err, repository.ErrStatusConflict) {
			// Someone moved the order since we read it; re-read and re-check.
			continue
		}
		if err != nil {
			return nil, domain.UnavailableError("failed to update order status", err)
		}

		if target == domain.OrderStatusCancelled {
			s.releaseStock(ctx, updated)
		}

		s.events.OrderEvent(ctx, "order.status_changed", updated)
		return updated, nil
	}

	// Both attempts lost the race; report against the current state.
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return nil, domain.InvalidTransitionError(orderID, order.Status, target)
}

// releaseStock returns every line's quantity to the ledger. Only the winner
// of the cancellation status swap reaches this point, which is what makes the
// release exactly-once per order.
func (s *OrderService) releaseStock(ctx context.Context, order *domain.Order) {
	for _, item := range order.Items {
		if err := s.ledger.Release(ctx, item.ProductID, item.Quantity); err != nil {
			log.Printf("failed to release %d x product %s for cancelled order %s: %v",
				item.Quantity, item.ProductID, order.ID, err)
		}
	}
}

func (s *OrderService) loadOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, domain.OrderNotFoundError(orderID)
	}
	if err != nil {
		return nil, domain.UnavailableError("failed to load order", err)
	}
	return order, nil
}
