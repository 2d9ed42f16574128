package repository

import (
	"context"
	"errors"
	"time"

	"github.com/emmanuelselicour/ES-Company-API/internal/domain"
)

var (
	ErrCartNotFound         = errors.New("cart not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrVersionConflict      = errors.New("cart was modified concurrently")
	ErrStatusConflict       = errors.New("order status changed concurrently")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
)

// CartRepository persists one cart per user. SaveCart is the only write path:
// new carts insert with version 1, existing carts replace only when the
// stored version still matches, so two concurrent mutations of the same cart
// cannot silently lose one of them.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	SaveCart(ctx context.Context, cart *domain.Cart) error
}

// StockLedger is the authoritative view of purchasable quantity. Reserve is a
// single atomic compare-and-decrement in storage; it fails rather than let
// stock go negative. Release is the unconditional inverse used on
// cancellation; calling it at most once per order is the caller's job.
type StockLedger interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	CheckAvailable(ctx context.Context, productID string, quantity int) (bool, error)
	Reserve(ctx context.Context, productID string, quantity int) error
	Release(ctx context.Context, productID string, quantity int) error
}

// OrderRepository persists immutable order snapshots. TransitionStatus is a
// conditional swap on the status field: it only applies when the stored
// status still equals from, which is what makes cancellation side effects
// exactly-once under races.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	DeleteOrder(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	ListOrders(ctx context.Context, status domain.OrderStatus, limit int64) ([]*domain.Order, error)
	TransitionStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, at time.Time) (*domain.Order, error)
}

// CounterRepository hands out monotonically increasing sequence numbers per
// key as one atomic increment-and-read.
type CounterRepository interface {
	Next(ctx context.Context, key string) (int64, error)
}

type indexCreator interface {
	CreateIndexes(ctx context.Context) error
}

// EnsureIndexes creates the indexes for every repository that declares some.
func EnsureIndexes(ctx context.Context, repos ...interface{}) error {
	for _, repo := range repos {
		if creator, ok := repo.(indexCreator); ok {
			if err := creator.CreateIndexes(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}
