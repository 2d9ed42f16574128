package service

import (
	"context"
	"sync"
	"time"

	"github.com/emmanuelselicour/ES-Company-API/internal/cache"
	"github.com/emmanuelselicour/ES-Company-API/internal/domain"
	"github.com/emmanuelselicour/ES-Company-API/internal/repository"
)

// mockCartRepository implements repository.CartRepository with real version
// semantics, so the services' optimistic retry paths are exercised.
type mockCartRepository struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
	err   error
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: make(map[string]*domain.Cart)}
}

func (m *mockCartRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return copyCart(cart), nil
}

func (m *mockCartRepository) SaveCart(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}

	stored, exists := m.carts[cart.UserID]
	if cart.Version == 0 {
		if exists {
			return repository.ErrVersionConflict
		}
		cart.Version = 1
		m.carts[cart.UserID] = copyCart(cart)
		return nil
	}
	if !exists || stored.Version != cart.Version {
		return repository.ErrVersionConflict
	}
	cart.Version++
	m.carts[cart.UserID] = copyCart(cart)
	return nil
}

func copyCart(cart *domain.Cart) *domain.Cart {
	clone := *cart
	clone.Items = append([]domain.CartItem(nil), cart.Items...)
	if cart.Coupon != nil {
		coupon := *cart.Coupon
		clone.Coupon = &coupon
	}
	return &clone
}

// mockStockLedger implements repository.StockLedger over a product map, with
// the same compare-and-decrement semantics as the Mongo ledger. beforeReserve,
// when set, runs before each reservation so tests can inject races.
type mockStockLedger struct {
	mu            sync.Mutex
	products      map[string]*domain.Product
	beforeReserve func(productID string)
}

func newMockStockLedger(products ...*domain.Product) *mockStockLedger {
	m := &mockStockLedger{products: make(map[string]*domain.Product)}
	for _, p := range products {
		clone := *p
		m.products[p.ID] = &clone
	}
	return m
}

func (m *mockStockLedger) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	clone := *product
	return &clone, nil
}

func (m *mockStockLedger) CheckAvailable(ctx context.Context, productID string, quantity int) (bool, error) {
	product, err := m.GetProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	return product.Purchasable() && product.Stock >= quantity, nil
}

func (m *mockStockLedger) Reserve(_ context.Context, productID string, quantity int) error {
	if m.beforeReserve != nil {
		m.beforeReserve(productID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	if product.Stock < quantity {
		return repository.ErrInsufficientStock
	}
	product.Stock -= quantity
	if product.Stock == 0 {
		product.Status = domain.ProductOutOfStock
	}
	return nil
}

func (m *mockStockLedger) Release(_ context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	product.Stock += quantity
	if product.Status == domain.ProductOutOfStock && product.Stock > 0 {
		product.Status = domain.ProductActive
	}
	return nil
}

func (m *mockStockLedger) stockOf(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[productID].Stock
}

// mockCartCache always misses; Deletes are counted so tests can assert
// invalidation happened.
type mockCartCache struct {
	mu      sync.Mutex
	deletes int
}

func (m *mockCartCache) Get(context.Context, string) (*domain.Cart, error) {
	return nil, cache.ErrCacheMiss
}

func (m *mockCartCache) Set(context.Context, string, *domain.Cart) error {
	return nil
}

func (m *mockCartCache) Delete(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	return nil
}

// mockOrderRepository implements repository.OrderRepository in memory,
// including the unique order-number constraint and the conditional status
// swap.
type mockOrderRepository struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[string]*domain.Order)}
}

func (m *mockOrderRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orders {
		if existing.OrderNumber == order.OrderNumber {
			return repository.ErrDuplicateOrderNumber
		}
	}
	clone := *order
	m.orders[order.ID] = &clone
	return nil
}

func (m *mockOrderRepository) DeleteOrder(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[orderID]; !ok {
		return repository.ErrOrderNotFound
	}
	delete(m.orders, orderID)
	return nil
}

func (m *mockOrderRepository) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	clone := *order
	return &clone, nil
}

func (m *mockOrderRepository) ListOrdersByUser(_ context.Context, userID string) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []*domain.Order
	for _, order := range m.orders {
		if order.UserID == userID {
			clone := *order
			orders = append(orders, &clone)
		}
	}
	return orders, nil
}

func (m *mockOrderRepository) ListOrders(_ context.Context, status domain.OrderStatus, _ int64) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []*domain.Order
	for _, order := range m.orders {
		if status == "" || order.Status == status {
			clone := *order
			orders = append(orders, &clone)
		}
	}
	return orders, nil
}

func (m *mockOrderRepository) TransitionStatus(_ context.Context, orderID string, from, to domain.OrderStatus, at time.Time) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok || order.Status != from {
		return nil, repository.ErrStatusConflict
	}
	order.Status = to
	order.UpdatedAt = at
	switch to {
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &at
	case domain.OrderStatusCancelled:
		order.CancelledAt = &at
		order.StockReleased = true
	}
	clone := *order
	return &clone, nil
}

func (m *mockOrderRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// mockCounters backs the order number generator in tests.
type mockCounters struct {
	mu   sync.Mutex
	seqs map[string]int64
}

func (m *mockCounters) Next(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seqs == nil {
		m.seqs = make(map[string]int64)
	}
	m.seqs[key]++
	return m.seqs[key], nil
}
