package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/emmanuelselicour/ES-Company-API/internal/cache"
	"github.com/emmanuelselicour/ES-Company-API/internal/domain"
	"github.com/emmanuelselicour/ES-Company-API/internal/events"
	"github.com/emmanuelselicour/ES-Company-API/internal/ordernumber"
	"github.com/emmanuelselicour/ES-Company-API/internal/pricing"
	"github.com/emmanuelselicour/ES-Company-API/internal/repository"
)

// CheckoutRequest carries everything needed to turn a cart into an order.
type CheckoutRequest struct {
	UserID          string
	ShippingAddress domain.Address
	BillingAddress  domain.Address
	PaymentMethod   domain.PaymentMethod
	Notes           string
}

type CheckoutService struct {
	carts   repository.CartRepository
	orders  repository.OrderRepository
	ledger  repository.StockLedger
	cache   cache.CartCache
	pricing *pricing.Engine
	numbers *ordernumber.Generator
	events  *events.Publisher
}

func NewCheckoutService(
	carts repository.CartRepository,
	orders repository.OrderRepository,
	ledger repository.StockLedger,
	cartCache cache.CartCache,
	engine *pricing.Engine,
	numbers *ordernumber.Generator,
	publisher *events.Publisher,
) *CheckoutService {
	return &CheckoutService{
		carts:   carts,
		orders:  orders,
		ledger:  ledger,
		cache:   cartCache,
		pricing: engine,
		numbers: numbers,
		events:  publisher,
	}
}

// Checkout turns the user's cart into a pending order:
//
//  1. every line is checked against available stock, aborting before any
//     write if one falls short;
//  2. totals come from the pricing engine over the cart's items and coupon;
//  3. a unique order number is assigned;
//  4. the order is persisted with item snapshots copied verbatim;
//  5. stock is reserved line by line, and a reservation lost to a race rolls
//     the whole checkout back (reservations released, order deleted);
//  6. the cart is emptied.
//
// From the caller's perspective the side effects are all-or-nothing.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*domain.Order, error) {
	if req.UserID == "" {
		return nil, domain.ValidationError("user id is required")
	}
	if !domain.ValidPaymentMethod(req.PaymentMethod) {
		return nil, domain.ValidationError("invalid payment method")
	}

	cart, err := s.carts.GetCart(ctx, req.UserID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, domain.EmptyCartError()
	}
	if err != nil {
		return nil, domain.UnavailableError("failed to load cart", err)
	}
	if cart.IsEmpty() {
		return nil, domain.EmptyCartError()
	}

	// Step 1: availability pre-check, no partial reservation.
	for _, item := range cart.Items {
		product, err := s.ledger.GetProduct(ctx, item.ProductID)
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.ProductUnavailableError(item.ProductID)
		}
		if err != nil {
			return nil, domain.UnavailableError("failed to check stock", err)
		}
		if !product.Purchasable() {
			return nil, domain.ProductUnavailableError(item.ProductID)
		}
		if product.Stock < item.Quantity {
			return nil, domain.InsufficientStockError(item.ProductID, product.Stock)
		}
	}

	// Step 2: totals are computed once, here, from the cart as it stands.
	totals := s.pricing.Quote(cart.Items, cart.Coupon)

	// Step 3: order number before persistence, assigned exactly once.
	number, err := s.numbers.Next(ctx)
	if err != nil {
		return nil, domain.UnavailableError("failed to assign order number", err)
	}

	billing := req.BillingAddress
	if billing.IsZero() {
		billing = req.ShippingAddress
	}

	now := time.Now()
	order := &domain.Order{
		ID:              uuid.NewString(),
		OrderNumber:     number,
		UserID:          req.UserID,
		Items:           snapshotItems(cart.Items),
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   domain.PaymentStatusPending,
		Status:          domain.OrderStatusPending,
		Subtotal:        totals.Subtotal,
		ShippingFee:     totals.ShippingFee,
		Tax:             totals.Tax,
		Discount:        totals.Discount,
		Total:           totals.Total,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Step 4: persist the pending order.
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateOrderNumber) {
			// One bounded retry with a fresh number.
			if order.OrderNumber, err = s.numbers.Next(ctx); err != nil {
				return nil, domain.UnavailableError("failed to assign order number", err)
			}
			err = s.orders.CreateOrder(ctx, order)
		}
		if err != nil {
			return nil, domain.UnavailableError("failed to create order", err)
		}
	}

	// Step 5: reserve stock; a failure here means another checkout won the
	// race since step 1, so compensate and abort.
	reserved := make([]domain.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		if err := s.ledger.Reserve(ctx, item.ProductID, item.Quantity); err != nil {
			s.rollback(ctx, order, reserved)
			if errors.Is(err, repository.ErrInsufficientStock) || errors.Is(err, repository.ErrProductNotFound) {
				return nil, domain.InsufficientStockError(item.ProductID, s.availableNow(ctx, item.ProductID))
			}
			return nil, domain.UnavailableError("failed to reserve stock", err)
		}
		reserved = append(reserved, item)
	}

	// Step 6: empty the cart (kept, not deleted).
	s.clearCart(ctx, req.UserID)

	s.events.OrderEvent(ctx, "order.created", order)

	return order, nil
}

// rollback undoes a partially applied checkout: every reservation taken in
// this call is released and the just-created order is deleted.
func (s *CheckoutService) rollback(ctx context.Context, order *domain.Order, reserved []domain.OrderItem) {
	for _, item := range reserved {
		if err := s.ledger.Release(ctx, item.ProductID, item.Quantity); err != nil {
			log.Printf("rollback: failed to release %d x product %s: %v", item.Quantity, item.ProductID, err)
		}
	}
	if err := s.orders.DeleteOrder(ctx, order.ID); err != nil {
		log.Printf("rollback: failed to delete order %s: %v", order.ID, err)
	}
}

func (s *CheckoutService) clearCart(ctx context.Context, userID string) {
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		cart, err := s.carts.GetCart(ctx, userID)
		if err != nil {
			log.Printf("failed to load cart for clearing after checkout: %v", err)
			return
		}
		cart.Items = nil
		cart.Coupon = nil
		cart.TotalItems = 0
		cart.TotalPrice = decimal.Zero

		err = s.carts.SaveCart(ctx, cart)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			log.Printf("failed to clear cart after checkout: %v", err)
		}
		break
	}

	cctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(cctx, userID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}

func (s *CheckoutService) availableNow(ctx context.Context, productID string) int {
	product, err := s.ledger.GetProduct(ctx, productID)
	if err != nil {
		return 0
	}
	return product.Stock
}

func snapshotItems(items []domain.CartItem) []domain.OrderItem {
	snapshots := make([]domain.OrderItem, len(items))
	for i, item := range items {
		snapshots[i] = domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Image:     item.Image,
			Color:     item.Color,
			Size:      item.Size,
		}
	}
	return snapshots
}
