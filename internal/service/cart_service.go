package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/emmanuelselicour/ES-Company-API/internal/cache"
	"github.com/emmanuelselicour/ES-Company-API/internal/domain"
	"github.com/emmanuelselicour/ES-Company-API/internal/pricing"
	"github.com/emmanuelselicour/ES-Company-API/internal/repository"
)

// maxSaveRetries bounds how often a mutation re-reads and retries after
// losing the optimistic version check.
const maxSaveRetries = 3

type CartService struct {
	repo    repository.CartRepository
	ledger  repository.StockLedger
	cache   cache.CartCache
	pricing *pricing.Engine
	sfg     singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, ledger repository.StockLedger, cartCache cache.CartCache, engine *pricing.Engine) *CartService {
	return &CartService{
		repo:    repo,
		ledger:  ledger,
		cache:   cartCache,
		pricing: engine,
	}
}

// GetCart returns the user's cart, creating an empty one in memory on first
// access. Every read reconciles the cart against the catalog: lines for
// missing or inactive products are pruned and quantities above current stock
// are clamped before the cart is returned.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to collapse concurrent cache misses for the same user
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.loadCart(ctx, userID)
		if err != nil {
			return nil, err
		}
		return s.reconcile(ctx, cart)
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

func (s *CartService) loadCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.cache.Get(ctx, userID)
	if err == nil {
		return cart, nil // cart is in cache
	}

	if !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("cache get error: %v", err) // log cache error but continue
	}

	cart, errGet := s.repo.GetCart(ctx, userID)
	if errGet != nil && errors.Is(errGet, repository.ErrCartNotFound) {
		return emptyCart(userID), nil
	}
	if errGet != nil {
		return nil, domain.UnavailableError("failed to load cart", errGet)
	}

	// set cache
	go func() {
		if errSet := s.cache.Set(context.Background(), userID, cart); errSet != nil {
			log.Printf("cache set error: %v", errSet)
		}
	}()

	return cart, nil
}

// reconcile drops lines whose product is gone or not active and clamps
// quantities to the stock that is actually available. A changed cart is
// persisted best-effort; the caller always gets the reconciled view.
func (s *CartService) reconcile(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	changed := false
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		product, err := s.ledger.GetProduct(ctx, item.ProductID)
		if errors.Is(err, repository.ErrProductNotFound) {
			changed = true
			continue
		}
		if err != nil {
			return nil, domain.UnavailableError("failed to check product availability", err)
		}
		if !product.Purchasable() {
			changed = true
			continue
		}
		if product.Stock < item.Quantity {
			item.Quantity = product.Stock
			changed = true
			if item.Quantity == 0 {
				continue
			}
		}
		kept = append(kept, item)
	}

	if !changed {
		return cart, nil
	}

	cart.Items = kept
	s.recompute(cart)

	if cart.Version > 0 {
		if err := s.repo.SaveCart(ctx, cart); err != nil {
			// A concurrent mutation wins; it will run its own reconciliation.
			log.Printf("failed to persist reconciled cart for user %s: %v", cart.UserID, err)
		} else {
			s.invalidateCache(cart.UserID)
		}
	}

	return cart, nil
}

// AddItem puts quantity units of a product variant into the cart, snapshotting
// name, price and image at add time. An existing line for the same
// (product, color, size) key is incremented instead of duplicated. The running
// total is checked against available stock before anything is written.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int, color, size string) (*domain.Cart, error) {
	if productID == "" {
		return nil, domain.ValidationError("product id is required")
	}
	if quantity < 1 {
		return nil, domain.ValidationError("quantity must be at least 1")
	}

	product, err := s.ledger.GetProduct(ctx, productID)
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, domain.NotFoundError("product not found", productID)
	}
	if err != nil {
		return nil, domain.UnavailableError("failed to load product", err)
	}
	if !product.Purchasable() {
		return nil, domain.ProductUnavailableError(productID)
	}

	return s.mutate(ctx, userID, func(cart *domain.Cart) error {
		idx := cart.FindItem(productID, color, size)
		running := quantity
		if idx >= 0 {
			running += cart.Items[idx].Quantity
		}
		if product.Stock < running {
			return domain.InsufficientStockError(productID, product.Stock)
		}

		if idx >= 0 {
			cart.Items[idx].Quantity = running
			return nil
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: productID,
			Name:      product.Name,
			Price:     product.SnapshotPrice(),
			Quantity:  quantity,
			Image:     product.Image,
			Color:     color,
			Size:      size,
			AddedAt:   time.Now(),
		})
		return nil
	})
}

// UpdateQuantity overwrites a line's quantity. Zero or negative removes the
// line entirely, matching the storefront convention that quantity 0 is never
// stored.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int, color, size string) (*domain.Cart, error) {
	if productID == "" {
		return nil, domain.ValidationError("product id is required")
	}

	if quantity > 0 {
		product, err := s.ledger.GetProduct(ctx, productID)
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.NotFoundError("product not found", productID)
		}
		if err != nil {
			return nil, domain.UnavailableError("failed to load product", err)
		}
		if product.Stock < quantity {
			return nil, domain.InsufficientStockError(productID, product.Stock)
		}
	}

	return s.mutate(ctx, userID, func(cart *domain.Cart) error {
		idx := cart.FindItem(productID, color, size)
		if idx < 0 {
			return domain.NotFoundError("item not found in cart", productID)
		}
		if quantity <= 0 {
			cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
			return nil
		}
		cart.Items[idx].Quantity = quantity
		return nil
	})
}

// RemoveItem deletes a line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID, color, size string) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(cart *domain.Cart) error {
		idx := cart.FindItem(productID, color, size)
		if idx < 0 {
			return domain.NotFoundError("item not found in cart", productID)
		}
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		return nil
	})
}

// ClearCart empties items and coupon. Clearing an already-empty cart is fine.
func (s *CartService) ClearCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(cart *domain.Cart) error {
		cart.Items = nil
		cart.Coupon = nil
		return nil
	})
}

// ApplyCoupon replaces the cart's coupon and recomputes totals. Applying the
// same coupon twice leaves the cart unchanged. Coupon validity against a
// coupon catalog is a stubbed extension point; the caller supplies the value.
func (s *CartService) ApplyCoupon(ctx context.Context, userID, code string, value decimal.Decimal, couponType domain.CouponType) (*domain.Cart, error) {
	if code == "" {
		return nil, domain.ValidationError("coupon code is required")
	}
	if couponType != domain.CouponPercentage && couponType != domain.CouponFixed {
		return nil, domain.ValidationError("coupon type must be percentage or fixed")
	}
	if value.IsNegative() {
		return nil, domain.ValidationError("coupon value cannot be negative")
	}

	return s.mutate(ctx, userID, func(cart *domain.Cart) error {
		cart.Coupon = &domain.Coupon{Code: code, Discount: value, Type: couponType}
		return nil
	})
}

// RemoveCoupon clears the coupon and recomputes totals.
func (s *CartService) RemoveCoupon(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(cart *domain.Cart) error {
		cart.Coupon = nil
		return nil
	})
}

// mutate is the single write path for carts: read, apply, recompute totals,
// save under the version check. Losing the version race re-reads and retries
// a bounded number of times, so two concurrent mutations of the same cart
// never lose an update.
func (s *CartService) mutate(ctx context.Context, userID string, apply func(cart *domain.Cart) error) (*domain.Cart, error) {
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		cart, err := s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			cart = emptyCart(userID)
		} else if err != nil {
			return nil, domain.UnavailableError("failed to load cart", err)
		}

		if err := apply(cart); err != nil {
			return nil, err
		}
		s.recompute(cart)

		err = s.repo.SaveCart(ctx, cart)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, domain.UnavailableError("failed to save cart", err)
		}

		s.invalidateCache(userID)
		return cart, nil
	}

	return nil, domain.UnavailableError("cart is being modified concurrently", repository.ErrVersionConflict)
}

func (s *CartService) recompute(cart *domain.Cart) {
	totals := s.pricing.Quote(cart.Items, cart.Coupon)
	cart.TotalItems = pricing.CountItems(cart.Items)
	cart.TotalPrice = totals.Total
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}

func emptyCart(userID string) *domain.Cart {
	now := time.Now()
	return &domain.Cart{
		UserID:     userID,
		TotalPrice: decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
