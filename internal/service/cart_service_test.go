package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmanuelselicour/ES-Company-API/internal/domain"
	"github.com/emmanuelselicour/ES-Company-API/internal/pricing"
)

func activeProduct(id string, price float64, stock int) *domain.Product {
	return &domain.Product{
		ID:     id,
		Name:   "product " + id,
		Price:  decimal.NewFromFloat(price),
		Stock:  stock,
		Status: domain.ProductActive,
	}
}

func newCartFixture(products ...*domain.Product) (*CartService, *mockCartRepository, *mockStockLedger) {
	repo := newMockCartRepository()
	ledger := newMockStockLedger(products...)
	svc := NewCartService(repo, ledger, &mockCartCache{}, pricing.NewEngine())
	return svc, repo, ledger
}

// assertInvariants checks the derived-totals contract: totalItems is the sum
// of quantities and totalPrice matches a fresh pricing engine quote.
func assertInvariants(t *testing.T, cart *domain.Cart) {
	t.Helper()
	assert.Equal(t, pricing.CountItems(cart.Items), cart.TotalItems)
	quote := pricing.NewEngine().Quote(cart.Items, cart.Coupon)
	assert.True(t, cart.TotalPrice.Equal(quote.Total),
		"totalPrice %s != quoted total %s", cart.TotalPrice, quote.Total)
}

func TestGetCart_NewUserGetsEmptyCart(t *testing.T) {
	svc, _, _ := newCartFixture()

	cart, err := svc.GetCart(context.Background(), "user1")

	require.NoError(t, err)
	assert.Equal(t, "user1", cart.UserID)
	assert.True(t, cart.IsEmpty())
	assert.True(t, cart.TotalPrice.IsZero())
}

func TestAddItem_CreatesLineWithSnapshot(t *testing.T) {
	svc, _, _ := newCartFixture(activeProduct("p1", 19.99, 10))

	cart, err := svc.AddItem(context.Background(), "user1", "p1", 2, "", "")

	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "product p1", cart.Items[0].Name)
	assert.True(t, cart.Items[0].Price.Equal(decimal.NewFromFloat(19.99)))
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assertInvariants(t, cart)
}

func TestAddItem_SnapshotsDiscountedPrice(t *testing.T) {
	p := activeProduct("p1", 100, 10)
	discounted := decimal.NewFromInt(80)
	p.DiscountedPrice = &discounted
	svc, _, _ := newCartFixture(p)

	cart, err := svc.AddItem(context.Background(), "user1", "p1", 1, "", "")

	require.NoError(t, err)
	assert.True(t, cart.Items[0].Price.Equal(discounted))
}

func TestAddItem_SameVariantIncrements(t *testing.T) {
	svc, _, _ := newCartFixture(activeProduct("p1", 10, 10))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user1", "p1", 2, "red", "M")
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, "user1", "p1", 3, "red", "M")
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assertInvariants(t, cart)
}

func TestAddItem_DifferentVariantIsSeparateLine(t *testing.T) {
	svc, _, _ := newCartFixture(activeProduct("p1", 10, 10))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user1", "p1", 1, "red", "M")
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, "user1", "p1", 1, "blue", "M")
	require.NoError(t, err)

	assert.Len(t, cart.Items, 2)
	assertInvariants(t, cart)
}

func TestAddItem_InsufficientStockCountsExistingQuantity(t *testing.T) {
	svc, _, _ := newCartFixture(activeProduct("p1", 10, 5))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user1", "p1", 4, "", "")
	require.NoError(t, err)

	// 4 already in the cart, 5 in stock: adding 2 more must fail.
	_, err = svc.AddItem(ctx, "user1", "p1", 2, "", "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInsufficientStock), "got %v", err)
}

func TestAddItem_InactiveProductRejected(t *testing.T) {
	p := activeProduct("p1", 10, 5)
	p.Status = domain.ProductInactive
	svc, _, _ := newCartFixture(p)

	_, err := svc.AddItem(context.Background(), "user1", "p1", 1, "", "")

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation), "got %v", err)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	svc, _, _ := newCartFixture()

	_, err := svc.AddItem(context.Background(), "user1", "missing", 1, "", "")

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound), "got %v", err)
}

func TestUpdateQuantity_Overwrites(t *testing.T) {
	svc, _, _ := newCartFixture(activeProduct("p1", 10, 10))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user1", "p1", 2, "", "")
	require.NoError(t, err)
	cart, err := svc.UpdateQuantity(ctx, "user1", "p1", 7, "", "")
	require.NoError(t, err)

	assert.Equal(t, 7, cart.Items[0].Quantity)
	assertInvariants(t, cart)
}

func TestUpdateQuantity_ZeroRemovesLine(t *testing.T) {
	svc, _, _ := newCartFixture(activeProduct("p1", 10, 10))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user1", "p1", 2, "", "")
	require.NoError(t, err)
	cart, err := svc.UpdateQuantity(ctx, "user1", "p1", 0, "", "")
	require.NoError(t, err)

	assert.True(t, cart.IsEmpty())
	assertInvariants(t, cart)
}

func TestUpdateQuantity_ExceedsStock(t *testing.T) {
	svc, _, _ := newCartFixture(activeProduct("p1", 10, 3))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user1", "p1", 1, "", "")
	require.NoError(t, err)
	_, err = svc.UpdateQuantity(ctx, "user1", "p1", 4, "", "")

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInsufficientStock), "got %v", err)
}

func TestUpdateQuantity_MissingLine(t *testing.T) {
	svc, _, _ := newCartFixture(activeProduct("p1", 10, 10))

	_, err := svc.UpdateQuantity(context.Background(), "user1", "p1", 2, "", "")

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound), "got %v", err)
}

func TestRemoveItem_MissingLine(t *testing.T) {
	svc, _, _ := newCartFixture(activeProduct("p1", 10, 10))

	_, err := svc.RemoveItem(context.Background(), "user1", "p1", "", "")

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound), "got %v", err)
}

func TestClearCart_EmptiesItemsAndCoupon(t *testing.T) {
	svc, _, _ := newCartFixture(activeProduct("p1", 10, 10))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user1", "p1", 2, "", "")
	require.NoError(t, err)
	_, err = svc.ApplyCoupon(ctx, "user1", "SAVE10", decimal.NewFromInt(10), domain.CouponPercentage)
	require.NoError(t, err)

	cart, err := svc.ClearCart(ctx, "user1")
	require.NoError(t, err)

	assert.True(t, cart.IsEmpty())
	assert.Nil(t, cart.Coupon)
	assert.Zero(t, cart.TotalItems)
	assert.True(t, cart.TotalPrice.IsZero())
}

func TestApplyCoupon_Idempotent(t *testing.T) {
	svc, _, _ := newCartFixture(activeProduct("p1", 100, 10))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user1", "p1", 2, "", "")
	require.NoError(t, err)

	once, err := svc.ApplyCoupon(ctx, "user1", "SAVE10", decimal.NewFromInt(10), domain.CouponPercentage)
	require.NoError(t, err)
	twice, err := svc.ApplyCoupon(ctx, "user1", "SAVE10", decimal.NewFromInt(10), domain.CouponPercentage)
	require.NoError(t, err)

	assert.Equal(t, once.Coupon, twice.Coupon)
	assert.True(t, once.TotalPrice.Equal(twice.TotalPrice))
	assert.Equal(t, once.TotalItems, twice.TotalItems)
	assertInvariants(t, twice)
}

func TestApplyCoupon_InvalidType(t *testing.T) {
	svc, _, _ := newCartFixture()

	_, err := svc.ApplyCoupon(context.Background(), "user1", "X", decimal.NewFromInt(10), "bogus")

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation), "got %v", err)
}

func TestRemoveCoupon(t *testing.T) {
	svc, _, _ := newCartFixture(activeProduct("p1", 100, 10))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user1", "p1", 1, "", "")
	require.NoError(t, err)
	_, err = svc.ApplyCoupon(ctx, "user1", "SAVE10", decimal.NewFromInt(10), domain.CouponPercentage)
	require.NoError(t, err)

	cart, err := svc.RemoveCoupon(ctx, "user1")
	require.NoError(t, err)

	assert.Nil(t, cart.Coupon)
	assertInvariants(t, cart)
}

func TestTotals_HoldAcrossMutationSequence(t *testing.T) {
	svc, _, _ := newCartFixture(activeProduct("p1", 10, 50), activeProduct("p2", 25, 50))
	ctx := context.Background()

	steps := []func() (*domain.Cart, error){
		func() (*domain.Cart, error) { return svc.AddItem(ctx, "u", "p1", 3, "", "") },
		func() (*domain.Cart, error) { return svc.AddItem(ctx, "u", "p2", 1, "", "") },
		func() (*domain.Cart, error) {
			return svc.ApplyCoupon(ctx, "u", "F5", decimal.NewFromInt(5), domain.CouponFixed)
		},
		func() (*domain.Cart, error) { return svc.UpdateQuantity(ctx, "u", "p1", 1, "", "") },
		func() (*domain.Cart, error) { return svc.RemoveItem(ctx, "u", "p2", "", "") },
		func() (*domain.Cart, error) { return svc.RemoveCoupon(ctx, "u") },
	}

	for i, step := range steps {
		cart, err := step()
		require.NoError(t, err, "step %d", i)
		assertInvariants(t, cart)
	}
}

func TestGetCart_ReconciliationPrunesAndClamps(t *testing.T) {
	gone := activeProduct("gone", 10, 10)
	scarce := activeProduct("scarce", 10, 10)
	retired := activeProduct("retired", 10, 10)
	svc, _, ledger := newCartFixture(gone, scarce, retired)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user1", "gone", 1, "", "")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "user1", "scarce", 8, "", "")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "user1", "retired", 2, "", "")
	require.NoError(t, err)

	// Catalog moves underneath the cart.
	ledger.mu.Lock()
	delete(ledger.products, "gone")
	ledger.products["scarce"].Stock = 3
	ledger.products["retired"].Status = domain.ProductInactive
	ledger.mu.Unlock()

	cart, err := svc.GetCart(ctx, "user1")
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, "scarce", cart.Items[0].ProductID)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assertInvariants(t, cart)
}

func TestConcurrentMutations_NoLostUpdates(t *testing.T) {
	const writers = 8
	products := make([]*domain.Product, writers)
	for i := range products {
		products[i] = activeProduct(fmt.Sprintf("p%d", i), 10, 100)
	}
	svc, _, _ := newCartFixture(products...)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Unavailable means the bounded retry budget ran out under
			// contention; it is documented as safe to retry.
			for {
				_, err := svc.AddItem(ctx, "user1", fmt.Sprintf("p%d", i), 1, "", "")
				if err == nil {
					return
				}
				if !assert.True(t, domain.IsKind(err, domain.KindUnavailable), "got %v", err) {
					return
				}
			}
		}(i)
	}
	wg.Wait()

	cart, err := svc.GetCart(ctx, "user1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, writers)
	assertInvariants(t, cart)
}
