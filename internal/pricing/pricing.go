// Package pricing computes cart and order totals. The engine is a pure
// function of its inputs: no I/O, no clock, no hidden state, so the same
// items and coupon always produce the same totals.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/emmanuelselicour/ES-Company-API/internal/domain"
)

// DefaultTaxRate matches the storefront's flat 15% tax stub.
var DefaultTaxRate = decimal.NewFromFloat(0.15)

var hundred = decimal.NewFromInt(100)

// Totals is the full money breakdown for a set of lines plus a coupon.
// Total == Subtotal + ShippingFee + Tax - Discount, floored at zero.
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	Tax         decimal.Decimal `json:"tax"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Total       decimal.Decimal `json:"total"`
}

// ShippingPolicy computes the shipping fee for a set of lines. The storefront
// ships free; real carrier lookups plug in here.
type ShippingPolicy func(items []domain.CartItem) decimal.Decimal

// FreeShipping is the default policy.
func FreeShipping([]domain.CartItem) decimal.Decimal {
	return decimal.Zero
}

type Engine struct {
	taxRate  decimal.Decimal
	shipping ShippingPolicy
}

// NewEngine builds an engine with the default tax rate and free shipping.
func NewEngine() *Engine {
	return &Engine{taxRate: DefaultTaxRate, shipping: FreeShipping}
}

// NewEngineWith builds an engine with an explicit tax rate and shipping
// policy. A nil policy means free shipping.
func NewEngineWith(taxRate decimal.Decimal, shipping ShippingPolicy) *Engine {
	if shipping == nil {
		shipping = FreeShipping
	}
	return &Engine{taxRate: taxRate, shipping: shipping}
}

// Quote computes the totals for the given lines and optional coupon.
//
// A percentage coupon takes its share of the items total; a fixed coupon is
// clamped so the discount never exceeds the subtotal. The grand total is
// floored at zero.
func (e *Engine) Quote(items []domain.CartItem, coupon *domain.Coupon) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	discount := discountFor(subtotal, coupon)
	tax := subtotal.Mul(e.taxRate)
	shippingFee := e.shipping(items)

	total := subtotal.Add(shippingFee).Add(tax).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		Subtotal:    subtotal,
		Discount:    discount,
		Tax:         tax,
		ShippingFee: shippingFee,
		Total:       total,
	}
}

// CountItems sums line quantities; carts store this alongside the price total.
func CountItems(items []domain.CartItem) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}

func discountFor(subtotal decimal.Decimal, coupon *domain.Coupon) decimal.Decimal {
	if coupon == nil || coupon.Code == "" {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch coupon.Type {
	case domain.CouponPercentage:
		discount = subtotal.Mul(coupon.Discount).Div(hundred)
	case domain.CouponFixed:
		discount = coupon.Discount
	default:
		return decimal.Zero
	}

	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount
}
