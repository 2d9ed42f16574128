package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CouponType selects how a coupon discount is interpreted.
type CouponType string

const (
	CouponPercentage CouponType = "percentage"
	CouponFixed      CouponType = "fixed"
)

// Coupon is a discount applied to a whole cart. Validity lookups against a
// coupon catalog are out of scope here; the caller supplies code and value.
type Coupon struct {
	Code     string          `bson:"code" json:"code"`
	Discount decimal.Decimal `bson:"discount" json:"discount"`
	Type     CouponType      `bson:"type" json:"type"`
}

// CartItem is one line of a cart. Name, price and image are snapshotted from
// the product at add time and never re-read from the catalog.
type CartItem struct {
	ProductID string          `bson:"product_id" json:"product_id"`
	Name      string          `bson:"name" json:"name"`
	Price     decimal.Decimal `bson:"price" json:"price"`
	Quantity  int             `bson:"quantity" json:"quantity"`
	Image     string          `bson:"image,omitempty" json:"image,omitempty"`
	Color     string          `bson:"color,omitempty" json:"color,omitempty"`
	Size      string          `bson:"size,omitempty" json:"size,omitempty"`
	AddedAt   time.Time       `bson:"added_at" json:"added_at"`
}

// Matches reports whether the line is keyed by the given product and variant.
// Two lines for the same product with different color/size stay separate.
func (i CartItem) Matches(productID, color, size string) bool {
	return i.ProductID == productID && i.Color == color && i.Size == size
}

// Cart holds the mutable shopping state for one user. TotalItems and
// TotalPrice are derived and recomputed on every mutation, never stored stale.
// Version backs optimistic concurrency on whole-cart updates.
type Cart struct {
	ID         string          `bson:"_id,omitempty" json:"id,omitempty"`
	UserID     string          `bson:"user_id" json:"user_id"`
	Items      []CartItem      `bson:"items" json:"items"`
	Coupon     *Coupon         `bson:"coupon,omitempty" json:"coupon,omitempty"`
	TotalItems int             `bson:"total_items" json:"total_items"`
	TotalPrice decimal.Decimal `bson:"total_price" json:"total_price"`
	Version    int64           `bson:"version" json:"version"`
	CreatedAt  time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `bson:"updated_at" json:"updated_at"`
}

// FindItem returns the index of the line matching (productID, color, size),
// or -1 if no such line exists.
func (c *Cart) FindItem(productID, color, size string) int {
	for i, item := range c.Items {
		if item.Matches(productID, color, size) {
			return i
		}
	}
	return -1
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
