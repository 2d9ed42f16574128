package domain

import "github.com/shopspring/decimal"

type ProductStatus string

const (
	ProductActive     ProductStatus = "active"
	ProductInactive   ProductStatus = "inactive"
	ProductOutOfStock ProductStatus = "out_of_stock"
)

// Product is the catalog view this engine consumes: price and status for cart
// snapshots and reconciliation, stock for the ledger. Catalog CRUD itself is
// owned elsewhere.
type Product struct {
	ID              string           `bson:"_id" json:"id"`
	Name            string           `bson:"name" json:"name"`
	Price           decimal.Decimal  `bson:"price" json:"price"`
	DiscountedPrice *decimal.Decimal `bson:"discounted_price,omitempty" json:"discounted_price,omitempty"`
	Stock           int              `bson:"stock" json:"stock"`
	Status          ProductStatus    `bson:"status" json:"status"`
	Image           string           `bson:"image,omitempty" json:"image,omitempty"`
}

// SnapshotPrice is the price frozen into a cart line: the discounted price
// when one is set, the list price otherwise.
func (p Product) SnapshotPrice() decimal.Decimal {
	if p.DiscountedPrice != nil {
		return *p.DiscountedPrice
	}
	return p.Price
}

// Purchasable reports whether the product can currently be added to a cart.
func (p Product) Purchasable() bool {
	return p.Status == ProductActive
}
