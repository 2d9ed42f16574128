package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentMobileMoney  PaymentMethod = "mobile_money"
)

// ValidPaymentMethod reports whether m is one of the accepted methods.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentBankTransfer, PaymentMobileMoney:
		return true
	}
	return false
}

// orderTransitions is the total transition table for order statuses.
// Shipped orders cannot be cancelled; delivered and cancelled are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status accepts no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// Address is a shipping or billing address attached to an order.
type Address struct {
	Name       string `bson:"name,omitempty" json:"name,omitempty"`
	Street     string `bson:"street,omitempty" json:"street,omitempty"`
	City       string `bson:"city,omitempty" json:"city,omitempty"`
	State      string `bson:"state,omitempty" json:"state,omitempty"`
	Country    string `bson:"country,omitempty" json:"country,omitempty"`
	PostalCode string `bson:"postal_code,omitempty" json:"postal_code,omitempty"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
}

// IsZero reports whether the address carries no data.
func (a Address) IsZero() bool {
	return a == Address{}
}

// OrderItem is an immutable line snapshot copied from the cart at checkout.
type OrderItem struct {
	ProductID string          `bson:"product_id" json:"product_id"`
	Name      string          `bson:"name" json:"name"`
	Price     decimal.Decimal `bson:"price" json:"price"`
	Quantity  int             `bson:"quantity" json:"quantity"`
	Image     string          `bson:"image,omitempty" json:"image,omitempty"`
	Color     string          `bson:"color,omitempty" json:"color,omitempty"`
	Size      string          `bson:"size,omitempty" json:"size,omitempty"`
}

// Order is the immutable result of a checkout. The money fields are fixed at
// creation and never recomputed from live catalog prices. StockReleased
// records that a cancellation already returned this order's quantities, so a
// release can never run twice.
type Order struct {
	ID              string          `bson:"_id" json:"id"`
	OrderNumber     string          `bson:"order_number" json:"order_number"`
	UserID          string          `bson:"user_id" json:"user_id"`
	Items           []OrderItem     `bson:"items" json:"items"`
	ShippingAddress Address         `bson:"shipping_address" json:"shipping_address"`
	BillingAddress  Address         `bson:"billing_address" json:"billing_address"`
	PaymentMethod   PaymentMethod   `bson:"payment_method" json:"payment_method"`
	PaymentStatus   PaymentStatus   `bson:"payment_status" json:"payment_status"`
	Status          OrderStatus     `bson:"status" json:"status"`
	Subtotal        decimal.Decimal `bson:"subtotal" json:"subtotal"`
	ShippingFee     decimal.Decimal `bson:"shipping_fee" json:"shipping_fee"`
	Tax             decimal.Decimal `bson:"tax" json:"tax"`
	Discount        decimal.Decimal `bson:"discount" json:"discount"`
	Total           decimal.Decimal `bson:"total" json:"total"`
	Notes           string          `bson:"notes,omitempty" json:"notes,omitempty"`
	StockReleased   bool            `bson:"stock_released" json:"-"`
	DeliveredAt     *time.Time      `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	CancelledAt     *time.Time      `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
	CreatedAt       time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `bson:"updated_at" json:"updated_at"`
}
