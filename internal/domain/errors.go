package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies service errors so callers can branch without parsing
// message text.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindEmptyCart         ErrorKind = "empty_cart"
	KindUnavailable       ErrorKind = "unavailable"
)

// Error is a structured service error: a kind, a human message, and the
// identifier of the offending entity when there is one.
type Error struct {
	Kind      ErrorKind
	Message   string
	ProductID string
	OrderID   string
	Err       error
}

func (e *Error) Error() string {
	if e.ProductID != "" {
		return fmt.Sprintf("%s: %s (product %s)", e.Kind, e.Message, e.ProductID)
	}
	if e.OrderID != "" {
		return fmt.Sprintf("%s: %s (order %s)", e.Kind, e.Message, e.OrderID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err (or anything it wraps) is a *Error of the given
// kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}

// KindOf returns the kind of err, or "" when err carries no *Error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func ValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func NotFoundError(msg, productID string) *Error {
	return &Error{Kind: KindNotFound, Message: msg, ProductID: productID}
}

func OrderNotFoundError(orderID string) *Error {
	return &Error{Kind: KindNotFound, Message: "order not found", OrderID: orderID}
}

func ProductUnavailableError(productID string) *Error {
	return &Error{Kind: KindValidation, Message: "product is not available", ProductID: productID}
}

func InsufficientStockError(productID string, available int) *Error {
	return &Error{
		Kind:      KindInsufficientStock,
		Message:   fmt.Sprintf("only %d items available in stock", available),
		ProductID: productID,
	}
}

func InvalidTransitionError(orderID string, from, to OrderStatus) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("cannot transition order from %s to %s", from, to),
		OrderID: orderID,
	}
}

func EmptyCartError() *Error {
	return &Error{Kind: KindEmptyCart, Message: "cart is empty, nothing to checkout"}
}

func UnavailableError(msg string, err error) *Error {
	return &Error{Kind: KindUnavailable, Message: msg, Err: err}
}
