package cache

import (
	"context"
	"errors"

	"github.com/emmanuelselicour/ES-Company-API/internal/domain"
)

var ErrCacheMiss = errors.New("cart not in cache")

// CartCache is a read-through cache in front of the cart repository.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}
