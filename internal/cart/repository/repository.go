package repository

import (
	"context"
	"time"

	"github.com/hana270/PFE-PROJET/internal/domain"
)

// CartRepository defines the interface for cart data operations.
// Consumers define this interface, not the MongoDB implementation.
type CartRepository interface {
	// FindByAccount returns every cart owned by the account, oldest
	// first. More than one cart is a data anomaly the caller heals.
	FindByAccount(ctx context.Context, accountID string) ([]*domain.Cart, error)
	FindBySession(ctx context.Context, sessionID string) (*domain.Cart, error)
	Upsert(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, cartID string) error
	// DeleteStaleSessionCarts removes session carts idle since before
	// the threshold and returns how many were reclaimed.
	DeleteStaleSessionCarts(ctx context.Context, threshold time.Time) (int64, error)
}
