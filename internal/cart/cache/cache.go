package cache

import (
	"context"
	"errors"

	"github.com/hana270/PFE-PROJET/internal/domain"
)

// CartCache caches cart snapshots keyed by identity (account id or
// session token).
type CartCache interface {
	Get(ctx context.Context, identity string) (*domain.Cart, error)
	Set(ctx context.Context, identity string, cart *domain.Cart) error
	Delete(ctx context.Context, identity string) error
}

var ErrCacheMiss = errors.New("cache miss")
