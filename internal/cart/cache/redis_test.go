package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hana270/PFE-PROJET/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func testCart(identity string) *domain.Cart {
	return &domain.Cart{
		ID:        "cart-1",
		SessionID: identity,
		Items: []domain.CartItem{
			{ID: "item-1", ProductID: "p1", Quantity: 2, OriginalPrice: 100, Subtotal: 200},
		},
		TotalPrice: 200,
		UpdatedAt:  time.Now().UTC(),
	}
}

func TestGet_Miss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	_, err := cache.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSetAndGet(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	cart := testCart("sess-1")

	require.NoError(t, cache.Set(ctx, "sess-1", cart))

	got, err := cache.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, cart.ID, got.ID)
	assert.Len(t, got.Items, 1)
	assert.Equal(t, 200.0, got.TotalPrice)
}

func TestDelete(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "sess-2", testCart("sess-2")))
	require.NoError(t, cache.Delete(ctx, "sess-2"))

	_, err := cache.Get(ctx, "sess-2")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSet_TTLApplied(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "sess-3", testCart("sess-3")))

	ttl := mr.TTL("cart:sess-3")
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.LessOrEqual(t, ttl, 20*time.Minute)
}
