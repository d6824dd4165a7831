package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/hana270/PFE-PROJET/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	carts     map[string]*domain.Cart
	upsertErr error
	deleted   []string
}

func newMockRepo() *mockRepo {
	return &mockRepo{carts: make(map[string]*domain.Cart)}
}

func (m *mockRepo) FindByAccount(_ context.Context, accountID string) ([]*domain.Cart, error) {
	var out []*domain.Cart
	for _, c := range m.carts {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockRepo) FindBySession(_ context.Context, sessionID string) (*domain.Cart, error) {
	for _, c := range m.carts {
		if c.SessionID == sessionID && c.AccountID == "" {
			return c, nil
		}
	}
	return nil, domain.ErrCartNotFound
}

func (m *mockRepo) Upsert(_ context.Context, cart *domain.Cart) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = time.Now()
	}
	m.carts[cart.ID] = cart
	return nil
}

func (m *mockRepo) Delete(_ context.Context, cartID string) error {
	if _, ok := m.carts[cartID]; !ok {
		return domain.ErrCartNotFound
	}
	delete(m.carts, cartID)
	m.deleted = append(m.deleted, cartID)
	return nil
}

func (m *mockRepo) DeleteStaleSessionCarts(_ context.Context, threshold time.Time) (int64, error) {
	var n int64
	for id, c := range m.carts {
		if c.AccountID == "" && c.UpdatedAt.Before(threshold) {
			delete(m.carts, id)
			n++
		}
	}
	return n, nil
}

type mockCache struct {
	data   map[string]*domain.Cart
	getErr error
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string]*domain.Cart)}
}

func (m *mockCache) Get(_ context.Context, key string) (*domain.Cart, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if c, ok := m.data[key]; ok {
		return c, nil
	}
	return nil, errors.New("cache: miss")
}

func (m *mockCache) Set(_ context.Context, key string, cart *domain.Cart) error {
	m.data[key] = cart
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

type mockCatalog struct {
	quotes map[string]*domain.StockQuote
	err    error
}

func (m *mockCatalog) Product(_ context.Context, productID string) (*domain.StockQuote, error) {
	if m.err != nil {
		return nil, m.err
	}
	if q, ok := m.quotes[productID]; ok {
		return q, nil
	}
	return nil, domain.ErrItemNotFound
}

func newService(repo *mockRepo, catalog *mockCatalog) *CartService {
	return NewCartService(repo, newMockCache(), catalog, 0)
}

func quoteFor(id string, price float64, available int) *domain.StockQuote {
	return &domain.StockQuote{ProductID: id, Name: "Pool " + id, Price: price, Available: available}
}

func TestResolveAnonymousGeneratesToken(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockCatalog{})

	cart, token, err := svc.Resolve(context.Background(), Identity{})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, token, cart.SessionID)
	assert.Empty(t, cart.Items)

	again, token2, err := svc.Resolve(context.Background(), Identity{SessionID: token})
	require.NoError(t, err)
	assert.Equal(t, token, token2)
	assert.Equal(t, cart.ID, again.ID)
	assert.Len(t, repo.carts, 1)
}

func TestResolveDiscardsStaleSessionCart(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockCatalog{})

	stale := &domain.Cart{
		ID:        "old",
		SessionID: "tok",
		Items:     []domain.CartItem{{ID: "i1", ProductID: "P1", Quantity: 2}},
		UpdatedAt: time.Now().Add(-72 * time.Hour),
	}
	require.NoError(t, repo.Upsert(context.Background(), stale))

	cart, token, err := svc.Resolve(context.Background(), Identity{SessionID: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.NotEqual(t, "old", cart.ID)
	assert.Empty(t, cart.Items)
	assert.Contains(t, repo.deleted, "old")
}

func TestResolveReconcilesDuplicateAccountCarts(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockCatalog{})

	oldest := &domain.Cart{
		ID:        "c1",
		AccountID: "acct",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		Items:     []domain.CartItem{{ID: "i1", ProductID: "P1", Quantity: 1, OriginalPrice: 10}},
	}
	newer := &domain.Cart{
		ID:        "c2",
		AccountID: "acct",
		CreatedAt: time.Now().Add(-time.Hour),
		Items:     []domain.CartItem{{ID: "i2", ProductID: "P2", Quantity: 2, OriginalPrice: 5}},
	}
	repo.carts["c1"] = oldest
	repo.carts["c2"] = newer

	cart, _, err := svc.Resolve(context.Background(), Identity{AccountID: "acct"})
	require.NoError(t, err)
	assert.Equal(t, "c1", cart.ID)
	assert.Len(t, cart.Items, 2)
	assert.Contains(t, repo.deleted, "c2")
	assert.InDelta(t, 20.0, cart.TotalPrice, 0.001)
}

func TestAddItemSnapshotsPriceAndPromotion(t *testing.T) {
	repo := newMockRepo()
	catalog := &mockCatalog{quotes: map[string]*domain.StockQuote{
		"P1": {ProductID: "P1", Name: "Pool P1", Price: 200, Available: 10,
			Promotion: &domain.Promotion{Name: "summer", DiscountRate: 25, Active: true}},
	}}
	svc := newService(repo, catalog)

	item, cart, err := svc.AddItem(context.Background(), Identity{AccountID: "acct"}, ItemRequest{ProductID: "P1", Quantity: 2})
	require.NoError(t, err)
	require.NotNil(t, item.PromoPrice)
	assert.InDelta(t, 150.0, *item.PromoPrice, 0.001)
	assert.True(t, item.PromotionActive)
	assert.Equal(t, "summer", item.PromotionName)
	assert.InDelta(t, 300.0, item.Subtotal, 0.001)
	assert.InDelta(t, 300.0, cart.TotalPrice, 0.001)

	// subsequent catalog price changes must not move the snapshot
	catalog.quotes["P1"].Price = 999
	got, _, err := svc.GetCart(context.Background(), Identity{AccountID: "acct"})
	require.NoError(t, err)
	assert.InDelta(t, 200.0, got.Items[0].OriginalPrice, 0.001)
}

func TestAddItemExplicitPromotionWinsOverProduct(t *testing.T) {
	repo := newMockRepo()
	catalog := &mockCatalog{quotes: map[string]*domain.StockQuote{
		"P1": {ProductID: "P1", Name: "Pool P1", Price: 100, Available: 10,
			Promotion: &domain.Promotion{Name: "summer", DiscountRate: 25, Active: true}},
	}}
	svc := newService(repo, catalog)

	rate := 50.0
	item, _, err := svc.AddItem(context.Background(), Identity{AccountID: "acct"}, ItemRequest{
		ProductID:     "P1",
		Quantity:      1,
		PromotionName: "flash",
		DiscountRate:  &rate,
	})
	require.NoError(t, err)
	require.NotNil(t, item.PromoPrice)
	assert.InDelta(t, 50.0, *item.PromoPrice, 0.001)
	assert.Equal(t, "flash", item.PromotionName)
}

func TestAddItemInsufficientStockLeavesCartUntouched(t *testing.T) {
	repo := newMockRepo()
	catalog := &mockCatalog{quotes: map[string]*domain.StockQuote{"P1": quoteFor("P1", 50, 5)}}
	svc := newService(repo, catalog)
	id := Identity{AccountID: "acct"}

	_, _, err := svc.AddItem(context.Background(), id, ItemRequest{ProductID: "P1", Quantity: 3})
	require.NoError(t, err)

	_, _, err = svc.AddItem(context.Background(), id, ItemRequest{ProductID: "P1", Quantity: 3})
	var stock *domain.InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, 5, stock.Available)

	cart, _, err := svc.GetCart(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.InDelta(t, 150.0, cart.TotalPrice, 0.001)
}

func TestAddItemMergesExistingCatalogLine(t *testing.T) {
	repo := newMockRepo()
	catalog := &mockCatalog{quotes: map[string]*domain.StockQuote{"P1": quoteFor("P1", 10, 10)}}
	svc := newService(repo, catalog)
	id := Identity{AccountID: "acct"}

	_, _, err := svc.AddItem(context.Background(), id, ItemRequest{ProductID: "P1", Quantity: 2})
	require.NoError(t, err)
	_, cart, err := svc.AddItem(context.Background(), id, ItemRequest{ProductID: "P1", Quantity: 3})
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.InDelta(t, 50.0, cart.TotalPrice, 0.001)
}

func TestAddItemCustomizedSkipsStockCheck(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockCatalog{})
	price := 720.0

	item, cart, err := svc.AddItem(context.Background(), Identity{AccountID: "acct"}, ItemRequest{
		Quantity:      1,
		Customized:    true,
		OriginalPrice: 800,
		CustomPrice:   &price,
		Custom:        &domain.Customization{Material: "fiberglass", Dimension: "8x4", Color: "azure"},
	})
	require.NoError(t, err)
	assert.True(t, item.Customized)
	assert.InDelta(t, 720.0, item.Subtotal, 0.001)
	assert.InDelta(t, 720.0, cart.TotalPrice, 0.001)
}

func TestAddItemCustomizedRequiresAttributes(t *testing.T) {
	svc := newService(newMockRepo(), &mockCatalog{})

	_, _, err := svc.AddItem(context.Background(), Identity{AccountID: "acct"}, ItemRequest{
		Quantity:   1,
		Customized: true,
		Custom:     &domain.Customization{Material: "fiberglass"},
	})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	svc := newService(newMockRepo(), &mockCatalog{})

	_, _, err := svc.AddItem(context.Background(), Identity{AccountID: "acct"}, ItemRequest{ProductID: "P1", Quantity: 0})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAddItemsPartialBatch(t *testing.T) {
	repo := newMockRepo()
	catalog := &mockCatalog{quotes: map[string]*domain.StockQuote{
		"P1": quoteFor("P1", 10, 10),
		"P2": quoteFor("P2", 20, 1),
	}}
	svc := newService(repo, catalog)

	added, cart, err := svc.AddItems(context.Background(), Identity{AccountID: "acct"}, []ItemRequest{
		{ProductID: "P1", Quantity: 2},
		{ProductID: "P2", Quantity: 5},
	})
	var pm *domain.PartialMergeError
	require.ErrorAs(t, err, &pm)
	assert.Equal(t, 1, pm.AffectedItems)
	assert.Len(t, added, 1)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "P1", cart.Items[0].ProductID)
}

func TestAddItemsReturnsRecomputedSubtotals(t *testing.T) {
	repo := newMockRepo()
	catalog := &mockCatalog{quotes: map[string]*domain.StockQuote{
		"P1": quoteFor("P1", 10, 10),
		"P2": quoteFor("P2", 25, 10),
	}}
	svc := newService(repo, catalog)

	added, cart, err := svc.AddItems(context.Background(), Identity{AccountID: "acct"}, []ItemRequest{
		{ProductID: "P1", Quantity: 2},
		{ProductID: "P2", Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.InDelta(t, 20.0, added[0].Subtotal, 0.001)
	assert.InDelta(t, 25.0, added[1].Subtotal, 0.001)
	assert.InDelta(t, 45.0, cart.TotalPrice, 0.001)
}

func TestUpdateQuantity(t *testing.T) {
	repo := newMockRepo()
	catalog := &mockCatalog{quotes: map[string]*domain.StockQuote{"P1": quoteFor("P1", 10, 4)}}
	svc := newService(repo, catalog)
	id := Identity{AccountID: "acct"}

	item, _, err := svc.AddItem(context.Background(), id, ItemRequest{ProductID: "P1", Quantity: 1})
	require.NoError(t, err)

	updated, cart, err := svc.UpdateQuantity(context.Background(), id, item.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)
	assert.InDelta(t, 40.0, cart.TotalPrice, 0.001)

	_, _, err = svc.UpdateQuantity(context.Background(), id, item.ID, 5)
	var stock *domain.InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, 4, stock.Available)

	_, _, err = svc.UpdateQuantity(context.Background(), id, "missing", 2)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestRemoveItem(t *testing.T) {
	repo := newMockRepo()
	catalog := &mockCatalog{quotes: map[string]*domain.StockQuote{"P1": quoteFor("P1", 10, 10)}}
	svc := newService(repo, catalog)
	id := Identity{AccountID: "acct"}

	item, _, err := svc.AddItem(context.Background(), id, ItemRequest{ProductID: "P1", Quantity: 2})
	require.NoError(t, err)

	cart, err := svc.RemoveItem(context.Background(), id, item.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.TotalPrice)

	_, err = svc.RemoveItem(context.Background(), id, item.ID)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestClear(t *testing.T) {
	repo := newMockRepo()
	catalog := &mockCatalog{quotes: map[string]*domain.StockQuote{"P1": quoteFor("P1", 10, 10)}}
	svc := newService(repo, catalog)
	id := Identity{AccountID: "acct"}

	_, _, err := svc.AddItem(context.Background(), id, ItemRequest{ProductID: "P1", Quantity: 2})
	require.NoError(t, err)

	cart, err := svc.Clear(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.TotalPrice)
}

func TestSetNotificationEmail(t *testing.T) {
	svc := newService(newMockRepo(), &mockCatalog{})
	id := Identity{AccountID: "acct"}

	cart, err := svc.SetNotificationEmail(context.Background(), id, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", cart.Email)

	_, err = svc.SetNotificationEmail(context.Background(), id, "")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestMergeConservesAndClamps(t *testing.T) {
	repo := newMockRepo()
	catalog := &mockCatalog{quotes: map[string]*domain.StockQuote{"P1": quoteFor("P1", 10, 5)}}
	svc := newService(repo, catalog)

	primary := &domain.Cart{
		ID:        "acct-cart",
		AccountID: "acct",
		Items:     []domain.CartItem{{ID: "a1", ProductID: "P1", Quantity: 4, OriginalPrice: 10}},
	}
	secondary := &domain.Cart{
		ID:        "sess-cart",
		SessionID: "tok",
		Items: []domain.CartItem{
			{ID: "s1", ProductID: "P1", Quantity: 3, OriginalPrice: 10},
			{ID: "s2", ProductID: "P2", Quantity: 1, OriginalPrice: 30},
		},
	}
	repo.carts[primary.ID] = primary
	repo.carts[secondary.ID] = secondary

	merged, err := svc.Merge(context.Background(), primary, secondary)
	var pm *domain.PartialMergeError
	require.ErrorAs(t, err, &pm)
	assert.Equal(t, 1, pm.AffectedItems)
	assert.Equal(t, "P1", pm.FirstItem.ProductID)

	require.Len(t, merged.Items, 2)
	assert.Equal(t, 5, merged.Items[0].Quantity) // clamped to stock
	assert.Equal(t, "P2", merged.Items[1].ProductID)
	assert.InDelta(t, 80.0, merged.TotalPrice, 0.001)
	assert.Contains(t, repo.deleted, "sess-cart")
}

func TestMergeEmptySecondaryIsNoop(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockCatalog{})

	primary := &domain.Cart{ID: "c1", AccountID: "acct"}
	merged, err := svc.Merge(context.Background(), primary, &domain.Cart{ID: "c2"})
	require.NoError(t, err)
	assert.Equal(t, primary, merged)
	assert.Empty(t, repo.deleted)
}

func TestMigrateSessionCartIntoAccount(t *testing.T) {
	repo := newMockRepo()
	catalog := &mockCatalog{quotes: map[string]*domain.StockQuote{"P1": quoteFor("P1", 10, 10)}}
	svc := newService(repo, catalog)

	sess := &domain.Cart{
		ID:        "sess-cart",
		SessionID: "tok",
		Items:     []domain.CartItem{{ID: "s1", ProductID: "P1", Quantity: 2, OriginalPrice: 10}},
	}
	repo.carts[sess.ID] = sess

	cart, err := svc.Migrate(context.Background(), "acct", "tok")
	require.NoError(t, err)
	assert.Equal(t, "acct", cart.AccountID)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.InDelta(t, 20.0, cart.TotalPrice, 0.001)
	assert.Contains(t, repo.deleted, "sess-cart")
}

func TestMigrateWithoutSessionCart(t *testing.T) {
	svc := newService(newMockRepo(), &mockCatalog{})

	_, err := svc.Migrate(context.Background(), "acct", "tok")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestResolveLoginFoldsSessionCart(t *testing.T) {
	repo := newMockRepo()
	catalog := &mockCatalog{quotes: map[string]*domain.StockQuote{"P1": quoteFor("P1", 10, 10)}}
	svc := newService(repo, catalog)

	sess := &domain.Cart{
		ID:        "sess-cart",
		SessionID: "tok",
		Items:     []domain.CartItem{{ID: "s1", ProductID: "P1", Quantity: 2, OriginalPrice: 10}},
	}
	repo.carts[sess.ID] = sess

	cart, _, err := svc.Resolve(context.Background(), Identity{AccountID: "acct", SessionID: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "acct", cart.AccountID)
	require.Len(t, cart.Items, 1)
	assert.Contains(t, repo.deleted, "sess-cart")
}

func TestGetCartServesFromCache(t *testing.T) {
	repo := newMockRepo()
	cache := newMockCache()
	svc := NewCartService(repo, cache, &mockCatalog{}, 0)

	cached := &domain.Cart{ID: "c1", AccountID: "acct", TotalPrice: 42}
	cache.data[Identity{AccountID: "acct"}.Key()] = cached

	cart, _, err := svc.GetCart(context.Background(), Identity{AccountID: "acct"})
	require.NoError(t, err)
	assert.Equal(t, cached, cart)
	assert.Empty(t, repo.carts)
}

func TestCheckSessionCart(t *testing.T) {
	repo := newMockRepo()
	svc := newService(repo, &mockCatalog{})

	_, err := svc.CheckSessionCart(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)

	sess := &domain.Cart{ID: "sess-cart", SessionID: "tok"}
	repo.carts[sess.ID] = sess

	got, err := svc.CheckSessionCart(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "sess-cart", got.ID)
	assert.Empty(t, repo.deleted) // probe must not create or delete anything
}
