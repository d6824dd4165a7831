package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hana270/PFE-PROJET/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/p1", r.URL.Path)
		json.NewEncoder(w).Encode(domain.StockQuote{
			ProductID: "p1",
			Name:      "Garden basin 3x2",
			Price:     1200,
			Available: 5,
			Promotion: &domain.Promotion{Name: "Summer", DiscountRate: 10, Active: true},
		})
	}))
	defer ts.Close()

	client := NewHTTPClient(ts.URL, 2*time.Second)
	quote, err := client.Product(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, quote.Available)
	assert.Equal(t, 1200.0, quote.Price)
	require.NotNil(t, quote.Promotion)
	assert.InDelta(t, 1080.0, quote.Promotion.DiscountedPrice(quote.Price), 0.001)
}

func TestProduct_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewHTTPClient(ts.URL, 2*time.Second)
	_, err := client.Product(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestProduct_ServerErrorMapsToUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewHTTPClient(ts.URL, 2*time.Second)
	_, err := client.Product(context.Background(), "p1")
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
}

func TestDecrementStock_SendsNegativeDelta(t *testing.T) {
	var got map[string]int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/p1/stock", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewHTTPClient(ts.URL, 2*time.Second)
	require.NoError(t, client.DecrementStock(context.Background(), "p1", 3))
	assert.Equal(t, -3, got["delta"])
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := NewHTTPClient(ts.URL, 2*time.Second)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := client.Product(ctx, "p1")
		assert.Error(t, err)
	}

	// Breaker is now open; the call fails without reaching the server
	_, err := client.Product(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
}
