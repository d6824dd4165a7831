// Package catalog is the narrow contract to the product-catalog
// collaborator: stock quotes (with the product's active promotion) and
// best-effort stock decrements. Product CRUD lives elsewhere.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hana270/PFE-PROJET/internal/domain"
	"github.com/sony/gobreaker/v2"
)

// Client is what the cart and order services see.
type Client interface {
	// Product fetches a fresh stock quote. Failures here block
	// quantity-increasing cart operations (overselling path).
	Product(ctx context.Context, productID string) (*domain.StockQuote, error)
	// DecrementStock asks the catalog to reduce available stock.
	// Callers treat failures as best-effort.
	DecrementStock(ctx context.Context, productID string, quantity int) error
}

type HTTPClient struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "catalog",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || err == errProductNotFound
		},
	})
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		cb:      cb,
	}
}

func (c *HTTPClient) Product(ctx context.Context, productID string) (*domain.StockQuote, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/products/%s", c.baseURL, productID), nil)
	if err != nil {
		return nil, err
	}

	var quote domain.StockQuote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("%w: decoding stock quote: %v", domain.ErrCatalogUnavailable, err)
	}
	return &quote, nil
}

func (c *HTTPClient) DecrementStock(ctx context.Context, productID string, quantity int) error {
	payload, err := json.Marshal(map[string]int{"delta": -quantity})
	if err != nil {
		return fmt.Errorf("marshal stock delta: %w", err)
	}

	_, err = c.do(ctx, http.MethodPost, fmt.Sprintf("%s/products/%s/stock", c.baseURL, productID), payload)
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	body, err := c.cb.Execute(func() ([]byte, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			// Not a collaborator outage; don't trip the breaker
			return nil, errProductNotFound
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("catalog returned %d", resp.StatusCode)
		}

		return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	})
	if err != nil {
		if err == errProductNotFound {
			return nil, domain.ErrItemNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	return body, nil
}

var errProductNotFound = fmt.Errorf("product not found in catalog")
