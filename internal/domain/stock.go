package domain

// StockQuote is a point-in-time snapshot of a catalog product as seen by
// the catalog collaborator. Read-only from this service's perspective;
// it can go stale between a check and a later decrement.
type StockQuote struct {
	ProductID string     `json:"product_id"`
	Name      string     `json:"name"`
	ImageURL  string     `json:"image_url,omitempty"`
	Price     float64    `json:"price"`
	Available int        `json:"available"`
	Promotion *Promotion `json:"promotion,omitempty"`
}

// Promotion is the catalog-side discount descriptor attached to a
// product. DiscountRate is a percentage (0-100).
type Promotion struct {
	Name         string  `json:"name"`
	DiscountRate float64 `json:"discount_rate"`
	Active       bool    `json:"active"`
}

// DiscountedPrice applies the promotion's rate to a unit price.
func (p *Promotion) DiscountedPrice(original float64) float64 {
	return original * (1 - p.DiscountRate/100.0)
}
