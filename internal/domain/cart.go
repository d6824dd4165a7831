package domain

import "time"

// Cart is owned by exactly one identity: an account id for logged-in
// shoppers or a session token for anonymous ones, never both at once.
type Cart struct {
	ID         string     `bson:"_id" json:"id"`
	AccountID  string     `bson:"account_id,omitempty" json:"account_id,omitempty"`
	SessionID  string     `bson:"session_id,omitempty" json:"session_id,omitempty"`
	Items      []CartItem `bson:"items" json:"items"`
	TotalPrice float64    `bson:"total_price" json:"total_price"`
	Email      string     `bson:"notification_email,omitempty" json:"notification_email,omitempty"`
	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at" json:"updated_at"`
}

// IsStale reports whether a session cart has been idle longer than ttl.
// Account carts never expire.
func (c *Cart) IsStale(ttl time.Duration, now time.Time) bool {
	if c.AccountID != "" || c.UpdatedAt.IsZero() {
		return false
	}
	return c.UpdatedAt.Before(now.Add(-ttl))
}

// FindItem returns the cart line with the given id, or nil.
func (c *Cart) FindItem(itemID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i]
		}
	}
	return nil
}

// FindCatalogLine returns the non-customized line for a catalog product,
// or nil. Customized lines never match; each customization is its own line.
func (c *Cart) FindCatalogLine(productID string) *CartItem {
	for i := range c.Items {
		if !c.Items[i].Customized && c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

type CartItem struct {
	ID          string  `bson:"id" json:"id"`
	ProductID   string  `bson:"product_id,omitempty" json:"product_id,omitempty"`
	ProductName string  `bson:"product_name,omitempty" json:"product_name,omitempty"`
	ImageURL    string  `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Quantity    int     `bson:"quantity" json:"quantity"`
	Customized  bool    `bson:"customized" json:"customized"`
	Subtotal    float64 `bson:"subtotal" json:"subtotal"`

	// Price snapshot, frozen at insertion time. Not refreshed by
	// unrelated operations so the shopper sees a stable price.
	OriginalPrice   float64  `bson:"original_price" json:"original_price"`
	PromoPrice      *float64 `bson:"promo_price,omitempty" json:"promo_price,omitempty"`
	CustomPrice     *float64 `bson:"custom_price,omitempty" json:"custom_price,omitempty"`
	PromotionActive bool     `bson:"promotion_active" json:"promotion_active"`
	PromotionName   string   `bson:"promotion_name,omitempty" json:"promotion_name,omitempty"`
	DiscountRate    float64  `bson:"discount_rate,omitempty" json:"discount_rate,omitempty"`

	Custom  *Customization `bson:"custom,omitempty" json:"custom,omitempty"`
	AddedAt time.Time      `bson:"added_at" json:"added_at"`
}

// EffectivePrice is the unit price the shopper actually pays:
// promotional price when a promotion is attached, else the custom price
// for customized items, else the original price.
func (i *CartItem) EffectivePrice() float64 {
	switch {
	case i.PromotionActive && i.PromoPrice != nil:
		return *i.PromoPrice
	case i.Customized && i.CustomPrice != nil:
		return *i.CustomPrice
	default:
		return i.OriginalPrice
	}
}

// Customization describes a made-to-order product. The property bag is
// open-ended; the set of customizable attributes is defined by the
// catalog, not by this service.
type Customization struct {
	Material       string            `bson:"material" json:"material"`
	MaterialPrice  float64           `bson:"material_price,omitempty" json:"material_price,omitempty"`
	Dimension      string            `bson:"dimension" json:"dimension"`
	DimensionPrice float64           `bson:"dimension_price,omitempty" json:"dimension_price,omitempty"`
	Color          string            `bson:"color" json:"color"`
	LeadTime       string            `bson:"lead_time,omitempty" json:"lead_time,omitempty"`
	Properties     map[string]string `bson:"properties,omitempty" json:"properties,omitempty"`
	Accessories    []Accessory       `bson:"accessories,omitempty" json:"accessories,omitempty"`
}

type Accessory struct {
	AccessoryID string  `bson:"accessory_id" json:"accessory_id"`
	Name        string  `bson:"name" json:"name"`
	Price       float64 `bson:"price" json:"price"`
	ImageURL    string  `bson:"image_url,omitempty" json:"image_url,omitempty"`
}
