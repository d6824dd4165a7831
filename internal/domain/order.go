package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusValidated OrderStatus = "VALIDATED"
)

type ProductType string

const (
	ProductTypeCatalog ProductType = "CATALOG"
	ProductTypeCustom  ProductType = "CUSTOM"
)

// Order is an immutable snapshot of a cart plus delivery information,
// produced once payment has been verified. Only the status ever changes
// after creation.
type Order struct {
	ID          string       `json:"id"`
	Reference   string       `json:"reference"`
	AccountID   string       `json:"account_id,omitempty"`
	Email       string       `json:"email,omitempty"`
	Status      OrderStatus  `json:"status"`
	Lines       []OrderLine  `json:"lines"`
	Subtotal    float64      `json:"subtotal"`
	TaxAmount   float64      `json:"tax_amount"`
	ShippingFee float64      `json:"shipping_fee"`
	GrandTotal  float64      `json:"grand_total"`
	Delivery    DeliveryInfo `json:"delivery"`
	CreatedAt   time.Time    `json:"created_at"`
	PaidAt      *time.Time   `json:"paid_at,omitempty"`
}

// OrderLine copies quantity, unit price and (for customized items) the
// frozen customization attributes from a cart line at order time.
type OrderLine struct {
	ID          string         `json:"id"`
	ProductID   string         `json:"product_id,omitempty"`
	ProductType ProductType    `json:"product_type"`
	ProductName string         `json:"product_name,omitempty"`
	ImageURL    string         `json:"image_url,omitempty"`
	Quantity    int            `json:"quantity"`
	UnitPrice   float64        `json:"unit_price"`
	LineTotal   float64        `json:"line_total"`
	Custom      *Customization `json:"custom,omitempty"`
}
