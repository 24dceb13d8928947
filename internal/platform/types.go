package platform

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wire records as the store admin API returns them. Fields beyond the
// ones this service needs are decoded so the projections below have
// something to strip.

type Image struct {
	ID       int64  `json:"id"`
	Src      string `json:"src"`
	Position int    `json:"position"`
	Alt      string `json:"alt,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

type Variant struct {
	ID                int64           `json:"id"`
	Title             string          `json:"title"`
	InventoryItemID   int64           `json:"inventory_item_id"`
	InventoryQuantity int             `json:"inventory_quantity"`
	Price             decimal.Decimal `json:"price"`
	SKU               string          `json:"sku,omitempty"`
	Barcode           string          `json:"barcode,omitempty"`
	Position          int             `json:"position,omitempty"`
}

type Product struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	BodyHTML string    `json:"body_html"`
	Images   []Image   `json:"images"`
	Variants []Variant `json:"variants"`
}

// FirstVariant returns the only variant this service works with.
func (p Product) FirstVariant() (Variant, bool) {
	if len(p.Variants) == 0 {
		return Variant{}, false
	}
	return p.Variants[0], true
}

type InventoryLevel struct {
	InventoryItemID int64      `json:"inventory_item_id"`
	LocationID      int64      `json:"location_id"`
	Available       int        `json:"available"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

type LineItem struct {
	ID           int64           `json:"id"`
	ProductID    *int64          `json:"product_id"` // null once the product is deleted
	VariantID    *int64          `json:"variant_id"`
	Title        string          `json:"title"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	SKU          string          `json:"sku,omitempty"`
	VariantTitle string          `json:"variant_title,omitempty"`
}

type Order struct {
	ID                  int64           `json:"id"`
	ContactEmail        string          `json:"contact_email"`
	Email               string          `json:"email"`
	Phone               string          `json:"phone"`
	CreatedAt           time.Time       `json:"created_at"`
	CancelledAt         *time.Time      `json:"cancelled_at"`
	FinancialStatus     string          `json:"financial_status"`
	FulfillmentStatus   string          `json:"fulfillment_status"`
	OrderStatusURL      string          `json:"order_status_url,omitempty"`
	LineItems           []LineItem      `json:"line_items"`
	SubtotalPrice       decimal.Decimal `json:"subtotal_price"`
	TotalLineItemsPrice decimal.Decimal `json:"total_line_items_price"`
	TotalPrice          decimal.Decimal `json:"total_price"`
}

func (o Order) Cancelled() bool { return o.CancelledAt != nil }

// OrderLine is one requested line of a new order.
type OrderLine struct {
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

type NewOrder struct {
	SendReceipt            bool        `json:"send_receipt"`
	SendFulfillmentReceipt bool        `json:"send_fulfillment_receipt"`
	LineItems              []OrderLine `json:"line_items"`
}

// OrderRequest is the create-order body. Contact details sit next to
// the order object, not inside it.
type OrderRequest struct {
	Order NewOrder `json:"order"`
	Email string   `json:"email,omitempty"`
	Phone string   `json:"phone,omitempty"`
}

type Adjustment struct {
	InventoryItemID     int64 `json:"inventory_item_id"`
	LocationID          int64 `json:"location_id"`
	AvailableAdjustment int   `json:"available_adjustment"`
}
