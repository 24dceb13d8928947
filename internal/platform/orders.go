package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-store-orders/internal/apperr"
)

var orderFields = []string{
	"id",
	"contact_email",
	"created_at",
	"cancelled_at",
	"email",
	"financial_status",
	"fulfillment_status",
	"line_items",
	"order_status",
	"phone",
	"subtotal_price",
	"total_line_items_price",
	"total_price",
}

// FetchOrders reads orders in any status. An empty ids slice means all
// orders; callers scoping by owner must never pass an empty slice for
// "none".
func (c *Client) FetchOrders(ctx context.Context, ids []int64) ([]Order, error) {
	q := url.Values{}
	q.Set("fields", strings.Join(orderFields, ","))
	q.Set("status", "any")
	if len(ids) > 0 {
		q.Set("ids", joinIDs(ids))
	}

	var out struct {
		Orders []Order `json:"orders"`
	}
	err := c.do(ctx, call{
		name:    "orders.list",
		method:  http.MethodGet,
		path:    "/admin/orders.json",
		query:   q,
		failure: "Error retrieving orders",
		remote:  "Error retrieving orders",
	}, &out)
	if err != nil {
		return []Order{}, err
	}
	if out.Orders == nil {
		out.Orders = []Order{}
	}
	return out.Orders, nil
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	var out struct {
		Order *Order `json:"order"`
	}
	err := c.do(ctx, call{
		name:    "orders.create",
		method:  http.MethodPost,
		path:    "/admin/orders.json",
		body:    req,
		failure: "Error creating order",
		remote:  "Error creating order",
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Order == nil {
		return nil, apperr.New(apperr.KindRemote, "Error creating order: empty response")
	}
	return out.Order, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID int64) (*Order, error) {
	var out struct {
		Order *Order `json:"order"`
	}
	err := c.do(ctx, call{
		name:    "orders.cancel",
		method:  http.MethodPost,
		path:    fmt.Sprintf("/admin/orders/%d/cancel.json", orderID),
		body:    struct{}{},
		failure: "Error cancelling order",
		remote:  "Error cancelling order",
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Order == nil {
		return nil, apperr.New(apperr.KindRemote, "Error cancelling order: empty response")
	}
	return out.Order, nil
}

type LineItemView struct {
	ID        int64           `json:"id"`
	ProductID *int64          `json:"product_id"`
	VariantID *int64          `json:"variant_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderView struct {
	ID                  int64           `json:"id"`
	ContactEmail        string          `json:"contact_email"`
	Email               string          `json:"email"`
	Phone               string          `json:"phone"`
	CreatedAt           time.Time       `json:"created_at"`
	CancelledAt         *time.Time      `json:"cancelled_at"`
	FinancialStatus     string          `json:"financial_status"`
	FulfillmentStatus   string          `json:"fulfillment_status"`
	LineItems           []LineItemView  `json:"line_items"`
	SubtotalPrice       decimal.Decimal `json:"subtotal_price"`
	TotalLineItemsPrice decimal.Decimal `json:"total_line_items_price"`
	TotalPrice          decimal.Decimal `json:"total_price"`
}

// NarrowOrders strips line items down to {id, product_id, variant_id,
// title, quantity, price}.
func NarrowOrders(orders []Order) []OrderView {
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		v := OrderView{
			ID:                  o.ID,
			ContactEmail:        o.ContactEmail,
			Email:               o.Email,
			Phone:               o.Phone,
			CreatedAt:           o.CreatedAt,
			CancelledAt:         o.CancelledAt,
			FinancialStatus:     o.FinancialStatus,
			FulfillmentStatus:   o.FulfillmentStatus,
			LineItems:           make([]LineItemView, 0, len(o.LineItems)),
			SubtotalPrice:       o.SubtotalPrice,
			TotalLineItemsPrice: o.TotalLineItemsPrice,
			TotalPrice:          o.TotalPrice,
		}
		for _, li := range o.LineItems {
			v.LineItems = append(v.LineItems, LineItemView{
				ID:        li.ID,
				ProductID: li.ProductID,
				VariantID: li.VariantID,
				Title:     li.Title,
				Quantity:  li.Quantity,
				Price:     li.Price,
			})
		}
		out = append(out, v)
	}
	return out
}
