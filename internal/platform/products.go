package platform

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

var productFields = []string{"id", "title", "body_html", "images", "variants"}

// FetchProducts returns the products with the given ids, or the whole
// catalog when ids is empty. Quantities are returned as the store
// reports them, zero included.
func (c *Client) FetchProducts(ctx context.Context, ids []int64) ([]Product, error) {
	q := url.Values{}
	q.Set("fields", strings.Join(productFields, ","))
	if len(ids) > 0 {
		q.Set("ids", joinIDs(ids))
	}

	var out struct {
		Products []Product `json:"products"`
	}
	err := c.do(ctx, call{
		name:    "products.list",
		method:  http.MethodGet,
		path:    "/admin/products.json",
		query:   q,
		failure: "Error retrieving products",
		remote:  "Error retrieving products",
	}, &out)
	if err != nil {
		return []Product{}, err
	}
	if out.Products == nil {
		out.Products = []Product{}
	}
	return out.Products, nil
}

// Narrowed product records: only what listing and cart pages read.

type ImageView struct {
	Src      string `json:"src"`
	Position int    `json:"position"`
}

type VariantView struct {
	ID                int64           `json:"id"`
	Title             string          `json:"title"`
	InventoryItemID   int64           `json:"inventory_item_id"`
	InventoryQuantity int             `json:"inventory_quantity"`
	Price             decimal.Decimal `json:"price"`
}

type ProductView struct {
	ID       int64         `json:"id"`
	Title    string        `json:"title"`
	BodyHTML string        `json:"body_html"`
	Images   []ImageView   `json:"images"`
	Variants []VariantView `json:"variants"`
}

// NarrowProducts projects images to {src, position} and variants to
// {id, title, inventory_item_id, inventory_quantity, price}, keeping order.
func NarrowProducts(products []Product) []ProductView {
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		v := ProductView{
			ID:       p.ID,
			Title:    p.Title,
			BodyHTML: p.BodyHTML,
			Images:   make([]ImageView, 0, len(p.Images)),
			Variants: make([]VariantView, 0, len(p.Variants)),
		}
		for _, img := range p.Images {
			v.Images = append(v.Images, ImageView{Src: img.Src, Position: img.Position})
		}
		for _, vr := range p.Variants {
			v.Variants = append(v.Variants, VariantView{
				ID:                vr.ID,
				Title:             vr.Title,
				InventoryItemID:   vr.InventoryItemID,
				InventoryQuantity: vr.InventoryQuantity,
				Price:             vr.Price,
			})
		}
		out = append(out, v)
	}
	return out
}

// InStock keeps products whose first variant has stock. It does not
// modify its input. Use it for listings only.
func InStock(products []ProductView) []ProductView {
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		if len(p.Variants) > 0 && p.Variants[0].InventoryQuantity > 0 {
			out = append(out, p)
		}
	}
	return out
}
