package orders

import (
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-store-orders/internal/platform"
)

type CartSummaryLine struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"product_title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type CartSummary struct {
	Lines []CartSummaryLine `json:"items"`
	Total decimal.Decimal   `json:"cart_total"`
}

// SummarizeCart prices cart lines at each product's first variant, in
// cart order. Lines whose product the store did not return, or that has
// no variants, are left out of both the lines and the total.
func SummarizeCart(lines []CartLine, products []platform.Product) CartSummary {
	byID := make(map[int64]platform.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	out := CartSummary{Lines: make([]CartSummaryLine, 0, len(lines)), Total: decimal.Zero}
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			continue
		}
		v, ok := p.FirstVariant()
		if !ok {
			continue
		}
		lt := v.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		out.Lines = append(out.Lines, CartSummaryLine{
			ProductID: p.ID,
			Title:     p.Title,
			Quantity:  l.Quantity,
			UnitPrice: v.Price,
			LineTotal: lt,
		})
		out.Total = out.Total.Add(lt)
	}
	return out
}
