package platform

import (
	"context"
	"net/http"
	"net/url"
)

// FetchInventoryLevels reads the levels of exactly the given inventory
// items in one request.
func (c *Client) FetchInventoryLevels(ctx context.Context, inventoryItemIDs []int64) ([]InventoryLevel, error) {
	q := url.Values{}
	q.Set("inventory_item_ids", joinIDs(inventoryItemIDs))

	var out struct {
		InventoryLevels []InventoryLevel `json:"inventory_levels"`
	}
	err := c.do(ctx, call{
		name:    "inventory_levels.list",
		method:  http.MethodGet,
		path:    "/admin/inventory_levels.json",
		query:   q,
		failure: "Error retrieving inventory levels",
		remote:  "Error retrieving inventory levels",
	}, &out)
	if err != nil {
		return []InventoryLevel{}, err
	}
	return out.InventoryLevels, nil
}

// AdjustInventoryLevel applies a signed delta to one item at one
// location. The store has no bulk variant of this call.
func (c *Client) AdjustInventoryLevel(ctx context.Context, adj Adjustment) (*InventoryLevel, error) {
	var out struct {
		InventoryLevel *InventoryLevel `json:"inventory_level"`
	}
	err := c.do(ctx, call{
		name:    "inventory_levels.adjust",
		method:  http.MethodPost,
		path:    "/admin/inventory_levels/adjust.json",
		body:    adj,
		failure: "Error updating inventory",
		remote:  "Inventory level adjustment failed",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.InventoryLevel, nil
}
