package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-store-orders/internal/orders"
)

type Carts struct{ DB *pgxpool.Pool }

// Lines returns the user's cart in the order items were added.
func (c *Carts) Lines(ctx context.Context, userID int64) ([]orders.CartLine, error) {
	rows, err := c.DB.Query(ctx, `
		SELECT product_id, quantity FROM cart_items
		WHERE user_id=$1 ORDER BY added_at, product_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("cart lines: %w", err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (orders.CartLine, error) {
		var l orders.CartLine
		err := row.Scan(&l.ProductID, &l.Quantity)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("cart lines: %w", err)
	}
	return lines, nil
}

func (c *Carts) Clear(ctx context.Context, userID int64) error {
	if _, err := c.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("cart clear: %w", err)
	}
	return nil
}
