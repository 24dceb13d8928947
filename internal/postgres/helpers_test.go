package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-store-orders/internal/orders"
)

// Nothing in this service writes users or carts; tests seed them directly.

func createUser(t *testing.T, db *pgxpool.Pool, email, phone string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO users(email, phone) VALUES ($1, $2) RETURNING id`, email, phone).Scan(&id)
	require.NoError(t, err, "create user")
	return id
}

func addToCart(t *testing.T, db *pgxpool.Pool, userID, productID int64, qty int) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO cart_items(user_id, product_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		userID, productID, qty)
	require.NoError(t, err, "cart add")
}

func ledgerRecord(ctx context.Context, db *pgxpool.Pool, remoteOrderID int64) (orders.LocalOrderRecord, error) {
	var r orders.LocalOrderRecord
	err := db.QueryRow(ctx, `
		SELECT id, remote_order_id, user_id, created_at FROM local_orders
		WHERE remote_order_id=$1`, remoteOrderID).Scan(&r.ID, &r.RemoteOrderID, &r.UserID, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, fmt.Errorf("order record: %w", err)
	}
	return r, nil
}

func eventHistory(ctx context.Context, db *pgxpool.Pool, correlationID string) ([]string, error) {
	rows, err := db.Query(ctx, `
		SELECT event_type FROM order_events
		WHERE correlation_id=$1 ORDER BY occurred_at, recorded_at`, correlationID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
