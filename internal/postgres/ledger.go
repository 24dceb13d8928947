package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-store-orders/internal/orders"
)

const uniqueViolation = "23505"

// Ledger maps local users to the remote orders they placed.
type Ledger struct{ DB *pgxpool.Pool }

func (l *Ledger) Link(ctx context.Context, userID, remoteOrderID int64) error {
	_, err := l.DB.Exec(ctx, `
		INSERT INTO local_orders(remote_order_id, user_id)
		VALUES ($1, $2)`, remoteOrderID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return orders.ErrAlreadyLinked
		}
		return fmt.Errorf("link order %d: %w", remoteOrderID, err)
	}
	return nil
}

// OwnedOrderIDs lists the user's remote order ids, oldest first.
func (l *Ledger) OwnedOrderIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := l.DB.Query(ctx, `
		SELECT remote_order_id FROM local_orders
		WHERE user_id=$1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("owned orders: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("owned orders: %w", err)
	}
	return ids, nil
}

func (l *Ledger) IsOwner(ctx context.Context, userID, remoteOrderID int64) (bool, error) {
	var ok bool
	err := l.DB.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM local_orders WHERE user_id=$1 AND remote_order_id=$2)`,
		userID, remoteOrderID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("order owner: %w", err)
	}
	return ok, nil
}
