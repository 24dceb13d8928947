package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-store-orders/internal/orders"
)

var ErrNotFound = errors.New("not found")

type Users struct{ DB *pgxpool.Pool }

func (u *Users) Get(ctx context.Context, id int64) (orders.User, error) {
	var usr orders.User
	err := u.DB.QueryRow(ctx, `SELECT id, email, phone FROM users WHERE id=$1`, id).
		Scan(&usr.ID, &usr.Email, &usr.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return usr, ErrNotFound
	}
	if err != nil {
		return usr, fmt.Errorf("get user %d: %w", id, err)
	}
	return usr, nil
}
