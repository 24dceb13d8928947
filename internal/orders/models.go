package orders

import (
	"context"
	"errors"
	"time"
)

// User is the acting customer as the order workflows need it.
type User struct {
	ID    int64
	Email string
	Phone string
}

// CartLine is one row of a user's cart: product + requested quantity.
type CartLine struct {
	ProductID int64
	Quantity  int
}

// LocalOrderRecord links a remote order to the local user who placed it.
type LocalOrderRecord struct {
	ID            int64
	RemoteOrderID int64
	UserID        int64
	CreatedAt     time.Time
}

var ErrAlreadyLinked = errors.New("remote order already linked")

// Ledger is the durable user -> remote order mapping. Records are only
// written after the remote order exists and are kept on cancellation.
type Ledger interface {
	Link(ctx context.Context, userID, remoteOrderID int64) error
	OwnedOrderIDs(ctx context.Context, userID int64) ([]int64, error)
	IsOwner(ctx context.Context, userID, remoteOrderID int64) (bool, error)
}
