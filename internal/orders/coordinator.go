package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-store-orders/internal/kafka"

	"github.com/ariefcatur/go-store-orders/internal/apperr"
	"github.com/ariefcatur/go-store-orders/internal/inventory"
	"github.com/ariefcatur/go-store-orders/internal/platform"
)

// Store is the part of the store admin API the workflows call.
type Store interface {
	FetchProducts(ctx context.Context, ids []int64) ([]platform.Product, error)
	FetchOrders(ctx context.Context, ids []int64) ([]platform.Order, error)
	CreateOrder(ctx context.Context, req platform.OrderRequest) (*platform.Order, error)
	CancelOrder(ctx context.Context, orderID int64) (*platform.Order, error)
}

type Adjuster interface {
	Adjust(ctx context.Context, items []inventory.Item, dir inventory.Direction) error
}

// Coordinator runs the place and cancel workflows. Each call runs to
// completion or aborts; nothing about a workflow is persisted except
// the ledger link.
type Coordinator struct {
	Store     Store
	Inventory Adjuster
	Ledger    Ledger
	Events    Publisher
	Log       *zap.Logger
	Service   string
}

func NewCoordinator(store Store, adj Adjuster, ledger Ledger, events Publisher, log *zap.Logger, service string) *Coordinator {
	if events == nil {
		events = NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{Store: store, Inventory: adj, Ledger: ledger, Events: events, Log: log, Service: service}
}

// PlaceOrder takes stock for the cart and then creates the remote
// order. Stock goes first so that of two orders racing for the last
// units, the later one fails at the availability check.
//
// If order creation or the ledger write fails, stock already taken is
// not returned; the gap is logged and emitted as an event.
func (c *Coordinator) PlaceOrder(ctx context.Context, user User, lines []CartLine) (*platform.Order, error) {
	if len(lines) == 0 {
		return nil, apperr.New(apperr.KindValidation, "No products to order")
	}
	log := c.Log.With(zap.Int64("user_id", user.ID))

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := c.Store.FetchProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]platform.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]inventory.Item, 0, len(lines))
	orderLines := make([]platform.OrderLine, 0, len(lines))
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, apperr.Newf(apperr.KindNotFound, "Product #%d is no longer available", l.ProductID)
		}
		item, ok := inventory.ItemFor(p, l.Quantity)
		if !ok {
			return nil, apperr.Newf(apperr.KindValidation, "%s has no variants", p.Title)
		}
		v, _ := p.FirstVariant()
		items = append(items, item)
		orderLines = append(orderLines, platform.OrderLine{VariantID: v.ID, Quantity: l.Quantity})
	}

	if err := c.Inventory.Adjust(ctx, items, inventory.Place); err != nil {
		var partial *inventory.PartialError
		if errors.As(err, &partial) && len(partial.Applied) > 0 {
			c.emit(ctx, EventInventoryStranded, 0, user.ID, InventoryStrandedPayload{
				UserID: user.ID,
				Reason: err.Error(),
				Items:  adjustmentDeltas(partial.Applied),
			})
		}
		return nil, err
	}

	order, err := c.Store.CreateOrder(ctx, platform.OrderRequest{
		Order: platform.NewOrder{
			SendReceipt:            true,
			SendFulfillmentReceipt: true,
			LineItems:              orderLines,
		},
		Email: user.Email,
		Phone: user.Phone,
	})
	if err != nil {
		log.Error("order creation failed after inventory was taken", zap.Error(err))
		c.emit(ctx, EventInventoryStranded, 0, user.ID, InventoryStrandedPayload{
			UserID: user.ID,
			Reason: err.Error(),
			Items:  itemDeltas(items, -1),
		})
		return nil, err
	}
	log = log.With(zap.Int64("order_id", order.ID))

	if err := c.Ledger.Link(ctx, user.ID, order.ID); err != nil {
		log.Error("remote order created but not linked", zap.Error(err))
		c.emit(ctx, EventOrderUnlinked, order.ID, user.ID, OrderUnlinkedPayload{
			OrderID: order.ID,
			UserID:  user.ID,
			Reason:  err.Error(),
		})
		return nil, apperr.Wrap(apperr.KindStorage,
			fmt.Sprintf("Order #%d was created but could not be recorded", order.ID), err)
	}

	lp := make([]LinePayload, len(orderLines))
	for i, l := range orderLines {
		lp[i] = LinePayload{VariantID: l.VariantID, Quantity: l.Quantity}
	}
	c.emit(ctx, EventOrderPlaced, order.ID, user.ID, OrderPlacedPayload{
		OrderID:    order.ID,
		UserID:     user.ID,
		Lines:      lp,
		TotalPrice: order.TotalPrice.StringFixed(2),
	})
	log.Info("order placed", zap.Int("lines", len(orderLines)))
	return order, nil
}

// CancelOrder cancels an order the user owns and then returns its stock.
// The result is defined by the store accepting the cancellation: a
// failed restock is logged and emitted but does not fail the call.
func (c *Coordinator) CancelOrder(ctx context.Context, user User, orderID int64) (*platform.Order, error) {
	owned, err := c.Ledger.IsOwner(ctx, user.ID, orderID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "Error retrieving orders", err)
	}
	if !owned {
		return nil, notFound(orderID)
	}

	// Ownership is settled, so the read is not scoped by owner.
	found, err := c.Store.FetchOrders(ctx, []int64{orderID})
	if err != nil {
		return nil, err
	}
	var order *platform.Order
	for i := range found {
		if found[i].ID == orderID {
			order = &found[i]
			break
		}
	}
	if order == nil {
		return nil, notFound(orderID)
	}
	if order.Cancelled() {
		return nil, apperr.Newf(apperr.KindAlreadyCancelled, "Order #%d is already cancelled", orderID)
	}

	cancelled, err := c.Store.CancelOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	log := c.Log.With(zap.Int64("user_id", user.ID), zap.Int64("order_id", orderID))

	// The store already cancelled; the restock must not be cut short by
	// the caller going away.
	if err := c.restock(context.WithoutCancel(ctx), *order); err != nil {
		log.Error("order cancelled but inventory not restored", zap.Error(err))
		payload := InventoryRestoreFailedPayload{OrderID: orderID, UserID: user.ID, Reason: err.Error()}
		var partial *inventory.PartialError
		if errors.As(err, &partial) {
			payload.Applied = adjustmentDeltas(partial.Applied)
		}
		c.emit(ctx, EventInventoryRestoreFailed, orderID, user.ID, payload)
	}

	c.emit(ctx, EventOrderCancelled, orderID, user.ID, OrderCancelledPayload{OrderID: orderID, UserID: user.ID})
	log.Info("order cancelled")
	return cancelled, nil
}

// restock returns an order's quantities to stock. Line items carry no
// inventory item ids, so the products are read again.
func (c *Coordinator) restock(ctx context.Context, order platform.Order) error {
	ids := make([]int64, 0, len(order.LineItems))
	qty := make(map[int64]int, len(order.LineItems))
	for _, li := range order.LineItems {
		if li.ProductID == nil {
			continue
		}
		pid := *li.ProductID
		if _, seen := qty[pid]; !seen {
			ids = append(ids, pid)
		}
		qty[pid] += li.Quantity
	}
	if len(ids) == 0 {
		return nil
	}

	products, err := c.Store.FetchProducts(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[int64]platform.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]inventory.Item, 0, len(ids))
	for _, pid := range ids {
		p, ok := byID[pid]
		if !ok {
			c.Log.Warn("product gone; skipping restock", zap.Int64("order_id", order.ID), zap.Int64("product_id", pid))
			continue
		}
		item, ok := inventory.ItemFor(p, qty[pid])
		if !ok {
			c.Log.Warn("product has no variants; skipping restock", zap.Int64("order_id", order.ID), zap.Int64("product_id", pid))
			continue
		}
		items = append(items, item)
	}
	return c.Inventory.Adjust(ctx, items, inventory.Cancel)
}

// FetchOrders reads orders by id. With an owner, only ids linked to that
// owner are requested (all of them when ids is empty); an empty
// intersection returns nothing without asking the store. Without an
// owner nothing is filtered.
func (c *Coordinator) FetchOrders(ctx context.Context, ids []int64, owner *int64) ([]platform.Order, error) {
	if owner != nil {
		owned, err := c.Ledger.OwnedOrderIDs(ctx, *owner)
		if err != nil {
			return []platform.Order{}, apperr.Wrap(apperr.KindStorage, "Error retrieving orders", err)
		}
		ids = intersect(ids, owned)
		if len(ids) == 0 {
			return []platform.Order{}, nil
		}
	}
	return c.Store.FetchOrders(ctx, ids)
}

func (c *Coordinator) emit(ctx context.Context, eventType string, orderID, userID int64, payload any) {
	c.Events.Publish(ctx, Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      c.Service,
		TraceID:       TraceID(ctx),
		CorrelationID: CorrelationID(orderID, userID),
		Payload:       kafkax.MustMarshal(payload),
	})
}

// intersect keeps requested ids that are owned, in requested order.
// No requested ids means every owned id.
func intersect(requested, owned []int64) []int64 {
	if len(requested) == 0 {
		return owned
	}
	set := make(map[int64]struct{}, len(owned))
	for _, id := range owned {
		set[id] = struct{}{}
	}
	out := make([]int64, 0, len(requested))
	seen := make(map[int64]struct{}, len(requested))
	for _, id := range requested {
		if _, ok := set[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func itemDeltas(items []inventory.Item, sign int) []ItemDelta {
	out := make([]ItemDelta, len(items))
	for i, it := range items {
		out[i] = ItemDelta{InventoryItemID: it.InventoryItemID, Delta: sign * it.Quantity}
	}
	return out
}

func adjustmentDeltas(adjs []platform.Adjustment) []ItemDelta {
	out := make([]ItemDelta, len(adjs))
	for i, a := range adjs {
		out[i] = ItemDelta{InventoryItemID: a.InventoryItemID, Delta: a.AvailableAdjustment}
	}
	return out
}

func notFound(orderID int64) error {
	return apperr.Newf(apperr.KindNotFound, "Order #%d does not exist", orderID)
}
