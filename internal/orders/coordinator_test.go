package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-store-orders/internal/apperr"
	"github.com/ariefcatur/go-store-orders/internal/inventory"
	"github.com/ariefcatur/go-store-orders/internal/platform"
)

// fakeStore stands in for the platform client, including inventory levels
// so a real inventory.Adjuster can run against it.
type fakeStore struct {
	products map[int64]platform.Product
	orders   map[int64]platform.Order
	levels   map[int64]platform.InventoryLevel

	createErr error
	cancelErr error
	adjustErr error
	nextID    int64

	productFetches [][]int64
	orderFetches   [][]int64
	created        []platform.OrderRequest
	cancelled      []int64
	adjusted       []platform.Adjustment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: map[int64]platform.Product{},
		orders:   map[int64]platform.Order{},
		levels:   map[int64]platform.InventoryLevel{},
		nextID:   9000,
	}
}

func (f *fakeStore) addProduct(id, variantID, itemID int64, title string, qty int) {
	f.products[id] = platform.Product{
		ID:    id,
		Title: title,
		Variants: []platform.Variant{{
			ID: variantID, InventoryItemID: itemID, InventoryQuantity: qty,
			Price: decimal.RequireFromString("10.00"),
		}},
	}
	f.levels[itemID] = platform.InventoryLevel{InventoryItemID: itemID, LocationID: 1, Available: qty}
}

func (f *fakeStore) FetchProducts(_ context.Context, ids []int64) ([]platform.Product, error) {
	f.productFetches = append(f.productFetches, ids)
	out := []platform.Product{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) FetchOrders(_ context.Context, ids []int64) ([]platform.Order, error) {
	f.orderFetches = append(f.orderFetches, ids)
	out := []platform.Order{}
	for _, id := range ids {
		if o, ok := f.orders[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateOrder(_ context.Context, req platform.OrderRequest) (*platform.Order, error) {
	f.created = append(f.created, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	o := platform.Order{ID: f.nextID, Email: req.Email, TotalPrice: decimal.RequireFromString("30.00")}
	f.orders[o.ID] = o
	return &o, nil
}

func (f *fakeStore) CancelOrder(_ context.Context, id int64) (*platform.Order, error) {
	f.cancelled = append(f.cancelled, id)
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	o := f.orders[id]
	now := time.Now()
	o.CancelledAt = &now
	f.orders[id] = o
	return &o, nil
}

func (f *fakeStore) FetchInventoryLevels(_ context.Context, ids []int64) ([]platform.InventoryLevel, error) {
	out := []platform.InventoryLevel{}
	for _, id := range ids {
		if l, ok := f.levels[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) AdjustInventoryLevel(_ context.Context, adj platform.Adjustment) (*platform.InventoryLevel, error) {
	if f.adjustErr != nil {
		return nil, f.adjustErr
	}
	f.adjusted = append(f.adjusted, adj)
	l := f.levels[adj.InventoryItemID]
	l.Available += adj.AvailableAdjustment
	f.levels[adj.InventoryItemID] = l
	return &l, nil
}

type fakeLedger struct {
	owned   map[int64][]int64
	linkErr error
	readErr error
}

func newFakeLedger() *fakeLedger { return &fakeLedger{owned: map[int64][]int64{}} }

func (l *fakeLedger) Link(_ context.Context, userID, orderID int64) error {
	if l.linkErr != nil {
		return l.linkErr
	}
	l.owned[userID] = append(l.owned[userID], orderID)
	return nil
}

func (l *fakeLedger) OwnedOrderIDs(_ context.Context, userID int64) ([]int64, error) {
	if l.readErr != nil {
		return nil, l.readErr
	}
	return l.owned[userID], nil
}

func (l *fakeLedger) IsOwner(_ context.Context, userID, orderID int64) (bool, error) {
	if l.readErr != nil {
		return false, l.readErr
	}
	for _, id := range l.owned[userID] {
		if id == orderID {
			return true, nil
		}
	}
	return false, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *recorder) Publish(_ context.Context, env Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, env)
}

func (r *recorder) types() []string {
	out := []string{}
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type harness struct {
	store  *fakeStore
	ledger *fakeLedger
	events *recorder
	c      *Coordinator
}

func newHarness() *harness {
	h := &harness{store: newFakeStore(), ledger: newFakeLedger(), events: &recorder{}}
	adj := inventory.NewAdjuster(h.store, inventory.NewLocalLocker(), nil)
	h.c = NewCoordinator(h.store, adj, h.ledger, h.events, nil, "store-api-test")
	return h
}

var alice = User{ID: 7, Email: "alice@example.com", Phone: "+15550100"}

func TestPlaceOrder_TakesStockThenCreatesAndLinks(t *testing.T) {
	h := newHarness()
	h.store.addProduct(1, 11, 101, "Mug", 5)

	ctx := WithTraceID(context.Background(), "req-1")
	order, err := h.c.PlaceOrder(ctx, alice, []CartLine{{ProductID: 1, Quantity: 3}})
	require.NoError(t, err)

	assert.Equal(t, []platform.Adjustment{{InventoryItemID: 101, LocationID: 1, AvailableAdjustment: -3}}, h.store.adjusted)
	require.Len(t, h.store.created, 1)
	req := h.store.created[0]
	assert.True(t, req.Order.SendReceipt)
	assert.True(t, req.Order.SendFulfillmentReceipt)
	assert.Equal(t, []platform.OrderLine{{VariantID: 11, Quantity: 3}}, req.Order.LineItems)
	assert.Equal(t, alice.Email, req.Email)
	assert.Equal(t, alice.Phone, req.Phone)

	assert.Equal(t, []int64{order.ID}, h.ledger.owned[alice.ID])
	assert.Equal(t, []string{EventOrderPlaced}, h.events.types())

	env := h.events.events[0]
	assert.Equal(t, "req-1", env.TraceID)
	assert.Equal(t, "store-api-test", env.Producer)
	var p OrderPlacedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, order.ID, p.OrderID)
	assert.Equal(t, "30.00", p.TotalPrice)
}

func TestPlaceOrder_OutOfStockCreatesNothing(t *testing.T) {
	h := newHarness()
	h.store.addProduct(1, 11, 101, "Mug", 2)

	_, err := h.c.PlaceOrder(context.Background(), alice, []CartLine{{ProductID: 1, Quantity: 3}})
	require.Error(t, err)
	assert.Equal(t, apperr.KindOutOfStock, apperr.KindOf(err))
	assert.Equal(t, "Mug out of stock", err.Error())
	assert.Empty(t, h.store.created)
	assert.Empty(t, h.store.adjusted)
	assert.Empty(t, h.ledger.owned)
	assert.Empty(t, h.events.events)
}

func TestPlaceOrder_InputErrors(t *testing.T) {
	h := newHarness()
	h.store.products[2] = platform.Product{ID: 2, Title: "Ghost"}

	_, err := h.c.PlaceOrder(context.Background(), alice, nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "No products to order", err.Error())

	_, err = h.c.PlaceOrder(context.Background(), alice, []CartLine{{ProductID: 404, Quantity: 1}})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Product #404 is no longer available", err.Error())

	_, err = h.c.PlaceOrder(context.Background(), alice, []CartLine{{ProductID: 2, Quantity: 1}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "Ghost has no variants", err.Error())

	assert.Empty(t, h.store.created)
}

func TestPlaceOrder_CreateFailureStrandsInventory(t *testing.T) {
	h := newHarness()
	h.store.addProduct(1, 11, 101, "Mug", 5)
	h.store.createErr = apperr.New(apperr.KindRemote, "Error creating order: bad email")

	_, err := h.c.PlaceOrder(context.Background(), alice, []CartLine{{ProductID: 1, Quantity: 3}})
	require.Error(t, err)
	assert.Equal(t, "Error creating order: bad email", err.Error())

	// stock stays taken
	assert.Equal(t, 2, h.store.levels[101].Available)
	assert.Equal(t, []string{EventInventoryStranded}, h.events.types())
	var p InventoryStrandedPayload
	require.NoError(t, json.Unmarshal(h.events.events[0].Payload, &p))
	assert.Equal(t, []ItemDelta{{InventoryItemID: 101, Delta: -3}}, p.Items)
	assert.Equal(t, "user:7", h.events.events[0].CorrelationID)
}

func TestPlaceOrder_LedgerFailureReportsUnlinkedOrder(t *testing.T) {
	h := newHarness()
	h.store.addProduct(1, 11, 101, "Mug", 5)
	h.ledger.linkErr = errors.New("connection reset")

	order, err := h.c.PlaceOrder(context.Background(), alice, []CartLine{{ProductID: 1, Quantity: 1}})
	require.Error(t, err)
	assert.Nil(t, order)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))
	assert.Equal(t, "Order #9001 was created but could not be recorded", err.Error())
	assert.Empty(t, h.store.cancelled, "no compensating cancel")
	assert.Equal(t, []string{EventOrderUnlinked}, h.events.types())
}

func TestCancelOrder_RestocksEachProduct(t *testing.T) {
	h := newHarness()
	h.store.addProduct(1, 11, 101, "A", 10)
	h.store.addProduct(2, 21, 201, "B", 10)
	a, b := int64(1), int64(2)
	h.store.orders[500] = platform.Order{ID: 500, LineItems: []platform.LineItem{
		{ID: 1, ProductID: &a, Quantity: 2},
		{ID: 2, ProductID: &b, Quantity: 1},
		{ID: 3, ProductID: nil, Quantity: 4},
	}}
	h.ledger.owned[alice.ID] = []int64{500}

	order, err := h.c.CancelOrder(context.Background(), alice, 500)
	require.NoError(t, err)
	assert.True(t, order.Cancelled())

	assert.Equal(t, []int64{500}, h.store.cancelled)
	assert.Equal(t, [][]int64{{1, 2}}, h.store.productFetches)
	assert.Equal(t, []platform.Adjustment{
		{InventoryItemID: 101, LocationID: 1, AvailableAdjustment: 2},
		{InventoryItemID: 201, LocationID: 1, AvailableAdjustment: 1},
	}, h.store.adjusted)
	assert.Equal(t, []string{EventOrderCancelled}, h.events.types())
}

func TestCancelOrder_SumsRepeatedProduct(t *testing.T) {
	h := newHarness()
	h.store.addProduct(1, 11, 101, "A", 10)
	a := int64(1)
	h.store.orders[500] = platform.Order{ID: 500, LineItems: []platform.LineItem{
		{ID: 1, ProductID: &a, Quantity: 2},
		{ID: 2, ProductID: &a, Quantity: 3},
	}}
	h.ledger.owned[alice.ID] = []int64{500}

	_, err := h.c.CancelOrder(context.Background(), alice, 500)
	require.NoError(t, err)
	assert.Equal(t, []platform.Adjustment{{InventoryItemID: 101, LocationID: 1, AvailableAdjustment: 5}}, h.store.adjusted)
}

func TestCancelOrder_NotOwnedMakesNoRemoteCall(t *testing.T) {
	h := newHarness()
	h.store.orders[500] = platform.Order{ID: 500}
	h.ledger.owned[99] = []int64{500}

	_, err := h.c.CancelOrder(context.Background(), alice, 500)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Order #500 does not exist", err.Error())
	assert.Empty(t, h.store.orderFetches)
	assert.Empty(t, h.store.cancelled)
}

func TestCancelOrder_AlreadyCancelled(t *testing.T) {
	h := newHarness()
	when := time.Now()
	h.store.orders[500] = platform.Order{ID: 500, CancelledAt: &when}
	h.ledger.owned[alice.ID] = []int64{500}

	_, err := h.c.CancelOrder(context.Background(), alice, 500)
	require.Error(t, err)
	assert.Equal(t, apperr.KindAlreadyCancelled, apperr.KindOf(err))
	assert.Equal(t, "Order #500 is already cancelled", err.Error())
	assert.Empty(t, h.store.cancelled)
}

func TestCancelOrder_OwnedButMissingRemotely(t *testing.T) {
	h := newHarness()
	h.ledger.owned[alice.ID] = []int64{500}

	_, err := h.c.CancelOrder(context.Background(), alice, 500)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Empty(t, h.store.cancelled)
}

func TestCancelOrder_CancelFailureLeavesStockAlone(t *testing.T) {
	h := newHarness()
	h.store.addProduct(1, 11, 101, "A", 10)
	a := int64(1)
	h.store.orders[500] = platform.Order{ID: 500, LineItems: []platform.LineItem{{ProductID: &a, Quantity: 2}}}
	h.ledger.owned[alice.ID] = []int64{500}
	h.store.cancelErr = apperr.New(apperr.KindRemote, "Error cancelling order: locked")

	_, err := h.c.CancelOrder(context.Background(), alice, 500)
	require.Error(t, err)
	assert.Equal(t, "Error cancelling order: locked", err.Error())
	assert.Empty(t, h.store.adjusted)
	assert.Empty(t, h.events.events)
}

func TestCancelOrder_RestockFailureStillReturnsOrder(t *testing.T) {
	h := newHarness()
	h.store.addProduct(1, 11, 101, "A", 10)
	a := int64(1)
	h.store.orders[500] = platform.Order{ID: 500, LineItems: []platform.LineItem{{ProductID: &a, Quantity: 2}}}
	h.ledger.owned[alice.ID] = []int64{500}
	h.store.adjustErr = apperr.New(apperr.KindRemote, "Inventory level adjustment failed: gone")

	order, err := h.c.CancelOrder(context.Background(), alice, 500)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.True(t, order.Cancelled())
	assert.Equal(t, []string{EventInventoryRestoreFailed, EventOrderCancelled}, h.events.types())
	assert.Equal(t, "500", h.events.events[0].CorrelationID)
}

func TestCancelOrder_LedgerErrorIsStorage(t *testing.T) {
	h := newHarness()
	h.ledger.readErr = errors.New("db down")

	_, err := h.c.CancelOrder(context.Background(), alice, 500)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))
	assert.Empty(t, h.store.orderFetches)
}

func TestFetchOrders_ScopedToOwner(t *testing.T) {
	h := newHarness()
	h.store.orders[1] = platform.Order{ID: 1}
	h.store.orders[2] = platform.Order{ID: 2}
	h.store.orders[3] = platform.Order{ID: 3}
	h.ledger.owned[alice.ID] = []int64{1, 3}
	owner := alice.ID

	got, err := h.c.FetchOrders(context.Background(), []int64{2, 3}, &owner)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, [][]int64{{3}}, h.store.orderFetches)

	got, err = h.c.FetchOrders(context.Background(), nil, &owner)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFetchOrders_EmptyIntersectionSkipsStore(t *testing.T) {
	h := newHarness()
	h.store.orders[2] = platform.Order{ID: 2}
	owner := alice.ID

	got, err := h.c.FetchOrders(context.Background(), []int64{2}, &owner)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = h.c.FetchOrders(context.Background(), nil, &owner)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, h.store.orderFetches)
}

func TestFetchOrders_UnscopedPassesThrough(t *testing.T) {
	h := newHarness()
	h.store.orders[2] = platform.Order{ID: 2}

	got, err := h.c.FetchOrders(context.Background(), []int64{2}, nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestIntersect(t *testing.T) {
	assert.Equal(t, []int64{3, 1}, intersect([]int64{3, 2, 1, 3}, []int64{1, 3}))
	assert.Equal(t, []int64{1, 3}, intersect(nil, []int64{1, 3}))
	assert.Empty(t, intersect([]int64{5}, nil))
}

func TestCorrelationID(t *testing.T) {
	assert.Equal(t, "42", CorrelationID(42, 7))
	assert.Equal(t, "user:7", CorrelationID(0, 7))
	assert.True(t, GapEvent(EventOrderUnlinked))
	assert.False(t, GapEvent(EventOrderPlaced))
}
