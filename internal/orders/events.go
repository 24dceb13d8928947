package orders

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced            = "OrderPlaced"
	EventOrderCancelled         = "OrderCancelled"
	EventOrderUnlinked          = "OrderUnlinked"          // remote order created, ledger write failed
	EventInventoryStranded      = "InventoryStranded"      // stock taken, no order created
	EventInventoryRestoreFailed = "InventoryRestoreFailed" // order cancelled, stock not returned
)

// GapEvent reports whether an event type records a known consistency
// gap that needs an operator.
func GapEvent(eventType string) bool {
	switch eventType {
	case EventOrderUnlinked, EventInventoryStranded, EventInventoryRestoreFailed:
		return true
	}
	return false
}

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "store-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // remote order id when known
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type LinePayload struct {
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

type ItemDelta struct {
	InventoryItemID int64 `json:"inventory_item_id"`
	Delta           int   `json:"delta"`
}

type OrderPlacedPayload struct {
	OrderID    int64         `json:"order_id"`
	UserID     int64         `json:"user_id"`
	Lines      []LinePayload `json:"lines"`
	TotalPrice string        `json:"total_price"`
}

type OrderCancelledPayload struct {
	OrderID int64 `json:"order_id"`
	UserID  int64 `json:"user_id"`
}

type OrderUnlinkedPayload struct {
	OrderID int64  `json:"order_id"`
	UserID  int64  `json:"user_id"`
	Reason  string `json:"reason"`
}

type InventoryStrandedPayload struct {
	UserID int64       `json:"user_id"`
	Reason string      `json:"reason"`
	Items  []ItemDelta `json:"items"`
}

type InventoryRestoreFailedPayload struct {
	OrderID int64       `json:"order_id"`
	UserID  int64       `json:"user_id"`
	Reason  string      `json:"reason"`
	Applied []ItemDelta `json:"applied,omitempty"`
}

// Publisher hands envelopes to the event stream. Implementations must
// not block the workflow on delivery.
type Publisher interface {
	Publish(ctx context.Context, env Envelope)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Envelope) {}

type traceKey struct{}

// WithTraceID attaches a request id that ends up in emitted envelopes.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}
