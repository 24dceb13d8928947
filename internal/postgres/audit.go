package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-store-orders/internal/orders"
)

// AuditLog stores every order event once, keyed by event id.
type AuditLog struct{ DB *pgxpool.Pool }

// Record inserts env and reports whether it was new.
func (a *AuditLog) Record(ctx context.Context, env orders.Envelope) (bool, error) {
	tag, err := a.DB.Exec(ctx, `
		INSERT INTO order_events(event_id, event_type, event_version, correlation_id, producer, trace_id, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING`,
		env.EventID, env.EventType, env.EventVersion, env.CorrelationID, env.Producer, env.TraceID,
		env.OccurredAt, []byte(env.Payload))
	if err != nil {
		return false, fmt.Errorf("record event %s: %w", env.EventID, err)
	}
	return tag.RowsAffected() == 1, nil
}
