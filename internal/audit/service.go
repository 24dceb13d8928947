package audit

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-store-orders/internal/kafka"
	"github.com/ariefcatur/go-store-orders/internal/orders"
)

type Recorder interface {
	Record(ctx context.Context, env orders.Envelope) (bool, error)
}

type Dedup interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Service writes every order event to the audit log once and raises gap
// events to operators. It never touches the remote store.
type Service struct {
	Events Recorder
	Dedup  Dedup // optional; the table's primary key dedups as well
	Log    *zap.Logger
}

// HandleEvent is installed as the consumer handler.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		// poison message: log and commit, redelivery cannot fix it
		s.Log.Error("undecodable event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventID == "" {
		s.Log.Error("event without id", zap.String("event_type", env.EventType))
		return nil
	}

	if s.Dedup != nil {
		seen, err := s.Dedup.Seen(ctx, env.EventID)
		if err != nil {
			// fall through to the table's own dedup
			s.Log.Warn("dedup unavailable", zap.Error(err))
		} else if seen {
			return nil
		}
	}

	inserted, err := s.Events.Record(ctx, env)
	if err != nil {
		if s.Dedup != nil {
			_ = s.Dedup.Forget(ctx, env.EventID)
		}
		return fmt.Errorf("audit %s: %w", env.EventID, err)
	}
	if !inserted {
		return nil
	}

	fields := []zap.Field{
		zap.String("event_id", env.EventID),
		zap.String("event_type", env.EventType),
		zap.String("correlation_id", env.CorrelationID),
		zap.String("trace_id", env.TraceID),
	}
	if orders.GapEvent(env.EventType) {
		s.Log.Error("consistency gap needs attention", append(fields, gapFields(env)...)...)
		return nil
	}
	s.Log.Info("event recorded", fields...)
	return nil
}

// gapFields spells out what an operator needs to repair a gap. A payload
// that does not decode is logged raw.
func gapFields(env orders.Envelope) []zap.Field {
	var (
		fields []zap.Field
		err    error
	)
	switch env.EventType {
	case orders.EventOrderUnlinked:
		var p orders.OrderUnlinkedPayload
		if p, err = kafkax.UnwrapPayload[orders.OrderUnlinkedPayload](env.Payload); err == nil {
			fields = []zap.Field{zap.Int64("order_id", p.OrderID), zap.Int64("user_id", p.UserID), zap.String("reason", p.Reason)}
		}
	case orders.EventInventoryStranded:
		var p orders.InventoryStrandedPayload
		if p, err = kafkax.UnwrapPayload[orders.InventoryStrandedPayload](env.Payload); err == nil {
			fields = []zap.Field{zap.Int64("user_id", p.UserID), zap.String("reason", p.Reason), zap.Any("items", p.Items)}
		}
	case orders.EventInventoryRestoreFailed:
		var p orders.InventoryRestoreFailedPayload
		if p, err = kafkax.UnwrapPayload[orders.InventoryRestoreFailedPayload](env.Payload); err == nil {
			fields = []zap.Field{zap.Int64("order_id", p.OrderID), zap.Int64("user_id", p.UserID), zap.String("reason", p.Reason), zap.Any("applied", p.Applied)}
		}
	}
	if err != nil || fields == nil {
		return []zap.Field{zap.ByteString("payload", env.Payload)}
	}
	return fields
}
