package orders

import (
	"context"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-store-orders/internal/kafka"
)

// KafkaPublisher queues envelopes on the async producer.
type KafkaPublisher struct {
	Producer *kafkax.Producer
}

func (p *KafkaPublisher) Publish(_ context.Context, env Envelope) {
	p.Producer.Publish(PartitionKey(env.CorrelationID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
	)
}
