package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// maxBatch bounds how many queued messages go into one write call.
const maxBatch = 100

// Writer is the part of *kafka.Writer the producer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers messages in memory and writes them from one goroutine.
// Publish never waits: when the buffer is full the message is dropped
// and logged. Messages still buffered when the process dies are lost.
type Producer struct {
	w     Writer
	log   *zap.Logger
	inbox chan kafka.Message
	done  chan struct{}

	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, topic string, buf int, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true, // fire-and-forget; failures arrive in Completion
		BatchTimeout: 50 * time.Millisecond,
	}
	w.Completion = func(msgs []kafka.Message, err error) {
		if err != nil {
			logDropped(log, msgs, err)
		}
	}
	return NewProducerWithWriter(w, buf, log)
}

func NewProducerWithWriter(w Writer, buf int, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	if buf <= 0 {
		buf = 256
	}
	return &Producer{
		w:     w,
		log:   log,
		inbox: make(chan kafka.Message, buf),
		done:  make(chan struct{}),
	}
}

// Start runs the write loop until Close. Whatever is queued is handed to
// the writer in batches. Cancelling ctx aborts an in-flight write but
// the loop keeps draining until the inbox closes.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for m := range p.inbox {
			batch := []kafka.Message{m}
		fill:
			for len(batch) < maxBatch {
				select {
				case next, ok := <-p.inbox:
					if !ok {
						break fill
					}
					batch = append(batch, next)
				default:
					break fill
				}
			}
			p.write(ctx, batch)
		}
		if err := p.w.Close(); err != nil {
			p.log.Warn("kafka writer close", zap.Error(err))
		}
	}()
}

func (p *Producer) write(ctx context.Context, batch []kafka.Message) {
	if ctx.Err() != nil {
		// shutting down: flush what is left with a bounded budget
		fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ctx = fctx
	}
	if err := p.w.WriteMessages(ctx, batch...); err != nil {
		logDropped(p.log, batch, err)
	}
}

func logDropped(log *zap.Logger, msgs []kafka.Message, err error) {
	for _, m := range msgs {
		log.Error("kafka write failed; event dropped",
			zap.ByteString("key", m.Key),
			zap.String("event_type", HeaderValue(m.Headers, "x-event-type")),
			zap.Error(err),
		)
	}
}

// Publish queues a message without blocking. A full buffer or a closed
// producer drops it.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warn("publish after close; event dropped", zap.ByteString("key", key))
		return
	}
	m := kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	select {
	case p.inbox <- m:
	default:
		p.dropped.Add(1)
		p.log.Error("producer buffer full; event dropped",
			zap.ByteString("key", key),
			zap.String("event_type", HeaderValue(headers, "x-event-type")),
		)
	}
}

// Dropped counts messages discarded because the buffer was full.
func (p *Producer) Dropped() int64 { return p.dropped.Load() }

// DroppedCollector exports Dropped as a counter.
func (p *Producer) DroppedCollector() prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "order_events_dropped_total",
		Help: "Order events discarded because the producer buffer was full.",
	}, func() float64 { return float64(p.Dropped()) })
}

// Close stops intake; the loop flushes the rest and exits. Safe to call twice.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}

// WaitClosed blocks until the loop has flushed and closed the writer.
func (p *Producer) WaitClosed() { <-p.done }

// HeaderValue returns the value of the first header named key.
func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
