package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil only when the message is done and its offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// Reader is the part of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       Reader
	workers int
	log     *zap.Logger

	// Retry delay after a failed handler call, doubled per attempt up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return NewConsumerWithReader(r, workers, log)
}

func NewConsumerWithReader(r Reader, workers int, log *zap.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{r: r, workers: workers, log: log, Backoff: 200 * time.Millisecond, MaxBackoff: 10 * time.Second}
}

// Start dispatches messages to the worker pool until ctx is done or the
// reader fails.
//
// A commit moves the partition's offset past every earlier message, so
// each partition is pinned to one worker and a failed message is retried
// in place until it succeeds or ctx ends. A message still failing at
// shutdown stays uncommitted and is delivered again on restart, along
// with everything after it in its partition.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 256)
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if !c.handle(ctx, id, h, m) {
					// ctx is done; later messages of this partition must not commit
					drain(jobs)
					return
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					c.log.Warn("commit failed", zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
				}
			}
		}(i, queues[i])
	}
	defer wg.Wait()
	defer func() {
		for _, q := range queues {
			close(q)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			// quiet on shutdown
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case queues[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// handle runs h until it succeeds. It reports false if ctx ended first.
func (c *Consumer) handle(ctx context.Context, worker int, h Handler, m kafka.Message) bool {
	wait := c.Backoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		c.log.Warn("handler failed; retrying",
			zap.Int("worker", worker),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
		if wait *= 2; c.MaxBackoff > 0 && wait > c.MaxBackoff {
			wait = c.MaxBackoff
		}
	}
}

func drain(ch <-chan kafka.Message) {
	for range ch {
	}
}
