package coordinator

import (
	"context"
	"hash/fnv"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"tessera/internal/coordinator/intent"
	"tessera/internal/platform/stream"
)

// queueDepth bounds how far the subscription can run ahead of the slowest
// worker before backpressure pauses it.
const queueDepth = 64

// Consumer drives confirmed-intent execution from the consensus log. Entries
// are read in log order and dispatched to workers keyed by holder, so
// operations for one holder always execute in confirmation order while
// different holders may proceed in parallel.
type Consumer struct {
	service *Service
	log     stream.Log
	workers int
	logger  *slog.Logger
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithConsumerLogger sets the consumer's logger.
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// WithWorkers sets how many holder-partitioned executors run. Values below
// one fall back to a single worker, which preserves strict global order.
func WithWorkers(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.workers = n
		}
	}
}

// NewConsumer builds a consumer executing confirmed entries against service.
func NewConsumer(service *Service, log stream.Log, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		service: service,
		log:     log,
		workers: 1,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type confirmed struct {
	intent   intent.Intent
	position int64
}

// Run subscribes from the store's resume position and executes entries until
// ctx is canceled. It returns on context cancellation, on a malformed log
// entry, or when execution hits an infrastructure failure; transient business
// failures are captured on operation records and do not stop consumption.
func (c *Consumer) Run(ctx context.Context) error {
	from, err := c.service.operations.ResumePosition(ctx)
	if err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "consuming confirmed intents",
		"from_position", int64(from),
		"workers", c.workers,
	)

	g, ctx := errgroup.WithContext(ctx)

	queues := make([]chan confirmed, c.workers)
	for i := range queues {
		queue := make(chan confirmed, queueDepth)
		queues[i] = queue
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case entry := <-queue:
					if err := c.service.onConfirmed(ctx, entry.intent, entry.position); err != nil {
						c.logger.ErrorContext(ctx, "confirmed execution halted",
							"nonce", entry.intent.Nonce.String(),
							"position", entry.position,
							"error", err,
						)
						return err
					}
				}
			}
		})
	}

	g.Go(func() error {
		return c.log.Subscribe(ctx, from, stream.HandlerFunc(func(ctx context.Context, e stream.Entry) error {
			// Strict decoding: an entry no submit path could have produced
			// stops consumption instead of being silently skipped.
			it, err := intent.Decode(e.Value)
			if err != nil {
				c.logger.ErrorContext(ctx, "malformed consensus entry",
					"position", int64(e.Position),
					"error", err,
				)
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case queues[c.partition(it.Holder.String())] <- confirmed{intent: it, position: int64(e.Position)}:
				return nil
			}
		}))
	})

	return g.Wait()
}

// partition maps a holder to its worker so per-holder order is preserved.
func (c *Consumer) partition(holder string) int {
	if c.workers == 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(holder))
	return int(h.Sum32() % uint32(c.workers))
}
