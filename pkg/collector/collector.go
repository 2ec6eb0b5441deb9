// Package collector delivers Instana span records in the background. A Collector
// buffers submitted records, flushes them in batches through a Transport and
// retries failed batches with exponential backoff.
//
// Transports live in the acceptor, kafka and rabbitmq subpackages. A transport
// marks errors that must not be retried with backoff.Permanent.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JailtonJunior94/instana-exporter/pkg/instana"
	"github.com/JailtonJunior94/instana-exporter/pkg/observability"
	"github.com/cenkalti/backoff/v4"
)

// Transport sends a batch of records to the backend.
type Transport interface {
	Send(ctx context.Context, records []instana.Record) error
	Close() error
}

var _ instana.SpanQueue = (*Collector)(nil)

// Collector implements instana.SpanQueue.
type Collector struct {
	transport Transport
	config    *config
	logger    observability.Logger

	sent    observability.Counter
	dropped observability.Counter
	retries observability.Counter
	sending observability.UpDownCounter

	// mu guards queue, inFlight and closed. Submit checks closed under mu so no
	// record is appended once Shutdown has started draining.
	mu       sync.Mutex
	queue    []instana.Record
	inFlight int
	closed   bool

	wake         chan struct{}
	done         chan struct{}
	stopped      chan struct{}
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a Collector and starts its flush loop.
func New(transport Transport, opts ...Option) (*Collector, error) {
	if transport == nil {
		return nil, ErrNilTransport
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	metrics := cfg.o11y.Metrics()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Collector{
		transport: transport,
		config:    cfg,
		logger:    cfg.o11y.Logger().With(observability.String("component", "instana.collector")),
		sent:      metrics.Counter("instana.collector.records.sent", "Records delivered to the backend", "{record}"),
		dropped:   metrics.Counter("instana.collector.records.dropped", "Records that could not be delivered", "{record}"),
		retries:   metrics.Counter("instana.collector.send.retries", "Batch send attempts that were retried", "{attempt}"),
		sending:   metrics.UpDownCounter("instana.collector.in_flight", "Records of the batch being sent", "{record}"),
		queue:     make([]instana.Record, 0, cfg.batchSize),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}

	if err := metrics.Gauge("instana.collector.pending", "Records queued or in flight", "{record}",
		func(context.Context) float64 { return float64(c.Pending()) },
	); err != nil {
		c.logger.Warn(ctx, "failed to register pending gauge", observability.Error(err))
	}

	go c.run()

	return c, nil
}

// Submit enqueues a record. It never blocks on the transport.
func (c *Collector) Submit(ctx context.Context, record instana.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCollectorClosed
	}
	if len(c.queue) >= c.config.queueSize {
		c.mu.Unlock()
		c.dropped.Increment(ctx, observability.String("reason", "queue_full"))
		return fmt.Errorf("%w: capacity %d", ErrQueueFull, c.config.queueSize)
	}
	c.queue = append(c.queue, record)
	full := len(c.queue) >= c.config.batchSize
	c.mu.Unlock()

	if full {
		select {
		case c.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

// Pending returns the number of queued records plus the records of the batch
// being sent.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue) + c.inFlight
}

func (c *Collector) run() {
	defer close(c.stopped)

	ticker := time.NewTicker(c.config.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			_ = c.flush(c.ctx)
		case <-c.wake:
			_ = c.flush(c.ctx)
		}
	}
}

// flush sends batches until the queue is empty or ctx is done. It returns the
// number of records that could not be delivered.
func (c *Collector) flush(ctx context.Context) int {
	failed := 0
	for ctx.Err() == nil {
		batch := c.take()
		if len(batch) == 0 {
			break
		}
		c.sending.Add(ctx, int64(len(batch)))

		if err := c.send(ctx, batch); err != nil {
			failed += len(batch)
		}

		c.mu.Lock()
		c.inFlight -= len(batch)
		c.mu.Unlock()
		c.sending.Add(ctx, -int64(len(batch)))
	}
	return failed
}

func (c *Collector) take() []instana.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := min(len(c.queue), c.config.batchSize)
	if n == 0 {
		return nil
	}

	batch := make([]instana.Record, n)
	copy(batch, c.queue[:n])
	c.queue = c.queue[n:]
	c.inFlight += n
	return batch
}

func (c *Collector) send(ctx context.Context, batch []instana.Record) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.config.initialBackoff
	policy.MaxInterval = c.config.maxBackoff
	policy.MaxElapsedTime = c.config.maxElapsedTime

	operation := func() error {
		return c.transport.Send(ctx, batch)
	}

	notify := func(err error, next time.Duration) {
		c.retries.Increment(ctx)
		c.logger.Warn(ctx, "failed to send span batch, retrying",
			observability.Int("records", len(batch)),
			observability.Duration("retry_in", next),
			observability.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		c.dropped.Add(ctx, int64(len(batch)), observability.String("reason", "send_failed"))
		c.logger.Error(ctx, "dropping span batch",
			observability.Int("records", len(batch)),
			observability.Error(err),
		)
		return err
	}

	c.sent.Add(ctx, int64(len(batch)))
	c.logger.Debug(ctx, "span batch sent", observability.Int("records", len(batch)))
	return nil
}

// Shutdown stops the flush loop, sends what is left within ctx and closes the
// transport. Records still queued when ctx ends are dropped and reported through
// ErrUndelivered. Only the first call has an effect.
func (c *Collector) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)

		select {
		case <-c.stopped:
		case <-ctx.Done():
			c.cancel()
			<-c.stopped
		}
		c.cancel()

		failed := c.flush(ctx)

		var errs []error
		if n := c.discard(); n > 0 {
			c.dropped.Add(ctx, int64(n), observability.String("reason", "shutdown"))
			failed += n
		}
		if failed > 0 {
			c.logger.Warn(ctx, "collector shut down with undelivered records", observability.Int("records", failed))
			errs = append(errs, fmt.Errorf("%w: %d", ErrUndelivered, failed))
		}

		if err := c.transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close transport: %w", err))
		}

		c.shutdownErr = errors.Join(errs...)
	})
	return c.shutdownErr
}

func (c *Collector) discard() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	n := len(c.queue)
	c.queue = nil
	return n
}
