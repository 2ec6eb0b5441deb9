package collector

import (
	"time"

	"github.com/JailtonJunior94/instana-exporter/pkg/observability"
	"github.com/JailtonJunior94/instana-exporter/pkg/observability/noop"
)

const (
	DefaultQueueSize      = 10000
	DefaultBatchSize      = 500
	DefaultFlushInterval  = time.Second
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultMaxBackoff     = 5 * time.Second
	DefaultMaxElapsedTime = 30 * time.Second
)

// Option is a functional option for configuring the Collector.
type Option func(*config)

type config struct {
	queueSize      int
	batchSize      int
	flushInterval  time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxElapsedTime time.Duration
	o11y           observability.Observability
}

func defaultConfig() *config {
	return &config{
		queueSize:      DefaultQueueSize,
		batchSize:      DefaultBatchSize,
		flushInterval:  DefaultFlushInterval,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
		maxElapsedTime: DefaultMaxElapsedTime,
		o11y:           noop.NewProvider(),
	}
}

// WithQueueSize caps the number of records waiting for delivery.
func WithQueueSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.queueSize = size
		}
	}
}

// WithBatchSize sets how many records are sent per transport call. A full batch
// triggers a flush without waiting for the interval.
func WithBatchSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.batchSize = size
		}
	}
}

// WithFlushInterval sets the period of the background flush.
func WithFlushInterval(interval time.Duration) Option {
	return func(c *config) {
		if interval > 0 {
			c.flushInterval = interval
		}
	}
}

// WithRetry configures the exponential backoff applied to failed batches.
// maxElapsed bounds the total time spent on one batch.
func WithRetry(initial, maxInterval, maxElapsed time.Duration) Option {
	return func(c *config) {
		if initial > 0 {
			c.initialBackoff = initial
		}
		if maxInterval > 0 {
			c.maxBackoff = maxInterval
		}
		if maxElapsed > 0 {
			c.maxElapsedTime = maxElapsed
		}
	}
}

// WithObservability sets the logger and metrics used by the collector.
func WithObservability(o11y observability.Observability) Option {
	return func(c *config) {
		if o11y != nil {
			c.o11y = o11y
		}
	}
}
