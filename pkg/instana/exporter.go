package instana

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JailtonJunior94/instana-exporter/pkg/observability"
	"github.com/JailtonJunior94/instana-exporter/pkg/observability/noop"
	"github.com/cenkalti/backoff/v4"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SpanQueue is the delivery queue owned by a collector. The exporter only
// enqueues records and watches the queue depth; transport and retries belong to
// the collector.
type SpanQueue interface {
	// Submit enqueues a record for delivery.
	Submit(ctx context.Context, record Record) error

	// Pending returns the number of records not yet delivered.
	Pending() int

	// Shutdown stops the collector.
	Shutdown(ctx context.Context) error
}

// ExportResult is the outcome of an export call.
type ExportResult int

const (
	ExportSuccess ExportResult = iota
	ExportFailure
)

func (r ExportResult) String() string {
	switch r {
	case ExportSuccess:
		return "success"
	case ExportFailure:
		return "failure"
	default:
		return fmt.Sprintf("ExportResult(%d)", int(r))
	}
}

const (
	metricSpans         = "instana.exporter.spans"
	metricFailures      = "instana.exporter.failures"
	metricDrainDuration = "instana.exporter.drain.duration"
)

// Option is a functional option for configuring the Exporter.
type Option func(*exporterOptions)

type exporterOptions struct {
	from *From
}

// WithFrom overrides the fingerprint derived from the configuration.
func WithFrom(from From) Option {
	return func(o *exporterOptions) {
		o.from = &from
	}
}

var _ sdktrace.SpanExporter = (*Exporter)(nil)

// Exporter translates spans, hands the records to a SpanQueue and reports success
// only once the queue has drained.
//
// Export calls are not serialized. The drain condition is global to the queue, so
// overlapping exports may wait for each other's records.
type Exporter struct {
	queue        SpanQueue
	translator   *Translator
	pollInterval time.Duration
	drainTimeout time.Duration
	logger       observability.Logger

	spans         observability.Counter
	failures      observability.Counter
	drainDuration observability.Histogram

	closed       atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
}

// NewExporter creates an Exporter. A nil cfg selects DefaultConfig and a nil o11y
// discards logs and metrics.
func NewExporter(queue SpanQueue, cfg *Config, o11y observability.Observability, opts ...Option) (*Exporter, error) {
	if queue == nil {
		return nil, ErrNilQueue
	}

	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if o11y == nil {
		o11y = noop.NewProvider()
	}

	options := &exporterOptions{}
	for _, opt := range opts {
		opt(options)
	}

	from := FromConfig(cfg)
	if options.from != nil {
		from = *options.from
	}

	metrics := o11y.Metrics()

	return &Exporter{
		queue:         queue,
		translator:    NewTranslator(from, WithServiceName(cfg.ServiceName)),
		pollInterval:  cfg.PollInterval,
		drainTimeout:  cfg.DrainTimeout,
		logger:        o11y.Logger().With(observability.String("component", "instana.exporter")),
		spans:         metrics.Counter(metricSpans, "Spans handled by the Instana exporter", "{span}"),
		failures:      metrics.Counter(metricFailures, "Failed Instana exports", "{export}"),
		drainDuration: metrics.Histogram(metricDrainDuration, "Time spent waiting for the span queue to drain", "ms"),
	}, nil
}

// Export translates spans, submits the records in order and waits for the queue
// to drain. Every fault is logged and reported as ExportFailure.
func (e *Exporter) Export(ctx context.Context, spans []Span) ExportResult {
	if e.closed.Load() {
		e.fail(ctx, "shutdown", len(spans), ErrExporterShutdown)
		return ExportFailure
	}

	records, err := e.translator.Translate(spans)
	if err != nil {
		e.fail(ctx, "translation", len(spans), err)
		return ExportFailure
	}

	if err := e.submit(ctx, records); err != nil {
		e.fail(ctx, "submission", len(spans), err)
		return ExportFailure
	}

	if err := e.waitForDrain(ctx); err != nil {
		e.fail(ctx, "drain_timeout", len(spans), err)
		return ExportFailure
	}

	e.spans.Add(ctx, int64(len(spans)), observability.String("result", ExportSuccess.String()))
	e.logger.Info(ctx, "successfully exported spans", observability.Int("spans", len(spans)))
	return ExportSuccess
}

func (e *Exporter) submit(ctx context.Context, records []Record) error {
	for i, record := range records {
		if err := e.queue.Submit(ctx, record); err != nil {
			return &SubmissionError{Submitted: i, Total: len(records), Err: err}
		}
	}
	return nil
}

// waitForDrain polls the queue depth every poll interval until it reaches zero.
// The first check happens immediately.
func (e *Exporter) waitForDrain(ctx context.Context) error {
	start := time.Now()
	defer func() {
		e.drainDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	drainCtx, cancel := context.WithTimeout(ctx, e.drainTimeout)
	defer cancel()

	var pending int
	operation := func() error {
		pending = e.queue.Pending()
		if pending > 0 {
			return errQueueNotDrained
		}
		return nil
	}

	notify := func(_ error, next time.Duration) {
		e.logger.Warn(ctx, "queued spans have not been sent yet",
			observability.Int("pending", pending),
			observability.Duration("retry_in", next),
		)
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(e.pollInterval), drainCtx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if errors.Is(err, errQueueNotDrained) {
			err = drainCtx.Err()
		}
		return fmt.Errorf("%w: %d records pending: %w", ErrDrainTimeout, pending, err)
	}
	return nil
}

var errQueueNotDrained = errors.New("span queue not drained")

func (e *Exporter) fail(ctx context.Context, reason string, spans int, err error) {
	fields := []observability.Field{
		observability.String("reason", reason),
		observability.Int("spans", spans),
		observability.Error(err),
	}

	var submission *SubmissionError
	if errors.As(err, &submission) {
		fields = append(fields,
			observability.Int("submitted", submission.Submitted),
			observability.Int("total", submission.Total),
		)
	}

	e.failures.Increment(ctx, observability.String("reason", reason))
	e.spans.Add(ctx, int64(spans), observability.String("result", ExportFailure.String()))
	e.logger.Error(ctx, "failed to export spans", fields...)
}

// ExportSpans implements sdktrace.SpanExporter. The failure detail is logged, the
// SDK only receives ErrExportFailed.
func (e *Exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.Export(ctx, SpansFromReadOnly(spans)) != ExportSuccess {
		return ErrExportFailed
	}
	return nil
}

// Shutdown shuts the queue down. Only the first call reaches the queue; later
// calls return the first result.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.shutdownOnce.Do(func() {
		e.closed.Store(true)
		if err := e.queue.Shutdown(ctx); err != nil {
			e.shutdownErr = fmt.Errorf("failed to shut down span queue: %w", err)
			e.logger.Error(ctx, "failed to shut down span queue", observability.Error(err))
		}
	})
	return e.shutdownErr
}
