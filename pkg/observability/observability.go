// Package observability is the logging and metrics facade used by the exporter
// and the collectors. Components depend on these interfaces only; the concrete
// backends live in the otel, zap, prometheus, noop and fake subpackages.
package observability

import (
	"context"
	"time"
)

// Observability bundles the logger and metrics handed to every component.
type Observability interface {
	Logger() Logger
	Metrics() Metrics
}

// Field represents a key-value pair for structured logs and metric attributes.
type Field struct {
	Key   string
	Value any
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field.
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a field holding a duration.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Error creates an error field under the "error" key.
func Error(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any creates a field with any value type.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Metrics creates metric instruments. Implementations return the same instrument
// when asked twice for the same name.
type Metrics interface {
	Counter(name, description, unit string) Counter
	Histogram(name, description, unit string) Histogram
	UpDownCounter(name, description, unit string) UpDownCounter

	// Gauge registers an asynchronous gauge sampled through callback.
	Gauge(name, description, unit string, callback GaugeCallback) error
}

// Counter is a monotonically increasing metric.
type Counter interface {
	Add(ctx context.Context, value int64, fields ...Field)
	Increment(ctx context.Context, fields ...Field)
}

// Histogram records a distribution of values.
type Histogram interface {
	Record(ctx context.Context, value float64, fields ...Field)
}

// UpDownCounter is a metric that can increase and decrease.
type UpDownCounter interface {
	Add(ctx context.Context, value int64, fields ...Field)
}

// GaugeCallback returns the current value of a gauge.
type GaugeCallback func(ctx context.Context) float64
