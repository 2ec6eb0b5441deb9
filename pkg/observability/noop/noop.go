// Package noop provides an observability.Observability that discards everything.
package noop

import (
	"context"

	"github.com/JailtonJunior94/instana-exporter/pkg/observability"
)

// Provider discards all logs and metrics.
type Provider struct {
	logger  noopLogger
	metrics noopMetrics
}

// NewProvider creates a new no-op observability provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Logger returns a logger that drops every entry.
func (p *Provider) Logger() observability.Logger {
	return p.logger
}

// Metrics returns instruments that record nothing.
func (p *Provider) Metrics() observability.Metrics {
	return p.metrics
}

type noopLogger struct{}

func (noopLogger) Debug(context.Context, string, ...observability.Field) {}

func (noopLogger) Info(context.Context, string, ...observability.Field) {}

func (noopLogger) Warn(context.Context, string, ...observability.Field) {}

func (noopLogger) Error(context.Context, string, ...observability.Field) {}

func (l noopLogger) With(...observability.Field) observability.Logger {
	return l
}

type noopMetrics struct{}

func (noopMetrics) Counter(string, string, string) observability.Counter {
	return noopInstrument{}
}

func (noopMetrics) Histogram(string, string, string) observability.Histogram {
	return noopInstrument{}
}

func (noopMetrics) UpDownCounter(string, string, string) observability.UpDownCounter {
	return noopInstrument{}
}

func (noopMetrics) Gauge(string, string, string, observability.GaugeCallback) error {
	return nil
}

// noopInstrument satisfies every instrument interface.
type noopInstrument struct{}

func (noopInstrument) Add(context.Context, int64, ...observability.Field) {}

func (noopInstrument) Increment(context.Context, ...observability.Field) {}

func (noopInstrument) Record(context.Context, float64, ...observability.Field) {}
