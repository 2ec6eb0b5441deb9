package instanafx

import (
	"context"

	"github.com/JailtonJunior94/instana-exporter/pkg/collector"
	"github.com/JailtonJunior94/instana-exporter/pkg/collector/acceptor"
	"github.com/JailtonJunior94/instana-exporter/pkg/instana"
	"github.com/JailtonJunior94/instana-exporter/pkg/observability"
	"github.com/JailtonJunior94/instana-exporter/pkg/observability/noop"
	"github.com/JailtonJunior94/instana-exporter/pkg/telemetry"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the Instana pipeline for FX dependency injection: config,
// HTTP transport, collector, exporter and a tracer provider exporting through it.
// Configuration is read from INSTANA_* environment variables.
// Usage:
//
//	fx.New(
//	    instanafx.Module,
//	    fx.Invoke(func(tp *sdktrace.TracerProvider) { ... }),
//	)
var Module = fx.Module("instana",
	fx.Provide(
		ProvideConfig,
		ProvideTransport,
		ProvideCollector,
		ProvideExporter,
		ProvideTracerProvider,
	),
)

// ModuleWithConfig provides the pipeline with explicit values that take
// precedence over the environment.
// Usage:
//
//	fx.New(
//	    instanafx.ModuleWithConfig(instana.Config{
//	        ServiceName: "orders",
//	        ...
//	    }),
//	)
func ModuleWithConfig(cfg instana.Config) fx.Option {
	return fx.Module("instana",
		fx.Supply(cfg),
		fx.Provide(
			ProvideConfig,
			ProvideTransport,
			ProvideCollector,
			ProvideExporter,
			ProvideTracerProvider,
		),
	)
}

// ConfigParams contains dependencies for loading the configuration.
type ConfigParams struct {
	fx.In

	Explicit instana.Config `optional:"true"`
}

// ProvideConfig loads the configuration from the environment, overlaid with the
// explicitly supplied values.
func ProvideConfig(p ConfigParams) (*instana.Config, error) {
	return instana.LoadConfig(p.Explicit)
}

// ProvideTransport creates the HTTP transport to the host agent or serverless
// acceptor. Replace it with fx.Decorate to publish to Kafka or RabbitMQ instead.
func ProvideTransport(cfg *instana.Config) (collector.Transport, error) {
	return acceptor.New(cfg)
}

// CollectorParams contains dependencies for creating the Collector.
type CollectorParams struct {
	fx.In

	Transport     collector.Transport
	LC            fx.Lifecycle
	Observability observability.Observability `optional:"true"`
	Options       []collector.Option          `group:"collector_options"`
}

// CollectorResult contains the Collector output.
type CollectorResult struct {
	fx.Out

	Collector *collector.Collector
	Queue     instana.SpanQueue
}

// ProvideCollector creates a Collector with lifecycle management.
func ProvideCollector(p CollectorParams) (CollectorResult, error) {
	opts := append([]collector.Option{collector.WithObservability(p.Observability)}, p.Options...)

	c, err := collector.New(p.Transport, opts...)
	if err != nil {
		return CollectorResult{}, err
	}

	p.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Shutdown(ctx)
		},
	})

	return CollectorResult{Collector: c, Queue: c}, nil
}

// ExporterParams contains dependencies for creating the Exporter.
type ExporterParams struct {
	fx.In

	Queue         instana.SpanQueue
	Config        *instana.Config
	Observability observability.Observability `optional:"true"`
}

// ProvideExporter creates the Instana span exporter.
func ProvideExporter(p ExporterParams) (*instana.Exporter, error) {
	o11y := p.Observability
	if o11y == nil {
		o11y = noop.NewProvider()
	}
	return instana.NewExporter(p.Queue, p.Config, o11y)
}

// TracerParams contains dependencies for creating the TracerProvider.
type TracerParams struct {
	fx.In

	Exporter *instana.Exporter
	Config   *instana.Config
	LC       fx.Lifecycle
	Options  []telemetry.TracerOption `group:"tracer_options"`
}

// ProvideTracerProvider creates a tracer provider exporting through the Instana
// exporter. Stopping the app flushes pending spans before the collector stops.
func ProvideTracerProvider(p TracerParams) (*sdktrace.TracerProvider, error) {
	opts := make([]telemetry.TracerOption, 0, len(p.Options)+1)
	if p.Config.ServiceName != "" {
		opts = append(opts, telemetry.WithService(p.Config.ServiceName, "", ""))
	}
	opts = append(opts, p.Options...)

	tp, err := telemetry.NewTracerProvider(context.Background(), p.Exporter, opts...)
	if err != nil {
		return nil, err
	}

	p.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})

	return tp, nil
}
