package otel

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/JailtonJunior94/instana-exporter/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"google.golang.org/grpc/credentials"
)

var _ observability.Observability = (*Provider)(nil)

// Provider implements observability.Observability on top of the OpenTelemetry
// log and metric SDKs. It never installs global providers, so the host
// application's own telemetry setup is left untouched.
type Provider struct {
	config         *Config
	meterProvider  *sdkmetric.MeterProvider
	loggerProvider *sdklog.LoggerProvider
	logger         *otelLogger
	metrics        *otelMetrics
	shutdownFuncs  []func(context.Context) error
}

// NewProvider creates a Provider. config is normalized in place.
func NewProvider(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	res, err := newResource(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	p := &Provider{config: config}
	otlp := otlpFactory{config: config}

	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if config.OTLPEndpoint != "" {
		exporter, err := otlp.metricExporter(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
		}
		meterOpts = append(meterOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(config.MetricInterval)),
		))
	}
	for _, reader := range config.Readers {
		meterOpts = append(meterOpts, sdkmetric.WithReader(reader))
	}
	p.meterProvider = sdkmetric.NewMeterProvider(meterOpts...)
	p.shutdownFuncs = append(p.shutdownFuncs, p.meterProvider.Shutdown)

	logOpts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	if config.OTLPEndpoint != "" {
		exporter, err := otlp.logExporter(ctx)
		if err != nil {
			_ = p.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create log exporter: %w", err)
		}
		logOpts = append(logOpts, sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)))
	}
	p.loggerProvider = sdklog.NewLoggerProvider(logOpts...)
	p.shutdownFuncs = append(p.shutdownFuncs, p.loggerProvider.Shutdown)

	output := config.Output
	if output == nil {
		output = os.Stdout
	}

	p.logger = newOtelLogger(
		config.LogLevel,
		config.LogFormat,
		config.ServiceName,
		output,
		p.loggerProvider.Logger(config.ServiceName),
	)
	p.metrics = newOtelMetrics(p.meterProvider.Meter(config.ServiceName))

	for _, warning := range config.warnings() {
		p.logger.Warn(ctx, warning,
			observability.String("endpoint", config.OTLPEndpoint),
			observability.String("environment", config.Environment),
		)
	}

	return p, nil
}

func newResource(config *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
		semconv.DeploymentEnvironmentName(config.Environment),
	}
	for k, v := range config.ResourceAttributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

// otlpFactory builds OTLP exporters for the configured protocol and security.
type otlpFactory struct {
	config *Config
}

func (f otlpFactory) metricExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	c := f.config
	if c.OTLPProtocol == ProtocolHTTP {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(c.OTLPEndpoint)}
		switch {
		case c.Insecure:
			opts = append(opts, otlpmetrichttp.WithInsecure())
		case c.TLSConfig != nil:
			opts = append(opts, otlpmetrichttp.WithTLSClientConfig(c.TLSConfig))
		}
		return otlpmetrichttp.New(ctx, opts...)
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(c.OTLPEndpoint)}
	switch {
	case c.Insecure:
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	case c.TLSConfig != nil:
		opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(c.TLSConfig)))
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func (f otlpFactory) logExporter(ctx context.Context) (sdklog.Exporter, error) {
	c := f.config
	if c.OTLPProtocol == ProtocolHTTP {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(c.OTLPEndpoint)}
		switch {
		case c.Insecure:
			opts = append(opts, otlploghttp.WithInsecure())
		case c.TLSConfig != nil:
			opts = append(opts, otlploghttp.WithTLSClientConfig(c.TLSConfig))
		}
		return otlploghttp.New(ctx, opts...)
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(c.OTLPEndpoint)}
	switch {
	case c.Insecure:
		opts = append(opts, otlploggrpc.WithInsecure())
	case c.TLSConfig != nil:
		opts = append(opts, otlploggrpc.WithTLSCredentials(credentials.NewTLS(c.TLSConfig)))
	}
	return otlploggrpc.New(ctx, opts...)
}

func (p *Provider) Logger() observability.Logger {
	return p.logger
}

func (p *Provider) Metrics() observability.Metrics {
	return p.metrics
}

// MeterProvider exposes the underlying meter provider.
func (p *Provider) MeterProvider() *sdkmetric.MeterProvider {
	return p.meterProvider
}

// Shutdown flushes and stops the providers. Calling it again is a no-op.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, shutdown := range p.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.shutdownFuncs = nil
	return errors.Join(errs...)
}
