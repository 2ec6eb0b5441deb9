// Package telemetry builds OpenTelemetry tracer providers that export through the
// Instana exporter.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"google.golang.org/grpc/credentials"
)

// ErrNilExporter indicates NewTracerProvider was called without an exporter.
var ErrNilExporter = errors.New("span exporter cannot be nil")

// NewTracerProvider creates a tracer provider whose spans go to exporter, and
// optionally also to an OTLP collector. The provider owns the exporters: its
// Shutdown shuts them down.
//
// NOTE: the provider is only registered globally with WithGlobal.
func NewTracerProvider(ctx context.Context, exporter sdktrace.SpanExporter, opts ...TracerOption) (*sdktrace.TracerProvider, error) {
	if exporter == nil {
		return nil, ErrNilExporter
	}

	cfg := defaultTracerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.Sampler),
		registerExporter(cfg, exporter),
	}

	if cfg.OTLPEndpoint != "" {
		otlpExporter, err := newOTLPExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		providerOpts = append(providerOpts, registerExporter(cfg, otlpExporter))
	}

	tracerProvider := sdktrace.NewTracerProvider(providerOpts...)

	if cfg.Global {
		otel.SetTracerProvider(tracerProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	return tracerProvider, nil
}

func registerExporter(cfg *TracerConfig, exporter sdktrace.SpanExporter) sdktrace.TracerProviderOption {
	if cfg.Sync {
		return sdktrace.WithSyncer(exporter)
	}

	batchOpts := []sdktrace.BatchSpanProcessorOption{}
	if cfg.BatchSize > 0 {
		batchOpts = append(batchOpts, sdktrace.WithMaxExportBatchSize(cfg.BatchSize))
	}
	if cfg.BatchDelay > 0 {
		batchOpts = append(batchOpts, sdktrace.WithBatchTimeout(cfg.BatchDelay))
	}
	return sdktrace.WithBatcher(exporter, batchOpts...)
}

func newResource(cfg *TracerConfig) (*resource.Resource, error) {
	attrs := make([]attribute.KeyValue, 0, len(cfg.ResourceAttributes)+3)
	if cfg.ServiceName != "" {
		attrs = append(attrs, semconv.ServiceName(cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentName(cfg.Environment))
	}
	attrs = append(attrs, cfg.ResourceAttributes...)

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func newOTLPExporter(ctx context.Context, cfg *TracerConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.OTLPProtocol) {
	case "", ProtocolGRPC:
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		switch {
		case cfg.Insecure:
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		case cfg.TLSConfig != nil:
			grpcOpts = append(grpcOpts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(cfg.TLSConfig)))
		default:
			grpcOpts = append(grpcOpts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
		}

		exporter, err := otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize trace exporter grpc: %w", err)
		}
		return exporter, nil

	case ProtocolHTTP:
		httpOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
		switch {
		case cfg.Insecure:
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		case cfg.TLSConfig != nil:
			httpOpts = append(httpOpts, otlptracehttp.WithTLSClientConfig(cfg.TLSConfig))
		}

		exporter, err := otlptracehttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize trace exporter http: %w", err)
		}
		return exporter, nil

	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", cfg.OTLPProtocol)
	}
}
