package telemetry

import (
	"crypto/tls"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

// TracerConfig holds the tracer provider configuration.
type TracerConfig struct {
	ServiceName        string
	ServiceVersion     string
	Environment        string
	ResourceAttributes []attribute.KeyValue

	Sampler    sdktrace.Sampler
	Sync       bool
	BatchSize  int
	BatchDelay time.Duration

	// OTLPEndpoint adds a second pipeline exporting the same spans over OTLP.
	// Example: "otel-collector:4317"
	OTLPEndpoint string
	OTLPProtocol string
	Insecure     bool
	TLSConfig    *tls.Config

	Global bool
}

// TracerOption is a function that configures TracerConfig.
type TracerOption func(*TracerConfig)

// WithService sets the resource identity of the provider. The service name
// becomes the service of every exported span.
func WithService(name, version, environment string) TracerOption {
	return func(c *TracerConfig) {
		c.ServiceName = name
		c.ServiceVersion = version
		c.Environment = environment
	}
}

// WithResourceAttributes adds attributes to the provider resource.
func WithResourceAttributes(attrs ...attribute.KeyValue) TracerOption {
	return func(c *TracerConfig) {
		c.ResourceAttributes = append(c.ResourceAttributes, attrs...)
	}
}

// WithSampler sets a custom sampler for traces.
func WithSampler(sampler sdktrace.Sampler) TracerOption {
	return func(c *TracerConfig) {
		c.Sampler = sampler
	}
}

// WithSyncExport exports every span as soon as it ends. Intended for tests and
// short-lived programs.
func WithSyncExport() TracerOption {
	return func(c *TracerConfig) {
		c.Sync = true
	}
}

// WithBatch sets the batch size and delay between exports.
func WithBatch(size int, delay time.Duration) TracerOption {
	return func(c *TracerConfig) {
		c.BatchSize = size
		c.BatchDelay = delay
	}
}

// WithOTLP fans spans out to an OTLP collector alongside Instana.
func WithOTLP(endpoint, protocol string) TracerOption {
	return func(c *TracerConfig) {
		c.OTLPEndpoint = endpoint
		c.OTLPProtocol = protocol
	}
}

// WithInsecure disables TLS for the OTLP connection.
// WARNING: Only use in development environments.
func WithInsecure() TracerOption {
	return func(c *TracerConfig) {
		c.Insecure = true
	}
}

// WithTLS sets custom TLS configuration for the OTLP connection.
func WithTLS(tlsConfig *tls.Config) TracerOption {
	return func(c *TracerConfig) {
		c.TLSConfig = tlsConfig
		c.Insecure = false
	}
}

// WithGlobal registers the provider and the W3C propagators as the process globals.
func WithGlobal() TracerOption {
	return func(c *TracerConfig) {
		c.Global = true
	}
}

func defaultTracerConfig() *TracerConfig {
	return &TracerConfig{
		Sampler:      sdktrace.AlwaysSample(),
		BatchSize:    512,
		BatchDelay:   5 * time.Second,
		OTLPProtocol: ProtocolGRPC,
	}
}
