package otel

import (
	"crypto/tls"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/JailtonJunior94/instana-exporter/pkg/observability"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	// ErrNilConfig is returned by NewProvider when no configuration is given.
	ErrNilConfig = errors.New("otel: config cannot be nil")

	// ErrInsecureInProduction is returned when plaintext OTLP is requested for a
	// production environment.
	ErrInsecureInProduction = errors.New("otel: insecure connections are not allowed in production environment")

	// ErrWeakTLS is returned when the TLS configuration accepts versions below 1.2.
	ErrWeakTLS = errors.New("otel: minimum TLS version must be 1.2 or higher")
)

// OTLPProtocol selects the wire protocol of the OTLP exporters.
type OTLPProtocol string

const (
	// ProtocolGRPC exports over gRPC, usually on port 4317.
	ProtocolGRPC OTLPProtocol = "grpc"
	// ProtocolHTTP exports HTTP/protobuf, usually on port 4318.
	ProtocolHTTP OTLPProtocol = "http"
)

// ParseProtocol maps the OTEL_EXPORTER_OTLP_PROTOCOL spellings onto an
// OTLPProtocol. Unknown values fall back to gRPC.
func ParseProtocol(protocol string) OTLPProtocol {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf", "http/json":
		return ProtocolHTTP
	default:
		return ProtocolGRPC
	}
}

// Config describes where the exporter's own logs and metrics go.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// OTLPEndpoint receives logs and metrics. When empty, logs are written to
	// Output only and metrics are visible to Readers only.
	OTLPEndpoint string
	OTLPProtocol OTLPProtocol

	Insecure  bool
	TLSConfig *tls.Config

	MetricInterval time.Duration

	LogLevel  observability.LogLevel
	LogFormat observability.LogFormat

	// Output receives console logs. Defaults to os.Stdout.
	Output io.Writer

	ResourceAttributes map[string]string

	// Readers are attached to the meter provider next to the OTLP reader.
	Readers []sdkmetric.Reader
}

// DefaultConfig returns a console-only configuration.
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName:    serviceName,
		ServiceVersion: "unknown",
		Environment:    "development",
		OTLPProtocol:   ProtocolGRPC,
		MetricInterval: time.Minute,
		LogLevel:       observability.LogLevelInfo,
		LogFormat:      observability.LogFormatJSON,
	}
}

// Validate rejects transport settings that must never reach production.
func (c *Config) Validate() error {
	if c.Insecure && c.production() {
		return ErrInsecureInProduction
	}
	if c.TLSConfig != nil && c.TLSConfig.MinVersion > 0 && c.TLSConfig.MinVersion < tls.VersionTLS12 {
		return ErrWeakTLS
	}
	return nil
}

// warnings lists accepted but risky settings, logged once the provider is up.
func (c *Config) warnings() []string {
	var warnings []string
	if c.Insecure && c.OTLPEndpoint != "" {
		warnings = append(warnings, "using insecure OTLP connection")
	}
	if c.TLSConfig != nil && c.TLSConfig.InsecureSkipVerify {
		warnings = append(warnings, "TLS certificate verification is disabled")
	}
	return warnings
}

func (c *Config) production() bool {
	switch strings.ToLower(c.Environment) {
	case "production", "prod":
		return true
	default:
		return false
	}
}

func (c *Config) applyDefaults() {
	c.OTLPProtocol = ParseProtocol(string(c.OTLPProtocol))
	if c.MetricInterval <= 0 {
		c.MetricInterval = time.Minute
	}
}
