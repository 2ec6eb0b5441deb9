package otel

import (
	"bytes"
	"context"
	"crypto/tls"
	"testing"
	"time"

	"github.com/JailtonJunior94/instana-exporter/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{name: "insecure production", config: Config{Environment: "production", Insecure: true}, wantErr: ErrInsecureInProduction},
		{name: "insecure prod alias", config: Config{Environment: "PROD", Insecure: true}, wantErr: ErrInsecureInProduction},
		{name: "insecure development", config: Config{Environment: "development", Insecure: true}},
		{name: "secure production", config: Config{Environment: "production"}},
		{name: "tls 1.0", config: Config{TLSConfig: &tls.Config{MinVersion: tls.VersionTLS10}}, wantErr: ErrWeakTLS},
		{name: "tls 1.2", config: Config{TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12}}},
		{name: "tls default version", config: Config{TLSConfig: &tls.Config{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfigWarnings(t *testing.T) {
	assert.Empty(t, (&Config{Insecure: true}).warnings(), "no endpoint, nothing leaves the process")
	assert.Len(t, (&Config{Insecure: true, OTLPEndpoint: "collector:4317"}).warnings(), 1)
	assert.Len(t, (&Config{TLSConfig: &tls.Config{InsecureSkipVerify: true}}).warnings(), 1)
}

func TestParseProtocol(t *testing.T) {
	tests := map[string]OTLPProtocol{
		"grpc":          ProtocolGRPC,
		"GRPC":          ProtocolGRPC,
		"http":          ProtocolHTTP,
		" HTTP ":        ProtocolHTTP,
		"http/protobuf": ProtocolHTTP,
		"http/json":     ProtocolHTTP,
		"":              ProtocolGRPC,
		"kafka":         ProtocolGRPC,
	}

	for input, expected := range tests {
		assert.Equal(t, expected, ParseProtocol(input), "input %q", input)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("instana-exporter")

	assert.Equal(t, "instana-exporter", config.ServiceName)
	assert.Equal(t, "development", config.Environment)
	assert.Empty(t, config.OTLPEndpoint)
	assert.Equal(t, ProtocolGRPC, config.OTLPProtocol)
	assert.Equal(t, time.Minute, config.MetricInterval)
	assert.NoError(t, config.Validate())
}

func TestNewProvider(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewProvider(context.Background(), nil)
		assert.ErrorIs(t, err, ErrNilConfig)
	})

	t.Run("insecure production is rejected", func(t *testing.T) {
		config := DefaultConfig("instana-exporter")
		config.Environment = "production"
		config.Insecure = true

		_, err := NewProvider(context.Background(), config)
		assert.ErrorIs(t, err, ErrInsecureInProduction)
	})

	t.Run("normalizes config", func(t *testing.T) {
		config := &Config{ServiceName: "instana-exporter", OTLPProtocol: "http/protobuf", Output: &bytes.Buffer{}}

		provider, err := NewProvider(context.Background(), config)
		require.NoError(t, err)
		defer provider.Shutdown(context.Background())

		assert.Equal(t, ProtocolHTTP, config.OTLPProtocol)
		assert.Equal(t, time.Minute, config.MetricInterval)
	})

	t.Run("console only", func(t *testing.T) {
		var buf bytes.Buffer
		reader := sdkmetric.NewManualReader()

		config := DefaultConfig("instana-exporter")
		config.Output = &buf
		config.Readers = []sdkmetric.Reader{reader}

		provider, err := NewProvider(context.Background(), config)
		require.NoError(t, err)

		provider.Logger().Info(context.Background(), "queue drained", observability.Int("pending", 0))
		provider.Metrics().Counter("instana.spans.exported", "Exported spans", "{span}").Add(context.Background(), 2)

		assert.Contains(t, buf.String(), `"msg":"queue drained"`)
		assert.Contains(t, buf.String(), `"pending":0`)

		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(context.Background(), &rm))
		require.Len(t, rm.ScopeMetrics, 1)
		assert.Equal(t, "instana.spans.exported", rm.ScopeMetrics[0].Metrics[0].Name)

		require.NoError(t, provider.Shutdown(context.Background()))
		assert.NoError(t, provider.Shutdown(context.Background()))
	})
}
