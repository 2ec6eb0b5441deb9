package prometheus_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JailtonJunior94/instana-exporter/pkg/observability"
	promobs "github.com/JailtonJunior94/instana-exporter/pkg/observability/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := promobs.NewMetrics(registry, promobs.WithNamespace("app"))
	ctx := context.Background()

	counter := metrics.Counter("instana.exporter.spans", "Spans processed by the exporter", "{span}")
	counter.Add(ctx, 3, observability.String("result", "success"))
	counter.Increment(ctx, observability.String("result", "failure"))
	counter.Add(ctx, 2, observability.String("result", "success"), observability.String("ignored", "x"))

	expected := `
# HELP app_instana_exporter_spans_total Spans processed by the exporter
# TYPE app_instana_exporter_spans_total counter
app_instana_exporter_spans_total{result="failure"} 1
app_instana_exporter_spans_total{result="success"} 5
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "app_instana_exporter_spans_total"))

	assert.Same(t, counter, metrics.Counter("instana.exporter.spans", "", ""))
}

func TestUpDownCounterAndHistogram(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := promobs.NewMetrics(registry, promobs.WithBuckets(10, 100))
	ctx := context.Background()

	inFlight := metrics.UpDownCounter("instana.collector.in_flight", "", "")
	inFlight.Add(ctx, 5)
	inFlight.Add(ctx, -2)

	drain := metrics.Histogram("instana.exporter.drain.duration", "Drain wait", "ms")
	drain.Record(ctx, 7)
	drain.Record(ctx, 70)

	count, err := testutil.GatherAndCount(registry, "instana_collector_in_flight", "instana_exporter_drain_duration")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	families, err := registry.Gather()
	require.NoError(t, err)

	for _, family := range families {
		switch family.GetName() {
		case "instana_collector_in_flight":
			assert.Equal(t, float64(3), family.GetMetric()[0].GetGauge().GetValue())
		case "instana_exporter_drain_duration":
			h := family.GetMetric()[0].GetHistogram()
			assert.Equal(t, uint64(2), h.GetSampleCount())
			assert.Equal(t, float64(77), h.GetSampleSum())
		}
	}
}

func TestGauge(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := promobs.NewMetrics(registry)

	pending := 4
	require.NoError(t, metrics.Gauge("instana.collector.pending", "Records queued or in flight", "{record}",
		func(context.Context) float64 { return float64(pending) },
	))

	expected := `
# HELP instana_collector_pending Records queued or in flight
# TYPE instana_collector_pending gauge
instana_collector_pending 4
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "instana_collector_pending"))

	err := metrics.Gauge("instana.collector.pending", "", "", func(context.Context) float64 { return 0 })
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := promobs.NewMetrics(registry)
	metrics.Counter("instana.collector.records.sent", "", "").Add(context.Background(), 10)

	server := httptest.NewServer(promobs.Handler(registry))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "instana_collector_records_sent_total 10")
}
