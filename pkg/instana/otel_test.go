package instana_test

import (
	"testing"
	"time"

	"github.com/JailtonJunior94/instana-exporter/pkg/instana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestSpansFromReadOnly(t *testing.T) {
	traceID := trace.TraceID{
		0x6E, 0x0C, 0x63, 0x25, 0x7D, 0xE3, 0x4C, 0x92,
		0x6F, 0x9E, 0xFC, 0xD0, 0x39, 0x27, 0x27, 0x2E,
	}
	start := time.Unix(0, baseTime)

	stubs := tracetest.SpanStubs{
		{
			Name: "publish order",
			SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
				TraceID: traceID,
				SpanID:  trace.SpanID{0x34, 0xBF, 0x92, 0xDE, 0xEF, 0xC5, 0x8C, 0x92},
			}),
			Parent: trace.NewSpanContext(trace.SpanContextConfig{
				TraceID: traceID,
				SpanID:  trace.SpanID{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11},
			}),
			SpanKind:  trace.SpanKindProducer,
			StartTime: start,
			EndTime:   start.Add(50 * time.Millisecond),
			Attributes: []attribute.KeyValue{
				attribute.String("messaging.system", "kafka"),
				attribute.StringSlice("tags", []string{"a", "b"}),
				attribute.Int64("messaging.batch.message_count", 3),
			},
			Events: []sdktrace.Event{
				{Name: "retry", Time: start.Add(time.Millisecond), Attributes: []attribute.KeyValue{attribute.Int("attempt", 1)}},
			},
			Status:   sdktrace.Status{Code: codes.Error, Description: "broker unavailable"},
			Resource: resource.NewSchemaless(attribute.String("service.name", "orders")),
		},
		{
			Name: "root",
			SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
				TraceID: traceID,
				SpanID:  trace.SpanID{0x22, 0x22, 0x22, 0x22, 0x22, 0x22, 0x22, 0x22},
			}),
			StartTime: start,
			EndTime:   start,
			Status:    sdktrace.Status{Code: codes.Ok},
		},
	}

	spans := instana.SpansFromReadOnly(stubs.Snapshots())
	require.Len(t, spans, 2)

	producer := spans[0]
	assert.Equal(t, instana.TraceID{High: 0x6E0C63257DE34C92, Low: 0x6F9EFCD03927272E}, producer.TraceID)
	assert.Equal(t, instana.SpanID(0x34BF92DEEFC58C92), producer.SpanID)
	assert.Equal(t, instana.SpanID(0x1111111111111111), producer.ParentSpanID)
	assert.Equal(t, instana.SpanKindProducer, producer.Kind)
	assert.Equal(t, baseTime, producer.StartTime)
	assert.Equal(t, baseTime+50e6, producer.EndTime)
	assert.Equal(t, map[string]any{
		"messaging.system":              "kafka",
		"tags":                          []string{"a", "b"},
		"messaging.batch.message_count": int64(3),
	}, producer.Attributes)
	assert.Equal(t, []instana.Event{
		{Name: "retry", Timestamp: baseTime + 1e6, Attributes: map[string]any{"attempt": int64(1)}},
	}, producer.Events)
	assert.Equal(t, instana.Status{Code: instana.StatusCodeError, Description: "broker unavailable"}, producer.Status)
	assert.Equal(t, "orders", producer.Resource["service.name"])

	root := spans[1]
	assert.False(t, root.HasParent())
	assert.Equal(t, instana.SpanKindInternal, root.Kind)
	assert.Equal(t, instana.Status{}, root.Status)
	assert.Nil(t, root.Attributes)
	assert.Nil(t, root.Events)
}
