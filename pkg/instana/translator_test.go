package instana_test

import (
	"errors"
	"testing"

	"github.com/JailtonJunior94/instana-exporter/pkg/instana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseTime = int64(683647322) * 1e9

var testFrom = instana.From{EntityID: "4242"}

func newSpan(traceID instana.TraceID, spanID instana.SpanID) instana.Span {
	return instana.Span{
		TraceID:   traceID,
		SpanID:    spanID,
		Name:      "span",
		StartTime: baseTime,
		EndTime:   baseTime + 50e6,
	}
}

func translateOne(t *testing.T, span instana.Span) instana.Record {
	t.Helper()

	records, err := instana.NewTranslator(testFrom).Translate([]instana.Span{span})
	require.NoError(t, err)
	require.Len(t, records, 1)
	return records[0]
}

func TestTranslateIdentifierNarrowing(t *testing.T) {
	tests := []struct {
		name    string
		traceID instana.TraceID
		wantT   string
		wantLT  string
	}{
		{
			name:    "64-bit trace id has no long id",
			traceID: instana.TraceID{Low: 0xDEADBEEF},
			wantT:   "3735928559",
		},
		{
			name:    "max 64-bit trace id has no long id",
			traceID: instana.TraceID{Low: ^uint64(0)},
			wantT:   "18446744073709551615",
		},
		{
			name:    "2^64 keeps low bits and long id",
			traceID: instana.TraceID{High: 1},
			wantT:   "0",
			wantLT:  "18446744073709551616",
		},
		{
			name:    "wide trace id",
			traceID: instana.TraceID{High: 0x6E0C63257DE34C92, Low: 0x6F9EFCD03927272E},
			wantT:   "8043143955772548910",
			wantLT:  "146279398027596352483954735549451282222",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := translateOne(t, newSpan(tt.traceID, 0xDEADBEF0))

			assert.Equal(t, tt.wantT, record.TraceID)
			assert.Equal(t, tt.wantLT, record.LongTraceID)
			assert.Equal(t, "3735928560", record.SpanID)
		})
	}
}

func TestTranslateParentMarking(t *testing.T) {
	kinds := []struct {
		kind     instana.SpanKind
		wantName string
		wantTP   bool
	}{
		{instana.SpanKindInternal, "internal", false},
		{instana.SpanKindServer, "server", true},
		{instana.SpanKindClient, "client", false},
		{instana.SpanKindProducer, "producer", false},
		{instana.SpanKindConsumer, "consumer", true},
	}

	for _, tt := range kinds {
		t.Run(tt.wantName, func(t *testing.T) {
			span := newSpan(instana.TraceID{Low: 1}, 2)
			span.Kind = tt.kind

			root := translateOne(t, span)
			assert.Equal(t, tt.wantName, root.Kind)
			assert.Empty(t, root.ParentID)
			assert.False(t, root.TraceParent, "root spans never carry tp")

			span.ParentSpanID = 3
			child := translateOne(t, span)
			assert.Equal(t, "3", child.ParentID)
			assert.Equal(t, tt.wantTP, child.TraceParent)
		})
	}
}

func TestTranslatePreservesOrder(t *testing.T) {
	spans := make([]instana.Span, 0, 10)
	for i := 1; i <= 10; i++ {
		spans = append(spans, newSpan(instana.TraceID{Low: 7}, instana.SpanID(i)))
	}

	records, err := instana.NewTranslator(testFrom).Translate(spans)
	require.NoError(t, err)
	require.Len(t, records, len(spans))

	for i, record := range records {
		assert.Equal(t, spans[i].SpanID.Decimal(), record.SpanID)
	}
}

func TestTranslateEmptyBatch(t *testing.T) {
	records, err := instana.NewTranslator(testFrom).Translate(nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTranslateMinimalSpan(t *testing.T) {
	span := newSpan(instana.TraceID{Low: 1}, 1)
	span.Name = ""

	record := translateOne(t, span)

	assert.Equal(t, instana.DefaultSpanName, record.Name)
	assert.Equal(t, 0, record.ErrorCount)
	assert.Equal(t, instana.Data{}, record.Data)
	assert.Equal(t, baseTime, record.Timestamp)
	assert.Equal(t, int64(50e6), record.Duration)
	assert.Equal(t, testFrom, record.From)
	assert.Empty(t, record.Service)
}

func TestTranslateErrorStatus(t *testing.T) {
	t.Run("with description", func(t *testing.T) {
		span := newSpan(instana.TraceID{Low: 1}, 1)
		span.Status = instana.Status{Code: instana.StatusCodeError, Description: "boom"}

		record := translateOne(t, span)

		assert.Equal(t, 1, record.ErrorCount)
		assert.Equal(t, "ERROR", record.Data.Error)
		require.NotNil(t, record.Data.ErrorDetail)
		assert.Equal(t, "boom", *record.Data.ErrorDetail)
	})

	t.Run("empty description still sets detail", func(t *testing.T) {
		span := newSpan(instana.TraceID{Low: 1}, 1)
		span.Status = instana.Status{Code: instana.StatusCodeError}

		record := translateOne(t, span)

		require.NotNil(t, record.Data.ErrorDetail)
		assert.Empty(t, *record.Data.ErrorDetail)
	})

	t.Run("ok status has no error", func(t *testing.T) {
		span := newSpan(instana.TraceID{Low: 1}, 1)
		span.Status = instana.Status{Code: instana.StatusCodeOK, Description: "ignored"}

		record := translateOne(t, span)

		assert.Equal(t, 0, record.ErrorCount)
		assert.Empty(t, record.Data.Error)
		assert.Nil(t, record.Data.ErrorDetail)
	})
}

func TestTranslateTagsAreSnapshot(t *testing.T) {
	span := newSpan(instana.TraceID{Low: 1}, 1)
	span.Attributes = map[string]any{"http.method": "GET"}
	span.Events = []instana.Event{
		{Name: "first", Timestamp: baseTime},
		{Name: "second", Timestamp: baseTime + 1},
	}

	record := translateOne(t, span)

	span.Attributes["http.method"] = "POST"
	span.Events[0].Name = "mutated"

	assert.Equal(t, map[string]any{"http.method": "GET"}, record.Data.Tags)
	require.Len(t, record.Data.Events, 2)
	assert.Equal(t, "first", record.Data.Events[0].Name)
	assert.Equal(t, "second", record.Data.Events[1].Name)
}

func TestTranslateService(t *testing.T) {
	span := newSpan(instana.TraceID{Low: 1}, 1)
	span.Resource = map[string]any{"service.name": "checkout"}
	assert.Equal(t, "checkout", translateOne(t, span).Service)

	span.Resource = map[string]any{"service.name": 42}
	assert.Empty(t, translateOne(t, span).Service)
}

func TestTranslateConfiguredService(t *testing.T) {
	span := newSpan(instana.TraceID{Low: 1}, 1)
	span.Resource = map[string]any{"service.name": "checkout"}

	records, err := instana.NewTranslator(testFrom, instana.WithServiceName("payments")).
		Translate([]instana.Span{span, newSpan(instana.TraceID{Low: 1}, 2)})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "payments", records[0].Service)
	assert.Equal(t, "payments", records[1].Service)

	records, err = instana.NewTranslator(testFrom, instana.WithServiceName("")).Translate([]instana.Span{span})
	require.NoError(t, err)
	assert.Equal(t, "checkout", records[0].Service)
}

func TestTranslateFaults(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*instana.Span)
		wantErr error
	}{
		{
			name:    "negative duration",
			mutate:  func(s *instana.Span) { s.EndTime = s.StartTime - 1 },
			wantErr: instana.ErrNegativeDuration,
		},
		{
			name:    "zero trace id",
			mutate:  func(s *instana.Span) { s.TraceID = instana.TraceID{} },
			wantErr: instana.ErrInvalidTraceID,
		},
		{
			name:    "zero span id",
			mutate:  func(s *instana.Span) { s.SpanID = 0 },
			wantErr: instana.ErrInvalidSpanID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			good := newSpan(instana.TraceID{Low: 1}, 1)
			bad := newSpan(instana.TraceID{Low: 1}, 2)
			bad.Name = "bad"
			tt.mutate(&bad)

			records, err := instana.NewTranslator(testFrom).Translate([]instana.Span{good, bad})

			require.Error(t, err)
			assert.Nil(t, records)
			assert.ErrorIs(t, err, tt.wantErr)

			var translationErr *instana.TranslationError
			require.True(t, errors.As(err, &translationErr))
			assert.Equal(t, 1, translationErr.Index)
			assert.Equal(t, "bad", translationErr.Name)
		})
	}
}

func TestTranslateZeroDuration(t *testing.T) {
	span := newSpan(instana.TraceID{Low: 1}, 1)
	span.EndTime = span.StartTime

	assert.Equal(t, int64(0), translateOne(t, span).Duration)
}

func TestTranslateEndToEnd(t *testing.T) {
	traceID := instana.TraceID{High: 0x6E0C63257DE34C92, Low: 0x6F9EFCD03927272E}
	const (
		spanID  instana.SpanID = 0x34BF92DEEFC58C92
		parent  instana.SpanID = 0x1111111111111111
		otherID instana.SpanID = 0x2222222222222222
	)

	spans := []instana.Span{
		{
			TraceID:      traceID,
			SpanID:       spanID,
			ParentSpanID: parent,
			Kind:         instana.SpanKindClient,
			Name:         "test1",
			StartTime:    baseTime,
			EndTime:      baseTime + 50e6,
			Resource:     map[string]any{},
		},
		{
			TraceID:    traceID,
			SpanID:     parent,
			Name:       "test2",
			StartTime:  baseTime + 150e6,
			EndTime:    baseTime + 250e6,
			Attributes: map[string]any{"conflicting_key": "original_value"},
			Resource:   map[string]any{"conflicting_key": "conflicting_value"},
		},
		{
			TraceID:   traceID,
			SpanID:    otherID,
			Name:      "test3",
			StartTime: baseTime + 300e6,
			EndTime:   baseTime + 500e6,
			Resource: map[string]any{
				"service.name":    "resource_service_name",
				"conflicting_key": "conflicting_value",
			},
		},
	}

	records, err := instana.NewTranslator(testFrom).Translate(spans)
	require.NoError(t, err)

	want := []instana.Record{
		{
			TraceID:     "8043143955772548910",
			LongTraceID: "146279398027596352483954735549451282222",
			SpanID:      "3800918096727084178",
			ParentID:    "1229782938247303441",
			Name:        "test1",
			Kind:        "client",
			Timestamp:   683647322000000000,
			Duration:    50000000,
			From:        testFrom,
		},
		{
			TraceID:     "8043143955772548910",
			LongTraceID: "146279398027596352483954735549451282222",
			SpanID:      "1229782938247303441",
			Name:        "test2",
			Kind:        "internal",
			Timestamp:   683647322150000000,
			Duration:    100000000,
			From:        testFrom,
			Data:        instana.Data{Tags: map[string]any{"conflicting_key": "original_value"}},
		},
		{
			TraceID:     "8043143955772548910",
			LongTraceID: "146279398027596352483954735549451282222",
			SpanID:      "2459565876494606882",
			Name:        "test3",
			Kind:        "internal",
			Timestamp:   683647322300000000,
			Duration:    200000000,
			From:        testFrom,
			Service:     "resource_service_name",
		},
	}

	assert.Equal(t, want, records)
}
