package instana

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// SpansFromReadOnly converts spans finished by the OpenTelemetry SDK, keeping
// their order.
func SpansFromReadOnly(spans []sdktrace.ReadOnlySpan) []Span {
	result := make([]Span, 0, len(spans))
	for _, span := range spans {
		result = append(result, SpanFromReadOnly(span))
	}
	return result
}

// SpanFromReadOnly converts a single SDK span. An unset status is reported as OK.
func SpanFromReadOnly(s sdktrace.ReadOnlySpan) Span {
	sc := s.SpanContext()

	span := Span{
		TraceID:    TraceIDFromBytes(sc.TraceID()),
		SpanID:     SpanIDFromBytes(sc.SpanID()),
		Kind:       kindFromOTel(s.SpanKind()),
		Name:       s.Name(),
		StartTime:  s.StartTime().UnixNano(),
		EndTime:    s.EndTime().UnixNano(),
		Attributes: attributesToMap(s.Attributes()),
		Events:     eventsFromOTel(s.Events()),
		Resource:   attributesToMap(s.Resource().Attributes()),
	}

	if parent := s.Parent(); parent.SpanID().IsValid() {
		span.ParentSpanID = SpanIDFromBytes(parent.SpanID())
	}

	if status := s.Status(); status.Code == codes.Error {
		span.Status = Status{Code: StatusCodeError, Description: status.Description}
	}

	return span
}

func kindFromOTel(kind trace.SpanKind) SpanKind {
	switch kind {
	case trace.SpanKindServer:
		return SpanKindServer
	case trace.SpanKindClient:
		return SpanKindClient
	case trace.SpanKindProducer:
		return SpanKindProducer
	case trace.SpanKindConsumer:
		return SpanKindConsumer
	default:
		return SpanKindInternal
	}
}

func attributesToMap(attrs []attribute.KeyValue) map[string]any {
	if len(attrs) == 0 {
		return nil
	}

	result := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		result[string(kv.Key)] = kv.Value.AsInterface()
	}
	return result
}

func eventsFromOTel(events []sdktrace.Event) []Event {
	if len(events) == 0 {
		return nil
	}

	result := make([]Event, 0, len(events))
	for _, event := range events {
		result = append(result, Event{
			Name:       event.Name,
			Timestamp:  event.Time.UnixNano(),
			Attributes: attributesToMap(event.Attributes),
		})
	}
	return result
}
