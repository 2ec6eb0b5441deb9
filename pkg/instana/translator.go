package instana

import (
	"maps"
	"slices"
)

const (
	// DefaultSpanName is used for spans that have no name.
	DefaultSpanName = "otel"

	// ServiceNameKey is the resource attribute holding the service name.
	ServiceNameKey = "service.name"

	errorTag = "ERROR"
)

// Translator converts source spans into backend records. It performs no I/O and
// holds no mutable state, so a single Translator may be shared between goroutines.
type Translator struct {
	from    From
	service string
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithServiceName reports every record under service, taking precedence over the
// service.name resource attribute. An empty name keeps the resource value.
func WithServiceName(service string) TranslatorOption {
	return func(t *Translator) {
		t.service = service
	}
}

// NewTranslator creates a Translator stamping every record with the given fingerprint.
func NewTranslator(from From, opts ...TranslatorOption) *Translator {
	t := &Translator{from: from}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate converts spans into records, preserving their order. The first span
// that violates a structural invariant aborts the translation with a
// *TranslationError.
func (t *Translator) Translate(spans []Span) ([]Record, error) {
	records := make([]Record, 0, len(spans))
	for i, span := range spans {
		record, err := t.translate(span)
		if err != nil {
			return nil, &TranslationError{Index: i, Name: span.Name, Err: err}
		}
		records = append(records, record)
	}
	return records, nil
}

func (t *Translator) translate(span Span) (Record, error) {
	if span.TraceID.IsZero() {
		return Record{}, ErrInvalidTraceID
	}
	if span.SpanID.IsZero() {
		return Record{}, ErrInvalidSpanID
	}

	duration := span.EndTime - span.StartTime
	if duration < 0 {
		return Record{}, ErrNegativeDuration
	}

	record := Record{
		TraceID:   span.TraceID.Low64(),
		SpanID:    span.SpanID.Decimal(),
		Name:      span.Name,
		Kind:      span.Kind.String(),
		Timestamp: span.StartTime,
		Duration:  duration,
		From:      t.from,
	}

	if record.Name == "" {
		record.Name = DefaultSpanName
	}

	if span.TraceID.IsWide() {
		record.LongTraceID = span.TraceID.Decimal()
	}

	if span.HasParent() {
		record.ParentID = span.ParentSpanID.Decimal()
		record.TraceParent = span.Kind.IsEntry()
	}

	if t.service != "" {
		record.Service = t.service
	} else if service, ok := span.Resource[ServiceNameKey].(string); ok && service != "" {
		record.Service = service
	}

	if len(span.Attributes) > 0 {
		record.Data.Tags = maps.Clone(span.Attributes)
	}

	if len(span.Events) > 0 {
		record.Data.Events = slices.Clone(span.Events)
	}

	if span.Status.Code == StatusCodeError {
		detail := span.Status.Description
		record.ErrorCount = 1
		record.Data.Error = errorTag
		record.Data.ErrorDetail = &detail
	}

	return record, nil
}
