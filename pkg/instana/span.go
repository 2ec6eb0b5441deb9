package instana

// SpanKind represents the role of a span in a trace.
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
	SpanKindProducer
	SpanKindConsumer
)

// String returns the lower-cased kind name used in backend records.
func (k SpanKind) String() string {
	switch k {
	case SpanKindServer:
		return "server"
	case SpanKindClient:
		return "client"
	case SpanKindProducer:
		return "producer"
	case SpanKindConsumer:
		return "consumer"
	default:
		return "internal"
	}
}

// IsEntry reports whether spans of this kind mark the point where a distributed
// call enters the local process.
func (k SpanKind) IsEntry() bool {
	return k == SpanKindServer || k == SpanKindConsumer
}

// StatusCode is the outcome of the operation a span describes.
type StatusCode int

const (
	StatusCodeOK StatusCode = iota
	StatusCodeError
)

// Status pairs a StatusCode with an optional human readable description.
type Status struct {
	Code        StatusCode
	Description string
}

// Event is a timestamped sub-record of a span. It is passed through to the
// backend record untouched.
type Event struct {
	Name       string         `json:"name"`
	Timestamp  int64          `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Span is the source span consumed by the Translator. It is decoupled from any
// tracing SDK so it can be built from plain data; see SpansFromReadOnly for the
// OpenTelemetry adapter.
type Span struct {
	TraceID      TraceID
	SpanID       SpanID
	ParentSpanID SpanID
	Kind         SpanKind
	Name         string

	// StartTime and EndTime are nanosecond timestamps.
	StartTime int64
	EndTime   int64

	Attributes map[string]any
	Events     []Event
	Status     Status
	Resource   map[string]any
}

// HasParent reports whether the span has a direct parent.
func (s Span) HasParent() bool {
	return !s.ParentSpanID.IsZero()
}
