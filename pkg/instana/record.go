package instana

// Record is the backend representation of a single span. Optional fields are
// omitted from the serialized form when absent; Data always serializes as an
// object, never null.
type Record struct {
	TraceID     string `json:"t"`
	LongTraceID string `json:"lt,omitempty"`
	SpanID      string `json:"s"`
	ParentID    string `json:"p,omitempty"`
	TraceParent bool   `json:"tp,omitempty"`
	Name        string `json:"n"`
	Kind        string `json:"k"`
	Timestamp   int64  `json:"ts"`
	Duration    int64  `json:"d"`
	ErrorCount  int    `json:"ec"`
	From        From   `json:"f"`
	Service     string `json:"service,omitempty"`
	Data        Data   `json:"data"`
}

// From is the "from section" of a record identifying the process that produced it.
type From struct {
	EntityID      string `json:"e"`
	Hostless      bool   `json:"hl,omitempty"`
	CloudProvider string `json:"cp,omitempty"`
	HostID        string `json:"h,omitempty"`
}

// Data carries the nested payload of a record.
type Data struct {
	Tags   map[string]any `json:"tags,omitempty"`
	Events []Event        `json:"events,omitempty"`
	Error  string         `json:"error,omitempty"`

	// ErrorDetail is set whenever the span failed, even with an empty description.
	ErrorDetail *string `json:"error_detail,omitempty"`
}

// Bundle is the envelope accepted by the serverless acceptor.
type Bundle struct {
	Spans []Record `json:"spans,omitempty"`
}
