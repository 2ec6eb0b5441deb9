package instana

import (
	"errors"
	"fmt"
)

var (
	// ErrNegativeDuration indicates a span ended before it started.
	ErrNegativeDuration = errors.New("span end time is before its start time")

	// ErrInvalidTraceID indicates a span carries the all-zero trace id.
	ErrInvalidTraceID = errors.New("span has an invalid trace id")

	// ErrInvalidSpanID indicates a span carries the zero span id.
	ErrInvalidSpanID = errors.New("span has an invalid span id")

	// ErrDrainTimeout indicates the delivery queue did not drain in time.
	ErrDrainTimeout = errors.New("queued spans were not sent before the drain deadline")

	// ErrExporterShutdown indicates the exporter has been shut down.
	ErrExporterShutdown = errors.New("instana exporter is shut down")

	// ErrExportFailed is reported to the tracing pipeline when an export fails.
	ErrExportFailed = errors.New("failed to export spans to instana")

	// ErrNilQueue indicates the exporter was built without a delivery queue.
	ErrNilQueue = errors.New("span queue cannot be nil")

	// ErrInvalidConfig indicates the exporter configuration is invalid.
	ErrInvalidConfig = errors.New("invalid instana configuration")
)

// TranslationError reports a source span that violates a structural invariant.
type TranslationError struct {
	Index int    // Position of the span in the exported batch
	Name  string // Span name, for diagnostics
	Err   error  // Underlying cause
}

// Error implements the error interface.
func (e *TranslationError) Error() string {
	return fmt.Sprintf("translate span %d (%q): %v", e.Index, e.Name, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TranslationError) Unwrap() error {
	return e.Err
}

// SubmissionError reports a record the delivery queue refused. Records before
// Submitted were enqueued and are not retried.
type SubmissionError struct {
	Submitted int
	Total     int
	Err       error
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit span %d of %d: %v", e.Submitted+1, e.Total, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SubmissionError) Unwrap() error {
	return e.Err
}
