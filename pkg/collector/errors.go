package collector

import "errors"

var (
	// ErrQueueFull indicates the queue reached its capacity and the record was dropped.
	ErrQueueFull = errors.New("collector queue is full")

	// ErrCollectorClosed indicates the collector has been shut down.
	ErrCollectorClosed = errors.New("collector is closed")

	// ErrNilTransport indicates the collector was built without a transport.
	ErrNilTransport = errors.New("transport cannot be nil")

	// ErrUndelivered indicates records were still queued when shutdown gave up.
	ErrUndelivered = errors.New("records left undelivered at shutdown")
)
