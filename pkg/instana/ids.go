package instana

import (
	"encoding/binary"
	"math/big"
	"strconv"
)

// TraceID is a 128-bit trace identifier split into its high and low 64-bit halves.
type TraceID struct {
	High uint64
	Low  uint64
}

// TraceIDFromBytes builds a TraceID from its big-endian byte representation,
// the layout used by OpenTelemetry's trace.TraceID.
func TraceIDFromBytes(b [16]byte) TraceID {
	return TraceID{
		High: binary.BigEndian.Uint64(b[:8]),
		Low:  binary.BigEndian.Uint64(b[8:]),
	}
}

// IsZero reports whether the trace id is the invalid all-zero id.
func (t TraceID) IsZero() bool {
	return t.High == 0 && t.Low == 0
}

// IsWide reports whether the id needs more than 64 bits to be represented.
func (t TraceID) IsWide() bool {
	return t.High != 0
}

// Low64 returns the low 64 bits as a decimal string.
func (t TraceID) Low64() string {
	return strconv.FormatUint(t.Low, 10)
}

// Decimal returns the full 128-bit id as a decimal string.
func (t TraceID) Decimal() string {
	if !t.IsWide() {
		return t.Low64()
	}

	n := new(big.Int).SetUint64(t.High)
	n.Lsh(n, 64)
	n.Or(n, new(big.Int).SetUint64(t.Low))
	return n.String()
}

// SpanID is a 64-bit span identifier. The zero value is invalid and, when used as a
// parent id, marks a root span.
type SpanID uint64

// SpanIDFromBytes builds a SpanID from its big-endian byte representation.
func SpanIDFromBytes(b [8]byte) SpanID {
	return SpanID(binary.BigEndian.Uint64(b[:]))
}

// IsZero reports whether the span id is unset.
func (s SpanID) IsZero() bool {
	return s == 0
}

// Decimal returns the id as a decimal string.
func (s SpanID) Decimal() string {
	return strconv.FormatUint(uint64(s), 10)
}
