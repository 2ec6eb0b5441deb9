package instana_test

import (
	"testing"

	"github.com/JailtonJunior94/instana-exporter/pkg/instana"
)

func TestTraceIDFromBytes(t *testing.T) {
	b := [16]byte{
		0x6E, 0x0C, 0x63, 0x25, 0x7D, 0xE3, 0x4C, 0x92,
		0x6F, 0x9E, 0xFC, 0xD0, 0x39, 0x27, 0x27, 0x2E,
	}

	got := instana.TraceIDFromBytes(b)
	want := instana.TraceID{High: 0x6E0C63257DE34C92, Low: 0x6F9EFCD03927272E}
	if got != want {
		t.Errorf("TraceIDFromBytes() = %+v, want %+v", got, want)
	}
}

func TestTraceIDDecimal(t *testing.T) {
	tests := []struct {
		name     string
		id       instana.TraceID
		wantLow  string
		wantFull string
		wantWide bool
	}{
		{
			name:     "small id",
			id:       instana.TraceID{Low: 0xDEADBEEF},
			wantLow:  "3735928559",
			wantFull: "3735928559",
		},
		{
			name:     "largest 64-bit id",
			id:       instana.TraceID{Low: ^uint64(0)},
			wantLow:  "18446744073709551615",
			wantFull: "18446744073709551615",
		},
		{
			name:     "smallest wide id",
			id:       instana.TraceID{High: 1},
			wantLow:  "0",
			wantFull: "18446744073709551616",
			wantWide: true,
		},
		{
			name:     "wide id",
			id:       instana.TraceID{High: 0x6E0C63257DE34C92, Low: 0x6F9EFCD03927272E},
			wantLow:  "8043143955772548910",
			wantFull: "146279398027596352483954735549451282222",
			wantWide: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.Low64(); got != tt.wantLow {
				t.Errorf("Low64() = %q, want %q", got, tt.wantLow)
			}
			if got := tt.id.Decimal(); got != tt.wantFull {
				t.Errorf("Decimal() = %q, want %q", got, tt.wantFull)
			}
			if got := tt.id.IsWide(); got != tt.wantWide {
				t.Errorf("IsWide() = %v, want %v", got, tt.wantWide)
			}
		})
	}
}

func TestSpanID(t *testing.T) {
	id := instana.SpanIDFromBytes([8]byte{0x34, 0xBF, 0x92, 0xDE, 0xEF, 0xC5, 0x8C, 0x92})
	if id != 0x34BF92DEEFC58C92 {
		t.Fatalf("SpanIDFromBytes() = %x", uint64(id))
	}
	if got := id.Decimal(); got != "3800918096727084178" {
		t.Errorf("Decimal() = %q, want %q", got, "3800918096727084178")
	}

	var zero instana.SpanID
	if !zero.IsZero() {
		t.Error("zero span id should report IsZero")
	}
	if (instana.TraceID{}).IsZero() != true {
		t.Error("zero trace id should report IsZero")
	}
}
