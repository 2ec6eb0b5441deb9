// Package fake provides an observability.Observability that captures every log
// entry and metric sample so tests can assert on them.
package fake

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/JailtonJunior94/instana-exporter/pkg/observability"
)

var _ observability.Observability = (*Provider)(nil)

// Provider captures logs and metrics for inspection.
type Provider struct {
	logger  *FakeLogger
	metrics *FakeMetrics
}

func NewProvider() *Provider {
	return &Provider{
		logger:  NewFakeLogger(),
		metrics: NewFakeMetrics(),
	}
}

func (p *Provider) Logger() observability.Logger {
	return p.logger
}

func (p *Provider) Metrics() observability.Metrics {
	return p.metrics
}

// FakeLogger returns the concrete logger for assertions.
func (p *Provider) FakeLogger() *FakeLogger {
	return p.logger
}

// FakeMetrics returns the concrete metrics recorder for assertions.
func (p *Provider) FakeMetrics() *FakeMetrics {
	return p.metrics
}

// LogEntry is one captured log call with the logger's bound fields first.
type LogEntry struct {
	Level     observability.LogLevel
	Message   string
	Fields    []observability.Field
	Timestamp time.Time
}

// Field returns the value of the named field and whether it was present.
func (e LogEntry) Field(key string) (any, bool) {
	i := slices.IndexFunc(e.Fields, func(f observability.Field) bool { return f.Key == key })
	if i < 0 {
		return nil, false
	}
	return e.Fields[i].Value, true
}

// journal is the entry list shared by a logger and its children.
type journal struct {
	mu      sync.RWMutex
	entries []LogEntry
}

func (j *journal) append(entry LogEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) snapshot() []LogEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return slices.Clone(j.entries)
}

// FakeLogger captures all log calls. Children created with With write to the
// parent's journal.
type FakeLogger struct {
	journal *journal
	fields  []observability.Field
}

func NewFakeLogger() *FakeLogger {
	return &FakeLogger{journal: &journal{}}
}

func (l *FakeLogger) capture(level observability.LogLevel, msg string, fields []observability.Field) {
	l.journal.append(LogEntry{
		Level:     level,
		Message:   msg,
		Fields:    slices.Concat(l.fields, fields),
		Timestamp: time.Now(),
	})
}

func (l *FakeLogger) Debug(_ context.Context, msg string, fields ...observability.Field) {
	l.capture(observability.LogLevelDebug, msg, fields)
}

func (l *FakeLogger) Info(_ context.Context, msg string, fields ...observability.Field) {
	l.capture(observability.LogLevelInfo, msg, fields)
}

func (l *FakeLogger) Warn(_ context.Context, msg string, fields ...observability.Field) {
	l.capture(observability.LogLevelWarn, msg, fields)
}

func (l *FakeLogger) Error(_ context.Context, msg string, fields ...observability.Field) {
	l.capture(observability.LogLevelError, msg, fields)
}

func (l *FakeLogger) With(fields ...observability.Field) observability.Logger {
	return &FakeLogger{
		journal: l.journal,
		fields:  slices.Concat(l.fields, fields),
	}
}

// GetEntries returns a copy of every captured entry in call order.
func (l *FakeLogger) GetEntries() []LogEntry {
	return l.journal.snapshot()
}

// EntriesWithMessage returns the captured entries logged with msg.
func (l *FakeLogger) EntriesWithMessage(msg string) []LogEntry {
	var result []LogEntry
	for _, entry := range l.journal.snapshot() {
		if entry.Message == msg {
			result = append(result, entry)
		}
	}
	return result
}

// Reset clears the journal, including entries written by children.
func (l *FakeLogger) Reset() {
	l.journal.mu.Lock()
	defer l.journal.mu.Unlock()
	l.journal.entries = nil
}

// FakeMetrics hands out capturing instruments keyed by name.
type FakeMetrics struct {
	mu         sync.RWMutex
	counters   map[string]*FakeCounter
	upDowns    map[string]*FakeCounter
	histograms map[string]*FakeHistogram
	gauges     map[string]observability.GaugeCallback
}

func NewFakeMetrics() *FakeMetrics {
	return &FakeMetrics{
		counters:   make(map[string]*FakeCounter),
		upDowns:    make(map[string]*FakeCounter),
		histograms: make(map[string]*FakeHistogram),
		gauges:     make(map[string]observability.GaugeCallback),
	}
}

func lookup[I any](m *FakeMetrics, set map[string]*I, name string, create func() *I) *I {
	m.mu.Lock()
	defer m.mu.Unlock()

	if inst, ok := set[name]; ok {
		return inst
	}
	inst := create()
	set[name] = inst
	return inst
}

func find[I any](m *FakeMetrics, set map[string]*I, name string) *I {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return set[name]
}

func (m *FakeMetrics) Counter(name, description, unit string) observability.Counter {
	return lookup(m, m.counters, name, func() *FakeCounter { return &FakeCounter{Name: name} })
}

func (m *FakeMetrics) UpDownCounter(name, description, unit string) observability.UpDownCounter {
	return lookup(m, m.upDowns, name, func() *FakeCounter { return &FakeCounter{Name: name} })
}

func (m *FakeMetrics) Histogram(name, description, unit string) observability.Histogram {
	return lookup(m, m.histograms, name, func() *FakeHistogram { return &FakeHistogram{Name: name} })
}

// Gauge stores the callback so tests can sample it with GaugeValue.
func (m *FakeMetrics) Gauge(name, description, unit string, callback observability.GaugeCallback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = callback
	return nil
}

// GetCounter returns a counter by name, or nil if it was never created.
func (m *FakeMetrics) GetCounter(name string) *FakeCounter {
	return find(m, m.counters, name)
}

func (m *FakeMetrics) GetUpDownCounter(name string) *FakeCounter {
	return find(m, m.upDowns, name)
}

func (m *FakeMetrics) GetHistogram(name string) *FakeHistogram {
	return find(m, m.histograms, name)
}

// GaugeValue samples a registered gauge.
func (m *FakeMetrics) GaugeValue(ctx context.Context, name string) (float64, bool) {
	m.mu.RLock()
	callback, ok := m.gauges[name]
	m.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return callback(ctx), true
}

// Sample is a captured metric observation.
type Sample[T int64 | float64] struct {
	Value  T
	Fields []observability.Field
}

type series[T int64 | float64] struct {
	mu      sync.RWMutex
	samples []Sample[T]
}

func (s *series[T]) record(value T, fields []observability.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, Sample[T]{Value: value, Fields: fields})
}

// GetValues returns a copy of every captured sample.
func (s *series[T]) GetValues() []Sample[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.samples)
}

// FakeCounter captures counter and up-down counter changes.
type FakeCounter struct {
	series[int64]
	Name string
}

func (c *FakeCounter) Add(_ context.Context, value int64, fields ...observability.Field) {
	c.record(value, fields)
}

func (c *FakeCounter) Increment(ctx context.Context, fields ...observability.Field) {
	c.Add(ctx, 1, fields...)
}

// Total returns the sum of all captured changes.
func (c *FakeCounter) Total() int64 {
	var total int64
	for _, sample := range c.GetValues() {
		total += sample.Value
	}
	return total
}

// FakeHistogram captures recorded values.
type FakeHistogram struct {
	series[float64]
	Name string
}

func (h *FakeHistogram) Record(_ context.Context, value float64, fields ...observability.Field) {
	h.record(value, fields)
}
