// Package prometheus implements observability.Metrics on top of the Prometheus
// client. Instrument names are converted to Prometheus conventions: dots become
// underscores and counters get the _total suffix.
package prometheus

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JailtonJunior94/instana-exporter/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ observability.Metrics = (*Metrics)(nil)

// Metrics creates Prometheus collectors on demand and registers them on first use.
// The label set of an instrument is fixed by its first observation; later
// observations fill missing labels with an empty value and ignore unknown ones.
type Metrics struct {
	registerer prometheus.Registerer
	namespace  string
	buckets    []float64

	mu          sync.Mutex
	instruments map[string]*instrument
}

// Option configures Metrics.
type Option func(*Metrics)

// WithNamespace prefixes every metric name.
func WithNamespace(namespace string) Option {
	return func(m *Metrics) {
		m.namespace = namespace
	}
}

// WithBuckets sets the histogram buckets. Defaults to prometheus.DefBuckets scaled
// to milliseconds.
func WithBuckets(buckets ...float64) Option {
	return func(m *Metrics) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// NewMetrics creates Metrics registering on registerer. A nil registerer uses
// prometheus.DefaultRegisterer.
func NewMetrics(registerer prometheus.Registerer, opts ...Option) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registerer:  registerer,
		buckets:     []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		instruments: make(map[string]*instrument),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler serves the metrics of gatherer in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{Timeout: 10 * time.Second})
}

type kind int

const (
	kindCounter kind = iota
	kindUpDown
	kindHistogram
)

func (m *Metrics) Counter(name, description, unit string) observability.Counter {
	return m.instrument(kindCounter, name, description)
}

func (m *Metrics) UpDownCounter(name, description, unit string) observability.UpDownCounter {
	return m.instrument(kindUpDown, name, description)
}

func (m *Metrics) Histogram(name, description, unit string) observability.Histogram {
	return m.instrument(kindHistogram, name, description)
}

func (m *Metrics) Gauge(name, description, unit string, callback observability.GaugeCallback) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      metricName(name),
		Help:      help(description, name),
	}, func() float64 {
		return callback(context.Background())
	})

	if err := m.registerer.Register(gauge); err != nil {
		return fmt.Errorf("failed to register gauge %s: %w", name, err)
	}
	return nil
}

func (m *Metrics) instrument(k kind, name, description string) *instrument {
	m.mu.Lock()
	defer m.mu.Unlock()

	if inst, ok := m.instruments[name]; ok {
		return inst
	}

	inst := &instrument{metrics: m, kind: k, name: name, help: help(description, name)}
	m.instruments[name] = inst
	return inst
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_").Replace(name)
}

func help(description, name string) string {
	if description == "" {
		return name
	}
	return description
}

type instrument struct {
	metrics *Metrics
	kind    kind
	name    string
	help    string

	once   sync.Once
	err    error
	labels []string

	counter   *prometheus.CounterVec
	gauge     *prometheus.GaugeVec
	histogram *prometheus.HistogramVec
}

func (i *instrument) init(fields []observability.Field) error {
	i.once.Do(func() {
		i.labels = make([]string, 0, len(fields))
		for _, f := range fields {
			i.labels = append(i.labels, metricName(f.Key))
		}
		slices.Sort(i.labels)
		i.labels = slices.Compact(i.labels)

		var collector prometheus.Collector
		switch i.kind {
		case kindCounter:
			i.counter = prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: i.metrics.namespace,
				Name:      strings.TrimSuffix(metricName(i.name), "_total") + "_total",
				Help:      i.help,
			}, i.labels)
			collector = i.counter
		case kindUpDown:
			i.gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: i.metrics.namespace,
				Name:      metricName(i.name),
				Help:      i.help,
			}, i.labels)
			collector = i.gauge
		case kindHistogram:
			i.histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: i.metrics.namespace,
				Name:      metricName(i.name),
				Help:      i.help,
				Buckets:   i.metrics.buckets,
			}, i.labels)
			collector = i.histogram
		}

		if err := i.metrics.registerer.Register(collector); err != nil {
			i.err = fmt.Errorf("failed to register %s: %w", i.name, err)
		}
	})
	return i.err
}

func (i *instrument) labelValues(fields []observability.Field) prometheus.Labels {
	values := make(prometheus.Labels, len(i.labels))
	for _, label := range i.labels {
		values[label] = ""
	}
	for _, f := range fields {
		key := metricName(f.Key)
		if _, ok := values[key]; ok {
			values[key] = labelValue(f.Value)
		}
	}
	return values
}

func labelValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case error:
		return val.Error()
	default:
		return fmt.Sprint(val)
	}
}

func (i *instrument) Add(_ context.Context, value int64, fields ...observability.Field) {
	if i.init(fields) != nil {
		return
	}

	labels := i.labelValues(fields)
	switch i.kind {
	case kindCounter:
		if value > 0 {
			i.counter.With(labels).Add(float64(value))
		}
	case kindUpDown:
		i.gauge.With(labels).Add(float64(value))
	}
}

func (i *instrument) Increment(ctx context.Context, fields ...observability.Field) {
	i.Add(ctx, 1, fields...)
}

func (i *instrument) Record(_ context.Context, value float64, fields ...observability.Field) {
	if i.init(fields) != nil || i.histogram == nil {
		return
	}
	i.histogram.With(i.labelValues(fields)).Observe(value)
}
