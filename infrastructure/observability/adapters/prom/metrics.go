// Package prom implements the observability Metrics port with Prometheus
// client primitives. Metric names like "fs.put.bytes" are normalized to
// Prometheus conventions ("{service}_fs_put_bytes").
package prom

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"blobstore/domain/observability"
)

// sizeBuckets suit payload histograms: 1KB through 1GB, exponential.
var sizeBuckets = prometheus.ExponentialBuckets(1024, 10, 7)

// Metrics lazily creates one collector per metric name. WithTags derivatives
// share the collector registry, so tag keys must be stable per name — which
// holds for the storage adapters' fixed call sites.
type Metrics struct {
	reg      *registry
	baseTags map[string]string
}

type registry struct {
	mu          sync.Mutex
	serviceName string
	registerer  prometheus.Registerer
	counters    map[string]*prometheus.CounterVec
	histograms  map[string]*prometheus.HistogramVec
	gauges      map[string]*prometheus.GaugeVec
}

// New creates a Metrics registered on the default Prometheus registry.
func New(serviceName string) *Metrics {
	return NewWithRegisterer(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a Metrics on a caller-owned registry, which
// tests use to avoid duplicate-registration panics.
func NewWithRegisterer(serviceName string, reg prometheus.Registerer) *Metrics {
	return &Metrics{
		reg: &registry{
			serviceName: serviceName,
			registerer:  reg,
			counters:    make(map[string]*prometheus.CounterVec),
			histograms:  make(map[string]*prometheus.HistogramVec),
			gauges:      make(map[string]*prometheus.GaugeVec),
		},
	}
}

func (m *Metrics) IncrementCounter(name string, tags map[string]string) {
	tags = m.merged(tags)
	r := m.reg
	r.mu.Lock()
	vec, ok := r.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: r.promName(name),
			Help: "Counter for " + name,
		}, keysOf(tags))
		r.registerer.MustRegister(vec)
		r.counters[name] = vec
	}
	r.mu.Unlock()
	vec.With(tags).Inc()
}

func (m *Metrics) RecordHistogram(name string, value float64, tags map[string]string) {
	tags = m.merged(tags)
	r := m.reg
	r.mu.Lock()
	vec, ok := r.histograms[name]
	if !ok {
		buckets := prometheus.DefBuckets
		if strings.HasSuffix(name, ".bytes") || strings.HasSuffix(name, ".size") {
			buckets = sizeBuckets
		}
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    r.promName(name),
			Help:    "Histogram for " + name,
			Buckets: buckets,
		}, keysOf(tags))
		r.registerer.MustRegister(vec)
		r.histograms[name] = vec
	}
	r.mu.Unlock()
	vec.With(tags).Observe(value)
}

func (m *Metrics) RecordGauge(name string, value float64, tags map[string]string) {
	tags = m.merged(tags)
	r := m.reg
	r.mu.Lock()
	vec, ok := r.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: r.promName(name),
			Help: "Gauge for " + name,
		}, keysOf(tags))
		r.registerer.MustRegister(vec)
		r.gauges[name] = vec
	}
	r.mu.Unlock()
	vec.With(tags).Set(value)
}

// WithTags returns a Metrics sharing the collectors but carrying extra
// default tags.
func (m *Metrics) WithTags(tags map[string]string) observability.Metrics {
	merged := make(map[string]string, len(m.baseTags)+len(tags))
	for k, v := range m.baseTags {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	return &Metrics{reg: m.reg, baseTags: merged}
}

func (m *Metrics) merged(tags map[string]string) map[string]string {
	out := make(map[string]string, len(m.baseTags)+len(tags))
	for k, v := range m.baseTags {
		out[k] = v
	}
	for k, v := range tags {
		out[k] = v
	}
	return out
}

func (r *registry) promName(name string) string {
	cleaned := strings.NewReplacer(".", "_", "-", "_").Replace(name)
	if r.serviceName == "" {
		return cleaned
	}
	return r.serviceName + "_" + cleaned
}

func keysOf(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	return keys
}
