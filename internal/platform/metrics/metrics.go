// Package metrics provides Prometheus metrics for the price cache.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"price_backend/internal/feature/prices/domain/entity"
	"price_backend/internal/feature/prices/usecase"
)

// Metrics holds the cache counters and the registry they are registered with.
type Metrics struct {
	registry *prometheus.Registry

	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	UpstreamFetches    *prometheus.CounterVec
	CacheWriteFailures *prometheus.CounterVec
}

var _ usecase.Recorder = (*Metrics)(nil)

// New creates a Metrics instance on its own registry. If namespace is empty, it uses "price_backend".
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "price_backend"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache reads served without contacting the provider",
		}, []string{"granularity"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache reads that fell through to a refresh",
		}, []string{"granularity", "reason"}),
		UpstreamFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "fetches_total",
			Help:      "Provider calls by outcome",
		}, []string{"outcome"}),
		CacheWriteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "write_failures_total",
			Help:      "Cache writes that failed and were dropped",
		}, []string{"op"}),
	}
}

func (m *Metrics) CacheHit(g entity.Granularity) {
	m.CacheHits.WithLabelValues(string(g)).Inc()
}

func (m *Metrics) CacheMiss(g entity.Granularity, reason string) {
	m.CacheMisses.WithLabelValues(string(g), reason).Inc()
}

func (m *Metrics) UpstreamFetch(outcome string) {
	m.UpstreamFetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CacheWriteFailure(op string) {
	m.CacheWriteFailures.WithLabelValues(op).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
