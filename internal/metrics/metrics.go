// Package metrics holds the Prometheus instruments for sync runs, the source
// cache and feed reads.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "opportunity_hunter"

// Metrics is safe to use as a nil pointer; every Record method is then a no-op.
type Metrics struct {
	gatherer prometheus.Gatherer

	syncRuns     *prometheus.CounterVec
	syncDuration prometheus.Histogram
	upserts      *prometheus.CounterVec
	fetchErrors  *prometheus.CounterVec
	cacheEvents  *prometheus.CounterVec
	feedQueries  *prometheus.CounterVec
}

// New registers the instruments on a fresh registry. Go runtime and process
// collectors are included so /metrics is useful on its own.
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync runs by outcome.",
		}, []string{"outcome"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of sync runs in seconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upserts_total",
			Help:      "Persisted opportunities by source and result.",
		}, []string{"source", "result"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Provider fetch errors by source.",
		}, []string{"source"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_cache_events_total",
			Help:      "Source cache lookups by cache name and event.",
		}, []string{"cache", "event"}),
		feedQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_queries_total",
			Help:      "Feed queries by sort policy.",
		}, []string{"sort"}),
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.syncRuns, m.syncDuration, m.upserts, m.fetchErrors, m.cacheEvents, m.feedQueries,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordSync(duration time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(outcome).Inc()
	m.syncDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordUpsert(source, result string) {
	if m == nil {
		return
	}
	m.upserts.WithLabelValues(source, result).Inc()
}

func (m *Metrics) RecordFetchError(source string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordCacheEvent(cache, event string) {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues(cache, event).Inc()
}

func (m *Metrics) RecordFeedQuery(sort string) {
	if m == nil {
		return
	}
	m.feedQueries.WithLabelValues(sort).Inc()
}
