// Package metrics registers the Prometheus counters and histograms for
// HTTP and RAG/ingest latency (C15), grounded on the shape of the
// teacher pack's server metrics registration: one factory built with
// promauto.With(reg) against an injectable prometheus.Registerer so
// tests can use a fresh registry instead of the global default.
//
// Metrics is the in-memory, scrape-facing half of observability; the
// durable half (queryable by the admin api-usage endpoint) is the
// metrics_samples table, written via Recorder.Observe through
// store.InsertMetricSample.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/finrag/finrag/internal/store"
)

// Metrics holds every Prometheus metric this service exposes at
// /metrics.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpDurationSeconds *prometheus.HistogramVec
	ragQueryDuration    prometheus.Histogram
	ingestDuration      prometheus.Histogram
}

// New registers every metric against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finrag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled, partitioned by method, route, and status code.",
		}, []string{"method", "route", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "finrag",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled, partitioned by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		ragQueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "finrag",
			Subsystem: "rag",
			Name:      "query_duration_seconds",
			Help:      "Wall-clock duration of a /chat query from request receipt to answer.",
			Buckets:   []float64{.1, .25, .5, 1, 2, 5, 10, 30},
		}),

		ingestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "finrag",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a document ingest, extract through vector upsert.",
			Buckets:   []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}
}

// ObserveHTTP records one completed HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, statusLabel(code)).Inc()
	m.httpDurationSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveRAGQuery records one /chat query's duration.
func (m *Metrics) ObserveRAGQuery(elapsed time.Duration) {
	m.ragQueryDuration.Observe(elapsed.Seconds())
}

// ObserveIngest records one document ingest's duration.
func (m *Metrics) ObserveIngest(elapsed time.Duration) {
	m.ingestDuration.Observe(elapsed.Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Recorder persists per-request samples to the durable metrics_samples
// table, feeding the admin api-usage endpoint's historical queries —
// the Prometheus side above only ever reports the current process's
// in-memory state.
type Recorder struct {
	store *store.Store
}

// NewRecorder wraps a store for durable metric sample storage.
func NewRecorder(s *store.Store) *Recorder {
	return &Recorder{store: s}
}

// Observe writes one request's outcome as a durable sample.
func (r *Recorder) Observe(ctx context.Context, endpoint, method string, status int, elapsed time.Duration, userID, errMsg string) error {
	sample := store.MetricSample{
		Endpoint:  endpoint,
		Method:    method,
		Status:    status,
		ElapsedMS: elapsed.Milliseconds(),
	}
	if userID != "" {
		sample.UserID.String, sample.UserID.Valid = userID, true
	}
	if errMsg != "" {
		sample.ErrorMessage.String, sample.ErrorMessage.Valid = errMsg, true
	}
	return r.store.InsertMetricSample(ctx, sample)
}
