// Package http provides the HTTP surface of the bin collection service.
package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Upstream request metrics
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
	LastFetchTimestamp      *prometheus.GaugeVec

	// Cache metrics
	CacheResultsTotal *prometheus.CounterVec

	// Schedule metrics
	NextCollectionDays prometheus.Gauge

	// Inbound request metrics
	RequestsTotal *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		UpstreamRequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bincollection_upstream_requests_total",
				Help: "Total number of upstream requests by provider and outcome",
			},
			[]string{"provider", "status"},
		),
		UpstreamRequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bincollection_upstream_request_duration_seconds",
				Help:    "Upstream request duration in seconds, retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		LastFetchTimestamp: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bincollection_last_fetch_timestamp",
				Help: "Timestamp of the last successful upstream fetch",
			},
			[]string{"provider"},
		),
		CacheResultsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bincollection_cache_results_total",
				Help: "Schedule reads by result (fresh, live, stale, fallback)",
			},
			[]string{"result"},
		),
		NextCollectionDays: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "bincollection_next_collection_days",
				Help: "Days until the next collection as of the last read",
			},
		),
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bincollection_http_requests_total",
				Help: "Total number of API requests by endpoint and status code",
			},
			[]string{"endpoint", "code"},
		),
	}
}

// RecordUpstreamRequest records an upstream request metric.
func (m *Metrics) RecordUpstreamRequest(provider, status string, duration float64) {
	m.UpstreamRequestsTotal.WithLabelValues(provider, status).Inc()
	m.UpstreamRequestDuration.WithLabelValues(provider).Observe(duration)
}

// RecordLastFetch records the last successful fetch timestamp.
func (m *Metrics) RecordLastFetch(provider string, timestamp float64) {
	m.LastFetchTimestamp.WithLabelValues(provider).Set(timestamp)
}

// RecordCacheResult records how a schedule read was answered.
func (m *Metrics) RecordCacheResult(result string) {
	m.CacheResultsTotal.WithLabelValues(result).Inc()
}

// RecordNextCollection records the days until the next collection.
func (m *Metrics) RecordNextCollection(daysUntil float64) {
	m.NextCollectionDays.Set(daysUntil)
}

// RecordRequest records an inbound API request.
func (m *Metrics) RecordRequest(endpoint, code string) {
	m.RequestsTotal.WithLabelValues(endpoint, code).Inc()
}
