package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QueryMetrics instruments the read-only query API.
type QueryMetrics struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	rateLimited prometheus.Counter
}

var (
	queryOnce     sync.Once
	queryRegistry *QueryMetrics
)

// Query returns the process-wide query API metrics, registering the
// collectors on first use.
func Query() *QueryMetrics {
	queryOnce.Do(func() {
		queryRegistry = &QueryMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "attest_query_requests_total",
				Help: "Count of query API requests by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "attest_query_duration_seconds",
				Help:    "Query API request latency by route.",
				Buckets: prometheus.DefBuckets,
			}, []string{"route"}),
			rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "attest_query_rate_limited_total",
				Help: "Number of query API requests rejected by the rate limiter.",
			}),
		}
		prometheus.MustRegister(
			queryRegistry.requests,
			queryRegistry.latency,
			queryRegistry.rateLimited,
		)
	})
	return queryRegistry
}

// ObserveRequest records one served request.
func (m *QueryMetrics) ObserveRequest(route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, status).Inc()
	m.latency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// IncRateLimited records one request rejected by the rate limiter.
func (m *QueryMetrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
