// Package metrics provides Prometheus instrumentation for Kestrel.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kestrel",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// TransactionsScoredTotal counts scored transactions by resulting status.
	TransactionsScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "transactions_scored_total",
			Help:      "Total transactions scored by resulting status.",
		},
		[]string{"status"},
	)

	// AlertsCreatedTotal counts alerts created by severity.
	AlertsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "alerts_created_total",
			Help:      "Total alerts created by severity.",
		},
		[]string{"severity"},
	)

	// RiskScoreDistribution observes computed risk scores.
	RiskScoreDistribution = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kestrel",
			Name:      "risk_score",
			Help:      "Distribution of computed risk scores.",
			Buckets:   []float64{0, 20, 40, 60, 80, 100},
		},
	)

	// NotificationsTotal counts alert notification deliveries by result.
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "notifications_total",
			Help:      "Total alert notifications by delivery result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TransactionsScoredTotal,
		AlertsCreatedTotal,
		RiskScoreDistribution,
		NotificationsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler for the /metrics
// endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StatusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func StatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
