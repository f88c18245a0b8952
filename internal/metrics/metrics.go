// Package metrics exposes kopilka's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kopilka"

// Metrics holds every collector the service records into. A single instance
// is created at startup and threaded through the HTTP layer.
type Metrics struct {
	RequestsTotal  *prometheus.CounterVec
	LoginsTotal    *prometheus.CounterVec
	SessionsIssued prometheus.Counter
	GateRedirects  *prometheus.CounterVec
	RequestSeconds *prometheus.HistogramVec
}

// New registers kopilka's collectors with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status class",
		}, []string{"method", "status"}),

		LoginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome; failures feed brute-force alerting",
		}, []string{"status"}),

		SessionsIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_issued_total",
			Help:      "Session tokens minted",
		}),

		GateRedirects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_redirects_total",
			Help:      "Perimeter gate redirects by reason (missing or malformed token)",
		}, []string{"reason"}),

		RequestSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Request latency by route pattern",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Login outcome labels.
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
)

// Gate redirect reasons.
const (
	RedirectMissingToken   = "missing_token"
	RedirectMalformedToken = "malformed_token"
)
