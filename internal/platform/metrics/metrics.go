// Package metrics registers the Prometheus instruments for the sales flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	SessionsStarted    prometheus.Counter
	TurnsProcessed     prometheus.Counter
	QuotesComputed     prometheus.Counter
	RatingErrors       *prometheus.CounterVec
	SessionsDeclined   prometheus.Counter
	SessionsExpired    prometheus.Counter
	PoliciesIssued     prometheus.Counter
	ResponderFallbacks prometheus.Counter
	TurnDuration       prometheus.Histogram
	RequestDuration    *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics against the given
// registerer. Tests pass a fresh registry; main passes the default one.
func New(reg prometheus.Registerer) *Metrics {
	promauto := promauto.With(reg)
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lifeshield_sessions_started_total",
			Help: "Total number of applicant sessions started",
		}),
		TurnsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lifeshield_turns_processed_total",
			Help: "Total number of conversation turns processed",
		}),
		QuotesComputed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lifeshield_quotes_computed_total",
			Help: "Total number of premium quotes computed",
		}),
		RatingErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeshield_rating_errors_total",
			Help: "Premium calculator rejections by reason",
		}, []string{"reason"}),
		SessionsDeclined: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lifeshield_sessions_declined_total",
			Help: "Sessions routed to the terminal declined stage",
		}),
		SessionsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lifeshield_sessions_expired_total",
			Help: "Sessions archived by the TTL sweeper",
		}),
		PoliciesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lifeshield_policies_issued_total",
			Help: "Sessions that reached the active policy stage",
		}),
		ResponderFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lifeshield_responder_fallbacks_total",
			Help: "Turns answered with the static fallback reply",
		}),
		TurnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifeshield_turn_duration_seconds",
			Help:    "Latency of ProcessTurn excluding transport",
			Buckets: prometheus.DefBuckets,
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lifeshield_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}
