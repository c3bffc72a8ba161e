package shopapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK          = "ok"
	outcomeClientError = "client_error"
	outcomeServerError = "server_error"
	outcomeTransport   = "transport_error"
	outcomeRejected    = "rejected"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basket_api_requests_total",
			Help: "API requests issued by the client, by route and outcome.",
		},
		[]string{"route", "outcome"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "basket_api_request_duration_seconds",
			Help:    "Latency of API requests, by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "basket_api_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"name"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, breakerState)
}

func observeRequest(route, outcome string, start time.Time) {
	requestsTotal.WithLabelValues(route, outcome).Inc()
	requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}
