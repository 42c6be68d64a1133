package payments

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the payment gateway.
type Metrics struct {
	FacilitatorRequests *prometheus.CounterVec
	FacilitatorDuration *prometheus.HistogramVec
	PaymentsCompleted   *prometheus.CounterVec
}

// NewMetrics creates and registers the gateway metrics on the default
// registry. Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		FacilitatorRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "x402_facilitator_requests_total",
				Help: "Facilitator round trips by endpoint and result",
			},
			[]string{"endpoint", "result"}, // result: ok, rejected, unreachable
		),

		FacilitatorDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "x402_facilitator_request_duration_seconds",
				Help:    "Facilitator round trip latency",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"endpoint"},
		),

		PaymentsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "x402_payments_completed_total",
				Help: "Verified payments by source type (tip, message, subscription, marketplace)",
			},
			[]string{"source_type"},
		),
	}
}
