package api

import "github.com/prometheus/client_golang/prometheus"

var (
	gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docury_gateway_requests_total",
			Help: "Forwarded gateway requests by endpoint and relayed status code.",
		},
		[]string{"endpoint", "code"},
	)

	gatewayRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docury_gateway_rejected_total",
			Help: "Requests answered locally without contacting the backend.",
		},
		[]string{"endpoint"},
	)

	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docury_gateway_backend_duration_seconds",
			Help:    "Time spent waiting on the RAG backend.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(gatewayRequests)
	prometheus.MustRegister(gatewayRejected)
	prometheus.MustRegister(gatewayDuration)
}
