package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		gatewayCallLatencyMs,
		gatewayErrorsTotal,
	)
}

var (
	gatewayCallLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_call_latency_ms",
			Help:    "Provider API call latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
		},
		[]string{"op", "success"},
	)

	gatewayErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_errors_total",
			Help: "Provider API failures by provider error code.",
		},
		[]string{"op", "code"},
	)
)

func ObserveGatewayCall(op string, latencyMs int64, success bool) {
	gatewayCallLatencyMs.WithLabelValues(norm(op), strconv.FormatBool(success)).Observe(float64(latencyMs))
}

func IncGatewayError(op, code string) {
	gatewayErrorsTotal.WithLabelValues(norm(op), code).Inc()
}
