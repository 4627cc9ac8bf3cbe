package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		paymentsCanceledTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment transitions by resulting status (ready/done/aborted/canceled/partial_canceled).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "Total monetary value of confirmed payments, labeled by method.",
		},
		[]string{"method"},
	)

	paymentsCanceledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_canceled_amount_total",
			Help: "Total monetary value refunded, labeled by full vs partial.",
		},
		[]string{"kind"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(method string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(method)).Add(float64(amount))
}

func AddCanceledAmount(kind string, amount int64) {
	paymentsCanceledTotal.WithLabelValues(norm(kind)).Add(float64(amount))
}
