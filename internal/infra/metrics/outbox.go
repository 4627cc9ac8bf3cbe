package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		outboxDispatchedTotal,
		outboxPending,
	)
}

var (
	outboxDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_dispatched_total",
			Help: "Outbox events handed to the publisher, by event type.",
		},
		[]string{"event"},
	)

	outboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_pending_events",
			Help: "Undispatched outbox events observed at the last dispatcher tick.",
		},
	)
)

func IncOutboxDispatched(event string) {
	outboxDispatchedTotal.WithLabelValues(norm(event)).Inc()
}

func SetOutboxPending(n int) { outboxPending.Set(float64(n)) }
