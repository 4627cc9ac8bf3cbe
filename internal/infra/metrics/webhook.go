package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		webhookRetriesTotal,
		webhookFailuresTotal,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook deliveries by event type and outcome (applied/noop/dropped/error).",
		},
		[]string{"event", "outcome"},
	)

	webhookRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_job_retries_total",
			Help: "Webhook worker retry attempts after a processing failure.",
		},
	)

	// Exhausted retries are invisible to the provider (ingress always answers
	// 200), so this counter is the alerting hook for manual reconciliation.
	webhookFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_job_failures_total",
			Help: "Webhook jobs that exhausted all retry attempts.",
		},
	)
)

func IncWebhookEvent(event, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(event), norm(outcome)).Inc()
}

func IncWebhookRetry() { webhookRetriesTotal.Inc() }

func IncWebhookFailure() { webhookFailuresTotal.Inc() }
