package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(webhooksTotal, WebhookDuration) }

var (
	// result: ok|unauthorized|malformed|unconfigured
	webhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_received_total",
			Help: "Provider webhook deliveries by event type and result.",
		},
		[]string{"type", "result"},
	)

	WebhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_handle_duration_seconds",
			Help:    "Duration of webhook handling in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"result"},
	)
)

func IncWebhook(eventType, result string) {
	if eventType == "" {
		eventType = "unknown"
	}
	webhooksTotal.WithLabelValues(norm(eventType), norm(result)).Inc()
}
