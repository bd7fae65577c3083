package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(reconcileTotal, notificationsTotal) }

var (
	// result: patched|no_email|not_found|lookup_error|patch_error|dropped
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_reconcile_total",
			Help: "Customer record reconciliation attempts by result.",
		},
		[]string{"result"},
	)

	// status: sent|error
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operator_notifications_total",
			Help: "Operator notifications by delivery status.",
		},
		[]string{"status"},
	)
)

func IncReconcile(result string) {
	reconcileTotal.WithLabelValues(norm(result)).Inc()
}

func IncNotification(status string) {
	notificationsTotal.WithLabelValues(norm(status)).Inc()
}
