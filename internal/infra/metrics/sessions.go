package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		sessionsCreatedTotal,
		sessionTransitionsTotal,
		sessionsEvictedTotal,
		amountMismatchTotal,
		sessionStoreConflictsTotal,
	)
}

var (
	sessionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_sessions_created_total",
			Help: "Payment sessions created, by plan category.",
		},
		[]string{"category"},
	)

	// result: applied|noop|rejected
	sessionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_session_transitions_total",
			Help: "Session status updates by target status and result.",
		},
		[]string{"status", "result"},
	)

	sessionsEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_sessions_evicted_total",
			Help: "Expired payment sessions removed by the sweep.",
		},
	)

	amountMismatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_session_amount_mismatch_total",
			Help: "Sessions created with an amount that differs from the catalog price.",
		},
		[]string{"plan"},
	)

	sessionStoreConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_session_store_conflicts_total",
			Help: "Optimistic transaction retries in the shared session store.",
		},
	)
)

func IncSessionCreated(category string) {
	sessionsCreatedTotal.WithLabelValues(norm(category)).Inc()
}

func IncSessionTransition(status, result string) {
	sessionTransitionsTotal.WithLabelValues(norm(status), norm(result)).Inc()
}

func AddSessionsEvicted(n int) {
	if n > 0 {
		sessionsEvictedTotal.Add(float64(n))
	}
}

func IncAmountMismatch(plan string) {
	amountMismatchTotal.WithLabelValues(norm(plan)).Inc()
}

func IncSessionStoreConflict() {
	sessionStoreConflictsTotal.Inc()
}
