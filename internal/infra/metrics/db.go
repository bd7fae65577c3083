package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolStats, eventLogWritesTotal) }

var (
	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Current state of the database connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)

	eventLogWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_event_log_writes_total",
			Help: "Webhook audit log writes by result (stored/duplicate/error).",
		},
		[]string{"result"},
	)
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}

func IncEventLogWrite(result string) {
	eventLogWritesTotal.WithLabelValues(norm(result)).Inc()
}
