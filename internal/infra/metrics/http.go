package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(httpRequestsTotal) }

var httpRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route pattern, method and status code class.",
	},
	[]string{"route", "method", "code"},
)

func IncHTTPRequest(route, method, code string) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(route, method, code).Inc()
}
