package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"chatbot-checkout/internal/infra/api/apiv1"
)

type RouterOptions struct {
	RequestTimeout time.Duration
	CORSOrigins    []string

	// Limiter is optional; without it no rate limit applies.
	Limiter        Limiter
	LimiterKey     func(ip, route string) string
	RateLimit      int
	RateWindow     time.Duration
	TrustedProxies TrustedProxies
}

// NewRouter builds the public router: middleware stack, API routes, health and metrics.
func NewRouter(srv *apiv1.Server, opts RouterOptions, logger *zerolog.Logger) *chi.Mux {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.LimiterKey == nil {
		opts.LimiterKey = func(ip, route string) string { return "rate_limit:" + route + ":" + ip }
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}

	r := chi.NewRouter()
	r.Use(
		TraceID(logger),
		RequestLog(logger),
		Recover(logger),
		SecurityHeaders(),
		CORS(opts.CORSOrigins),
		Timeout(opts.RequestTimeout),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(opts.Limiter, opts.TrustedProxies, opts.LimiterKey, opts.RateLimit, opts.RateWindow, logger))
		apiv1.RegisterAPIV1(r, srv)
	})
	apiv1.RegisterWebhooks(r, srv)
	return r
}
