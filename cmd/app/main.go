// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"chatbot-checkout/internal/config"
	"chatbot-checkout/internal/domain/ports/adapter"
	"chatbot-checkout/internal/domain/ports/repository"
	"chatbot-checkout/internal/infra/adapters/airtable"
	tele "chatbot-checkout/internal/infra/adapters/telegram"
	"chatbot-checkout/internal/infra/api"
	"chatbot-checkout/internal/infra/api/apiv1"
	pg "chatbot-checkout/internal/infra/db/postgres"
	httpapi "chatbot-checkout/internal/infra/http"
	"chatbot-checkout/internal/infra/i18n"
	"chatbot-checkout/internal/infra/logging"
	"chatbot-checkout/internal/infra/memory"
	"chatbot-checkout/internal/infra/metrics"
	red "chatbot-checkout/internal/infra/redis"
	"chatbot-checkout/internal/infra/sched"
	"chatbot-checkout/internal/infra/scheduler"
	"chatbot-checkout/internal/infra/security"
	"chatbot-checkout/internal/infra/worker"
	"chatbot-checkout/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted emails)")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	// A missing .env is normal outside local development.
	_ = godotenv.Load(*envFile)

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		bootLogger().Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Payment.Environment)

	active := cfg.Payment.Active()
	logger.Info().
		Str("environment", cfg.Payment.Environment).
		Bool("webhook_secret", active.WebhookSecret != "").
		Msg("payment environment selected")

	// ---- Catalog ----
	plans, err := usecase.PlansFromConfig(cfg.Catalog, active.PlanLinks)
	if err != nil {
		logger.Fatal().Err(err).Msg("catalog")
	}
	catalogUC, err := usecase.NewCatalogUseCase(plans, usecase.CatalogOptions{
		DefaultPlanID:   cfg.Catalog.DefaultPlan,
		FallbackPrice:   cfg.Catalog.FallbackPrice,
		CheckoutBaseURL: active.CheckoutURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("catalog")
	}

	// ---- Redis (optional unless it backs sessions) ----
	var redisClient *red.Client
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			if cfg.Session.Backend == "redis" {
				logger.Fatal().Err(err).Msg("redis")
			}
			logger.Warn().Err(err).Msg("redis unavailable; rate limiting disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	// ---- Session store ----
	var store repository.SessionStore
	switch cfg.Session.Backend {
	case "redis":
		store = red.NewSessionStore(redisClient)
	default:
		store = memory.NewSessionStore()
	}
	logger.Info().Str("backend", cfg.Session.Backend).Dur("ttl", cfg.Session.TTL).Msg("session store ready")

	// ---- Webhook event log (postgres when configured) ----
	var events repository.WebhookEventLog
	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		pool, err = pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("postgres schema")
		}
		events = pg.NewWebhookEventRepo(pool)
	} else {
		events = memory.NewWebhookEventLog()
		logger.Info().Msg("no database configured; webhook audit log kept in memory")
	}

	// ---- Reconciliation collaborators ----
	var records adapter.RecordStore
	if cfg.Airtable.Enabled() {
		rs, err := airtable.NewRecordStore(cfg.Airtable)
		if err != nil {
			logger.Fatal().Err(err).Msg("airtable")
		}
		records = rs
	} else {
		logger.Warn().Msg("airtable not configured; customer records will not be updated")
	}

	var notifier adapter.Notifier
	if cfg.Telegram.Enabled() {
		n, err := tele.NewNotifier(cfg.Telegram)
		if err != nil {
			logger.Error().Err(err).Msg("telegram notifier unavailable; logging notifications instead")
			notifier = tele.NewNoopNotifier(logger)
		} else {
			notifier = n
		}
	} else {
		notifier = tele.NewNoopNotifier(logger)
	}

	messages, err := i18n.Default(cfg.Telegram.Language)
	if err != nil {
		logger.Fatal().Err(err).Str("language", cfg.Telegram.Language).Msg("i18n")
	}

	// ---- Use cases ----
	sessionUC := usecase.NewSessionUseCase(store, catalogUC, usecase.SessionOptions{
		TTL:             cfg.Session.TTL,
		AmountTolerance: cfg.Session.AmountTolerance,
		RedirectURL:     cfg.Payment.RedirectURL,
	}, logger)

	reconcilePool := worker.NewPool(cfg.Reconcile.Workers, cfg.Reconcile.QueueSize, logger)
	reconcilePool.Start(ctx)
	reconcileUC := usecase.NewAsyncReconciler(
		usecase.NewReconcileUseCase(records, notifier, messages, cfg.Runtime.Dev, logger),
		reconcilePool, cfg.Reconcile.Timeout, logger,
	)

	webhookUC := usecase.NewWebhookUseCase(security.NewSignatureVerifier(), sessionUC, reconcileUC, events, usecase.WebhookOptions{
		Environment:     cfg.Payment.Environment,
		Secret:          active.WebhookSecret,
		SignatureHeader: cfg.Payment.SignatureHeader,
		Dev:             cfg.Runtime.Dev,
	}, logger)

	// ---- Background jobs ----
	evictor := sched.NewEvictionWorker(cfg.Session.SweepInterval, sessionUC, logger)
	evictor.Start(ctx)

	var poolStats *scheduler.Scheduler
	if pool != nil {
		poolStats = scheduler.NewScheduler(30*time.Second, pg.NewPoolStatsJob(pool), logger)
		poolStats.Start(ctx)
	}

	// ---- HTTP ----
	proxies, err := api.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Fatal().Err(err).Msg("server.trusted_proxies")
	}
	auth := apiv1.NewInternalAuth(cfg.InternalAuth.JWTSecret, cfg.InternalAuth.Issuer, cfg.Payment.IsProduction(), logger)
	opts := api.RouterOptions{
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateWindow:     time.Minute,
		LimiterKey:     red.ClientRouteKey,
		TrustedProxies: proxies,
	}
	if redisClient != nil {
		opts.Limiter = red.NewRateLimiter(redisClient)
	}
	router := api.NewRouter(apiv1.NewServer(sessionUC, catalogUC, webhookUC, auth, logger), opts, logger)
	server := httpapi.NewServer(cfg.Server.Port, router, logger)

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigc:
		logger.Info().Str("signal", sig.String()).Msg("shutdown requested")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	evictor.Stop()
	if poolStats != nil {
		poolStats.Stop()
	}
	// Drains queued reconciliations before the stores close.
	reconcilePool.Stop()
	cancel()
	logger.Info().Msg("bye")
}

func bootLogger() *zerolog.Logger {
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	return &l
}
