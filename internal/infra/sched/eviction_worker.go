package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"chatbot-checkout/internal/infra/metrics"
	"chatbot-checkout/internal/infra/scheduler"
)

// Evictor is satisfied by usecase.SessionUseCase.
type Evictor interface {
	EvictExpired(ctx context.Context) (int, error)
}

// EvictionWorker periodically removes expired payment sessions. Reads already
// treat expired sessions as gone, so the sweep only reclaims memory.
type EvictionWorker struct {
	evictor Evictor
	sched   *scheduler.Scheduler
	log     *zerolog.Logger
}

func NewEvictionWorker(interval time.Duration, evictor Evictor, logger *zerolog.Logger) *EvictionWorker {
	l := logger.With().Str("component", "EvictionWorker").Logger()
	w := &EvictionWorker{evictor: evictor, log: &l}
	w.sched = scheduler.NewScheduler(interval, w, logger)
	return w
}

func (w *EvictionWorker) Name() string { return "session_eviction" }

func (w *EvictionWorker) RunOnce(ctx context.Context) (int, error) {
	n, err := w.evictor.EvictExpired(ctx)
	metrics.AddSessionsEvicted(n)
	if n > 0 {
		w.log.Info().Int("count", n).Msg("expired sessions evicted")
	}
	return n, err
}

func (w *EvictionWorker) Start(ctx context.Context) { w.sched.Start(ctx) }

func (w *EvictionWorker) Stop() { w.sched.Stop() }
