package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is one periodic unit of work. RunOnce reports how many items it handled.
type Job interface {
	Name() string
	RunOnce(ctx context.Context) (int, error)
}

// Scheduler periodically runs a Job on its own goroutine.
type Scheduler struct {
	interval   time.Duration
	runTimeout time.Duration
	job        Job
	log        *zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler constructs a scheduler that runs job every interval.
// If interval <= 0 it defaults to 1 minute.
func NewScheduler(interval time.Duration, job Job, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	timeout := interval
	if timeout > 30*time.Second {
		timeout = 30 * time.Second
	}
	l := logger.With().Str("component", "Scheduler").Str("job", job.Name()).Logger()
	return &Scheduler{interval: interval, runTimeout: timeout, job: job, log: &l}
}

// Start begins the loop in a background goroutine. Calling Start while
// running has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopping")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()
	n, err := s.job.RunOnce(runCtx)
	if err != nil {
		s.log.Error().Err(err).Msg("job run failed")
		return
	}
	if n > 0 {
		s.log.Debug().Int("count", n).Msg("job run finished")
	}
}

// Stop cancels the loop and waits for it to finish. It is idempotent and the
// scheduler may be started again afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info().Msg("scheduler stopped")
}
