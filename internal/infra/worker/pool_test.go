//go:build !integration

package worker

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestPool_RunsSubmittedTasks(t *testing.T) {
	p := NewPool(2, 8, newTestLogger())
	p.Start(context.Background())

	var n atomic.Int32
	for i := 0; i < 5; i++ {
		if err := p.Submit(func(ctx context.Context) error {
			n.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	p.Stop()

	if got := n.Load(); got != 5 {
		t.Fatalf("ran %d tasks, want 5", got)
	}
}

func TestPool_QueueFull(t *testing.T) {
	// not started: nothing consumes the queue
	p := NewPool(1, 1, newTestLogger())
	noop := func(ctx context.Context) error { return nil }

	if err := p.Submit(noop); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if err := p.Submit(noop); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second Submit err = %v, want ErrQueueFull", err)
	}
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(1, 1, newTestLogger())
	p.Start(context.Background())
	p.Stop()
	p.Stop()

	if err := p.Submit(func(ctx context.Context) error { return nil }); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestPool_SurvivesPanickingTask(t *testing.T) {
	p := NewPool(1, 4, newTestLogger())
	p.Start(context.Background())

	done := make(chan struct{})
	_ = p.Submit(func(ctx context.Context) error { panic("boom") })
	_ = p.Submit(func(ctx context.Context) error { close(done); return nil })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second task never ran")
	}
	p.Stop()
}
