//go:build !integration

package sched

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeEvictor struct {
	calls atomic.Int32
	err   error
}

func (f *fakeEvictor) EvictExpired(ctx context.Context) (int, error) {
	f.calls.Add(1)
	return 2, f.err
}

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestEvictionWorker_SweepsOnInterval(t *testing.T) {
	ev := &fakeEvictor{}
	w := NewEvictionWorker(5*time.Millisecond, ev, newTestLogger())
	w.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for ev.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()
	if ev.calls.Load() < 2 {
		t.Fatalf("sweep ran %d times", ev.calls.Load())
	}
}

func TestEvictionWorker_RunOnceReportsErrors(t *testing.T) {
	boom := errors.New("boom")
	w := NewEvictionWorker(time.Hour, &fakeEvictor{err: boom}, newTestLogger())
	n, err := w.RunOnce(context.Background())
	if !errors.Is(err, boom) || n != 2 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestEvictionWorker_StopWithoutStart(t *testing.T) {
	w := NewEvictionWorker(time.Hour, &fakeEvictor{}, newTestLogger())
	w.Stop()
}
