package memory

import (
	"context"
	"sync"
	"time"

	"chatbot-checkout/internal/domain/model"
	"chatbot-checkout/internal/domain/ports/repository"
)

const (
	DefaultEventLogCapacity = 10000
	DefaultDedupeWindow     = 24 * time.Hour
)

type seenEvent struct {
	count int
	first time.Time
}

// WebhookEventLog is the in-process audit log used when no database is configured.
// It keeps at most capacity rows and remembers event ids for window, whichever
// runs out first; older entries are dropped as new deliveries arrive.
type WebhookEventLog struct {
	mu       sync.Mutex
	capacity int
	window   time.Duration
	now      func() time.Time

	records []model.WebhookEventRecord // ring, oldest at next once full
	next    int
	seen    map[string]*seenEvent
	order   []string // event ids by first delivery
}

var _ repository.WebhookEventLog = (*WebhookEventLog)(nil)

func NewWebhookEventLog() *WebhookEventLog {
	return NewBoundedWebhookEventLog(DefaultEventLogCapacity, DefaultDedupeWindow)
}

func NewBoundedWebhookEventLog(capacity int, window time.Duration) *WebhookEventLog {
	if capacity <= 0 {
		capacity = DefaultEventLogCapacity
	}
	if window <= 0 {
		window = DefaultDedupeWindow
	}
	return &WebhookEventLog{
		capacity: capacity,
		window:   window,
		now:      time.Now,
		seen:     make(map[string]*seenEvent),
	}
}

func (l *WebhookEventLog) Record(ctx context.Context, tx repository.Tx, rec *model.WebhookEventRecord) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.pruneLocked(now)

	if rec.EventID != "" {
		if e, ok := l.seen[rec.EventID]; ok {
			e.count++
			return true, nil
		}
		l.seen[rec.EventID] = &seenEvent{count: 1, first: now}
		l.order = append(l.order, rec.EventID)
		l.pruneLocked(now)
	}

	if len(l.records) < l.capacity {
		l.records = append(l.records, *rec)
	} else {
		l.records[l.next] = *rec
		l.next = (l.next + 1) % l.capacity
	}
	return false, nil
}

func (l *WebhookEventLog) CountByEventID(ctx context.Context, tx repository.Tx, eventID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(l.now())
	if e, ok := l.seen[eventID]; ok {
		return e.count, nil
	}
	return 0, nil
}

// Records returns a snapshot of the retained rows, oldest first.
func (l *WebhookEventLog) Records() []model.WebhookEventRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.WebhookEventRecord, 0, len(l.records))
	out = append(out, l.records[l.next:]...)
	return append(out, l.records[:l.next]...)
}

// pruneLocked forgets event ids past the window or beyond capacity.
func (l *WebhookEventLog) pruneLocked(now time.Time) {
	for len(l.order) > 0 {
		id := l.order[0]
		e := l.seen[id]
		if len(l.order) <= l.capacity && now.Sub(e.first) < l.window {
			return
		}
		delete(l.seen, id)
		l.order[0] = ""
		l.order = l.order[1:]
	}
}
