//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatbot-checkout/internal/config"
	"chatbot-checkout/internal/domain"
	"chatbot-checkout/internal/domain/model"
	"chatbot-checkout/internal/infra/i18n"
	"chatbot-checkout/internal/infra/worker"
	"chatbot-checkout/internal/usecase"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// --- Clock ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// --- Catalog ---

const testCheckoutBase = "https://checkout.example.com/pay"

func newTestCatalog() usecase.CatalogUseCase {
	plans, err := usecase.PlansFromConfig(config.CatalogConfig{Plans: config.DefaultPlans()}, map[string]string{
		"premium_plan": "https://checkout.example.com/premium",
	})
	if err != nil {
		panic(err)
	}
	c, err := usecase.NewCatalogUseCase(plans, usecase.CatalogOptions{
		DefaultPlanID:   "standard_monthly",
		FallbackPrice:   29700,
		CheckoutBaseURL: testCheckoutBase,
	})
	if err != nil {
		panic(err)
	}
	return c
}

// --- Messages ---

func newTestMessages() usecase.MessageCatalog {
	t, err := i18n.Default("en")
	if err != nil {
		panic(err)
	}
	return t
}

// --- Record store ---

type MockRecordStore struct {
	mu            sync.Mutex
	FindByEmailFn func(ctx context.Context, email string) (*model.CustomerRecord, error)
	PatchFn       func(ctx context.Context, recordID string, p model.RecordPatch) error
	Lookups       []string
	Patches       map[string]model.RecordPatch
}

func NewMockRecordStore(records map[string]string) *MockRecordStore {
	m := &MockRecordStore{Patches: map[string]model.RecordPatch{}}
	m.FindByEmailFn = func(ctx context.Context, email string) (*model.CustomerRecord, error) {
		if id, ok := records[email]; ok {
			return &model.CustomerRecord{ID: id, Email: email}, nil
		}
		return nil, domain.ErrNotFound
	}
	m.PatchFn = func(ctx context.Context, recordID string, p model.RecordPatch) error { return nil }
	return m
}

func (m *MockRecordStore) FindByEmail(ctx context.Context, email string) (*model.CustomerRecord, error) {
	m.mu.Lock()
	m.Lookups = append(m.Lookups, email)
	m.mu.Unlock()
	return m.FindByEmailFn(ctx, email)
}

func (m *MockRecordStore) Patch(ctx context.Context, recordID string, p model.RecordPatch) error {
	if err := m.PatchFn(ctx, recordID, p); err != nil {
		return err
	}
	m.mu.Lock()
	m.Patches[recordID] = p
	m.mu.Unlock()
	return nil
}

// --- Notifier ---

type MockNotifier struct {
	mu   sync.Mutex
	Err  error
	Sent []string
}

func (m *MockNotifier) Notify(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, text)
	return nil
}

// --- Reconciler ---

type recordingReconciler struct {
	mu    sync.Mutex
	calls []usecase.ReconcileInput
}

func (r *recordingReconciler) Reconcile(ctx context.Context, in usecase.ReconcileInput) {
	r.mu.Lock()
	r.calls = append(r.calls, in)
	r.mu.Unlock()
}

func (r *recordingReconciler) Calls() []usecase.ReconcileInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]usecase.ReconcileInput, len(r.calls))
	copy(out, r.calls)
	return out
}

// --- Task submitter ---

type MockSubmitter struct {
	Err   error
	Tasks int
}

func (m *MockSubmitter) Submit(task worker.Task) error {
	if m.Err != nil {
		return m.Err
	}
	m.Tasks++
	return task(context.Background())
}
