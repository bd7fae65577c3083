// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chatbot-checkout/internal/domain"
	"chatbot-checkout/internal/domain/model"
	"chatbot-checkout/internal/domain/ports/adapter"
	"chatbot-checkout/internal/infra/logging"
	"chatbot-checkout/internal/infra/metrics"
	"chatbot-checkout/internal/infra/worker"
)

var (
	_ ReconcileUseCase = (*reconcileUC)(nil)
	_ ReconcileUseCase = (*AsyncReconciler)(nil)
)

// ReconcileUseCase mirrors a payment outcome into the external customer record.
// It never reports failure to the caller; problems are logged and counted.
type ReconcileUseCase interface {
	Reconcile(ctx context.Context, in ReconcileInput)
}

type ReconcileInput struct {
	Email      string
	SessionID  string
	ProviderID string
	Status     model.RecordStatus
	PlanID     string
	Amount     int64
	Currency   string
	Savings    int64
}

// MessageCatalog renders operator-facing text; satisfied by i18n.Translator.
type MessageCatalog interface {
	T(key string, args ...interface{}) string
}

type reconcileUC struct {
	records  adapter.RecordStore
	notifier adapter.Notifier
	messages MessageCatalog
	now      func() time.Time
	dev      bool
	log      *zerolog.Logger
}

// NewReconcileUseCase accepts a nil record store or notifier when that
// collaborator is not configured.
func NewReconcileUseCase(records adapter.RecordStore, notifier adapter.Notifier, messages MessageCatalog, dev bool, logger *zerolog.Logger) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUseCase").Logger()
	return &reconcileUC{records: records, notifier: notifier, messages: messages, now: time.Now, dev: dev, log: &l}
}

func (u *reconcileUC) Reconcile(ctx context.Context, in ReconcileInput) {
	log := logging.With(ctx, u.log)
	email := strings.TrimSpace(in.Email)
	if email == "" {
		metrics.IncReconcile("no_email")
		log.Debug().Str("status", string(in.Status)).Msg("no customer email; skipping record update")
		return
	}
	redacted := logging.Redact(email, u.dev)

	if u.records != nil {
		u.patchRecord(ctx, log, email, redacted, in)
	}
	u.notify(ctx, log, redacted, in)
}

func (u *reconcileUC) patchRecord(ctx context.Context, log *zerolog.Logger, email, redacted string, in ReconcileInput) {
	rec, err := u.records.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.IncReconcile("not_found")
		log.Info().Str("email", redacted).Msg("no customer record for email")
		return
	}
	if err != nil {
		metrics.IncReconcile("lookup_error")
		log.Error().Err(err).Str("email", redacted).Msg("customer record lookup failed")
		return
	}

	patch := model.RecordPatch{
		PaymentStatus: in.Status,
		PaymentID:     in.ProviderID,
		PaymentDate:   u.now(),
		Lifecycle:     in.Status.Lifecycle(),
		SessionID:     in.SessionID,
		Savings:       in.Savings,
	}
	if err := u.records.Patch(ctx, rec.ID, patch); err != nil {
		metrics.IncReconcile("patch_error")
		log.Error().Err(err).Str("record_id", rec.ID).Msg("customer record patch failed")
		return
	}
	metrics.IncReconcile("patched")
	log.Info().
		Str("record_id", rec.ID).
		Str("status", string(in.Status)).
		Msg("customer record updated")
}

func (u *reconcileUC) notify(ctx context.Context, log *zerolog.Logger, redacted string, in ReconcileInput) {
	if u.notifier == nil {
		return
	}
	m := u.messages
	var text string
	switch in.Status {
	case model.RecordStatusCompleted:
		text = m.T("notify.payment_completed", model.FormatMinor(in.Amount, in.Currency), u.planLabel(in.PlanID), redacted)
		if in.Savings > 0 {
			text += m.T("notify.savings", model.FormatMinor(in.Savings, in.Currency))
		}
	case model.RecordStatusSubscriptionActive:
		text = m.T("notify.subscription_active", u.planLabel(in.PlanID), redacted)
	default:
		return
	}
	if in.ProviderID != "" {
		text += m.T("notify.payment_id", in.ProviderID)
	}
	if err := u.notifier.Notify(ctx, text); err != nil {
		metrics.IncNotification("error")
		log.Warn().Err(err).Msg("operator notification failed")
		return
	}
	metrics.IncNotification("sent")
}

func (u *reconcileUC) planLabel(id string) string {
	if id == "" {
		return u.messages.T("plan.unknown")
	}
	return id
}

// TaskSubmitter is the part of worker.Pool the async reconciler needs.
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

// AsyncReconciler moves reconciliation off the request path. Each run gets a
// context detached from the request but bounded by timeout. When the pool
// refuses the task the call runs inline instead of being dropped.
type AsyncReconciler struct {
	inner   ReconcileUseCase
	pool    TaskSubmitter
	timeout time.Duration
	log     *zerolog.Logger
}

func NewAsyncReconciler(inner ReconcileUseCase, pool TaskSubmitter, timeout time.Duration, logger *zerolog.Logger) *AsyncReconciler {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	l := logger.With().Str("component", "AsyncReconciler").Logger()
	return &AsyncReconciler{inner: inner, pool: pool, timeout: timeout, log: &l}
}

func (a *AsyncReconciler) Reconcile(ctx context.Context, in ReconcileInput) {
	detached := context.WithoutCancel(ctx)
	run := func(context.Context) error {
		runCtx, cancel := context.WithTimeout(detached, a.timeout)
		defer cancel()
		a.inner.Reconcile(runCtx, in)
		return nil
	}
	if err := a.pool.Submit(run); err != nil {
		logging.With(ctx, a.log).Warn().Err(err).Msg("reconcile queue unavailable; running inline")
		_ = run(ctx)
	}
}
