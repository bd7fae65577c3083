// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"chatbot-checkout/internal/config"
	"chatbot-checkout/internal/domain"
	"chatbot-checkout/internal/domain/model"
	"chatbot-checkout/internal/domain/ports/repository"
	"chatbot-checkout/internal/infra/logging"
	"chatbot-checkout/internal/infra/metrics"
)

var _ WebhookUseCase = (*webhookUC)(nil)

// WebhookUseCase authenticates and applies provider webhook deliveries.
//
// Only authentication and parse failures are returned as errors. Anything that
// goes wrong after a delivery has been verified and parsed is logged and the
// delivery is still acknowledged, so the provider does not retry it.
type WebhookUseCase interface {
	Handle(ctx context.Context, rawBody []byte, headers http.Header) (*WebhookResult, error)
}

type WebhookResult struct {
	EventType string
	EventID   string
	SessionID string
	Outcome   model.WebhookOutcome
	Verified  bool
	Duplicate bool
}

// SignatureChecker is satisfied by security.SignatureVerifier.
type SignatureChecker interface {
	Verify(rawBody []byte, signature, secret string) bool
}

type WebhookOptions struct {
	Environment     string // production|sandbox
	Secret          string // secret of the active environment
	SignatureHeader string
	Dev             bool
}

type webhookUC struct {
	verifier   SignatureChecker
	sessions   SessionUseCase
	reconciler ReconcileUseCase
	events     repository.WebhookEventLog
	opts       WebhookOptions
	now        func() time.Time
	log        *zerolog.Logger
}

// NewWebhookUseCase accepts a nil event log when no audit trail is kept.
func NewWebhookUseCase(verifier SignatureChecker, sessions SessionUseCase, reconciler ReconcileUseCase, events repository.WebhookEventLog, opts WebhookOptions, logger *zerolog.Logger) *webhookUC {
	if opts.SignatureHeader == "" {
		opts.SignatureHeader = "x-square-signature"
	}
	if opts.Environment == "" {
		opts.Environment = config.EnvSandbox
	}
	l := logger.With().Str("component", "WebhookUseCase").Str("environment", opts.Environment).Logger()
	return &webhookUC{
		verifier:   verifier,
		sessions:   sessions,
		reconciler: reconciler,
		events:     events,
		opts:       opts,
		now:        time.Now,
		log:        &l,
	}
}

func (u *webhookUC) Handle(ctx context.Context, rawBody []byte, headers http.Header) (*WebhookResult, error) {
	start := u.now()
	res, err := u.handle(ctx, rawBody, headers)
	result := "ok"
	eventType := ""
	if res != nil {
		eventType = res.EventType
	}
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSignatureNotConfigured):
		result = "unconfigured"
	case errors.Is(err, domain.ErrMalformedEvent):
		result = "malformed"
	default:
		result = "unauthorized"
	}
	metrics.IncWebhook(eventType, result)
	metrics.WebhookDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	return res, err
}

func (u *webhookUC) handle(ctx context.Context, rawBody []byte, headers http.Header) (*WebhookResult, error) {
	log := logging.With(ctx, u.log)
	verified, err := u.authenticate(log, rawBody, headers)
	if err != nil {
		return nil, err
	}

	evt, err := model.ParseWebhookEvent(rawBody)
	if err != nil {
		log.Warn().Err(err).Msg("rejecting unparseable webhook")
		return nil, err
	}
	meta := evt.Meta()
	if meta.EventID != "" {
		ctx = logging.WithEventID(ctx, meta.EventID)
		log = logging.With(ctx, u.log)
	}
	log.Info().Str("type", meta.Type).Bool("verified", verified).Msg("webhook received")

	res := &WebhookResult{EventType: meta.Type, EventID: meta.EventID, Verified: verified}
	switch e := evt.(type) {
	case model.PaymentCreated:
		u.onPayment(ctx, log, e.Payment, res)
	case model.PaymentUpdated:
		u.onPayment(ctx, log, e.Payment, res)
	case model.SubscriptionCreated:
		u.onSubscription(ctx, log, e.Subscription, false, res)
	case model.SubscriptionUpdated:
		u.onSubscription(ctx, log, e.Subscription, false, res)
	case model.SubscriptionCanceled:
		u.onSubscription(ctx, log, e.Subscription, true, res)
	default:
		res.Outcome = model.WebhookOutcomeIgnored
		log.Info().Str("type", meta.Type).Msg("unhandled webhook event type; acknowledging")
	}

	u.recordEvent(ctx, log, res)
	return res, nil
}

// authenticate reports whether the body was verified. Without a secret,
// production fails closed and sandbox proceeds unverified with a warning.
func (u *webhookUC) authenticate(log *zerolog.Logger, rawBody []byte, headers http.Header) (bool, error) {
	if u.opts.Secret == "" {
		if u.opts.Environment == config.EnvProduction {
			log.Error().Msg("webhook secret missing in production; rejecting delivery")
			return false, domain.ErrSignatureNotConfigured
		}
		log.Warn().Msg("webhook secret not configured; accepting UNVERIFIED delivery in sandbox")
		return false, nil
	}
	sig := headers.Get(u.opts.SignatureHeader)
	if sig == "" {
		log.Warn().Str("header", u.opts.SignatureHeader).Msg("webhook signature header missing")
		return false, domain.ErrMissingSignature
	}
	if !u.verifier.Verify(rawBody, sig, u.opts.Secret) {
		log.Warn().Msg("webhook signature mismatch")
		return false, domain.ErrInvalidSignature
	}
	return true, nil
}

func (u *webhookUC) onPayment(ctx context.Context, log *zerolog.Logger, p model.PaymentObject, res *WebhookResult) {
	ref := p.SessionRef()
	res.SessionID = ref
	status, final := p.SessionStatus()

	var sess *model.Session
	switch {
	case ref == "":
		res.Outcome = model.WebhookOutcomeNoTarget
		log.Info().Str("payment_id", p.ID).Msg("payment carries no session reference")
	case !final:
		res.Outcome = model.WebhookOutcomeIgnored
		log.Info().Str("payment_id", p.ID).Str("provider_status", p.Status).Msg("payment not final yet")
		if s, err := u.sessions.Get(ctx, ref); err == nil {
			sess = s
		}
	default:
		sctx := logging.WithSessID(ctx, ref)
		updated, err := u.sessions.UpdateStatus(sctx, ref, status, p.ID)
		switch {
		case err == nil:
			sess = updated
			res.Outcome = model.WebhookOutcomeApplied
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrSessionExpired):
			res.Outcome = model.WebhookOutcomeNoTarget
			logging.With(sctx, u.log).Warn().Err(err).Str("payment_id", p.ID).Msg("webhook for unknown or expired session")
		case errors.Is(err, domain.ErrTerminalState):
			sess = updated
			res.Outcome = model.WebhookOutcomeIgnored
			logging.With(sctx, u.log).Warn().Err(err).Str("payment_id", p.ID).Msg("webhook conflicts with final session status")
		default:
			res.Outcome = model.WebhookOutcomeIgnored
			logging.With(sctx, u.log).Error().Err(err).Msg("session update failed")
		}
	}

	in := ReconcileInput{
		Email:      p.BuyerEmail,
		SessionID:  ref,
		ProviderID: p.ID,
		Status:     model.RecordStatusPending,
		Amount:     p.Amount,
		Currency:   p.Currency,
	}
	if final {
		in.Status = model.RecordStatusFor(status)
	}
	// A settled session decides the record status; late or conflicting
	// deliveries must not walk the record away from it.
	if sess != nil && sess.Status.IsTerminal() {
		in.Status = model.RecordStatusFor(sess.Status)
	}
	if sess != nil {
		in.PlanID = sess.PlanID
		in.Savings = sess.Savings()
		if in.Amount == 0 {
			in.Amount = sess.Amount
		}
		if in.Currency == "" {
			in.Currency = sess.Currency
		}
	}
	u.reconciler.Reconcile(ctx, in)
}

func (u *webhookUC) onSubscription(ctx context.Context, log *zerolog.Logger, s model.SubscriptionObject, canceled bool, res *WebhookResult) {
	var status model.RecordStatus
	switch {
	case canceled:
		status = model.RecordStatusSubscriptionCanceled
	case s.IsActive():
		status = model.RecordStatusSubscriptionActive
	default:
		res.Outcome = model.WebhookOutcomeIgnored
		log.Info().Str("subscription_id", s.ID).Str("provider_status", s.Status).Msg("subscription not active; nothing to reconcile")
		return
	}
	res.Outcome = model.WebhookOutcomeApplied
	u.reconciler.Reconcile(ctx, ReconcileInput{
		Email:      s.BuyerEmail,
		ProviderID: s.ID,
		Status:     status,
		PlanID:     s.PlanID,
	})
}

func (u *webhookUC) recordEvent(ctx context.Context, log *zerolog.Logger, res *WebhookResult) {
	if u.events == nil {
		return
	}
	dup, err := u.events.Record(ctx, repository.NoTX, &model.WebhookEventRecord{
		ID:         ulid.Make().String(),
		EventID:    res.EventID,
		Type:       res.EventType,
		SessionID:  res.SessionID,
		Outcome:    res.Outcome,
		ReceivedAt: u.now(),
	})
	if err != nil {
		log.Warn().Err(err).Msg("webhook audit log write failed")
		return
	}
	if dup {
		res.Duplicate = true
		log.Info().Msg("webhook redelivery")
	}
}
