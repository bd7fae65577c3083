// File: internal/usecase/session_uc.go
package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chatbot-checkout/internal/domain"
	"chatbot-checkout/internal/domain/model"
	"chatbot-checkout/internal/domain/ports/repository"
	"chatbot-checkout/internal/infra/logging"
	"chatbot-checkout/internal/infra/metrics"
)

var _ SessionUseCase = (*sessionUC)(nil)

// SessionUseCase is the only writer of payment sessions.
type SessionUseCase interface {
	Create(ctx context.Context, in CreateSessionInput) (*CreatedSession, error)
	// Get returns domain.ErrNotFound for unknown ids and domain.ErrSessionExpired
	// for sessions past their expiry.
	Get(ctx context.Context, id string) (*model.Session, error)
	// UpdateStatus moves a session forward. Re-applying the current status is a
	// no-op; leaving a terminal status fails with domain.ErrTerminalState.
	UpdateStatus(ctx context.Context, id string, status model.SessionStatus, providerID string) (*model.Session, error)
	// EvictExpired deletes every expired session and returns how many went.
	EvictExpired(ctx context.Context) (int, error)
}

type CreateSessionInput struct {
	CustomerRef string `validate:"required,max=256"`
	PlanID      string `validate:"max=64"`
	Amount      int64  `validate:"gt=0"`
	CampaignID  string `validate:"max=128"`
}

type CreatedSession struct {
	Session     *model.Session
	Plan        *model.Plan // nil when PlanID is not in the catalog
	CheckoutURL string
}

type SessionOptions struct {
	TTL             time.Duration
	AmountTolerance int64
	RedirectURL     string
	Now             func() time.Time
}

type sessionUC struct {
	store   repository.SessionStore
	catalog CatalogUseCase
	opts    SessionOptions
	log     *zerolog.Logger
}

func NewSessionUseCase(store repository.SessionStore, catalog CatalogUseCase, opts SessionOptions, logger *zerolog.Logger) *sessionUC {
	if opts.TTL <= 0 {
		opts.TTL = model.DefaultSessionTTL
	}
	if opts.AmountTolerance < 0 {
		opts.AmountTolerance = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := logger.With().Str("component", "SessionUseCase").Logger()
	return &sessionUC{store: store, catalog: catalog, opts: opts, log: &l}
}

// errNoChange aborts a store update that would rewrite identical state.
var errNoChange = errors.New("no change")

func newSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (u *sessionUC) Create(ctx context.Context, in CreateSessionInput) (*CreatedSession, error) {
	defer logging.TraceDuration(u.log, "SessionUC.Create")()

	in.CustomerRef = strings.TrimSpace(in.CustomerRef)
	in.PlanID = strings.TrimSpace(in.PlanID)
	in.CampaignID = strings.TrimSpace(in.CampaignID)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.PlanID == "" {
		in.PlanID = u.catalog.DefaultPlanID()
	}

	planID := in.PlanID
	category := model.PlanCategoryStandard
	currency := "USD"
	var originalPrice int64
	plan, err := u.catalog.GetPlan(in.PlanID)
	switch {
	case err == nil:
		planID = plan.ID
		category = plan.Category
		currency = plan.Currency
		if plan.Category == model.PlanCategoryPromotional {
			originalPrice = plan.OriginalPrice
		}
	case errors.Is(err, domain.ErrNotFound):
		plan = nil
		u.log.Warn().Str("plan_id", in.PlanID).Msg("unknown plan; using fallback pricing")
	default:
		return nil, err
	}

	expected := u.catalog.PriceFor(in.PlanID)
	if diff := in.Amount - expected; diff > u.opts.AmountTolerance || -diff > u.opts.AmountTolerance {
		metrics.IncAmountMismatch(planID)
		u.log.Warn().
			Str("plan_id", planID).
			Int64("amount", in.Amount).
			Int64("expected", expected).
			Msg("amount differs from catalog price; creating session anyway")
	}

	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	now := u.opts.Now()
	sess := &model.Session{
		ID:            id,
		CustomerRef:   in.CustomerRef,
		PlanID:        planID,
		PlanCategory:  category,
		Amount:        in.Amount,
		Currency:      currency,
		Status:        model.SessionStatusPending,
		CampaignID:    in.CampaignID,
		OriginalPrice: originalPrice,
		CreatedAt:     now,
		ExpiresAt:     now.Add(u.opts.TTL),
		UpdatedAt:     now,
	}
	if err := u.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	metrics.IncSessionCreated(string(category))
	logging.With(logging.WithSessID(ctx, id), u.log).Info().
		Str("plan_id", planID).
		Int64("amount", in.Amount).
		Str("campaign_id", in.CampaignID).
		Msg("payment session created")

	return &CreatedSession{
		Session:     sess.Clone(),
		Plan:        plan,
		CheckoutURL: u.checkoutURL(sess),
	}, nil
}

// checkoutURL appends session_id, plan, campaign and redirect_url in that order.
func (u *sessionUC) checkoutURL(s *model.Session) string {
	dest := u.catalog.CheckoutDestination(s.PlanID)
	var b strings.Builder
	b.WriteString(dest)
	if strings.Contains(dest, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	b.WriteString("session_id=" + url.QueryEscape(s.ID))
	b.WriteString("&plan=" + url.QueryEscape(s.PlanID))
	if s.CampaignID != "" {
		b.WriteString("&campaign=" + url.QueryEscape(s.CampaignID))
	}
	if u.opts.RedirectURL != "" {
		b.WriteString("&redirect_url=" + url.QueryEscape(u.opts.RedirectURL))
	}
	return b.String()
}

func (u *sessionUC) Get(ctx context.Context, id string) (*model.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidArgument)
	}
	sess, err := u.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.IsExpired(u.opts.Now()) {
		u.dropExpired(ctx, id)
		return nil, domain.ErrSessionExpired
	}
	return sess, nil
}

func (u *sessionUC) dropExpired(ctx context.Context, id string) {
	if err := u.store.Delete(ctx, id); err != nil {
		logging.With(logging.WithSessID(ctx, id), u.log).Warn().Err(err).Msg("failed to delete expired session")
	}
}

func (u *sessionUC) UpdateStatus(ctx context.Context, id string, status model.SessionStatus, providerID string) (*model.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidArgument)
	}
	if _, ok := model.ParseSessionStatus(string(status)); !ok {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidArgument, status)
	}
	log := logging.With(logging.WithSessID(ctx, id), u.log)
	now := u.opts.Now()

	sess, err := u.store.Update(ctx, id, func(s *model.Session) error {
		if s.IsExpired(now) {
			return domain.ErrSessionExpired
		}
		if !s.CanTransition(status) {
			return domain.ErrTerminalState
		}
		if s.Status == status {
			if providerID == "" || s.ProviderPaymentID != "" {
				return errNoChange
			}
		}
		s.Status = status
		if providerID != "" && s.ProviderPaymentID == "" {
			s.ProviderPaymentID = providerID
		}
		s.UpdatedAt = now
		return nil
	})

	switch {
	case err == nil:
		metrics.IncSessionTransition(string(status), "applied")
		log.Info().Str("status", string(status)).Str("provider_payment_id", providerID).Msg("session status updated")
		return sess, nil
	case errors.Is(err, errNoChange):
		metrics.IncSessionTransition(string(status), "noop")
		log.Debug().Str("status", string(status)).Msg("status already applied")
		return sess, nil
	case errors.Is(err, domain.ErrSessionExpired):
		u.dropExpired(ctx, id)
		return nil, err
	case errors.Is(err, domain.ErrTerminalState):
		metrics.IncSessionTransition(string(status), "rejected")
		current := ""
		if sess != nil {
			current = string(sess.Status)
		}
		log.Warn().Str("status", string(status)).Str("current", current).Msg("refusing to leave terminal status")
		return sess, fmt.Errorf("session is %s: %w", current, domain.ErrTerminalState)
	default:
		return nil, err
	}
}

func (u *sessionUC) EvictExpired(ctx context.Context) (int, error) {
	all, err := u.store.All(ctx)
	if err != nil {
		return 0, err
	}
	now := u.opts.Now()
	n := 0
	for _, s := range all {
		if !s.IsExpired(now) {
			continue
		}
		if err := u.store.Delete(ctx, s.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
