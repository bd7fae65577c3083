package apiv1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/rs/zerolog"

	"chatbot-checkout/internal/domain"
	"chatbot-checkout/internal/domain/model"
	"chatbot-checkout/internal/infra/logging"
	"chatbot-checkout/internal/usecase"
)

const maxWebhookBody = 1 << 20

// Server exposes the checkout session and webhook endpoints.
type Server struct {
	sessions usecase.SessionUseCase
	catalog  usecase.CatalogUseCase
	webhooks usecase.WebhookUseCase
	auth     *InternalAuth
	log      *zerolog.Logger
}

func NewServer(sessions usecase.SessionUseCase, catalog usecase.CatalogUseCase, webhooks usecase.WebhookUseCase, auth *InternalAuth, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "apiv1").Logger()
	return &Server{sessions: sessions, catalog: catalog, webhooks: webhooks, auth: auth, log: &l}
}

// RegisterAPIV1 mounts the client-facing routes on r using absolute paths.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Post("/api/verify-payment", s.createSession)
	r.Get("/api/verify-payment", s.getSession)
	r.With(s.auth.Require).Patch("/api/verify-payment", s.updateSession)
	r.Get("/api/plans", s.listPlans)
}

// RegisterWebhooks mounts the provider callback. It stays outside any client
// rate limit: the provider retries every non-2xx answer.
func RegisterWebhooks(r chi.Router, s *Server) {
	r.Post("/api/square", s.squareWebhook)
}

type createSessionRequest struct {
	CustomerID       string `json:"customerId"`
	Amount           int64  `json:"amount"`
	SubscriptionPlan string `json:"subscriptionPlan"`
	CampaignID       string `json:"campaignId,omitempty"`
}

type createSessionResponse struct {
	Success          bool   `json:"success"`
	SessionID        string `json:"sessionId"`
	SubscriptionPlan string `json:"subscriptionPlan"`
	PlanType         string `json:"planType"`
	CheckoutURL      string `json:"checkoutUrl"`
	Amount           int64  `json:"amount"`
	OriginalPrice    *int64 `json:"originalPrice,omitempty"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.sessions.Create(r.Context(), usecase.CreateSessionInput{
		CustomerRef: req.CustomerID,
		PlanID:      req.SubscriptionPlan,
		Amount:      req.Amount,
		CampaignID:  req.CampaignID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess := out.Session
	resp := createSessionResponse{
		Success:          true,
		SessionID:        sess.ID,
		SubscriptionPlan: sess.PlanID,
		PlanType:         string(sess.PlanCategory),
		CheckoutURL:      out.CheckoutURL,
		Amount:           sess.Amount,
	}
	if sess.OriginalPrice > 0 {
		op := sess.OriginalPrice
		resp.OriginalPrice = &op
	}
	writeJSON(w, http.StatusOK, resp)
}

type sessionView struct {
	Status           string    `json:"status"`
	CustomerID       string    `json:"customerId"`
	Amount           int64     `json:"amount"`
	SubscriptionPlan string    `json:"subscriptionPlan"`
	PlanType         string    `json:"planType"`
	CampaignID       string    `json:"campaignId"`
	OriginalPrice    int64     `json:"originalPrice"`
	CreatedAt        time.Time `json:"createdAt"`
}

type getSessionResponse struct {
	Success bool        `json:"success"`
	Session sessionView `json:"session"`
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	var id string
	if err := runtime.BindQueryParameter("form", true, true, "sessionId", r.URL.Query(), &id); err != nil {
		s.fail(w, r, fmt.Errorf("%w: sessionId is required", domain.ErrInvalidArgument))
		return
	}
	ctx := logging.WithSessID(r.Context(), id)
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		s.fail(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, getSessionResponse{
		Success: true,
		Session: sessionView{
			Status:           string(sess.Status),
			CustomerID:       sess.CustomerRef,
			Amount:           sess.Amount,
			SubscriptionPlan: sess.PlanID,
			PlanType:         string(sess.PlanCategory),
			CampaignID:       sess.CampaignID,
			OriginalPrice:    sess.OriginalPrice,
			CreatedAt:        sess.CreatedAt.UTC(),
		},
	})
}

type updateSessionRequest struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
	PaymentID string `json:"paymentId,omitempty"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	var req updateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		s.fail(w, r, fmt.Errorf("%w: sessionId is required", domain.ErrInvalidArgument))
		return
	}
	status, ok := model.ParseSessionStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !ok {
		s.fail(w, r, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidArgument, req.Status))
		return
	}
	ctx := logging.WithSessID(r.Context(), req.SessionID)
	if _, err := s.sessions.UpdateStatus(ctx, req.SessionID, status, strings.TrimSpace(req.PaymentID)); err != nil {
		s.fail(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

type webhookResponse struct {
	Success   bool   `json:"success"`
	EventType string `json:"eventType,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// squareWebhook reads the raw body first; the signature covers the exact bytes.
func (s *Server) squareWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: read body: %v", domain.ErrMalformedEvent, err))
		return
	}
	res, err := s.webhooks.Handle(r.Context(), raw, r.Header)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{
		Success:   true,
		EventType: res.EventType,
		Outcome:   string(res.Outcome),
		Duplicate: res.Duplicate,
	})
}

type planView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	DisplayPrice  string `json:"displayPrice"`
	Currency      string `json:"currency"`
	PlanType      string `json:"planType"`
	OriginalPrice int64  `json:"originalPrice,omitempty"`
	Savings       int64  `json:"savings,omitempty"`
}

type listPlansResponse struct {
	Success bool       `json:"success"`
	Default string     `json:"defaultPlan"`
	Plans   []planView `json:"plans"`
}

func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	plans := s.catalog.List()
	out := make([]planView, 0, len(plans))
	for _, p := range plans {
		out = append(out, planView{
			ID:            p.ID,
			Name:          p.Name,
			Price:         p.Price,
			DisplayPrice:  model.FormatMinor(p.Price, p.Currency),
			Currency:      p.Currency,
			PlanType:      string(p.Category),
			OriginalPrice: p.OriginalPrice,
			Savings:       p.Savings(),
		})
	}
	writeJSON(w, http.StatusOK, listPlansResponse{Success: true, Default: s.catalog.DefaultPlanID(), Plans: out})
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: empty body", domain.ErrInvalidArgument)
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", domain.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument)
	}
	return nil
}
