//go:build !integration

package apiv1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"chatbot-checkout/internal/config"
	apiv1 "chatbot-checkout/internal/infra/api/apiv1"
	"chatbot-checkout/internal/infra/memory"
	"chatbot-checkout/internal/infra/security"
	"chatbot-checkout/internal/usecase"
)

//
// ---------------- fixtures ----------------
//

const (
	webhookSecret = "whsec-api"
	jwtSecret     = "jwt-api"
)

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type nopReconciler struct {
	mu    sync.Mutex
	calls int
}

func (n *nopReconciler) Reconcile(ctx context.Context, in usecase.ReconcileInput) {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
}

type testEnv struct {
	router   *chi.Mux
	clock    *clock
	auth     *apiv1.InternalAuth
	verifier *security.SignatureVerifier
	recon    *nopReconciler
}

func newEnv(t *testing.T, production bool, jwtKey string) *testEnv {
	t.Helper()
	plans, err := usecase.PlansFromConfig(config.CatalogConfig{Plans: config.DefaultPlans()}, nil)
	if err != nil {
		t.Fatalf("plans: %v", err)
	}
	catalog, err := usecase.NewCatalogUseCase(plans, usecase.CatalogOptions{
		DefaultPlanID:   "standard_monthly",
		FallbackPrice:   29700,
		CheckoutBaseURL: "https://checkout.example.com/pay",
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	env := config.EnvSandbox
	if production {
		env = config.EnvProduction
	}
	e := &testEnv{
		clock:    &clock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
		verifier: security.NewSignatureVerifier(),
		recon:    &nopReconciler{},
	}
	sessions := usecase.NewSessionUseCase(memory.NewSessionStore(), catalog, usecase.SessionOptions{
		TTL:             24 * time.Hour,
		AmountTolerance: 100,
		Now:             e.clock.Now,
	}, newLogger())
	webhooks := usecase.NewWebhookUseCase(e.verifier, sessions, e.recon, memory.NewWebhookEventLog(), usecase.WebhookOptions{
		Environment: env,
		Secret:      webhookSecret,
	}, newLogger())
	e.auth = apiv1.NewInternalAuth(jwtKey, "chatbot-checkout", production, newLogger())

	r := chi.NewRouter()
	srv := apiv1.NewServer(sessions, catalog, webhooks, e.auth, newLogger())
	apiv1.RegisterAPIV1(r, srv)
	apiv1.RegisterWebhooks(r, srv)
	e.router = r
	return e
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) create(t *testing.T, body string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/verify-payment", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := e.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("create: want 200, got %d, body=%s", rec.Code, rec.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func (e *testEnv) patch(t *testing.T, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPatch, "/api/verify-payment", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(t, req)
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	tok, err := e.auth.Mint("test", time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return tok
}

type getResp struct {
	Success bool `json:"success"`
	Session struct {
		Status           string `json:"status"`
		CustomerID       string `json:"customerId"`
		Amount           int64  `json:"amount"`
		SubscriptionPlan string `json:"subscriptionPlan"`
		PlanType         string `json:"planType"`
		CampaignID       string `json:"campaignId"`
		OriginalPrice    int64  `json:"originalPrice"`
	} `json:"session"`
}

func (e *testEnv) get(t *testing.T, id string) (*httptest.ResponseRecorder, getResp) {
	t.Helper()
	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/api/verify-payment?sessionId="+id, nil))
	var out getResp
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return rec, out
}

func (e *testEnv) webhook(t *testing.T, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/square", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("x-square-signature", signature)
	}
	return e.do(t, req)
}

//
// -------------------- tests --------------------
//

func TestCheckoutFlow_CreatePatchGet(t *testing.T) {
	e := newEnv(t, true, jwtSecret)

	out := e.create(t, `{"customerId":"lead-1","amount":29700,"subscriptionPlan":"standard_monthly"}`)
	id, _ := out["sessionId"].(string)
	if id == "" {
		t.Fatalf("missing sessionId: %v", out)
	}
	if out["amount"].(float64) != 29700 {
		t.Errorf("amount = %v", out["amount"])
	}
	if out["planType"] != "standard" {
		t.Errorf("planType = %v", out["planType"])
	}
	if _, ok := out["originalPrice"]; ok {
		t.Errorf("originalPrice should be omitted for standard plans")
	}
	want := fmt.Sprintf("session_id=%s&plan=standard_monthly", id)
	if url, _ := out["checkoutUrl"].(string); !strings.Contains(url, want) {
		t.Errorf("checkoutUrl %q does not contain %q", url, want)
	}

	rec, got := e.get(t, id)
	if rec.Code != http.StatusOK || got.Session.Status != "pending" {
		t.Fatalf("get before patch: %d %+v", rec.Code, got)
	}

	body := fmt.Sprintf(`{"sessionId":%q,"status":"completed","paymentId":"pay-1"}`, id)
	if rec := e.patch(t, body, e.token(t)); rec.Code != http.StatusOK {
		t.Fatalf("patch: want 200, got %d, body=%s", rec.Code, rec.Body.String())
	}

	rec, got = e.get(t, id)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}
	if got.Session.Status != "completed" || got.Session.CustomerID != "lead-1" || got.Session.SubscriptionPlan != "standard_monthly" {
		t.Errorf("session = %+v", got.Session)
	}
}

func TestCheckoutFlow_WebhookRedelivery(t *testing.T) {
	e := newEnv(t, true, jwtSecret)
	id := e.create(t, `{"customerId":"lead-1","amount":29700,"subscriptionPlan":"standard_monthly"}`)["sessionId"].(string)

	body := []byte(fmt.Sprintf(`{"type":"payment.updated","event_id":"evt-1","data":{"type":"payment","id":"pay-1","object":{"payment":{"id":"pay-1","status":"COMPLETED","amount_money":{"amount":29700,"currency":"USD"},"reference_id":%q}}}}`, id))
	sig := e.verifier.Sign(body, webhookSecret)

	for i := 1; i <= 2; i++ {
		rec := e.webhook(t, body, sig)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: want 200, got %d, body=%s", i, rec.Code, rec.Body.String())
		}
		var out struct {
			Success   bool `json:"success"`
			Duplicate bool `json:"duplicate"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !out.Success || out.Duplicate != (i == 2) {
			t.Errorf("delivery %d body = %s", i, rec.Body.String())
		}
		if _, got := e.get(t, id); got.Session.Status != "completed" {
			t.Errorf("delivery %d status = %q", i, got.Session.Status)
		}
	}
}

func TestCreate_PromotionalEchoesOriginalPrice(t *testing.T) {
	e := newEnv(t, false, jwtSecret)
	out := e.create(t, `{"customerId":"lead-2","amount":14700,"subscriptionPlan":"first_month_special","campaignId":"summer"}`)
	if out["planType"] != "promotional" {
		t.Errorf("planType = %v", out["planType"])
	}
	if out["originalPrice"].(float64) != 29700 {
		t.Errorf("originalPrice = %v", out["originalPrice"])
	}
	if url := out["checkoutUrl"].(string); !strings.Contains(url, "&campaign=summer") {
		t.Errorf("checkoutUrl = %q", url)
	}
}

func TestCreate_Validation(t *testing.T) {
	e := newEnv(t, false, jwtSecret)
	cases := map[string]string{
		"missing customer": `{"amount":29700,"subscriptionPlan":"standard_monthly"}`,
		"zero amount":      `{"customerId":"lead-1","amount":0}`,
		"bad json":         `{"customerId":`,
		"empty body":       ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/verify-payment", strings.NewReader(body))
			rec := e.do(t, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("want 400, got %d, body=%s", rec.Code, rec.Body.String())
			}
			var out struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Success || out.Message == "" {
				t.Errorf("envelope = %+v", out)
			}
		})
	}
}

func TestGet_ErrorStatuses(t *testing.T) {
	e := newEnv(t, false, jwtSecret)

	if rec := e.do(t, httptest.NewRequest(http.MethodGet, "/api/verify-payment", nil)); rec.Code != http.StatusBadRequest {
		t.Errorf("missing id: want 400, got %d", rec.Code)
	}
	if rec, _ := e.get(t, "nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: want 404, got %d", rec.Code)
	}

	id := e.create(t, `{"customerId":"lead-1","amount":29700}`)["sessionId"].(string)
	e.clock.Advance(24*time.Hour + time.Second)
	if rec, _ := e.get(t, id); rec.Code != http.StatusGone {
		t.Errorf("expired: want 410, got %d", rec.Code)
	}
}

func TestPatch_Auth(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		e := newEnv(t, true, jwtSecret)
		if rec := e.patch(t, `{"sessionId":"x","status":"completed"}`, ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("want 401, got %d", rec.Code)
		}
	})
	t.Run("token signed with another key", func(t *testing.T) {
		e := newEnv(t, true, jwtSecret)
		other := apiv1.NewInternalAuth("other-key", "chatbot-checkout", true, newLogger())
		tok, err := other.Mint("test", time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if rec := e.patch(t, `{"sessionId":"x","status":"completed"}`, tok); rec.Code != http.StatusUnauthorized {
			t.Errorf("want 401, got %d", rec.Code)
		}
	})
	t.Run("production without secret", func(t *testing.T) {
		e := newEnv(t, true, "")
		if rec := e.patch(t, `{"sessionId":"x","status":"completed"}`, ""); rec.Code != http.StatusForbidden {
			t.Errorf("want 403, got %d", rec.Code)
		}
	})
	t.Run("sandbox without secret", func(t *testing.T) {
		e := newEnv(t, false, "")
		id := e.create(t, `{"customerId":"lead-1","amount":29700}`)["sessionId"].(string)
		body := fmt.Sprintf(`{"sessionId":%q,"status":"failed"}`, id)
		if rec := e.patch(t, body, ""); rec.Code != http.StatusOK {
			t.Errorf("want 200, got %d, body=%s", rec.Code, rec.Body.String())
		}
	})
}

func TestPatch_ErrorStatuses(t *testing.T) {
	e := newEnv(t, true, jwtSecret)
	tok := e.token(t)
	id := e.create(t, `{"customerId":"lead-1","amount":29700}`)["sessionId"].(string)

	if rec := e.patch(t, `{"sessionId":"nope","status":"completed"}`, tok); rec.Code != http.StatusNotFound {
		t.Errorf("unknown: want 404, got %d", rec.Code)
	}
	if rec := e.patch(t, fmt.Sprintf(`{"sessionId":%q,"status":"refunded"}`, id), tok); rec.Code != http.StatusBadRequest {
		t.Errorf("bad status: want 400, got %d", rec.Code)
	}
	if rec := e.patch(t, `{"status":"completed"}`, tok); rec.Code != http.StatusBadRequest {
		t.Errorf("missing id: want 400, got %d", rec.Code)
	}

	if rec := e.patch(t, fmt.Sprintf(`{"sessionId":%q,"status":"completed","paymentId":"pay-1"}`, id), tok); rec.Code != http.StatusOK {
		t.Fatalf("complete: %d", rec.Code)
	}
	if rec := e.patch(t, fmt.Sprintf(`{"sessionId":%q,"status":"completed"}`, id), tok); rec.Code != http.StatusOK {
		t.Errorf("repeat: want 200, got %d", rec.Code)
	}
	if rec := e.patch(t, fmt.Sprintf(`{"sessionId":%q,"status":"failed"}`, id), tok); rec.Code != http.StatusConflict {
		t.Errorf("leave terminal: want 409, got %d", rec.Code)
	}

	other := e.create(t, `{"customerId":"lead-2","amount":29700}`)["sessionId"].(string)
	e.clock.Advance(25 * time.Hour)
	if rec := e.patch(t, fmt.Sprintf(`{"sessionId":%q,"status":"completed"}`, other), tok); rec.Code != http.StatusGone {
		t.Errorf("expired: want 410, got %d", rec.Code)
	}
}

func TestWebhook_Rejections(t *testing.T) {
	e := newEnv(t, true, jwtSecret)
	body := []byte(`{"type":"payment.updated","event_id":"evt-9","data":{"object":{"payment":{"id":"p","status":"COMPLETED"}}}}`)

	if rec := e.webhook(t, body, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing signature: want 401, got %d", rec.Code)
	}
	if rec := e.webhook(t, body, e.verifier.Sign(body, "wrong")); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad signature: want 401, got %d", rec.Code)
	}
	garbage := []byte(`{not json`)
	if rec := e.webhook(t, garbage, e.verifier.Sign(garbage, webhookSecret)); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed: want 400, got %d", rec.Code)
	}
	if e.recon.calls != 0 {
		t.Errorf("rejected deliveries reached reconciliation: %d", e.recon.calls)
	}
}

func TestPlans_List(t *testing.T) {
	e := newEnv(t, false, jwtSecret)
	rec := e.do(t, httptest.NewRequest(http.MethodGet, "/api/plans", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var out struct {
		Success     bool   `json:"success"`
		DefaultPlan string `json:"defaultPlan"`
		Plans       []struct {
			ID           string `json:"id"`
			DisplayPrice string `json:"displayPrice"`
			Savings      int64  `json:"savings"`
		} `json:"plans"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.DefaultPlan != "standard_monthly" || len(out.Plans) != len(config.DefaultPlans()) {
		t.Fatalf("plans = %+v", out)
	}
	for _, p := range out.Plans {
		if p.ID == "first_month_special" && (p.DisplayPrice != "$147.00" || p.Savings != 15000) {
			t.Errorf("promo view = %+v", p)
		}
	}
}
