package model

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"chatbot-checkout/internal/domain"
)

// Provider event type names as delivered in the envelope's "type" field.
const (
	EventPaymentCreated       = "payment.created"
	EventPaymentUpdated       = "payment.updated"
	EventSubscriptionCreated  = "subscription.created"
	EventSubscriptionUpdated  = "subscription.updated"
	EventSubscriptionCanceled = "subscription.canceled"
)

// Provider-side status strings.
const (
	ProviderPaymentCompleted   = "COMPLETED"
	ProviderPaymentFailed      = "FAILED"
	ProviderPaymentCanceled    = "CANCELED"
	ProviderSubscriptionActive = "ACTIVE"
)

// EventMeta is common to every webhook event kind.
type EventMeta struct {
	Type      string
	EventID   string
	CreatedAt time.Time
}

// WebhookEvent is the closed set of event kinds the dispatcher understands.
type WebhookEvent interface {
	Meta() EventMeta
	isWebhookEvent()
}

// PaymentObject is the provider payment carried by payment.* events.
type PaymentObject struct {
	ID          string
	Status      string
	Amount      int64
	Currency    string
	ReferenceID string
	Note        string
	ReceiptURL  string
	BuyerEmail  string
}

// SessionRef recovers our session id: reference field, then the free-text
// note, then a session_id query parameter on the receipt URL.
func (p PaymentObject) SessionRef() string {
	if ref := strings.TrimSpace(p.ReferenceID); ref != "" {
		return ref
	}
	if note := strings.TrimSpace(p.Note); note != "" {
		return note
	}
	if p.ReceiptURL != "" {
		if u, err := url.Parse(p.ReceiptURL); err == nil {
			return strings.TrimSpace(u.Query().Get("session_id"))
		}
	}
	return ""
}

// SessionStatus maps the provider status onto our state machine.
// ok is false when the status says nothing final yet (APPROVED, PENDING, ...).
func (p PaymentObject) SessionStatus() (status SessionStatus, ok bool) {
	switch strings.ToUpper(p.Status) {
	case ProviderPaymentCompleted:
		return SessionStatusCompleted, true
	case ProviderPaymentFailed, ProviderPaymentCanceled:
		return SessionStatusFailed, true
	}
	return "", false
}

// SubscriptionObject is the provider subscription carried by subscription.* events.
type SubscriptionObject struct {
	ID         string
	Status     string
	CustomerID string
	PlanID     string
	BuyerEmail string
}

func (s SubscriptionObject) IsActive() bool {
	return strings.EqualFold(s.Status, ProviderSubscriptionActive)
}

type PaymentCreated struct {
	EventMeta
	Payment PaymentObject
}

type PaymentUpdated struct {
	EventMeta
	Payment PaymentObject
}

type SubscriptionCreated struct {
	EventMeta
	Subscription SubscriptionObject
}

type SubscriptionUpdated struct {
	EventMeta
	Subscription SubscriptionObject
}

type SubscriptionCanceled struct {
	EventMeta
	Subscription SubscriptionObject
}

// UnknownEvent is any type the dispatcher does not handle; it is acknowledged, not rejected.
type UnknownEvent struct {
	EventMeta
	RawType string
}

func (e EventMeta) Meta() EventMeta { return e }

func (PaymentCreated) isWebhookEvent()       {}
func (PaymentUpdated) isWebhookEvent()       {}
func (SubscriptionCreated) isWebhookEvent()  {}
func (SubscriptionUpdated) isWebhookEvent()  {}
func (SubscriptionCanceled) isWebhookEvent() {}
func (UnknownEvent) isWebhookEvent()         {}

// wire shapes

type wireEnvelope struct {
	Type      string `json:"type"`
	EventID   string `json:"event_id"`
	CreatedAt string `json:"created_at"`
	Data      struct {
		Type   string          `json:"type"`
		ID     string          `json:"id"`
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type wireMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type wirePayment struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	AmountMoney       *wireMoney `json:"amount_money"`
	TotalMoney        *wireMoney `json:"total_money"`
	ReferenceID       string     `json:"reference_id"`
	Note              string     `json:"note"`
	ReceiptURL        string     `json:"receipt_url"`
	BuyerEmailAddress string     `json:"buyer_email_address"`
	ReceiptEmail      string     `json:"receipt_email"`
}

type wireSubscription struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	CustomerID        string `json:"customer_id"`
	PlanID            string `json:"plan_id"`
	PlanVariationID   string `json:"plan_variation_id"`
	BuyerEmailAddress string `json:"buyer_email_address"`
}

// ParseWebhookEvent decodes a raw provider body into a typed event.
// The raw bytes are never re-encoded; signature checks must happen before this.
func ParseWebhookEvent(raw []byte) (WebhookEvent, error) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	if strings.TrimSpace(env.Type) == "" {
		return nil, fmt.Errorf("%w: missing type", domain.ErrMalformedEvent)
	}
	meta := EventMeta{Type: env.Type, EventID: env.EventID}
	if env.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, env.CreatedAt); err == nil {
			meta.CreatedAt = ts
		}
	}

	switch env.Type {
	case EventPaymentCreated, EventPaymentUpdated:
		p, err := decodePayment(env.Data.Object)
		if err != nil {
			return nil, err
		}
		if env.Type == EventPaymentCreated {
			return PaymentCreated{EventMeta: meta, Payment: p}, nil
		}
		return PaymentUpdated{EventMeta: meta, Payment: p}, nil

	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionCanceled:
		s, err := decodeSubscription(env.Data.Object)
		if err != nil {
			return nil, err
		}
		switch env.Type {
		case EventSubscriptionCreated:
			return SubscriptionCreated{EventMeta: meta, Subscription: s}, nil
		case EventSubscriptionUpdated:
			return SubscriptionUpdated{EventMeta: meta, Subscription: s}, nil
		default:
			return SubscriptionCanceled{EventMeta: meta, Subscription: s}, nil
		}
	}
	return UnknownEvent{EventMeta: meta, RawType: env.Type}, nil
}

func decodePayment(obj json.RawMessage) (PaymentObject, error) {
	var holder struct {
		Payment *wirePayment `json:"payment"`
	}
	if len(obj) == 0 {
		return PaymentObject{}, fmt.Errorf("%w: missing data.object", domain.ErrMalformedEvent)
	}
	if err := json.Unmarshal(obj, &holder); err != nil {
		return PaymentObject{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	if holder.Payment == nil {
		return PaymentObject{}, fmt.Errorf("%w: missing payment object", domain.ErrMalformedEvent)
	}
	w := holder.Payment
	p := PaymentObject{
		ID:          w.ID,
		Status:      w.Status,
		ReferenceID: w.ReferenceID,
		Note:        w.Note,
		ReceiptURL:  w.ReceiptURL,
		BuyerEmail:  w.BuyerEmailAddress,
	}
	if p.BuyerEmail == "" {
		p.BuyerEmail = w.ReceiptEmail
	}
	money := w.AmountMoney
	if money == nil {
		money = w.TotalMoney
	}
	if money != nil {
		p.Amount = money.Amount
		p.Currency = money.Currency
	}
	return p, nil
}

func decodeSubscription(obj json.RawMessage) (SubscriptionObject, error) {
	var holder struct {
		Subscription *wireSubscription `json:"subscription"`
	}
	if len(obj) == 0 {
		return SubscriptionObject{}, fmt.Errorf("%w: missing data.object", domain.ErrMalformedEvent)
	}
	if err := json.Unmarshal(obj, &holder); err != nil {
		return SubscriptionObject{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	if holder.Subscription == nil {
		return SubscriptionObject{}, fmt.Errorf("%w: missing subscription object", domain.ErrMalformedEvent)
	}
	w := holder.Subscription
	planID := w.PlanID
	if planID == "" {
		planID = w.PlanVariationID
	}
	return SubscriptionObject{
		ID:         w.ID,
		Status:     w.Status,
		CustomerID: w.CustomerID,
		PlanID:     planID,
		BuyerEmail: w.BuyerEmailAddress,
	}, nil
}
