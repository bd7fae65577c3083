package model

import (
	"time"
)

type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"   // created; buyer sent to hosted checkout
	SessionStatusCompleted SessionStatus = "completed" // provider confirmed payment
	SessionStatusFailed    SessionStatus = "failed"    // provider reported failure or cancellation
)

// ParseSessionStatus accepts the lowercase wire form.
func ParseSessionStatus(s string) (SessionStatus, bool) {
	switch SessionStatus(s) {
	case SessionStatusPending, SessionStatusCompleted, SessionStatusFailed:
		return SessionStatus(s), true
	}
	return "", false
}

func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// DefaultSessionTTL is the fixed lifetime of a payment session.
const DefaultSessionTTL = 24 * time.Hour

// Session is a time-boxed record of an intended single payment.
type Session struct {
	ID                string
	CustomerRef       string
	PlanID            string
	PlanCategory      PlanCategory
	Amount            int64 // minor units, as supplied by the caller
	Currency          string
	Status            SessionStatus
	CampaignID        string
	ProviderPaymentID string
	OriginalPrice     int64 // echoes Plan.OriginalPrice for promotions
	CreatedAt         time.Time
	ExpiresAt         time.Time
	UpdatedAt         time.Time
}

// IsExpired reports whether the session is logically dead at now.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// CanTransition reports whether status may move to next. Re-applying the
// current status is allowed so provider redeliveries stay idempotent.
func (s *Session) CanTransition(next SessionStatus) bool {
	if s.Status == next {
		return true
	}
	return s.Status == SessionStatusPending
}

// Savings is OriginalPrice minus the charged amount, never negative.
func (s *Session) Savings() int64 {
	if s.OriginalPrice <= s.Amount {
		return 0
	}
	return s.OriginalPrice - s.Amount
}

// Clone returns a deep copy safe to hand out of a store.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
