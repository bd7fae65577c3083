package model

import "time"

type WebhookOutcome string

const (
	WebhookOutcomeApplied  WebhookOutcome = "applied"
	WebhookOutcomeIgnored  WebhookOutcome = "ignored"
	WebhookOutcomeNoTarget WebhookOutcome = "no_session"
)

// WebhookEventRecord is the audit trail of one verified provider delivery.
type WebhookEventRecord struct {
	ID         string // ULID
	EventID    string // provider event id; redeliveries reuse it
	Type       string
	SessionID  string
	Outcome    WebhookOutcome
	ReceivedAt time.Time
}
