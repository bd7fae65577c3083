package model

import "time"

// RecordStatus is the outcome being mirrored into the customer record.
type RecordStatus string

const (
	RecordStatusPending              RecordStatus = "PENDING"
	RecordStatusCompleted            RecordStatus = "COMPLETED"
	RecordStatusFailed               RecordStatus = "FAILED"
	RecordStatusSubscriptionActive   RecordStatus = "SUBSCRIPTION_ACTIVE"
	RecordStatusSubscriptionCanceled RecordStatus = "SUBSCRIPTION_CANCELED"
)

// RecordStatusFor maps a session status onto the record vocabulary.
func RecordStatusFor(s SessionStatus) RecordStatus {
	switch s {
	case SessionStatusCompleted:
		return RecordStatusCompleted
	case SessionStatusFailed:
		return RecordStatusFailed
	}
	return RecordStatusPending
}

// Lifecycle is the human-readable status column shown to the sales team.
func (s RecordStatus) Lifecycle() string {
	switch s {
	case RecordStatusCompleted:
		return "Paid - Awaiting Setup"
	case RecordStatusFailed:
		return "Payment Failed"
	case RecordStatusSubscriptionActive:
		return "Active Subscriber"
	case RecordStatusSubscriptionCanceled:
		return "Subscription Canceled"
	}
	return "Payment Pending"
}

// CustomerRecord is a row in the external customer table, keyed by email.
type CustomerRecord struct {
	ID     string
	Email  string
	Fields map[string]any
}

// RecordPatch is the set of columns reconciliation writes.
type RecordPatch struct {
	PaymentStatus RecordStatus
	PaymentID     string
	PaymentDate   time.Time
	Lifecycle     string
	SessionID     string
	Savings       int64 // minor units; 0 = not a promotion
}
