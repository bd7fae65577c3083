package repository

import (
	"context"

	"chatbot-checkout/internal/domain/model"
)

// WebhookEventLog keeps an audit trail of verified deliveries.
type WebhookEventLog interface {
	// Record stores rec. duplicate is true when rec.EventID was already seen;
	// the row is not written twice, its delivery count is bumped instead.
	Record(ctx context.Context, tx Tx, rec *model.WebhookEventRecord) (duplicate bool, err error)
	// CountByEventID returns how many deliveries of eventID were recorded.
	CountByEventID(ctx context.Context, tx Tx, eventID string) (int, error)
}
