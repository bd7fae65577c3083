package adapter

import (
	"context"

	"chatbot-checkout/internal/domain/model"
)

// RecordStore is the external spreadsheet-like customer table.
type RecordStore interface {
	// FindByEmail returns domain.ErrNotFound when no row matches.
	FindByEmail(ctx context.Context, email string) (*model.CustomerRecord, error)
	Patch(ctx context.Context, recordID string, patch model.RecordPatch) error
}
