package repository

import (
	"context"

	"chatbot-checkout/internal/domain/model"
)

// SessionStore owns the sessionID -> Session mapping.
//
// Implementations must make Update atomic with respect to every other
// operation on the same id: the callback observes the current value and its
// result is written back without an interleaving Put/Delete/Update.
// Get and Update return domain.ErrNotFound when the id is absent.
type SessionStore interface {
	Put(ctx context.Context, s *model.Session) error
	Get(ctx context.Context, id string) (*model.Session, error)
	Delete(ctx context.Context, id string) error
	// Update applies fn to a copy of the stored session and persists the copy
	// if fn returns nil. An error from fn aborts the write and is returned as-is.
	Update(ctx context.Context, id string, fn func(s *model.Session) error) (*model.Session, error)
	// All is used only by the eviction sweep.
	All(ctx context.Context) ([]*model.Session, error)
}
