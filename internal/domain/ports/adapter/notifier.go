package adapter

import "context"

// Notifier posts a short operator message (new paid customer, activation, ...).
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
