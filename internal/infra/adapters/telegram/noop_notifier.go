package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"chatbot-checkout/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

// NoopNotifier logs notifications instead of sending them. Used when no bot is configured.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	l := logger.With().Str("component", "NoopNotifier").Logger()
	return &NoopNotifier{log: &l}
}

func (n *NoopNotifier) Notify(ctx context.Context, text string) error {
	n.log.Debug().Str("text", text).Msg("notification suppressed")
	return nil
}
