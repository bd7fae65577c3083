package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chatbot-checkout/internal/config"
	"chatbot-checkout/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*Notifier)(nil)

// sender is the slice of *tgbotapi.BotAPI the notifier needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts operator notifications to a fixed Telegram chat.
type Notifier struct {
	bot    sender
	chatID int64
}

func NewNotifier(cfg config.TelegramConfig) (*Notifier, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return &Notifier{bot: bot, chatID: cfg.ChatID}, nil
}

func (n *Notifier) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	_, err := n.bot.Send(msg)
	return err
}
