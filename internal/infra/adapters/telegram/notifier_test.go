//go:build !integration

package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestNotifier_SendsToConfiguredChat(t *testing.T) {
	fs := &fakeSender{}
	n := &Notifier{bot: fs, chatID: 42}

	if err := n.Notify(context.Background(), "paid"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(fs.sent) != 1 {
		t.Fatalf("sent %d messages", len(fs.sent))
	}
	msg, ok := fs.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("unexpected chattable %T", fs.sent[0])
	}
	if msg.ChatID != 42 || msg.Text != "paid" {
		t.Errorf("msg = %+v", msg)
	}
}

func TestNotifier_PropagatesSendError(t *testing.T) {
	boom := errors.New("boom")
	n := &Notifier{bot: &fakeSender{err: boom}, chatID: 1}
	if err := n.Notify(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestNotifier_HonoursCancelledContext(t *testing.T) {
	fs := &fakeSender{}
	n := &Notifier{bot: fs, chatID: 1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Notify(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(fs.sent) != 0 {
		t.Fatal("message sent despite cancelled context")
	}
}
