package middleware

import (
	"context"

	"github.com/go-telegram/bot/models"
)

type ctxKey string

const SenderKey ctxKey = "sender"

// Sender identifies who sent an update and where to answer.
type Sender struct {
	UserID int64
	ChatID int64
}

// GetSender extracts the sender stored by Allowlist.
func GetSender(ctx context.Context) (Sender, bool) {
	s, ok := ctx.Value(SenderKey).(Sender)
	return s, ok
}

// WithSender stores s in ctx.
func WithSender(ctx context.Context, s Sender) context.Context {
	return context.WithValue(ctx, SenderKey, s)
}

// senderOf extracts the user and chat of a message or callback update.
func senderOf(update *models.Update) (Sender, string, bool) {
	switch {
	case update.Message != nil:
		if update.Message.From == nil {
			return Sender{}, "message", false
		}
		return Sender{UserID: update.Message.From.ID, ChatID: update.Message.Chat.ID}, "message", true
	case update.CallbackQuery != nil:
		s := Sender{UserID: update.CallbackQuery.From.ID, ChatID: update.CallbackQuery.From.ID}
		if msg := update.CallbackQuery.Message.Message; msg != nil {
			s.ChatID = msg.Chat.ID
		}
		return s, "callback_query", true
	default:
		return Sender{}, "unknown", false
	}
}
