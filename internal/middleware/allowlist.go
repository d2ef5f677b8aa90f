package middleware

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Allowlist drops updates from users the predicate rejects and from
// non-private chats. Accepted updates carry their Sender in ctx.
func Allowlist(isAllowed func(int64) bool) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			sender, _, ok := senderOf(update)
			if !ok {
				return
			}
			if sender.ChatID != sender.UserID {
				slog.Debug("ignoring non-private chat", "chat_id", sender.ChatID, "user_id", sender.UserID)
				return
			}
			if !isAllowed(sender.UserID) {
				slog.Warn("update from user not on allowlist", "user_id", sender.UserID)
				return
			}

			next(WithSender(ctx, sender), b, update)
		}
	}
}
