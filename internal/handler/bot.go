package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/receiptbot/internal/config"
	"github.com/set-night/receiptbot/internal/middleware"
)

// BotOptions is the dispatch setup shared by main and the tests: the
// middleware chain, the default handler and sequential update handling.
//
// Updates are handled one at a time in the order Telegram delivered them, so
// a photo is appended before the "next" that follows it and album photos
// reach the aggregator in message order. Extraction runs detached from the
// handler, so a slow model call does not hold up other chats.
//
// current is resolved per update because the Handler needs the bot it is
// installed on.
func BotOptions(isAllowed func(int64) bool, report func(any), current func() *Handler) []bot.Option {
	return []bot.Option{
		bot.WithNotAsyncHandlers(),
		bot.WithMiddlewares(
			middleware.Recover(report),
			middleware.Logging(),
			middleware.Allowlist(isAllowed),
			middleware.RateLimit(config.RateLimitPerMinute),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			h := current()
			if h == nil {
				return
			}
			h.HandleMessage(ctx, b, update)
		}),
	}
}
