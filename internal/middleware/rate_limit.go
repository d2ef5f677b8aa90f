package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const rateLimitText = "⏳ Too many messages. Please wait a moment."

// RateLimit returns middleware that enforces a per-minute message limit per
// chat. Callback queries are not limited.
func RateLimit(perMinute int) bot.Middleware {
	limiter := newWindowLimiter(perMinute, time.Minute)

	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update.Message == nil {
				next(ctx, b, update)
				return
			}

			chatID := update.Message.Chat.ID
			if !limiter.allow(chatID) {
				slog.Debug("rate limited", "chat_id", chatID, "limit", perMinute)
				b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: chatID,
					Text:   rateLimitText,
				})
				return
			}

			next(ctx, b, update)
		}
	}
}

type window struct {
	start time.Time
	count int
}

// windowLimiter is a fixed-window counter keyed by chat id.
type windowLimiter struct {
	mu        sync.Mutex
	limit     int
	period    time.Duration
	windows   map[int64]*window
	lastPrune time.Time
	now       func() time.Time
}

func newWindowLimiter(limit int, period time.Duration) *windowLimiter {
	return &windowLimiter{
		limit:   limit,
		period:  period,
		windows: make(map[int64]*window),
		now:     time.Now,
	}
}

func (l *windowLimiter) allow(key int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) > l.period {
		for k, w := range l.windows {
			if now.Sub(w.start) >= l.period {
				delete(l.windows, k)
			}
		}
		l.lastPrune = now
	}

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.period {
		w = &window{start: now}
		l.windows[key] = w
	}
	w.count++
	return w.count <= l.limit
}
