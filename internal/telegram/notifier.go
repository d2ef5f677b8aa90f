package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/receiptbot/internal/domain"
	"github.com/set-night/receiptbot/internal/service"
)

// Notifier delivers intake events to private chats. User ids are Telegram
// user ids, which equal the private chat id.
type Notifier struct {
	bot    *bot.Bot
	logger *TelegramLogger
}

func NewNotifier(b *bot.Bot, logger *TelegramLogger) *Notifier {
	return &Notifier{bot: b, logger: logger}
}

func (n *Notifier) Notice(ctx context.Context, userID, text string) {
	n.send(ctx, userID, text, nil)
}

func (n *Notifier) BatchAck(ctx context.Context, userID string, added, total int) {
	text := fmt.Sprintf("📷 Added %d photo(s) from the album (%d in total). Send more or press Finalize.", added, total)
	n.send(ctx, userID, text, FinalizeKeyboard())
}

func (n *Notifier) ConfirmPrompt(ctx context.Context, userID string, txs []domain.Transaction) {
	text := "Please check the transactions:\n\n" + service.FormatTransactions(txs)
	n.send(ctx, userID, text, ConfirmKeyboard())
}

func (n *Notifier) RetryPrompt(ctx context.Context, userID, reason string, attempt, maxAttempts int) {
	text := fmt.Sprintf("⚠️ %s\n\nAttempt %d of %d failed. Add details or press Retry.", reason, attempt, maxAttempts)
	n.send(ctx, userID, text, RetryKeyboard())
}

func (n *Notifier) send(ctx context.Context, userID, text string, markup models.ReplyMarkup) {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		slog.Error("invalid user id for notification", "user_id", userID, "error", err)
		return
	}

	// Detached submissions outlive the update that started them.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}

	if err := SendLongMessage(ctx, n.bot, chatID, text, markup); err != nil {
		slog.Error("send notification", "error", err, "user_id", userID)
		n.logger.LogError(err, "notify user "+userID)
	}
}

var _ service.Notifier = (*Notifier)(nil)
