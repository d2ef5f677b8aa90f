package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/set-night/receiptbot/internal/config"
	"github.com/set-night/receiptbot/internal/domain"
	"github.com/shopspring/decimal"
)

// TelegramLogger mirrors notable events to a forum chat, one topic per type.
type TelegramLogger struct {
	bot *bot.Bot
	cfg *config.Config
}

func NewTelegramLogger(b *bot.Bot, cfg *config.Config) *TelegramLogger {
	return &TelegramLogger{bot: b, cfg: cfg}
}

type LogType string

const (
	LogTypeError     LogType = "error"
	LogTypeSubmitted LogType = "submitted"
)

func (l *TelegramLogger) Log(logType LogType, message string) {
	if l == nil || l.cfg.LogTelegramChatID == 0 {
		return
	}

	topicID := l.topicID(logType)
	if topicID == 0 {
		return
	}

	if len([]rune(message)) > config.MaxTelegramMessageLen {
		message = string([]rune(message)[:config.MaxTelegramMessageLen-20]) + "\n\n... (truncated)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := l.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          l.cfg.LogTelegramChatID,
		Text:            message,
		ParseMode:       "Markdown",
		MessageThreadID: topicID,
	})
	if err != nil {
		slog.Error("failed to send telegram log", "type", logType, "error", err)
	}
}

func (l *TelegramLogger) LogError(err error, context string) {
	msg := fmt.Sprintf("❌ *Error*\n\n*Context:* %s\n*Error:* `%s`\n*Time:* %s",
		EscapeMarkdown(context), EscapeMarkdown(err.Error()), time.Now().Format("2006-01-02 15:04:05"))
	l.Log(LogTypeError, msg)
}

func (l *TelegramLogger) LogSubmitted(userID string, txs []domain.Transaction) {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	msg := fmt.Sprintf("🧾 *Submitted*\n\n*User:* `%s`\n*Transactions:* %d\n*Total:* %s",
		EscapeMarkdown(userID), len(txs), total.StringFixed(2))
	if len(txs) > 1 && txs[0].GroupTitle != "" {
		msg += fmt.Sprintf("\n*Group:* %s", EscapeMarkdown(txs[0].GroupTitle))
	}
	l.Log(LogTypeSubmitted, msg)
}

func (l *TelegramLogger) topicID(logType LogType) int {
	switch logType {
	case LogTypeError:
		return l.cfg.LogTopicError
	case LogTypeSubmitted:
		return l.cfg.LogTopicSubmitted
	default:
		return 0
	}
}
