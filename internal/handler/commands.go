package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/receiptbot/internal/telegram"
)

const (
	historyLimit = 10

	helpText = "🧾 Receipt bot\n\n" +
		"1. Send one or more receipt photos (an album works too) and/or describe the purchase in text.\n" +
		"2. Type \"next\" or press Finalize when you're done.\n" +
		"3. Check the extracted transactions, then Confirm, Refine or Cancel.\n\n" +
		"Commands:\n" +
		"/next — process what you sent\n" +
		"/cancel — start over\n" +
		"/status — current state\n" +
		"/history — recently saved receipts\n" +
		"/help — this message"
)

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	userID, chatID, ok := senderIDs(ctx)
	if !ok {
		return
	}
	h.intake.Start(ctx, userID)
	h.reply(ctx, b, chatID, helpText)
}

func (h *Handler) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if _, chatID, ok := senderIDs(ctx); ok {
		h.reply(ctx, b, chatID, helpText)
	}
}

func (h *Handler) handleCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	if userID, _, ok := senderIDs(ctx); ok {
		h.intake.Cancel(ctx, userID)
	}
}

func (h *Handler) handleNext(ctx context.Context, b *bot.Bot, update *models.Update) {
	userID, chatID, ok := senderIDs(ctx)
	if !ok {
		return
	}
	h.finalize(ctx, b, userID, chatID)
}

func (h *Handler) handleStatus(ctx context.Context, b *bot.Bot, update *models.Update) {
	if userID, _, ok := senderIDs(ctx); ok {
		h.intake.Status(ctx, userID)
	}
}

func (h *Handler) handleHistory(ctx context.Context, b *bot.Bot, update *models.Update) {
	userID, chatID, ok := senderIDs(ctx)
	if !ok {
		return
	}
	if h.history == nil {
		h.reply(ctx, b, chatID, "History is not enabled.")
		return
	}

	subs, err := h.history.Recent(ctx, userID, historyLimit)
	if err != nil {
		slog.Error("load history", "error", err, "user_id", userID)
		h.tgLogger.LogError(err, "history for "+userID)
		h.reply(ctx, b, chatID, "❌ Could not load history.")
		return
	}
	if len(subs) == 0 {
		h.reply(ctx, b, chatID, "Nothing saved yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🗂 Recently saved:\n")
	for _, s := range subs {
		title := s.GroupTitle
		if title == "" {
			title = "single transaction"
		}
		sb.WriteString(fmt.Sprintf("\n%s · %s · %d tx · %s",
			s.CreatedAt.Format("2006-01-02 15:04"), title, s.Count, s.Total.StringFixed(2)))
	}
	h.reply(ctx, b, chatID, sb.String())
}

func (h *Handler) finalize(ctx context.Context, b *bot.Bot, userID string, chatID int64) {
	telegram.SendTyping(ctx, b, chatID)
	if err := h.intake.Finalize(ctx, userID); err != nil {
		h.logIntakeError(err, "finalize", userID)
	}
}

func (h *Handler) reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if err := telegram.SendLongMessage(ctx, b, chatID, text, nil); err != nil {
		slog.Error("send reply", "error", err, "chat_id", chatID)
	}
}
