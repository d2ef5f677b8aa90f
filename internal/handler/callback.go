package handler

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/receiptbot/internal/domain"
	"github.com/set-night/receiptbot/internal/telegram"
)

type actionFunc func(ctx context.Context, userID string) error

// actionTable maps every inline keyboard action to its intake operation.
func (h *Handler) actionTable() map[domain.Action]actionFunc {
	return map[domain.Action]actionFunc{
		domain.ActionConfirm:  h.confirm,
		domain.ActionRefine:   h.intake.Refine,
		domain.ActionRetry:    h.intake.Retry,
		domain.ActionFinalize: h.intake.Finalize,
		domain.ActionCancel:   h.cancel,
	}
}

func (h *Handler) handleAction(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID})

	userID, chatID, ok := senderIDs(ctx)
	if !ok {
		return
	}

	action, err := domain.ParseAction(cq.Data)
	if err != nil {
		slog.Warn("parse callback action", "error", err, "user_id", userID)
		return
	}
	run, ok := h.actions[action]
	if !ok {
		slog.Error("no handler for action", "action", action, "user_id", userID)
		return
	}

	if action == domain.ActionFinalize || action == domain.ActionRetry {
		telegram.SendTyping(ctx, b, chatID)
	}

	if err := run(ctx, userID); err != nil {
		h.logIntakeError(err, string(action), userID)
		return
	}

	if msg := cq.Message.Message; msg != nil {
		telegram.ClearKeyboard(ctx, b, msg.Chat.ID, msg.ID)
	}
}

// confirm submits and mirrors the result to the log chat.
func (h *Handler) confirm(ctx context.Context, userID string) error {
	snap, _ := h.intake.Snapshot(userID)
	if err := h.intake.Confirm(ctx, userID); err != nil {
		return err
	}
	h.tgLogger.LogSubmitted(userID, snap.Transactions)
	return nil
}

func (h *Handler) cancel(ctx context.Context, userID string) error {
	h.intake.Cancel(ctx, userID)
	return nil
}
