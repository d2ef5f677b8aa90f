package handler

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/receiptbot/internal/config"
	"github.com/set-night/receiptbot/internal/domain"
	"github.com/set-night/receiptbot/internal/middleware"
	"github.com/set-night/receiptbot/internal/service"
	"github.com/set-night/receiptbot/internal/telegram"
)

const (
	downloadFailedText = "❌ Could not download the photo, please send it again."
	unsupportedText    = "Send a receipt photo or describe the purchase in text. /help shows how it works."
)

// HandleMessage routes photos, image documents and plain text. It is the
// bot's default handler, so unknown commands end up here too.
func (h *Handler) HandleMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	userID, chatID, ok := senderIDs(ctx)
	if !ok {
		return
	}

	switch {
	case len(msg.Photo) > 0:
		photo, _ := telegram.LargestPhoto(msg.Photo)
		h.handleImage(ctx, b, msg, userID, chatID, photo.FileID)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		h.handleImage(ctx, b, msg, userID, chatID, msg.Document.FileID)
	case strings.HasPrefix(msg.Text, "/"):
		h.reply(ctx, b, chatID, unsupportedText)
	case isFinalizeKeyword(msg.Text):
		h.finalize(ctx, b, userID, chatID)
	case strings.TrimSpace(msg.Text) != "":
		if err := h.intake.AddText(ctx, userID, msg.Text); err != nil {
			h.logIntakeError(err, "add text", userID)
		}
	default:
		h.reply(ctx, b, chatID, unsupportedText)
	}
}

func (h *Handler) handleImage(ctx context.Context, b *bot.Bot, msg *models.Message, userID string, chatID int64, fileID string) {
	image, err := telegram.DownloadFile(ctx, b, fileID)
	if err != nil {
		slog.Error("download photo", "error", err, "user_id", userID)
		h.tgLogger.LogError(err, "download photo for "+userID)
		h.reply(ctx, b, chatID, downloadFailedText)
		return
	}

	if msg.MediaGroupID != "" {
		err = h.intake.AddGroupedPhoto(ctx, userID, msg.MediaGroupID, image, msg.Caption)
	} else {
		err = h.intake.AddPhoto(ctx, userID, image, msg.Caption)
	}
	if err != nil {
		h.logIntakeError(err, "add photo", userID)
	}
}

// isFinalizeKeyword matches the plain-text finalize signals, ignoring case
// and trailing punctuation.
func isFinalizeKeyword(text string) bool {
	word := strings.ToLower(strings.TrimSpace(text))
	word = strings.TrimRight(word, ".!")
	return slices.Contains(config.FinalizeKeywords, word)
}

// logIntakeError logs failures the intake did not already report to the
// user as a notice.
func (h *Handler) logIntakeError(err error, op, userID string) {
	var failure *domain.Failure
	switch {
	case errors.Is(err, domain.ErrBusy),
		errors.Is(err, domain.ErrAwaitingDecision),
		errors.Is(err, domain.ErrNoMaterial),
		errors.Is(err, domain.ErrNothingToConfirm),
		errors.Is(err, domain.ErrNotAwaitingConfirm),
		errors.Is(err, service.ErrLedgerDeclined),
		errors.As(err, &failure):
		slog.Debug("intake rejected", "op", op, "user_id", userID, "reason", err)
	default:
		slog.Error("intake operation failed", "op", op, "error", err, "user_id", userID)
		h.tgLogger.LogError(err, op+" for "+userID)
	}
}

func senderIDs(ctx context.Context) (string, int64, bool) {
	s, ok := middleware.GetSender(ctx)
	if !ok {
		return "", 0, false
	}
	return strconv.FormatInt(s.UserID, 10), s.ChatID, true
}
