package handler

import (
	"github.com/go-telegram/bot"
	"github.com/set-night/receiptbot/internal/domain"
)

// Register registers all command and callback handlers on the bot instance.
// Photos and plain text reach HandleMessage through the bot's default handler.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, h.handleHelp)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cancel", bot.MatchTypePrefix, h.handleCancel)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/next", bot.MatchTypePrefix, h.handleNext)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/status", bot.MatchTypePrefix, h.handleStatus)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/history", bot.MatchTypePrefix, h.handleHistory)

	// Inline keyboard actions
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, domain.CallbackPrefix, bot.MatchTypePrefix, h.handleAction)
}
