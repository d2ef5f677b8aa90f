package telegram

import (
	"github.com/go-telegram/bot/models"
	"github.com/set-night/receiptbot/internal/domain"
)

// InlineButton creates a single inline keyboard button.
func InlineButton(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// InlineKeyboard creates an inline keyboard from rows of buttons.
func InlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// ButtonRow creates a row of inline buttons.
func ButtonRow(buttons ...models.InlineKeyboardButton) []models.InlineKeyboardButton {
	return buttons
}

// ActionButton creates a button that triggers an intake action.
func ActionButton(text string, action domain.Action) models.InlineKeyboardButton {
	return InlineButton(text, action.CallbackData())
}

// ConfirmKeyboard is attached to extracted transactions.
func ConfirmKeyboard() *models.InlineKeyboardMarkup {
	return InlineKeyboard(
		ButtonRow(ActionButton("✅ Confirm", domain.ActionConfirm)),
		ButtonRow(
			ActionButton("✏️ Refine", domain.ActionRefine),
			ActionButton("❌ Cancel", domain.ActionCancel),
		),
	)
}

// RetryKeyboard is attached to recoverable failures.
func RetryKeyboard() *models.InlineKeyboardMarkup {
	return InlineKeyboard(
		ButtonRow(
			ActionButton("🔁 Retry", domain.ActionRetry),
			ActionButton("❌ Cancel", domain.ActionCancel),
		),
	)
}

// FinalizeKeyboard lets the user finish adding material.
func FinalizeKeyboard() *models.InlineKeyboardMarkup {
	return InlineKeyboard(
		ButtonRow(
			ActionButton("➡️ Finalize", domain.ActionFinalize),
			ActionButton("❌ Cancel", domain.ActionCancel),
		),
	)
}
