package service

import (
	"fmt"
	"strings"

	"github.com/set-night/receiptbot/internal/domain"
)

// FormatTransactions renders transactions for the confirmation prompt.
func FormatTransactions(txs []domain.Transaction) string {
	var sb strings.Builder
	if len(txs) > 1 && txs[0].GroupTitle != "" {
		sb.WriteString(fmt.Sprintf("🧾 %s\n\n", txs[0].GroupTitle))
	}
	for i, tx := range txs {
		if i > 0 {
			sb.WriteString("\n")
		}
		if len(txs) > 1 {
			sb.WriteString(fmt.Sprintf("%d. ", i+1))
		}
		sb.WriteString(formatTransaction(tx))
	}
	sb.WriteString(fmt.Sprintf("\n\nTotal: %s", totalAmount(txs).StringFixed(2)))
	return sb.String()
}

func formatTransaction(tx domain.Transaction) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💸 %s — %s\n", tx.Amount.StringFixed(2), tx.Description))
	sb.WriteString(fmt.Sprintf("📅 %s\n", tx.Date.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("📂 %s\n", categoryLabel(tx.Category)))
	if tx.Destination != "" {
		sb.WriteString(fmt.Sprintf("🏪 %s\n", tx.Destination))
	}
	if tx.BudgetName != "" {
		budget := tx.BudgetName
		if tx.BudgetRemaining != nil {
			budget += fmt.Sprintf(" (left: %s)", tx.BudgetRemaining.StringFixed(2))
		}
		sb.WriteString(fmt.Sprintf("💼 %s\n", budget))
	}
	if len(tx.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("🏷 %s\n", strings.Join(tx.Tags, ", ")))
	}
	return sb.String()
}

func categoryLabel(c domain.Category) string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// summarizeTransactions is the assistant log entry recorded after a
// successful extraction; it is part of the history on a refine.
func summarizeTransactions(txs []domain.Transaction) string {
	parts := make([]string, len(txs))
	for i, tx := range txs {
		parts[i] = fmt.Sprintf("%s %s (%s, %s)", tx.Amount.StringFixed(2), tx.Description,
			categoryLabel(tx.Category), tx.Date.Format("2006-01-02"))
	}
	return "Extracted: " + strings.Join(parts, "; ")
}
