package service

import (
	"fmt"
	"strings"

	"github.com/set-night/receiptbot/internal/domain"
)

// normalizeTransactions applies the local sanity guard to extractor output
// and enforces the group title rule: two or more transactions share one
// title, a single transaction has none.
func normalizeTransactions(txs []domain.Transaction, minTags int) ([]domain.Transaction, error) {
	if len(txs) == 0 {
		return nil, domain.ErrEmptyExtraction
	}

	out := make([]domain.Transaction, len(txs))
	for i, tx := range txs {
		tx = tx.Clone()
		tx.Description = strings.TrimSpace(tx.Description)
		if err := validateTransaction(tx, minTags); err != nil {
			if len(txs) == 1 {
				return nil, err
			}
			return nil, fmt.Errorf("transaction %d: %w", i+1, err)
		}
		out[i] = tx
	}

	if len(out) == 1 {
		out[0].GroupTitle = ""
		return out, nil
	}

	title := groupTitle(out)
	for i := range out {
		out[i].GroupTitle = title
	}
	return out, nil
}

func validateTransaction(tx domain.Transaction, minTags int) error {
	if !tx.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", tx.Amount.String())
	}
	if tx.Description == "" {
		return fmt.Errorf("description is empty")
	}
	if tx.Category.ID == "" && strings.TrimSpace(tx.Category.Name) == "" {
		return fmt.Errorf("category is missing")
	}
	if tx.Date.IsZero() {
		return fmt.Errorf("date is missing")
	}
	if len(tx.Tags) < minTags {
		return fmt.Errorf("needs at least %d tag(s), got %d", minTags, len(tx.Tags))
	}
	return nil
}

// groupTitle picks the first title the extractor supplied, or derives one.
func groupTitle(txs []domain.Transaction) string {
	for _, tx := range txs {
		if t := strings.TrimSpace(tx.GroupTitle); t != "" {
			return t
		}
	}
	first := txs[0]
	if first.Destination != "" {
		return fmt.Sprintf("%s %s", first.Destination, first.Date.Format("2006-01-02"))
	}
	return fmt.Sprintf("Receipt %s", first.Date.Format("2006-01-02"))
}
