package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/set-night/receiptbot/internal/domain"
	"github.com/shopspring/decimal"
)

func TestNormalizeTransactionsRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Transaction)
		minTags int
		want    string
	}{
		{"zero amount", func(tx *domain.Transaction) { tx.Amount = decimal.Zero }, 0, "amount"},
		{"negative amount", func(tx *domain.Transaction) { tx.Amount = decimal.RequireFromString("-3") }, 0, "amount"},
		{"blank description", func(tx *domain.Transaction) { tx.Description = "  " }, 0, "description"},
		{"no category", func(tx *domain.Transaction) { tx.Category = domain.Category{} }, 0, "category"},
		{"no date", func(tx *domain.Transaction) { tx.Date = time.Time{} }, 0, "date"},
		{"too few tags", func(tx *domain.Transaction) { tx.Tags = []string{"a"} }, 2, "tag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := coffee()
			tt.mutate(&tx)
			_, err := normalizeTransactions([]domain.Transaction{tx}, tt.minTags)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestNormalizeTransactionsEmpty(t *testing.T) {
	_, err := normalizeTransactions(nil, 0)
	if !errors.Is(err, domain.ErrEmptyExtraction) {
		t.Fatalf("err = %v, want ErrEmptyExtraction", err)
	}
}

func TestNormalizeTransactionsPrefixesIndex(t *testing.T) {
	bad := coffee()
	bad.Description = ""
	_, err := normalizeTransactions([]domain.Transaction{coffee(), bad}, 0)
	if err == nil || !strings.HasPrefix(err.Error(), "transaction 2:") {
		t.Fatalf("err = %v", err)
	}
}

func TestNormalizeTransactionsDoesNotAlias(t *testing.T) {
	in := []domain.Transaction{coffee(), coffee()}
	in[0].Tags = []string{"x"}

	out, err := normalizeTransactions(in, 0)
	if err != nil {
		t.Fatalf("normalizeTransactions: %v", err)
	}
	out[0].Tags[0] = "changed"
	if in[0].Tags[0] != "x" {
		t.Error("output shares tag storage with input")
	}
	if in[0].GroupTitle != "" {
		t.Error("input was modified")
	}
}

func TestGroupTitleFallback(t *testing.T) {
	got := groupTitle([]domain.Transaction{coffee(), coffee()})
	if got != "Receipt 2026-10-19" {
		t.Errorf("groupTitle = %q", got)
	}
}
