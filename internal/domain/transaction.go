package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID   string
	Name string
}

type Tag struct {
	ID   string
	Name string
}

// BudgetLimit is the current-period snapshot of one budget.
type BudgetLimit struct {
	BudgetID   string
	BudgetName string
	Amount     decimal.Decimal
	Spent      decimal.Decimal
	Remaining  decimal.Decimal
	Currency   string
	Start      time.Time
	End        time.Time
}

// Transaction is both the extractor's output and the ledger's input.
type Transaction struct {
	Amount          decimal.Decimal
	Description     string
	Category        Category
	Date            time.Time
	Destination     string
	BudgetID        string
	BudgetName      string
	BudgetRemaining *decimal.Decimal
	Tags            []string
	GroupTitle      string
}

func (t Transaction) Clone() Transaction {
	c := t
	c.Tags = append([]string(nil), t.Tags...)
	if t.BudgetRemaining != nil {
		r := *t.BudgetRemaining
		c.BudgetRemaining = &r
	}
	return c
}
