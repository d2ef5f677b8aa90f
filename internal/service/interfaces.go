package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/receiptbot/internal/domain"
	"github.com/shopspring/decimal"
)

// ExtractionRequest is everything the extractor sees for one submission.
type ExtractionRequest struct {
	Images       [][]byte
	History      []domain.MessageEntry
	Categories   []domain.Category
	Tags         []domain.Tag
	BudgetLimits []domain.BudgetLimit
	MinTags      int
}

// Extractor turns receipt photos and conversation text into transactions.
// It must accept requests without images.
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) ([]domain.Transaction, error)
}

// Ledger is the system of record for confirmed transactions.
type Ledger interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListTags(ctx context.Context) ([]domain.Tag, error)
	ListBudgetLimits(ctx context.Context) ([]domain.BudgetLimit, error)
	EnsureDefaultAccount(ctx context.Context) error
	// Submit stores txs as one group. false means the ledger declined them.
	Submit(ctx context.Context, txs []domain.Transaction) (bool, error)
}

// Notifier renders intake events to the user.
type Notifier interface {
	Notice(ctx context.Context, userID, text string)
	BatchAck(ctx context.Context, userID string, added, total int)
	ConfirmPrompt(ctx context.Context, userID string, txs []domain.Transaction)
	RetryPrompt(ctx context.Context, userID, reason string, attempt, maxAttempts int)
}

// Submission is a journal record of one confirmed group.
type Submission struct {
	ID         uuid.UUID
	UserID     string
	GroupTitle string
	Count      int
	Total      decimal.Decimal
	CreatedAt  time.Time
}

type Journal interface {
	Record(ctx context.Context, sub Submission) error
}

type nopJournal struct{}

func (nopJournal) Record(context.Context, Submission) error { return nil }
