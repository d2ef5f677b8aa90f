package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/receiptbot/internal/service"
	"github.com/shopspring/decimal"
)

// Journal records confirmed submissions in Postgres. Session state itself is
// never persisted.
type Journal struct {
	db *pgxpool.Pool
}

func NewJournal(db *pgxpool.Pool) *Journal {
	return &Journal{db: db}
}

const insertSubmission = `
INSERT INTO submissions (id, user_id, group_title, tx_count, total, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

func (j *Journal) Record(ctx context.Context, sub service.Submission) error {
	_, err := j.db.Exec(ctx, insertSubmission,
		sub.ID,
		sub.UserID,
		sub.GroupTitle,
		sub.Count,
		sub.Total.StringFixed(2),
		timeToPgTimestamptz(sub.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

const recentSubmissions = `
SELECT id, user_id, group_title, tx_count, total::text, created_at
FROM submissions
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2`

// Recent returns the user's latest submissions, newest first.
func (j *Journal) Recent(ctx context.Context, userID string, limit int) ([]service.Submission, error) {
	rows, err := j.db.Query(ctx, recentSubmissions, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}

	subs, err := pgx.CollectRows(rows, scanSubmission)
	if err != nil {
		return nil, fmt.Errorf("scan submissions: %w", err)
	}
	return subs, nil
}

func scanSubmission(row pgx.CollectableRow) (service.Submission, error) {
	var (
		sub       service.Submission
		id        uuid.UUID
		total     string
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &sub.UserID, &sub.GroupTitle, &sub.Count, &total, &createdAt); err != nil {
		return service.Submission{}, err
	}

	amount, err := decimal.NewFromString(total)
	if err != nil {
		return service.Submission{}, fmt.Errorf("parse total %q: %w", total, err)
	}

	sub.ID = id
	sub.Total = amount
	sub.CreatedAt = pgTimestamptzToTime(createdAt)
	return sub, nil
}

func pgTimestamptzToTime(ts pgtype.Timestamptz) time.Time {
	if ts.Valid {
		return ts.Time
	}
	return time.Time{}
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}
