package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/receiptbot/internal/domain"
	"github.com/set-night/receiptbot/internal/session"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ErrLedgerDeclined is returned by Confirm when the ledger answered false.
var ErrLedgerDeclined = errors.New("ledger declined the transactions")

// Submitter is the only component that talks to the extractor and the ledger.
type Submitter struct {
	store     session.Store
	locks     *session.KeyedMutex
	extractor Extractor
	ledger    Ledger
	notifier  Notifier
	journal   Journal
	opts      Options
	now       func() time.Time
}

// submissionJob is what survives the lock release between prepare and
// execute: a copy of the material plus the identity it belongs to.
type submissionJob struct {
	userID    string
	sessionID string
	images    [][]byte
	history   []domain.MessageEntry
}

// prepare validates the finalize trigger and moves the session to
// Processing. The caller holds the user's lock.
func (s *Submitter) prepare(ctx context.Context, sess *domain.Session) (*submissionJob, error) {
	switch sess.Status {
	case domain.StatusProcessing, domain.StatusAwaitingFinalization:
		s.notifier.Notice(ctx, sess.UserID, msgBusy)
		return nil, domain.ErrBusy
	case domain.StatusAwaitingConfirmation:
		s.notifier.Notice(ctx, sess.UserID, msgAwaitingDecision)
		return nil, domain.ErrAwaitingDecision
	}

	if !sess.HasMaterial() && !s.opts.AllowEmptyFinalize {
		s.notifier.Notice(ctx, sess.UserID, msgNoMaterial)
		return nil, domain.ErrNoMaterial
	}

	now := s.now()
	if sess.Status == domain.StatusIdle {
		transition(sess, domain.StatusAwaitingInput, now)
	}
	transition(sess, domain.StatusAwaitingFinalization, now)
	transition(sess, domain.StatusProcessing, now)

	job := &submissionJob{
		userID:    sess.UserID,
		sessionID: sess.ID,
		images:    append([][]byte(nil), sess.Images...),
		history:   append([]domain.MessageEntry(nil), sess.Messages...),
	}

	slog.Info("submission started",
		"user_id", sess.UserID,
		"session_id", sess.ID,
		"images", len(job.images),
		"messages", len(job.history),
		"attempt", sess.ProcessingAttempts+1,
	)
	s.notifier.Notice(ctx, sess.UserID, msgProcessing)
	return job, nil
}

// execute runs the collaborator calls without the lock, then re-acquires it
// and applies the outcome only if the session is still the one that started
// the job.
func (s *Submitter) execute(ctx context.Context, job *submissionJob) {
	txs, err := s.extract(ctx, job)

	unlock := s.locks.Lock(job.userID)
	defer unlock()

	sess, ok := s.store.Get(job.userID)
	if !ok || sess.ID != job.sessionID || sess.Status != domain.StatusProcessing {
		slog.Info("discarding extraction result for reset session",
			"user_id", job.userID,
			"session_id", job.sessionID,
			"failed", err != nil,
		)
		return
	}

	if err != nil && ctx.Err() != nil {
		// Shutdown or an abandoned update, not the extractor's fault. The
		// session stays in Processing and is not charged an attempt.
		slog.Info("extraction interrupted", "user_id", job.userID, "session_id", job.sessionID, "error", err)
		return
	}
	if err != nil {
		s.fail(ctx, sess, err)
		return
	}

	sess.Transactions = txs
	sess.LastError = ""
	sess.AppendMessage(domain.MessageEntry{
		Role:      domain.RoleAssistant,
		Content:   summarizeTransactions(txs),
		Timestamp: s.now(),
	})
	transition(sess, domain.StatusAwaitingConfirmation, s.now())

	slog.Info("submission extracted", "user_id", job.userID, "transactions", len(txs))
	s.notifier.ConfirmPrompt(ctx, job.userID, txs)
}

// extract fetches ledger side data, calls the extractor once and validates
// the result. Every error it returns is a *domain.Failure.
func (s *Submitter) extract(ctx context.Context, job *submissionJob) ([]domain.Transaction, error) {
	var (
		categories []domain.Category
		tags       []domain.Tag
		budgets    []domain.BudgetLimit
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.ledger.ListCategories(gctx)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		categories = c
		return nil
	})
	g.Go(func() error {
		t, err := s.ledger.ListTags(gctx)
		if err != nil {
			return fmt.Errorf("list tags: %w", err)
		}
		tags = t
		return nil
	})
	g.Go(func() error {
		b, err := s.ledger.ListBudgetLimits(gctx)
		if err != nil {
			return fmt.Errorf("list budget limits: %w", err)
		}
		budgets = b
		return nil
	})
	g.Go(func() error {
		if err := s.ledger.EnsureDefaultAccount(gctx); err != nil {
			return fmt.Errorf("default account: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		slog.Error("fetch ledger side data", "error", err, "user_id", job.userID)
		return nil, &domain.Failure{
			Kind:    domain.FailureSideData,
			Message: "ledger data unavailable: " + err.Error(),
			Err:     err,
		}
	}

	req := ExtractionRequest{
		Images:       job.images,
		History:      job.history,
		Categories:   categories,
		Tags:         tags,
		BudgetLimits: budgets,
		MinTags:      s.opts.MinTags,
	}

	extractCtx := ctx
	if s.opts.ExtractionTimeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, s.opts.ExtractionTimeout)
		defer cancel()
	}

	txs, err := s.extractor.Extract(extractCtx, req)
	if err != nil {
		slog.Error("extract transactions", "error", err, "user_id", job.userID)
		return nil, domain.NewFailure(domain.FailureExtraction, err)
	}

	txs, err = normalizeTransactions(txs, s.opts.MinTags)
	if err != nil {
		slog.Warn("extractor output rejected", "error", err, "user_id", job.userID)
		return nil, domain.NewFailure(domain.FailureValidation, err)
	}
	return txs, nil
}

// fail records a failed attempt. Once MaxAttempts is reached the session is
// reset; otherwise it goes back to input with everything kept.
func (s *Submitter) fail(ctx context.Context, sess *domain.Session, err error) {
	var failure *domain.Failure
	if !errors.As(err, &failure) {
		failure = domain.NewFailure(domain.FailureExtraction, err)
	}

	sess.ProcessingAttempts++
	sess.LastError = failure.Message

	slog.Warn("submission failed",
		"user_id", sess.UserID,
		"kind", failure.Kind,
		"attempt", sess.ProcessingAttempts,
		"max_attempts", s.opts.MaxAttempts,
		"error", failure.Message,
	)

	if sess.ProcessingAttempts >= s.opts.MaxAttempts {
		s.store.Reset(sess.UserID, false)
		s.notifier.Notice(ctx, sess.UserID, fmt.Sprintf(msgExhausted, s.opts.MaxAttempts, failure.Message))
		return
	}

	transition(sess, domain.StatusAwaitingInput, s.now())
	s.notifier.RetryPrompt(ctx, sess.UserID, failure.Message, sess.ProcessingAttempts, s.opts.MaxAttempts)
}

// confirm sends the pending transactions to the ledger. The caller holds the
// user's lock for the whole call so a double tap cannot submit twice.
func (s *Submitter) confirm(ctx context.Context, sess *domain.Session) error {
	if sess.Status != domain.StatusAwaitingConfirmation || len(sess.Transactions) == 0 {
		s.notifier.Notice(ctx, sess.UserID, msgNothingToConfirm)
		return domain.ErrNothingToConfirm
	}

	txs := sess.Transactions
	ok, err := s.ledger.Submit(ctx, txs)
	if err != nil {
		kind := ClassifyLedgerError(err)
		slog.Error("submit transactions", "error", err, "kind", kind, "user_id", sess.UserID)
		s.notifier.Notice(ctx, sess.UserID, ledgerErrorMessage(kind, err))
		return fmt.Errorf("submit transactions: %w", err)
	}
	if !ok {
		slog.Warn("ledger declined transactions", "user_id", sess.UserID, "count", len(txs))
		s.notifier.Notice(ctx, sess.UserID, msgDeclined)
		return ErrLedgerDeclined
	}

	sub := Submission{
		ID:         uuid.New(),
		UserID:     sess.UserID,
		GroupTitle: txs[0].GroupTitle,
		Count:      len(txs),
		Total:      totalAmount(txs),
		CreatedAt:  s.now(),
	}
	if err := s.journal.Record(ctx, sub); err != nil {
		slog.Error("record submission", "error", err, "user_id", sess.UserID)
	}

	s.store.Reset(sess.UserID, false)
	slog.Info("transactions submitted", "user_id", sess.UserID, "count", len(txs), "total", sub.Total.String())
	s.notifier.Notice(ctx, sess.UserID, fmt.Sprintf(msgSubmitted, len(txs)))
	return nil
}

func totalAmount(txs []domain.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return total
}
