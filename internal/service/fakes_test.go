package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/set-night/receiptbot/internal/domain"
	"github.com/set-night/receiptbot/internal/session"
	"github.com/shopspring/decimal"
)

type fakeExtractor struct {
	mu       sync.Mutex
	requests []ExtractionRequest
	started  chan struct{}
	release  chan struct{}
	fn       func(req ExtractionRequest) ([]domain.Transaction, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, req ExtractionRequest) ([]domain.Transaction, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.fn
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fn == nil {
		return []domain.Transaction{coffee()}, nil
	}
	return fn(req)
}

func (f *fakeExtractor) calls() []ExtractionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ExtractionRequest(nil), f.requests...)
}

type fakeLedger struct {
	mu         sync.Mutex
	categories []domain.Category
	sideErr    error
	accountErr error
	submitOK   bool
	submitErr  error
	submitted  [][]domain.Transaction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		categories: []domain.Category{{ID: "1", Name: "Food"}},
		submitOK:   true,
	}
}

func (f *fakeLedger) ListCategories(context.Context) ([]domain.Category, error) {
	if f.sideErr != nil {
		return nil, f.sideErr
	}
	return f.categories, nil
}

func (f *fakeLedger) ListTags(context.Context) ([]domain.Tag, error) {
	return []domain.Tag{{ID: "1", Name: "work"}}, nil
}

func (f *fakeLedger) ListBudgetLimits(context.Context) ([]domain.BudgetLimit, error) {
	return nil, nil
}

func (f *fakeLedger) EnsureDefaultAccount(context.Context) error {
	return f.accountErr
}

func (f *fakeLedger) Submit(_ context.Context, txs []domain.Transaction) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return false, f.submitErr
	}
	if f.submitOK {
		f.submitted = append(f.submitted, txs)
	}
	return f.submitOK, nil
}

func (f *fakeLedger) submissions() [][]domain.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]domain.Transaction(nil), f.submitted...)
}

type notice struct {
	kind   string
	userID string
	text   string
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notice
}

func (f *fakeNotifier) record(kind, userID, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, notice{kind: kind, userID: userID, text: text})
}

func (f *fakeNotifier) Notice(_ context.Context, userID, text string) {
	f.record("notice", userID, text)
}

func (f *fakeNotifier) BatchAck(_ context.Context, userID string, added, total int) {
	f.record("batch", userID, fmt.Sprintf("%d/%d", added, total))
}

func (f *fakeNotifier) ConfirmPrompt(_ context.Context, userID string, txs []domain.Transaction) {
	f.record("confirm", userID, FormatTransactions(txs))
}

func (f *fakeNotifier) RetryPrompt(_ context.Context, userID, reason string, attempt, maxAttempts int) {
	f.record("retry", userID, fmt.Sprintf("%s (%d/%d)", reason, attempt, maxAttempts))
}

func (f *fakeNotifier) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeNotifier) last() notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return notice{}
	}
	return f.events[len(f.events)-1]
}

type fakeJournal struct {
	mu      sync.Mutex
	records []Submission
}

func (f *fakeJournal) Record(_ context.Context, sub Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, sub)
	return nil
}

type testEnv struct {
	intake    *Intake
	store     *session.MemoryStore
	extractor *fakeExtractor
	ledger    *fakeLedger
	notifier  *fakeNotifier
	journal   *fakeJournal
}

func newTestEnv(opts Options) *testEnv {
	env := &testEnv{
		store:     session.NewMemoryStore(),
		extractor: &fakeExtractor{},
		ledger:    newFakeLedger(),
		notifier:  &fakeNotifier{},
		journal:   &fakeJournal{},
	}
	if opts.Debounce == 0 {
		opts.Debounce = 20 * time.Millisecond
	}
	env.intake = NewIntake(Deps{
		Store:     env.store,
		Extractor: env.extractor,
		Ledger:    env.ledger,
		Notifier:  env.notifier,
		Journal:   env.journal,
		Options:   opts,
	})
	return env
}

func coffee() domain.Transaction {
	return domain.Transaction{
		Amount:      decimal.RequireFromString("5.00"),
		Description: "Coffee",
		Category:    domain.Category{ID: "1", Name: "Food"},
		Date:        time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
