package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/set-night/receiptbot/internal/config"
	"github.com/set-night/receiptbot/internal/domain"
	"github.com/shopspring/decimal"
)

// FireflyLedger is the ledger collaborator backed by the Firefly III REST API.
type FireflyLedger struct {
	baseURL     string
	token       string
	accountID   string
	accountName string
	httpClient  *http.Client
	now         func() time.Time

	categories *ttlCache[domain.Category]
	tags       *ttlCache[domain.Tag]
	budgets    *ttlCache[domain.BudgetLimit]

	mu            sync.Mutex
	sourceAccount string
}

type FireflyConfig struct {
	BaseURL            string
	Token              string
	DefaultAccountID   string
	DefaultAccountName string
	Timeout            time.Duration
	CacheTTL           time.Duration
}

func NewFireflyLedger(cfg FireflyConfig) *FireflyLedger {
	return &FireflyLedger{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.Token,
		accountID:   cfg.DefaultAccountID,
		accountName: cfg.DefaultAccountName,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		now:         time.Now,
		categories:  newTTLCache[domain.Category](cfg.CacheTTL),
		tags:        newTTLCache[domain.Tag](cfg.CacheTTL),
		budgets:     newTTLCache[domain.BudgetLimit](cfg.CacheTTL),
	}
}

type fireflyResource struct {
	ID         string          `json:"id"`
	Attributes json.RawMessage `json:"attributes"`
}

type fireflyPage struct {
	Data []fireflyResource `json:"data"`
	Meta struct {
		Pagination struct {
			CurrentPage int `json:"current_page"`
			TotalPages  int `json:"total_pages"`
		} `json:"pagination"`
	} `json:"meta"`
}

func (l *FireflyLedger) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if cached := l.categories.Get(); cached != nil {
		return cached, nil
	}

	resources, err := l.list(ctx, "/api/v1/categories", nil)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	categories := make([]domain.Category, 0, len(resources))
	for _, r := range resources {
		var attrs struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("parse category %s: %w", r.ID, err)
		}
		categories = append(categories, domain.Category{ID: r.ID, Name: attrs.Name})
	}

	l.categories.Set(categories)
	return categories, nil
}

func (l *FireflyLedger) ListTags(ctx context.Context) ([]domain.Tag, error) {
	if cached := l.tags.Get(); cached != nil {
		return cached, nil
	}

	resources, err := l.list(ctx, "/api/v1/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	tags := make([]domain.Tag, 0, len(resources))
	for _, r := range resources {
		var attrs struct {
			Tag string `json:"tag"`
		}
		if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("parse tag %s: %w", r.ID, err)
		}
		tags = append(tags, domain.Tag{ID: r.ID, Name: attrs.Tag})
	}

	l.tags.Set(tags)
	return tags, nil
}

// ListBudgetLimits returns the limits of the current month with the spent
// and remaining amounts. Budget names are cached; the amounts are not.
func (l *FireflyLedger) ListBudgetLimits(ctx context.Context) ([]domain.BudgetLimit, error) {
	names, err := l.budgetNames(ctx)
	if err != nil {
		return nil, err
	}

	now := l.now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, -1)

	query := url.Values{}
	query.Set("start", start.Format("2006-01-02"))
	query.Set("end", end.Format("2006-01-02"))

	resources, err := l.list(ctx, "/api/v1/budget-limits", query)
	if err != nil {
		return nil, fmt.Errorf("list budget limits: %w", err)
	}

	limits := make([]domain.BudgetLimit, 0, len(resources))
	for _, r := range resources {
		var attrs struct {
			BudgetID     string          `json:"budget_id"`
			Amount       decimal.Decimal `json:"amount"`
			Spent        json.RawMessage `json:"spent"`
			CurrencyCode string          `json:"currency_code"`
			Start        string          `json:"start"`
			End          string          `json:"end"`
		}
		if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("parse budget limit %s: %w", r.ID, err)
		}

		spent := parseSpent(attrs.Spent).Abs()
		limits = append(limits, domain.BudgetLimit{
			BudgetID:   attrs.BudgetID,
			BudgetName: names[attrs.BudgetID],
			Amount:     attrs.Amount,
			Spent:      spent,
			Remaining:  attrs.Amount.Sub(spent),
			Currency:   attrs.CurrencyCode,
			Start:      parseFireflyTime(attrs.Start, start),
			End:        parseFireflyTime(attrs.End, end),
		})
	}
	return limits, nil
}

func (l *FireflyLedger) budgetNames(ctx context.Context) (map[string]string, error) {
	budgets := l.budgets.Get()
	if budgets == nil {
		resources, err := l.list(ctx, "/api/v1/budgets", nil)
		if err != nil {
			return nil, fmt.Errorf("list budgets: %w", err)
		}
		budgets = make([]domain.BudgetLimit, 0, len(resources))
		for _, r := range resources {
			var attrs struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
				return nil, fmt.Errorf("parse budget %s: %w", r.ID, err)
			}
			budgets = append(budgets, domain.BudgetLimit{BudgetID: r.ID, BudgetName: attrs.Name})
		}
		l.budgets.Set(budgets)
	}

	names := make(map[string]string, len(budgets))
	for _, b := range budgets {
		names[b.BudgetID] = b.BudgetName
	}
	return names, nil
}

func parseFireflyTime(s string, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return fallback
}

// parseSpent accepts both shapes Firefly has used for "spent": a plain
// amount string or a list of per-currency sums.
func parseSpent(raw json.RawMessage) decimal.Decimal {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero
	}

	var single decimal.Decimal
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}

	var sums []struct {
		Sum decimal.Decimal `json:"sum"`
	}
	if err := json.Unmarshal(raw, &sums); err != nil {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, s := range sums {
		total = total.Add(s.Sum)
	}
	return total
}

// EnsureDefaultAccount resolves the configured asset account that pays for
// the transactions. The result is cached for the process lifetime.
func (l *FireflyLedger) EnsureDefaultAccount(ctx context.Context) error {
	_, err := l.defaultAccount(ctx)
	return err
}

func (l *FireflyLedger) defaultAccount(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sourceAccount != "" {
		return l.sourceAccount, nil
	}
	if l.accountID == "" && l.accountName == "" {
		return "", domain.ErrNoDefaultAccount
	}

	query := url.Values{}
	query.Set("type", "asset")
	resources, err := l.list(ctx, "/api/v1/accounts", query)
	if err != nil {
		return "", fmt.Errorf("list accounts: %w", err)
	}

	for _, r := range resources {
		var attrs struct {
			Name   string `json:"name"`
			Active *bool  `json:"active"`
		}
		if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
			return "", fmt.Errorf("parse account %s: %w", r.ID, err)
		}
		if attrs.Active != nil && !*attrs.Active {
			continue
		}
		if (l.accountID != "" && r.ID == l.accountID) ||
			(l.accountID == "" && strings.EqualFold(attrs.Name, l.accountName)) {
			l.sourceAccount = r.ID
			slog.Info("default account resolved", "account_id", r.ID, "name", attrs.Name)
			return r.ID, nil
		}
	}
	return "", domain.ErrNoDefaultAccount
}

type fireflySplit struct {
	Type            string   `json:"type"`
	Date            string   `json:"date"`
	Amount          string   `json:"amount"`
	Description     string   `json:"description"`
	SourceID        string   `json:"source_id"`
	DestinationName string   `json:"destination_name,omitempty"`
	CategoryID      string   `json:"category_id,omitempty"`
	CategoryName    string   `json:"category_name,omitempty"`
	BudgetID        string   `json:"budget_id,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

type fireflyTransactionGroup struct {
	ErrorIfDuplicateHash bool           `json:"error_if_duplicate_hash"`
	ApplyRules           bool           `json:"apply_rules"`
	GroupTitle           string         `json:"group_title,omitempty"`
	Transactions         []fireflySplit `json:"transactions"`
}

// Submit stores the transactions as one withdrawal group. A 422 answer means
// Firefly rejected the data and is reported as false, not as an error.
func (l *FireflyLedger) Submit(ctx context.Context, txs []domain.Transaction) (bool, error) {
	if len(txs) == 0 {
		return false, nil
	}

	source, err := l.defaultAccount(ctx)
	if err != nil {
		return false, fmt.Errorf("default account: %w", err)
	}

	group := buildTransactionGroup(txs, source)
	payload, err := json.Marshal(group)
	if err != nil {
		return false, fmt.Errorf("marshal transactions: %w", err)
	}

	req, err := l.newRequest(ctx, http.MethodPost, "/api/v1/transactions", nil, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("store transactions: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// categories and tags may have been created by name
		l.categories.Invalidate()
		l.tags.Invalidate()
		return true, nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		slog.Warn("firefly rejected transactions",
			"status", resp.StatusCode,
			"body", errorBodyText(resp.Header.Get("Content-Type"), body),
		)
		return false, nil
	default:
		return false, fmt.Errorf("firefly error (%d): %s", resp.StatusCode, errorBodyText(resp.Header.Get("Content-Type"), body))
	}
}

func buildTransactionGroup(txs []domain.Transaction, source string) fireflyTransactionGroup {
	group := fireflyTransactionGroup{
		ApplyRules:   true,
		Transactions: make([]fireflySplit, 0, len(txs)),
	}
	if len(txs) > 1 {
		group.GroupTitle = txs[0].GroupTitle
	}

	for _, tx := range txs {
		split := fireflySplit{
			Type:            "withdrawal",
			Date:            tx.Date.Format("2006-01-02"),
			Amount:          tx.Amount.StringFixed(2),
			Description:     tx.Description,
			SourceID:        source,
			DestinationName: tx.Destination,
			BudgetID:        tx.BudgetID,
			Tags:            tx.Tags,
		}
		if tx.Category.ID != "" {
			split.CategoryID = tx.Category.ID
		} else {
			split.CategoryName = tx.Category.Name
		}
		group.Transactions = append(group.Transactions, split)
	}
	return group
}

// list walks every page of a collection endpoint.
func (l *FireflyLedger) list(ctx context.Context, path string, query url.Values) ([]fireflyResource, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("limit", strconv.Itoa(config.LedgerPageLimit))

	var out []fireflyResource
	for page := 1; page <= config.LedgerMaxPages; page++ {
		query.Set("page", strconv.Itoa(page))

		var result fireflyPage
		if err := l.getJSON(ctx, path, query, &result); err != nil {
			return nil, err
		}
		out = append(out, result.Data...)

		if result.Meta.Pagination.TotalPages <= page || len(result.Data) == 0 {
			return out, nil
		}
	}
	slog.Warn("firefly pagination truncated", "path", path, "pages", config.LedgerMaxPages)
	return out, nil
}

func (l *FireflyLedger) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	req, err := l.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("firefly error (%d): %s", resp.StatusCode, errorBodyText(resp.Header.Get("Content-Type"), body))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (l *FireflyLedger) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := l.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+l.token)
	req.Header.Set("Accept", "application/vnd.api+json")
	return req, nil
}
