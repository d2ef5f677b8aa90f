package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/set-night/receiptbot/internal/domain"
	"github.com/shopspring/decimal"
)

type fireflyServer struct {
	mu           sync.Mutex
	hits         map[string]int
	submitStatus int
	submitBody   string
	submitted    []map[string]any
	limitsQuery  string
}

func newFireflyServer(t *testing.T) (*fireflyServer, *httptest.Server) {
	t.Helper()
	fs := &fireflyServer{hits: make(map[string]int), submitStatus: http.StatusOK, submitBody: `{"data":{}}`}

	mux := http.NewServeMux()
	page := func(w http.ResponseWriter, r *http.Request, pages [][]string) {
		fs.mu.Lock()
		fs.hits[r.URL.Path]++
		fs.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"Unauthenticated."}`)
			return
		}

		n := 1
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &n)
		data := "[]"
		if n <= len(pages) {
			data = "[" + joinJSON(pages[n-1]) + "]"
		}
		fmt.Fprintf(w, `{"data":%s,"meta":{"pagination":{"current_page":%d,"total_pages":%d}}}`, data, n, len(pages))
	}

	mux.HandleFunc("GET /api/v1/categories", func(w http.ResponseWriter, r *http.Request) {
		page(w, r, [][]string{
			{`{"id":"1","attributes":{"name":"Groceries"}}`},
			{`{"id":"2","attributes":{"name":"Eating Out"}}`},
		})
	})
	mux.HandleFunc("GET /api/v1/tags", func(w http.ResponseWriter, r *http.Request) {
		page(w, r, [][]string{{`{"id":"5","attributes":{"tag":"work"}}`}})
	})
	mux.HandleFunc("GET /api/v1/budgets", func(w http.ResponseWriter, r *http.Request) {
		page(w, r, [][]string{{`{"id":"7","attributes":{"name":"Food"}}`}})
	})
	mux.HandleFunc("GET /api/v1/budget-limits", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.limitsQuery = r.URL.Query().Get("start") + ".." + r.URL.Query().Get("end")
		fs.mu.Unlock()
		page(w, r, [][]string{{
			`{"id":"11","attributes":{"budget_id":"7","amount":"300.00","spent":"-120.50","currency_code":"EUR","start":"2026-10-01T00:00:00+00:00","end":"2026-10-31T23:59:59+00:00"}}`,
		}})
	})
	mux.HandleFunc("GET /api/v1/accounts", func(w http.ResponseWriter, r *http.Request) {
		page(w, r, [][]string{{
			`{"id":"2","attributes":{"name":"Savings","active":true}}`,
			`{"id":"3","attributes":{"name":"Checking","active":true}}`,
		}})
	})
	mux.HandleFunc("POST /api/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fs.mu.Lock()
		fs.submitted = append(fs.submitted, body)
		status, resp := fs.submitStatus, fs.submitBody
		fs.mu.Unlock()

		if status == http.StatusBadGateway {
			w.Header().Set("Content-Type", "text/html")
		}
		w.WriteHeader(status)
		fmt.Fprint(w, resp)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fireflyServer) hitCount(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[path]
}

func (fs *fireflyServer) bodies() []map[string]any {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]map[string]any(nil), fs.submitted...)
}

func (fs *fireflyServer) period() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.limitsQuery
}

func joinJSON(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

func newTestLedger(url, accountName string) *FireflyLedger {
	l := NewFireflyLedger(FireflyConfig{
		BaseURL:            url + "/",
		Token:              "secret",
		DefaultAccountName: accountName,
		Timeout:            5 * time.Second,
		CacheTTL:           time.Minute,
	})
	l.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return l
}

func TestFireflyListCategories(t *testing.T) {
	fs, srv := newFireflyServer(t)
	l := newTestLedger(srv.URL, "Checking")
	ctx := context.Background()

	cats, err := l.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 2 || cats[0].Name != "Groceries" || cats[1].ID != "2" {
		t.Fatalf("categories = %+v", cats)
	}

	if _, err := l.ListCategories(ctx); err != nil {
		t.Fatalf("ListCategories (cached): %v", err)
	}
	if got := fs.hitCount("/api/v1/categories"); got != 2 {
		t.Errorf("category requests = %d, want 2 (two pages, then cache)", got)
	}
}

func TestFireflyListTags(t *testing.T) {
	_, srv := newFireflyServer(t)
	tags, err := newTestLedger(srv.URL, "Checking").ListTags(context.Background())
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "work" {
		t.Errorf("tags = %+v", tags)
	}
}

func TestFireflyListBudgetLimits(t *testing.T) {
	fs, srv := newFireflyServer(t)
	limits, err := newTestLedger(srv.URL, "Checking").ListBudgetLimits(context.Background())
	if err != nil {
		t.Fatalf("ListBudgetLimits: %v", err)
	}
	if got := fs.period(); got != "2026-10-01..2026-10-31" {
		t.Errorf("period = %s", got)
	}
	if len(limits) != 1 {
		t.Fatalf("limits = %+v", limits)
	}
	got := limits[0]
	if got.BudgetName != "Food" || got.Currency != "EUR" {
		t.Errorf("limit = %+v", got)
	}
	if !got.Spent.Equal(decimal.RequireFromString("120.50")) || !got.Remaining.Equal(decimal.RequireFromString("179.50")) {
		t.Errorf("spent = %s, remaining = %s", got.Spent, got.Remaining)
	}
}

func TestParseSpent(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"-10.5"`, "-10.5"},
		{`[{"sum":"-4"},{"sum":"-6.25"}]`, "-10.25"},
		{`null`, "0"},
		{``, "0"},
	}
	for _, tt := range tests {
		if got := parseSpent(json.RawMessage(tt.raw)); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("parseSpent(%s) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestFireflyEnsureDefaultAccount(t *testing.T) {
	_, srv := newFireflyServer(t)
	ctx := context.Background()

	if err := newTestLedger(srv.URL, "checking").EnsureDefaultAccount(ctx); err != nil {
		t.Errorf("by name: %v", err)
	}
	if err := newTestLedger(srv.URL, "Missing").EnsureDefaultAccount(ctx); !errors.Is(err, domain.ErrNoDefaultAccount) {
		t.Errorf("missing account err = %v", err)
	}
	if err := newTestLedger(srv.URL, "").EnsureDefaultAccount(ctx); !errors.Is(err, domain.ErrNoDefaultAccount) {
		t.Errorf("unconfigured err = %v", err)
	}
}

func TestFireflySubmit(t *testing.T) {
	fs, srv := newFireflyServer(t)
	l := newTestLedger(srv.URL, "Checking")
	ctx := context.Background()

	single := coffee()
	ok, err := l.Submit(ctx, []domain.Transaction{single})
	if err != nil || !ok {
		t.Fatalf("Submit single = %v, %v", ok, err)
	}

	second := coffee()
	second.Category = domain.Category{Name: "Snacks"}
	second.Tags = []string{"work"}
	first := coffee()
	first.GroupTitle = "Cafe"
	second.GroupTitle = "Cafe"
	ok, err = l.Submit(ctx, []domain.Transaction{first, second})
	if err != nil || !ok {
		t.Fatalf("Submit group = %v, %v", ok, err)
	}

	bodies := fs.bodies()
	if len(bodies) != 2 {
		t.Fatalf("submitted = %d, want 2", len(bodies))
	}
	if _, has := bodies[0]["group_title"]; has {
		t.Error("single transaction carries a group title")
	}
	if bodies[1]["group_title"] != "Cafe" {
		t.Errorf("group title = %v", bodies[1]["group_title"])
	}

	splits := bodies[1]["transactions"].([]any)
	s0 := splits[0].(map[string]any)
	s1 := splits[1].(map[string]any)
	if s0["type"] != "withdrawal" || s0["source_id"] != "3" || s0["amount"] != "5.00" || s0["date"] != "2026-10-19" {
		t.Errorf("split 0 = %v", s0)
	}
	if s0["category_id"] != "1" {
		t.Errorf("split 0 category = %v", s0["category_id"])
	}
	if s1["category_name"] != "Snacks" {
		t.Errorf("split 1 category = %v", s1["category_name"])
	}
}

func TestFireflySubmitResponses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantOK  bool
		wantErr bool
		kind    LedgerErrorKind
	}{
		{"declined", http.StatusUnprocessableEntity, `{"message":"The given data was invalid."}`, false, false, ""},
		{"gateway", http.StatusBadGateway, `<html><head><title>502 Bad Gateway</title></head></html>`, false, true, LedgerErrorConnectivity},
		{"server error", http.StatusInternalServerError, `{"message":"Server Error"}`, false, true, LedgerErrorGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, srv := newFireflyServer(t)
			fs.mu.Lock()
			fs.submitStatus = tt.status
			fs.submitBody = tt.body
			fs.mu.Unlock()

			ok, err := newTestLedger(srv.URL, "Checking").Submit(context.Background(), []domain.Transaction{coffee()})
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && ClassifyLedgerError(err) != tt.kind {
				t.Errorf("kind = %s, want %s (%v)", ClassifyLedgerError(err), tt.kind, err)
			}
		})
	}
}

func TestFireflyUnauthorized(t *testing.T) {
	_, srv := newFireflyServer(t)
	l := newTestLedger(srv.URL, "Checking")
	l.token = "wrong"

	_, err := l.ListCategories(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if ClassifyLedgerError(err) != LedgerErrorAuthentication {
		t.Errorf("kind = %s (%v)", ClassifyLedgerError(err), err)
	}
}
