package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/set-night/receiptbot/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"
)

// transactionSchema accepts a single transaction object or a non-empty array.
const transactionSchema = `{
  "definitions": {
    "tx": {
      "type": "object",
      "required": ["amount", "description", "date"],
      "properties": {
        "amount": {"type": ["number", "string"]},
        "description": {"type": "string"},
        "category_id": {"type": ["string", "number", "null"]},
        "category_name": {"type": ["string", "null"]},
        "date": {"type": "string"},
        "destination": {"type": ["string", "null"]},
        "budget_id": {"type": ["string", "number", "null"]},
        "budget_name": {"type": ["string", "null"]},
        "tags": {"type": ["array", "null"], "items": {"type": "string"}},
        "group_title": {"type": ["string", "null"]}
      }
    }
  },
  "oneOf": [
    {"$ref": "#/definitions/tx"},
    {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/tx"}}
  ]
}`

var transactionSchemaLoader = gojsonschema.NewStringLoader(transactionSchema)

type wireTransaction struct {
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	CategoryID   flexString      `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Date         string          `json:"date"`
	Destination  string          `json:"destination"`
	BudgetID     flexString      `json:"budget_id"`
	BudgetName   string          `json:"budget_name"`
	Tags         []string        `json:"tags"`
	GroupTitle   string          `json:"group_title"`
}

// flexString accepts ids the model emits as numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// decodeTransactions parses raw model output into transactions, resolving
// category and budget references against the request's side data.
func decodeTransactions(raw string, req ExtractionRequest) ([]domain.Transaction, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	result, err := gojsonschema.Validate(transactionSchemaLoader, gojsonschema.NewStringLoader(clean))
	if err != nil {
		return nil, fmt.Errorf("model returned invalid JSON: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, fmt.Errorf("model output does not match the transaction schema: %s", strings.Join(problems, "; "))
	}

	var wire []wireTransaction
	if strings.HasPrefix(clean, "[") {
		if err := json.Unmarshal([]byte(clean), &wire); err != nil {
			return nil, fmt.Errorf("unmarshal transactions: %w", err)
		}
	} else {
		var single wireTransaction
		if err := json.Unmarshal([]byte(clean), &single); err != nil {
			return nil, fmt.Errorf("unmarshal transaction: %w", err)
		}
		wire = []wireTransaction{single}
	}

	categories := indexCategories(req.Categories)
	budgets := indexBudgets(req.BudgetLimits)

	txs := make([]domain.Transaction, 0, len(wire))
	for i, w := range wire {
		tx := domain.Transaction{
			Amount:      w.Amount,
			Description: strings.TrimSpace(w.Description),
			Destination: strings.TrimSpace(w.Destination),
			Tags:        w.Tags,
			GroupTitle:  strings.TrimSpace(w.GroupTitle),
		}

		if w.Date != "" {
			d, err := time.Parse("2006-01-02", strings.TrimSpace(w.Date))
			if err != nil {
				return nil, fmt.Errorf("transaction %d: invalid date %q", i+1, w.Date)
			}
			tx.Date = d
		}

		tx.Category = categories.resolve(string(w.CategoryID), w.CategoryName)

		if limit, ok := budgets.resolve(string(w.BudgetID), w.BudgetName); ok {
			tx.BudgetID = limit.BudgetID
			tx.BudgetName = limit.BudgetName
			remaining := limit.Remaining.Sub(tx.Amount)
			tx.BudgetRemaining = &remaining
		}

		txs = append(txs, tx)
	}
	return txs, nil
}

type categoryIndex struct {
	byID   map[string]domain.Category
	byName map[string]domain.Category
}

func indexCategories(cats []domain.Category) categoryIndex {
	idx := categoryIndex{
		byID:   make(map[string]domain.Category, len(cats)),
		byName: make(map[string]domain.Category, len(cats)),
	}
	for _, c := range cats {
		idx.byID[c.ID] = c
		idx.byName[normalizeName(c.Name)] = c
	}
	return idx
}

// resolve prefers the id, falls back to a case-insensitive name match and
// finally keeps the model's name so the ledger can create the category.
func (idx categoryIndex) resolve(id, name string) domain.Category {
	if c, ok := idx.byID[id]; ok && id != "" {
		return c
	}
	if c, ok := idx.byName[normalizeName(name)]; ok && name != "" {
		return c
	}
	return domain.Category{Name: strings.TrimSpace(name)}
}

type budgetIndex struct {
	byID   map[string]domain.BudgetLimit
	byName map[string]domain.BudgetLimit
}

func indexBudgets(limits []domain.BudgetLimit) budgetIndex {
	idx := budgetIndex{
		byID:   make(map[string]domain.BudgetLimit, len(limits)),
		byName: make(map[string]domain.BudgetLimit, len(limits)),
	}
	for _, b := range limits {
		idx.byID[b.BudgetID] = b
		idx.byName[normalizeName(b.BudgetName)] = b
	}
	return idx
}

func (idx budgetIndex) resolve(id, name string) (domain.BudgetLimit, bool) {
	if b, ok := idx.byID[id]; ok && id != "" {
		return b, true
	}
	if b, ok := idx.byName[normalizeName(name)]; ok && name != "" {
		return b, true
	}
	return domain.BudgetLimit{}, false
}

func normalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// cleanModelJSON strips Markdown fences and any prose around the JSON value.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}
	closer := "]"
	if s[start] == '{' {
		closer = "}"
	}
	if end := strings.LastIndex(s, closer); end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}
