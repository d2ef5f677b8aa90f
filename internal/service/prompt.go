package service

import (
	"fmt"
	"strings"

	"github.com/set-night/receiptbot/internal/domain"
)

const basePrompt = "You are a bookkeeping assistant that turns receipt photos and purchase descriptions into ledger transactions.\n\n" +
	"Task:\n" +
	"- Read every attached receipt photo and the whole conversation.\n" +
	"- Produce one transaction per purchase. Split a single receipt into several transactions only when its items clearly belong to different categories or budgets.\n" +
	"- Later user messages correct earlier ones; the assistant messages show your previous answer.\n\n" +
	"Each transaction is an object with these fields:\n" +
	"- \"amount\": number, positive, total paid for this transaction\n" +
	"- \"description\": string, short and specific\n" +
	"- \"category_id\": string, id from the category list\n" +
	"- \"category_name\": string, name from the category list\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\" (today if the receipt has no date)\n" +
	"- \"destination\": string or null, the shop or payee\n" +
	"- \"budget_id\": string or null, id from the budget list\n" +
	"- \"budget_name\": string or null\n" +
	"- \"tags\": array of strings from the tag list\n" +
	"- \"group_title\": string or null, a common title when there are several transactions\n\n"

const rulesPrompt = "Rules:\n" +
	"- Use only categories, budgets and tags from the lists above.\n" +
	"- Output STRICT JSON only: a single object for one transaction, or an array of objects.\n" +
	"- Do NOT wrap the response in code fences or add any other text.\n"

// buildPrompt renders the instructions plus the ledger side data.
func buildPrompt(req ExtractionRequest, today string) string {
	var sb strings.Builder
	sb.WriteString(basePrompt)

	sb.WriteString("Categories (id: name):\n")
	for _, c := range req.Categories {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", c.ID, c.Name))
	}

	sb.WriteString("\nBudgets for the current period (id: name, remaining):\n")
	if len(req.BudgetLimits) == 0 {
		sb.WriteString("- none\n")
	}
	for _, b := range req.BudgetLimits {
		sb.WriteString(fmt.Sprintf("- %s: %s, %s %s left\n", b.BudgetID, b.BudgetName, b.Remaining.StringFixed(2), b.Currency))
	}

	sb.WriteString("\nTags:\n")
	if len(req.Tags) == 0 {
		sb.WriteString("- none\n")
	}
	for _, t := range req.Tags {
		sb.WriteString(fmt.Sprintf("- %s\n", t.Name))
	}
	if req.MinTags > 0 {
		sb.WriteString(fmt.Sprintf("\nEvery transaction must carry at least %d tag(s).\n", req.MinTags))
	}

	sb.WriteString(fmt.Sprintf("\nToday is %s.\n\n", today))
	sb.WriteString(rulesPrompt)
	return sb.String()
}

// historyText renders one log entry as plain text for the model.
func historyText(m domain.MessageEntry) string {
	if m.HasImage {
		if m.Content != "" {
			return fmt.Sprintf("[photo #%d] %s", m.ImageIndex+1, m.Content)
		}
		return fmt.Sprintf("[photo #%d]", m.ImageIndex+1)
	}
	return m.Content
}

func closingInstruction(images int) string {
	if images == 0 {
		return "Extract the transactions described in the conversation above."
	}
	return fmt.Sprintf("Extract the transactions from the conversation above and the %d attached photo(s).", images)
}
