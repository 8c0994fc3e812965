// Package extract normalizes raw model output into a validated
// ExtractionResult.
package extract

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tjfontaine/ledgerlens/internal/domain"
	"github.com/tjfontaine/ledgerlens/internal/prompt"
)

// rawResult mirrors the output contract loosely so structural mismatches
// (missing success key, non-array transactions) are detectable.
type rawResult struct {
	Success      *bool             `json:"success"`
	Transactions []json.RawMessage `json:"transactions"`
}

// Normalize turns raw model text into a validated ExtractionResult.
// Markdown code fences are stripped before parsing. Any parse failure or
// structural mismatch yields the canonical system-failure result; a
// model-reported success:false is preserved as a model-declined result.
func Normalize(raw, sourceModel string) *domain.ExtractionResult {
	text := stripFences(strings.TrimSpace(raw))

	var outer rawResult
	if err := json.Unmarshal([]byte(text), &outer); err != nil || outer.Success == nil {
		return domain.SystemFailure(sourceModel)
	}

	transactions := make([]domain.Transaction, 0, len(outer.Transactions))
	if *outer.Success {
		for _, item := range outer.Transactions {
			var tx domain.Transaction
			if err := json.Unmarshal(item, &tx); err != nil {
				return domain.SystemFailure(sourceModel)
			}
			transactions = append(transactions, tx)
		}
	}

	return &domain.ExtractionResult{
		Success:      *outer.Success,
		Transactions: transactions,
		SourceModel:  sourceModel,
	}
}

// ApplyDefaults enforces the data-model invariants the prompt can only
// request: out-of-vocabulary categories become "Other" and missing dates
// default to currentDate.
func ApplyDefaults(result *domain.ExtractionResult, incomeCategories, expenseCategories []string, currentDate time.Time) {
	if result == nil || !result.Success {
		return
	}
	if len(incomeCategories) == 0 {
		incomeCategories = prompt.DefaultIncomeCategories
	}
	if len(expenseCategories) == 0 {
		expenseCategories = prompt.DefaultExpenseCategories
	}
	if currentDate.IsZero() {
		currentDate = time.Now()
	}

	for i := range result.Transactions {
		tx := &result.Transactions[i]
		vocabulary := expenseCategories
		if tx.Type == domain.TransactionIncome {
			vocabulary = incomeCategories
		}
		if tx.Category != "" && !contains(vocabulary, tx.Category) {
			tx.Category = "Other"
		}
		if tx.Date == "" {
			tx.Date = currentDate.Format("2006-01-02")
		}
	}
}

// stripFences removes a wrapping markdown code fence, language-tagged or not.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	trimmed := strings.TrimPrefix(text, "```")
	// Drop an optional language tag on the opening fence line.
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(trimmed[:idx])
		if firstLine == "" || isLanguageTag(firstLine) {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func contains(list []string, item string) bool {
	for _, candidate := range list {
		if candidate == item {
			return true
		}
	}
	return false
}
