package extract

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/tjfontaine/ledgerlens/internal/domain"
)

const validResponse = `{"success": true, "transactions": [{"name": "Lunch", "type": "expense", "category": "Food", "date": "2025-01-02", "amount": 15000}]}`

func TestNormalizeValidJSON(t *testing.T) {
	result := Normalize(validResponse, "model-a")

	if !result.Success {
		t.Fatal("expected success")
	}
	if result.IsSystemFailure() {
		t.Fatal("unexpected system failure")
	}
	if len(result.Transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(result.Transactions))
	}
	tx := result.Transactions[0]
	if tx.Name != "Lunch" || tx.Type != domain.TransactionExpense || tx.Amount != 15000 {
		t.Errorf("unexpected transaction: %+v", tx)
	}
	if result.SourceModel != "model-a" {
		t.Errorf("sourceModel = %q, want model-a", result.SourceModel)
	}
}

func TestNormalizeFenceRoundTrip(t *testing.T) {
	fenced := "```json\n" + validResponse + "\n```"
	tagless := "```\n" + validResponse + "\n```"

	plain := Normalize(validResponse, "m")
	for name, wrapped := range map[string]string{"tagged": fenced, "untagged": tagless} {
		t.Run(name, func(t *testing.T) {
			got := Normalize(wrapped, "m")
			if !reflect.DeepEqual(got, plain) {
				t.Errorf("fenced result differs from plain result:\n got %+v\nwant %+v", got, plain)
			}
		})
	}
}

func TestNormalizeFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not JSON", "I could not parse that, sorry!"},
		{"empty", ""},
		{"missing success key", `{"transactions": []}`},
		{"transactions not an array", `{"success": true, "transactions": "nope"}`},
		{"malformed transaction", `{"success": true, "transactions": [{"amount": "not-a-number"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(tt.raw, "m")
			if !result.IsSystemFailure() {
				t.Errorf("expected system failure, got %+v", result)
			}
			if len(result.Transactions) != 0 {
				t.Error("system failure must carry no transactions")
			}
		})
	}
}

func TestNormalizeModelDeclined(t *testing.T) {
	result := Normalize(`{"success": false, "transactions": []}`, "m")

	if result.Success {
		t.Fatal("expected success=false")
	}
	if result.IsSystemFailure() {
		t.Fatal("a model-reported failure is not a system failure")
	}
	if len(result.Transactions) != 0 {
		t.Error("declined result must carry no transactions")
	}
}

func TestNormalizeDeclinedDropsTransactions(t *testing.T) {
	// success=false with a populated array violates the invariant; the
	// normalizer drops the array rather than trusting it.
	result := Normalize(`{"success": false, "transactions": [{"name": "x"}]}`, "m")

	if len(result.Transactions) != 0 {
		t.Errorf("transactions = %d, want 0", len(result.Transactions))
	}
}

func TestNormalizeSystemFailureSerializesTypeMarker(t *testing.T) {
	body, err := json.Marshal(Normalize("garbage", "m"))
	if err != nil {
		t.Fatal(err)
	}
	var wire map[string]any
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatal(err)
	}
	if wire["type"] != "system" {
		t.Errorf(`wire "type" = %v, want "system"`, wire["type"])
	}
	if _, ok := wire["sourceModel"]; ok {
		t.Error("sourceModel must not be serialized")
	}
}

func TestApplyDefaults(t *testing.T) {
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	result := &domain.ExtractionResult{
		Success: true,
		Transactions: []domain.Transaction{
			{Name: "Lunch", Type: domain.TransactionExpense, Category: "Food"},
			{Name: "Mystery", Type: domain.TransactionExpense, Category: "Crypto", Date: "2025-05-05"},
			{Name: "Paycheck", Type: domain.TransactionIncome, Category: "Salary", Date: "2025-05-31"},
		},
	}

	ApplyDefaults(result, nil, nil, date)

	if got := result.Transactions[0].Date; got != "2025-06-01" {
		t.Errorf("missing date not defaulted: %s", got)
	}
	if got := result.Transactions[1].Category; got != "Other" {
		t.Errorf("out-of-vocabulary category not normalized: %s", got)
	}
	if got := result.Transactions[2].Category; got != "Salary" {
		t.Errorf("in-vocabulary category changed: %s", got)
	}
}

func TestApplyDefaultsCustomVocabulary(t *testing.T) {
	result := &domain.ExtractionResult{
		Success: true,
		Transactions: []domain.Transaction{
			{Name: "Rent", Type: domain.TransactionExpense, Category: "Housing", Date: "2025-01-01"},
			{Name: "Food", Type: domain.TransactionExpense, Category: "Food", Date: "2025-01-01"},
		},
	}

	ApplyDefaults(result, nil, []string{"Housing", "Other"}, time.Now())

	if got := result.Transactions[0].Category; got != "Housing" {
		t.Errorf("custom category rejected: %s", got)
	}
	if got := result.Transactions[1].Category; got != "Other" {
		t.Errorf("category outside custom vocabulary kept: %s", got)
	}
}
