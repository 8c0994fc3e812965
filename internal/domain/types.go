// Package domain holds the canonical types exchanged between the
// orchestrator, provider adapters, and the HTTP surface.
package domain

import "time"

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Transaction is a single extracted line item. Transactions only exist
// inside the ExtractionResult that produced them; they are not persisted.
type Transaction struct {
	Name     string          `json:"name"`
	Type     TransactionType `json:"type"`
	Category string          `json:"category"`
	Date     string          `json:"date"` // ISO 8601 (YYYY-MM-DD)
	Amount   float64         `json:"amount"`
}

// FailureKind tags an ExtractionResult whose Success is false.
// An empty kind on a non-success result means the model itself reported it
// could not extract anything ("model declined"); FailureSystem marks an
// orchestration-level failure (thrown error, unparseable output).
type FailureKind string

const (
	// FailureSystem marks parse errors and provider exceptions. Only this
	// variant makes the auto-fallback chain advance to the next adapter.
	FailureSystem FailureKind = "system"
)

// ExtractionResult is the tagged outcome of one extraction attempt.
type ExtractionResult struct {
	Success      bool          `json:"success"`
	Transactions []Transaction `json:"transactions"`

	// TranscribedText carries the STT transcript on the audio path.
	TranscribedText string `json:"transcribedText,omitempty"`

	// Failure distinguishes a system failure from a model-declined result.
	Failure FailureKind `json:"type,omitempty"`

	// SourceModel identifies the adapter that produced this result. It is
	// recorded in usage telemetry and stripped from the wire.
	SourceModel string `json:"-"`
}

// IsSystemFailure reports whether this result is the system-failure variant.
func (r *ExtractionResult) IsSystemFailure() bool {
	return r != nil && !r.Success && r.Failure == FailureSystem
}

// SystemFailure returns the canonical system-failure result.
func SystemFailure(sourceModel string) *ExtractionResult {
	return &ExtractionResult{
		Success:      false,
		Transactions: []Transaction{},
		Failure:      FailureSystem,
		SourceModel:  sourceModel,
	}
}

// Mode selects which provider path handles a request.
type Mode string

const (
	ModeAuto       Mode = "auto"
	ModeOpenRouter Mode = "openrouter"
	ModeGemma3     Mode = "gemma3"
	ModeManual     Mode = "manual"
)

// ExtractionRequest is the caller-facing request for the text path. Audio
// and image requests reuse the category/user fields alongside raw bytes.
type ExtractionRequest struct {
	Input             string
	Mode              Mode
	UserID            string
	IncomeCategories  []string
	ExpenseCategories []string

	// CurrentDate anchors relative dates in the prompt. Zero means "now".
	CurrentDate time.Time
}

// UsageRecord is one telemetry row per adapter attempt.
type UsageRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId,omitempty"`
	ModelName    string    `json:"modelName"`
	Success      bool      `json:"success"`
	DurationMs   int64     `json:"durationMs"`
	PromptTokens int       `json:"promptTokens"`
	CreatedAt    time.Time `json:"createdAt"`
}
