// Package usage records per-attempt model usage telemetry. Recording is
// best-effort: a failed write is logged and swallowed, never surfaced.
package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tjfontaine/ledgerlens/internal/domain"
	"github.com/tjfontaine/ledgerlens/internal/storage"
)

// Recorder writes usage records through the storage interface.
type Recorder struct {
	store  storage.Store
	logger *slog.Logger
	codec  tokenizer.Codec
}

// NewRecorder creates a recorder. store may be nil, in which case records
// are dropped silently (storage-less deployments).
func NewRecorder(store storage.Store, logger *slog.Logger) *Recorder {
	// Token counts are an estimate for cost dashboards, so one encoding for
	// all models is good enough.
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		logger.Warn("tokenizer unavailable, prompt token estimates disabled", slog.String("error", err.Error()))
		codec = nil
	}
	return &Recorder{store: store, logger: logger, codec: codec}
}

// Record writes one usage record for an adapter attempt. input is the user
// text the attempt consumed; it is only used for the token estimate.
func (r *Recorder) Record(ctx context.Context, userID, modelName string, success bool, duration time.Duration, input string) {
	if r.store == nil {
		return
	}

	record := &domain.UsageRecord{
		UserID:       userID,
		ModelName:    modelName,
		Success:      success,
		DurationMs:   duration.Milliseconds(),
		PromptTokens: r.estimateTokens(input),
	}

	if err := r.store.CreateUsageRecord(ctx, record); err != nil {
		r.logger.Warn("failed to record usage",
			slog.String("model", modelName),
			slog.String("error", err.Error()))
	}
}

func (r *Recorder) estimateTokens(input string) int {
	if r.codec == nil || input == "" {
		return 0
	}
	ids, _, err := r.codec.Encode(input)
	if err != nil {
		return 0
	}
	return len(ids)
}
