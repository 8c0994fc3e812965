// Package orchestrator dispatches extraction requests across the configured
// provider adapters: explicit modes call exactly one adapter, auto mode
// walks an ordered fallback chain. The orchestrator's public operations
// always return a well-formed ExtractionResult; only validation errors
// escape as errors.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/ledgerlens/internal/domain"
	"github.com/tjfontaine/ledgerlens/internal/provider"
	"github.com/tjfontaine/ledgerlens/internal/usage"
)

// Transcriber converts audio into text. Implemented by the ElevenLabs client.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, mimeType string) (string, error)
}

// TranscriptionModelName tags failed transcription attempts in usage
// telemetry, since no LLM was reached.
const TranscriptionModelName = "elevenlabs/scribe_v2"

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator owns the fallback chain and the mode dispatch table.
type Orchestrator struct {
	chain    []provider.Extractor
	byMode   map[domain.Mode]provider.Extractor
	vision   provider.ImageExtractor
	stt      Transcriber
	recorder *usage.Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// New creates an orchestrator. chain is the auto-mode priority order; its
// final entry should be the deterministic manual parser. byMode maps
// explicit modes to their single adapter. vision and stt may be nil when
// the image/audio paths are disabled.
func New(chain []provider.Extractor, byMode map[domain.Mode]provider.Extractor, vision provider.ImageExtractor, stt Transcriber, recorder *usage.Recorder, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		chain:    chain,
		byMode:   byMode,
		vision:   vision,
		stt:      stt,
		recorder: recorder,
		logger:   logger,
		tracer:   otel.Tracer("ledgerlens/orchestrator"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessText extracts transactions from free-form text.
func (o *Orchestrator) ProcessText(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResult, error) {
	if err := o.validate(&req); err != nil {
		return nil, err
	}
	return o.runTextChain(ctx, req), nil
}

// ProcessAudio transcribes the audio buffer and runs the text chain over
// the transcript. The returned result carries the transcript.
func (o *Orchestrator) ProcessAudio(ctx context.Context, audio []byte, filename, mimeType string, req domain.ExtractionRequest) (*domain.ExtractionResult, error) {
	if err := o.validate(&req); err != nil {
		return nil, err
	}
	if o.stt == nil {
		return nil, domain.ErrConfiguration("orchestrator", "audio processing is not configured")
	}

	start := o.now()
	transcript, err := o.stt.Transcribe(ctx, audio, filename, mimeType)
	if err != nil {
		o.logger.Warn("transcription failed", slog.String("error", err.Error()))
		o.recorder.Record(ctx, req.UserID, TranscriptionModelName, false, o.now().Sub(start), "")
		return domain.SystemFailure(TranscriptionModelName), nil
	}

	req.Input = transcript
	result := o.runTextChain(ctx, req)
	result.TranscribedText = transcript
	return result, nil
}

// ProcessImage extracts transactions from an image through the vision
// adapter. Unsupported MIME types are rejected before the adapter is
// invoked.
func (o *Orchestrator) ProcessImage(ctx context.Context, data []byte, mimeType string, req domain.ExtractionRequest) (*domain.ExtractionResult, error) {
	if err := domain.ValidateCategories(req.IncomeCategories, req.ExpenseCategories); err != nil {
		return nil, err
	}
	if err := provider.ValidateImageMIME(mimeType); err != nil {
		return nil, err
	}
	if o.vision == nil {
		return nil, domain.ErrConfiguration("orchestrator", "image processing is not configured")
	}

	ctx, span := o.tracer.Start(ctx, "extract.image",
		trace.WithAttributes(attribute.String("model", o.vision.Model())))
	defer span.End()

	start := o.now()
	result, err := o.vision.ExtractImage(ctx, provider.ImageRequest{
		Data:              data,
		MIMEType:          mimeType,
		IncomeCategories:  req.IncomeCategories,
		ExpenseCategories: req.ExpenseCategories,
		CurrentDate:       req.CurrentDate,
	})
	if err != nil {
		return nil, err
	}
	o.recorder.Record(ctx, req.UserID, result.SourceModel, result.Success, o.now().Sub(start), "")
	return result, nil
}

// runTextChain resolves the mode to one adapter or the auto chain. Auto
// advances only while the result is the system-failure variant; a
// model-declined result stops the chain like a success does. When every
// adapter fails, the last system failure is returned as-is.
func (o *Orchestrator) runTextChain(ctx context.Context, req domain.ExtractionRequest) *domain.ExtractionResult {
	if req.Mode != domain.ModeAuto {
		return o.attempt(ctx, o.byMode[req.Mode], req)
	}

	var result *domain.ExtractionResult
	for _, extractor := range o.chain {
		result = o.attempt(ctx, extractor, req)
		if !result.IsSystemFailure() {
			return result
		}
	}
	return result
}

// attempt runs one adapter and records exactly one usage entry for it,
// regardless of outcome.
func (o *Orchestrator) attempt(ctx context.Context, extractor provider.Extractor, req domain.ExtractionRequest) *domain.ExtractionResult {
	ctx, span := o.tracer.Start(ctx, "extract.text",
		trace.WithAttributes(attribute.String("model", extractor.Model())))
	defer span.End()

	start := o.now()
	result := extractor.Extract(ctx, provider.Request{
		Text:              req.Input,
		IncomeCategories:  req.IncomeCategories,
		ExpenseCategories: req.ExpenseCategories,
		CurrentDate:       req.CurrentDate,
	})
	duration := o.now().Sub(start)

	span.SetAttributes(
		attribute.Bool("success", result.Success),
		attribute.Bool("system_failure", result.IsSystemFailure()),
	)
	o.recorder.Record(ctx, req.UserID, extractor.Model(), result.Success, duration, req.Input)
	return result
}

// validate checks caller input before any vendor call is made.
func (o *Orchestrator) validate(req *domain.ExtractionRequest) error {
	if err := domain.ValidateCategories(req.IncomeCategories, req.ExpenseCategories); err != nil {
		return err
	}
	if req.Mode == "" {
		req.Mode = domain.ModeAuto
	}
	if req.Mode != domain.ModeAuto {
		if _, ok := o.byMode[req.Mode]; !ok {
			return domain.ErrValidation("type", "unknown processing mode "+string(req.Mode))
		}
	}
	return nil
}
