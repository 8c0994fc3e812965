package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/tjfontaine/ledgerlens/internal/domain"
	"github.com/tjfontaine/ledgerlens/internal/provider"
	"github.com/tjfontaine/ledgerlens/internal/storage/memory"
	"github.com/tjfontaine/ledgerlens/internal/usage"
)

type stubExtractor struct {
	model  string
	result *domain.ExtractionResult
	calls  int
}

func (s *stubExtractor) Model() string { return s.model }

func (s *stubExtractor) Extract(_ context.Context, _ provider.Request) *domain.ExtractionResult {
	s.calls++
	result := *s.result
	result.SourceModel = s.model
	return &result
}

type stubVision struct {
	model  string
	result *domain.ExtractionResult
	calls  int
}

func (s *stubVision) Model() string { return s.model }

func (s *stubVision) ExtractImage(_ context.Context, _ provider.ImageRequest) (*domain.ExtractionResult, error) {
	s.calls++
	result := *s.result
	result.SourceModel = s.model
	return &result, nil
}

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ []byte, _, _ string) (string, error) {
	return s.text, s.err
}

func success(name string) *domain.ExtractionResult {
	return &domain.ExtractionResult{
		Success: true,
		Transactions: []domain.Transaction{
			{Name: name, Type: domain.TransactionExpense, Category: "Food", Date: "2025-01-02", Amount: 15000},
		},
	}
}

func declined() *domain.ExtractionResult {
	return &domain.ExtractionResult{Success: false, Transactions: []domain.Transaction{}}
}

func newTestOrchestrator(t *testing.T, chain []provider.Extractor, byMode map[domain.Mode]provider.Extractor, vision provider.ImageExtractor, stt Transcriber) (*Orchestrator, *memory.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	recorder := usage.NewRecorder(store, logger)
	return New(chain, byMode, vision, stt, recorder, logger), store
}

func TestAutoAdvancesPastSystemFailure(t *testing.T) {
	a := &stubExtractor{model: "model-a", result: domain.SystemFailure("model-a")}
	b := &stubExtractor{model: "model-b", result: success("Lunch")}
	c := &stubExtractor{model: "model-c", result: success("never reached")}
	o, store := newTestOrchestrator(t, []provider.Extractor{a, b, c}, nil, nil, nil)

	result, err := o.ProcessText(context.Background(), domain.ExtractionRequest{Input: "lunch 15k", Mode: domain.ModeAuto})
	if err != nil {
		t.Fatalf("ProcessText() error = %v", err)
	}

	if !result.Success {
		t.Fatal("expected success from the second adapter")
	}
	if result.SourceModel != "model-b" {
		t.Errorf("sourceModel = %q, want model-b", result.SourceModel)
	}
	if c.calls != 0 {
		t.Error("chain did not stop at the first non-system result")
	}

	records := store.UsageRecords()
	if len(records) != 2 {
		t.Fatalf("usage records = %d, want 2 (one per attempt)", len(records))
	}
	if records[0].ModelName != "model-a" || records[0].Success {
		t.Errorf("first record = %+v, want model-a failure", records[0])
	}
	if records[1].ModelName != "model-b" || !records[1].Success {
		t.Errorf("second record = %+v, want model-b success", records[1])
	}
}

func TestAutoStopsOnModelDeclined(t *testing.T) {
	a := &stubExtractor{model: "model-a", result: declined()}
	b := &stubExtractor{model: "model-b", result: success("never reached")}
	o, store := newTestOrchestrator(t, []provider.Extractor{a, b}, nil, nil, nil)

	result, err := o.ProcessText(context.Background(), domain.ExtractionRequest{Input: "gibberish", Mode: domain.ModeAuto})
	if err != nil {
		t.Fatal(err)
	}

	if result.Success || result.IsSystemFailure() {
		t.Errorf("expected a model-declined result, got %+v", result)
	}
	if b.calls != 0 {
		t.Error("a model-declined result must stop the chain")
	}
	if got := len(store.UsageRecords()); got != 1 {
		t.Errorf("usage records = %d, want 1", got)
	}
}

func TestAutoExhaustsToLastSystemFailure(t *testing.T) {
	a := &stubExtractor{model: "model-a", result: domain.SystemFailure("model-a")}
	b := &stubExtractor{model: "model-b", result: domain.SystemFailure("model-b")}
	o, store := newTestOrchestrator(t, []provider.Extractor{a, b}, nil, nil, nil)

	result, err := o.ProcessText(context.Background(), domain.ExtractionRequest{Input: "x", Mode: domain.ModeAuto})
	if err != nil {
		t.Fatal(err)
	}

	if !result.IsSystemFailure() {
		t.Fatal("expected the final system failure to be returned")
	}
	if result.Transactions == nil {
		t.Fatal("transactions must never be absent")
	}
	if result.SourceModel != "model-b" {
		t.Errorf("sourceModel = %q, want model-b", result.SourceModel)
	}
	if got := len(store.UsageRecords()); got != 2 {
		t.Errorf("usage records = %d, want 2", got)
	}
}

func TestExplicitModeCallsExactlyOneAdapter(t *testing.T) {
	chainA := &stubExtractor{model: "model-a", result: domain.SystemFailure("model-a")}
	gemma := &stubExtractor{model: "gemma-model", result: domain.SystemFailure("gemma-model")}
	o, store := newTestOrchestrator(t,
		[]provider.Extractor{chainA},
		map[domain.Mode]provider.Extractor{domain.ModeGemma3: gemma}, nil, nil)

	result, err := o.ProcessText(context.Background(), domain.ExtractionRequest{Input: "x", Mode: domain.ModeGemma3})
	if err != nil {
		t.Fatal(err)
	}

	if !result.IsSystemFailure() {
		t.Error("explicit mode must return the adapter's failure without fallback")
	}
	if gemma.calls != 1 || chainA.calls != 0 {
		t.Errorf("gemma calls = %d, chain calls = %d; explicit mode must not fall back", gemma.calls, chainA.calls)
	}
	if got := len(store.UsageRecords()); got != 1 {
		t.Errorf("usage records = %d, want 1", got)
	}
}

func TestManualModeReturnsServiceResultUnmodified(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	manualResult := &domain.ExtractionResult{
		Success: true,
		Transactions: []domain.Transaction{
			{Name: "Lunch", Type: domain.TransactionExpense, Category: "Food", Date: today, Amount: 15000},
		},
	}
	manualStub := &stubExtractor{model: "manual", result: manualResult}
	o, store := newTestOrchestrator(t, nil,
		map[domain.Mode]provider.Extractor{domain.ModeManual: manualStub}, nil, nil)

	result, err := o.ProcessText(context.Background(), domain.ExtractionRequest{Input: "lunch 15k", Mode: domain.ModeManual})
	if err != nil {
		t.Fatal(err)
	}

	if !result.Success || len(result.Transactions) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	tx := result.Transactions[0]
	if tx.Name != "Lunch" || tx.Amount != 15000 || tx.Date != today {
		t.Errorf("manual result modified: %+v", tx)
	}

	records := store.UsageRecords()
	if len(records) != 1 {
		t.Fatalf("usage records = %d, want 1", len(records))
	}
	if records[0].ModelName != "manual" || !records[0].Success {
		t.Errorf("record = %+v, want manual success", records[0])
	}
}

func TestUnknownModeRejected(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, nil, nil, nil)

	_, err := o.ProcessText(context.Background(), domain.ExtractionRequest{Input: "x", Mode: "telepathy"})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestCategoryValidationBeforeVendorCall(t *testing.T) {
	a := &stubExtractor{model: "model-a", result: success("x")}
	o, store := newTestOrchestrator(t, []provider.Extractor{a}, nil, nil, nil)

	categories := make([]string, 21)
	for i := range categories {
		categories[i] = "Category"
	}

	_, err := o.ProcessText(context.Background(), domain.ExtractionRequest{
		Input:            "x",
		Mode:             domain.ModeAuto,
		IncomeCategories: categories,
	})

	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if a.calls != 0 {
		t.Error("adapter invoked despite invalid categories")
	}
	if got := len(store.UsageRecords()); got != 0 {
		t.Errorf("usage records = %d, want 0", got)
	}
}

func TestProcessImageRejectsUnsupportedMIME(t *testing.T) {
	vision := &stubVision{model: "vision-model", result: success("Receipt")}
	o, _ := newTestOrchestrator(t, nil, nil, vision, nil)

	_, err := o.ProcessImage(context.Background(), []byte("bmp-bytes"), "image/bmp", domain.ExtractionRequest{})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if vision.calls != 0 {
		t.Error("vision adapter invoked despite unsupported MIME type")
	}
}

func TestProcessImageRecordsUsage(t *testing.T) {
	vision := &stubVision{model: "vision-model", result: success("Receipt")}
	o, store := newTestOrchestrator(t, nil, nil, vision, nil)

	result, err := o.ProcessImage(context.Background(), []byte("png-bytes"), "image/png", domain.ExtractionRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}

	records := store.UsageRecords()
	if len(records) != 1 {
		t.Fatalf("usage records = %d, want 1", len(records))
	}
	if records[0].ModelName != "vision-model" {
		t.Errorf("record model = %q, want vision-model", records[0].ModelName)
	}
}

func TestProcessAudioCarriesTranscript(t *testing.T) {
	a := &stubExtractor{model: "model-a", result: success("Lunch")}
	o, _ := newTestOrchestrator(t, []provider.Extractor{a}, nil, nil, &stubTranscriber{text: "lunch 15k"})

	result, err := o.ProcessAudio(context.Background(), []byte("audio"), "clip.mp3", "audio/mpeg", domain.ExtractionRequest{Mode: domain.ModeAuto})
	if err != nil {
		t.Fatal(err)
	}

	if result.TranscribedText != "lunch 15k" {
		t.Errorf("transcribedText = %q, want the transcript", result.TranscribedText)
	}
	if !result.Success {
		t.Error("expected the chain to run over the transcript")
	}
}

func TestProcessAudioTranscriptionFailure(t *testing.T) {
	a := &stubExtractor{model: "model-a", result: success("never reached")}
	o, store := newTestOrchestrator(t, []provider.Extractor{a}, nil, nil,
		&stubTranscriber{err: errors.New("upstream 503")})

	result, err := o.ProcessAudio(context.Background(), []byte("audio"), "clip.mp3", "audio/mpeg", domain.ExtractionRequest{Mode: domain.ModeAuto})
	if err != nil {
		t.Fatal(err)
	}

	if !result.IsSystemFailure() {
		t.Fatal("transcription failure must surface as a system failure")
	}
	if a.calls != 0 {
		t.Error("text chain ran despite a failed transcription")
	}

	records := store.UsageRecords()
	if len(records) != 1 {
		t.Fatalf("usage records = %d, want 1", len(records))
	}
	if records[0].ModelName != TranscriptionModelName || records[0].Success {
		t.Errorf("record = %+v, want failed %s attempt", records[0], TranscriptionModelName)
	}
}
