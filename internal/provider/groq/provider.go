// Package groq adapts Groq-hosted models to the extraction capability.
package groq

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/ledgerlens/internal/api/openai"
	"github.com/tjfontaine/ledgerlens/internal/domain"
	"github.com/tjfontaine/ledgerlens/internal/extract"
	"github.com/tjfontaine/ledgerlens/internal/prompt"
	"github.com/tjfontaine/ledgerlens/internal/provider"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"

	// DefaultTextModel handles transcript and free-form text extraction.
	DefaultTextModel = "qwen/qwen3-32b"

	// DefaultVisionModel handles receipt and screenshot extraction.
	DefaultVisionModel = "meta-llama/llama-4-scout-17b-16e-instruct"
)

// Option configures the provider.
type Option func(*Provider)

// WithBaseURL sets a custom API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) { p.baseURL = baseURL }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(p *Provider) { p.httpClient = httpClient }
}

// WithTextModel overrides the text model.
func WithTextModel(model string) Option {
	return func(p *Provider) { p.textModel = model }
}

// WithVisionModel overrides the vision model.
func WithVisionModel(model string) Option {
	return func(p *Provider) { p.visionModel = model }
}

// Provider implements provider.Extractor and provider.ImageExtractor
// against the Groq chat completions API.
type Provider struct {
	client      *openai.Client
	logger      *slog.Logger
	baseURL     string
	httpClient  *http.Client
	textModel   string
	visionModel string
}

// New creates a Groq provider.
func New(apiKey string, logger *slog.Logger, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, domain.ErrConfiguration("groq", "GROQ_API_KEY is not configured")
	}

	p := &Provider{
		logger:      logger,
		baseURL:     defaultBaseURL,
		textModel:   DefaultTextModel,
		visionModel: DefaultVisionModel,
	}
	for _, opt := range opts {
		opt(p)
	}

	clientOpts := []openai.ClientOption{openai.WithBaseURL(p.baseURL)}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, openai.WithHTTPClient(p.httpClient))
	}
	p.client = openai.NewClient(apiKey, clientOpts...)
	return p, nil
}

func (p *Provider) Model() string { return p.textModel }

// Extract runs text extraction. Vendor failures become the system-failure
// result; they never escape the adapter boundary.
func (p *Provider) Extract(ctx context.Context, req provider.Request) *domain.ExtractionResult {
	resp, err := p.client.CreateChatCompletion(ctx, &openai.ChatCompletionRequest{
		Model: p.textModel,
		Messages: []openai.ChatMessage{
			openai.Text("system", prompt.ForText(req.CurrentDate, req.IncomeCategories, req.ExpenseCategories)),
			openai.Text("user", req.Text),
		},
		Temperature:    1,
		ResponseFormat: &openai.ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		p.logger.Warn("groq completion failed", slog.String("model", p.textModel), slog.String("error", err.Error()))
		return domain.SystemFailure(p.textModel)
	}

	result := extract.Normalize(resp.FirstContent(), p.textModel)
	extract.ApplyDefaults(result, req.IncomeCategories, req.ExpenseCategories, req.CurrentDate)
	return result
}

// ExtractImage runs vision extraction over an uploaded image. The MIME
// allow-list is checked before any vendor call.
func (p *Provider) ExtractImage(ctx context.Context, req provider.ImageRequest) (*domain.ExtractionResult, error) {
	if err := provider.ValidateImageMIME(req.MIMEType); err != nil {
		return nil, err
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", req.MIMEType, base64.StdEncoding.EncodeToString(req.Data))
	resp, err := p.client.CreateChatCompletion(ctx, &openai.ChatCompletionRequest{
		Model: p.visionModel,
		Messages: []openai.ChatMessage{
			openai.Text("system", prompt.ForImage(req.CurrentDate, req.IncomeCategories, req.ExpenseCategories)),
			openai.TextWithImage("Analyze the following image and extract transaction(s).", dataURL),
		},
		Temperature:    1,
		ResponseFormat: &openai.ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		p.logger.Warn("groq vision completion failed", slog.String("model", p.visionModel), slog.String("error", err.Error()))
		return domain.SystemFailure(p.visionModel), nil
	}

	result := extract.Normalize(resp.FirstContent(), p.visionModel)
	extract.ApplyDefaults(result, req.IncomeCategories, req.ExpenseCategories, req.CurrentDate)
	return result, nil
}

// VisionModel identifies the vision model for usage telemetry.
func (p *Provider) VisionModel() string { return p.visionModel }
