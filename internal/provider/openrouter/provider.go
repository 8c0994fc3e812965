// Package openrouter adapts OpenRouter-hosted models to the extraction
// capability. OpenRouter exposes an OpenAI-compatible endpoint, so the wire
// client is shared with the Groq adapter.
package openrouter

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/ledgerlens/internal/api/openai"
	"github.com/tjfontaine/ledgerlens/internal/domain"
	"github.com/tjfontaine/ledgerlens/internal/extract"
	"github.com/tjfontaine/ledgerlens/internal/prompt"
	"github.com/tjfontaine/ledgerlens/internal/provider"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is the model served through OpenRouter.
	DefaultModel = "google/gemini-2.5-flash"
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

// WithModel overrides the model.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// Provider implements provider.Extractor against OpenRouter.
type Provider struct {
	client     *openai.Client
	logger     *slog.Logger
	baseURL    string
	httpClient *http.Client
	model      string
}

// New creates an OpenRouter provider.
func New(apiKey string, logger *slog.Logger, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, domain.ErrConfiguration("openrouter", "OPENROUTER_API_KEY is not configured")
	}

	p := &Provider{
		logger:  logger,
		baseURL: defaultBaseURL,
		model:   DefaultModel,
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

func (p *Provider) Model() string { return p.model }

// Extract runs text extraction. Vendor failures become the system-failure
// result; they never escape the adapter boundary.
func (p *Provider) Extract(ctx context.Context, req provider.Request) *domain.ExtractionResult {
	resp, err := p.client.CreateChatCompletion(ctx, &openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatMessage{
			openai.Text("system", prompt.ForText(req.CurrentDate, req.IncomeCategories, req.ExpenseCategories)),
			openai.Text("user", req.Text),
		},
		Temperature:    1,
		ResponseFormat: &openai.ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		p.logger.Warn("openrouter completion failed", slog.String("model", p.model), slog.String("error", err.Error()))
		return domain.SystemFailure(p.model)
	}

	result := extract.Normalize(resp.FirstContent(), p.model)
	extract.ApplyDefaults(result, req.IncomeCategories, req.ExpenseCategories, req.CurrentDate)
	return result
}
