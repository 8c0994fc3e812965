// Package manual adapts the deterministic rule-based parser service to the
// extraction capability. It is the final link of the auto-fallback chain.
package manual

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/ledgerlens/internal/domain"
	"github.com/tjfontaine/ledgerlens/internal/extract"
	"github.com/tjfontaine/ledgerlens/internal/provider"
)

// ModelName tags manual-parser attempts in usage telemetry.
const ModelName = "manual"

// Option configures the provider.
type Option func(*Provider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(p *Provider) { p.httpClient = httpClient }
}

// Provider implements provider.Extractor over the manual parser's HTTP API.
type Provider struct {
	url        string
	logger     *slog.Logger
	httpClient *http.Client
}

// New creates a manual-parser provider for the given parse endpoint.
func New(url string, logger *slog.Logger, opts ...Option) (*Provider, error) {
	if url == "" {
		return nil, domain.ErrConfiguration("manual", "manual parser URL is not configured")
	}

	p := &Provider{
		url:        url,
		logger:     logger,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Provider) Model() string { return ModelName }

// Extract posts the text to the parser service. A network error or non-2xx
// response becomes the system-failure result; the service's own
// success/declined answer passes through.
func (p *Provider) Extract(ctx context.Context, req provider.Request) *domain.ExtractionResult {
	body, err := json.Marshal(map[string]string{"text": req.Text})
	if err != nil {
		return domain.SystemFailure(ModelName)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return domain.SystemFailure(ModelName)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Warn("manual parser request failed", slog.String("error", err.Error()))
		return domain.SystemFailure(ModelName)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Warn("manual parser returned error", slog.Int("status", resp.StatusCode))
		return domain.SystemFailure(ModelName)
	}

	result := extract.Normalize(string(respBody), ModelName)
	extract.ApplyDefaults(result, req.IncomeCategories, req.ExpenseCategories, req.CurrentDate)
	return result
}
