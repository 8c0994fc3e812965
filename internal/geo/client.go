// Package geo resolves client IPs to a coarse location through
// ipgeolocation.io. Lookups are best-effort: any failure yields an empty
// location, never an error.
package geo

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
)

const defaultBaseURL = "https://api.ipgeolocation.io/ipgeo"

// Location is a coarse city/country pair. Either field may be empty.
type Location struct {
	City    string
	Country string
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets a custom API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// Client looks up IP geolocation.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a geolocation client. An empty API key disables lookups.
func New(apiKey string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup resolves ip to a location. Missing key, missing ip, and upstream
// failures all return the empty location.
func (c *Client) Lookup(ctx context.Context, ip string) Location {
	if c.apiKey == "" || ip == "" {
		return Location{}
	}

	query := url.Values{}
	query.Set("apiKey", c.apiKey)
	query.Set("ip", ip)
	query.Set("fields", "city,country_name")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return Location{}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("geolocation lookup failed", slog.String("error", err.Error()))
		return Location{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}
	}

	var body struct {
		City        string `json:"city"`
		CountryName string `json:"country_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}
	}

	return Location{City: body.City, Country: body.CountryName}
}
