// Package elevenlabs is a client for the ElevenLabs speech-to-text API with
// rotation over a pool of interchangeable API keys.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"

	"github.com/tjfontaine/ledgerlens/internal/domain"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1/speech-to-text"
	modelID        = "scribe_v2"
)

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

// TranscriptionError reports a failed transcription attempt, carrying the
// upstream HTTP status and body when one was received.
type TranscriptionError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TranscriptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("elevenlabs transcription failed: %v", e.Err)
	}
	return fmt.Sprintf("elevenlabs transcription failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// Client transcribes audio through ElevenLabs. The key pool and index are
// shared for the lifetime of the client; rotation under concurrent failures
// is best-effort, not linearizable, since the keys are interchangeable.
type Client struct {
	keys       []string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu       sync.Mutex
	keyIndex int
}

// New creates a client over a non-empty ordered API key pool.
func New(keys []string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if len(keys) == 0 {
		return nil, domain.ErrConfiguration("elevenlabs", "ELEVENLABS_API_KEYS is not configured (comma-separated)")
	}

	c := &Client{
		keys:       keys,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Transcribe converts an audio buffer into text. On a rotatable upstream
// failure (401, 429, any 5xx) the key index advances for the next call; the
// current call still fails. Other failures do not rotate.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename, mimeType string) (string, error) {
	keyIndex := c.currentKeyIndex()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("model_id", modelID); err != nil {
		return "", &TranscriptionError{Err: err}
	}
	if filename == "" {
		filename = "audio"
	}
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}
	part, err := createFilePart(writer, filename, mimeType)
	if err != nil {
		return "", &TranscriptionError{Err: err}
	}
	if _, err := part.Write(audio); err != nil {
		return "", &TranscriptionError{Err: err}
	}
	if err := writer.Close(); err != nil {
		return "", &TranscriptionError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &body)
	if err != nil {
		return "", &TranscriptionError{Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("xi-api-key", c.keys[keyIndex])

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TranscriptionError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TranscriptionError{Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var result struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(respBody, &result); err != nil {
			return "", &TranscriptionError{Err: err}
		}
		// Scribe tends to hear statements as questions on short clips;
		// callers expect declarative transcripts.
		return strings.ReplaceAll(result.Text, "?", "."), nil
	}

	if isRotatable(resp.StatusCode) {
		c.rotate(keyIndex, resp.StatusCode)
	}
	return "", &TranscriptionError{StatusCode: resp.StatusCode, Body: string(respBody)}
}

func (c *Client) currentKeyIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keyIndex
}

func (c *Client) rotate(fromIndex, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Another caller may have rotated already; advancing again is acceptable
	// because the keys are interchangeable.
	c.keyIndex = (c.keyIndex + 1) % len(c.keys)
	c.logger.Warn("elevenlabs key rotated",
		slog.Int("from", fromIndex),
		slog.Int("to", c.keyIndex),
		slog.Int("status", status))
}

func isRotatable(status int) bool {
	return status == http.StatusUnauthorized ||
		status == http.StatusTooManyRequests ||
		(status >= 500 && status < 600)
}

func createFilePart(w *multipart.Writer, filename, mimeType string) (io.Writer, error) {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	return w.CreatePart(header)
}
