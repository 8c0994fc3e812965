// Package provider defines the extraction capability implemented by every
// vendor adapter.
package provider

import (
	"context"
	"strings"
	"time"

	"github.com/tjfontaine/ledgerlens/internal/domain"
)

// Request carries the inputs for a text extraction attempt.
type Request struct {
	Text              string
	IncomeCategories  []string
	ExpenseCategories []string
	CurrentDate       time.Time
}

// ImageRequest carries the inputs for an image extraction attempt.
type ImageRequest struct {
	Data              []byte
	MIMEType          string
	IncomeCategories  []string
	ExpenseCategories []string
	CurrentDate       time.Time
}

// Extractor is the common capability of every text provider adapter.
// Adapters never return errors: vendor-level failures (auth, network, rate
// limit, malformed output) are absorbed into the system-failure result.
type Extractor interface {
	// Model identifies the vendor/model pair for usage telemetry.
	Model() string

	Extract(ctx context.Context, req Request) *domain.ExtractionResult
}

// ImageExtractor is implemented by vision-capable adapters. The only error
// it returns is a ValidationError for unsupported MIME types, raised before
// any vendor call.
type ImageExtractor interface {
	Model() string

	ExtractImage(ctx context.Context, req ImageRequest) (*domain.ExtractionResult, error)
}

// allowedImageMIMEs is the accepted image upload allow-list.
var allowedImageMIMEs = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// ValidateImageMIME rejects unsupported image MIME types.
func ValidateImageMIME(mimeType string) error {
	if !allowedImageMIMEs[strings.ToLower(mimeType)] {
		return domain.ErrValidation("image",
			"unsupported image type "+mimeType+"; allowed: image/jpeg, image/png, image/webp, image/gif")
	}
	return nil
}
