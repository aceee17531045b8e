// interface.go - Provider interfaces for transcription, extraction and price parsing

package ai

import (
	"context"

	"github.com/bosocmputer/voicebill/internal/common"
)

// ExtractionRequest is the context handed to the extraction model
type ExtractionRequest struct {
	Transcript string
	// CatalogText is the rendered name -> price listing, empty when the catalog is empty
	CatalogText string
	// CustomerNames are hints; only the first MaxCustomerHints are sent
	CustomerNames []string
}

// Extractor turns a transcript into a draft invoice
type Extractor interface {
	// ExtractDraft returns a validated draft or an error; it never invents a fallback itself
	ExtractDraft(ctx context.Context, req ExtractionRequest, reqCtx *common.RequestContext) (Draft, *common.TokenUsage, error)
}

// PriceParser pulls the numbers out of a free-text price reply, left to right
type PriceParser interface {
	ParsePrices(ctx context.Context, reply string, reqCtx *common.RequestContext) ([]float64, *common.TokenUsage, error)
}

// Transcriber converts downloaded audio to text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string, reqCtx *common.RequestContext) (string, error)

	// GetProviderName returns the name of the provider (e.g., "gemini", "gcp_speech")
	GetProviderName() string
}
