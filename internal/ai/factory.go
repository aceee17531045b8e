// factory.go - Provider factory for transcription

package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/bosocmputer/voicebill/internal/common"
	"github.com/bosocmputer/voicebill/internal/logger"
)

// TranscriberConfig selects and configures a transcription provider
type TranscriberConfig struct {
	// Provider name: "gemini" or "gcp_speech"
	Provider string
	Speech   SpeechConfig
}

// CreateTranscriber creates a transcriber based on configuration.
// The gemini provider reuses the already-open Gemini client.
func CreateTranscriber(ctx context.Context, log *logger.Logger, cfg TranscriberConfig, gemini *GeminiClient) (Transcriber, error) {
	switch cfg.Provider {
	case "", "gemini":
		if gemini == nil {
			return nil, fmt.Errorf("gemini transcription needs a Gemini client")
		}
		log.Info("creating transcriber", "provider", "gemini")
		return gemini, nil

	case "gcp_speech":
		log.Info("creating transcriber", "provider", "gcp_speech", "language", cfg.Speech.LanguageCode)
		return NewSpeechTranscriber(ctx, log, cfg.Speech)

	default:
		return nil, fmt.Errorf("unsupported transcription provider: %s (supported: gemini, gcp_speech)", cfg.Provider)
	}
}

// ErrProviderDisabled is returned by Disabled for every call
var ErrProviderDisabled = errors.New("ai provider disabled")

// Disabled stands in for Gemini when AI_PROVIDER=none. Every call fails, so
// voice notes degrade to the placeholder invoice and price replies are re-asked.
type Disabled struct{}

func (Disabled) GetProviderName() string { return "none" }

func (Disabled) Transcribe(context.Context, []byte, string, *common.RequestContext) (string, error) {
	return "", ErrProviderDisabled
}

func (Disabled) ExtractDraft(context.Context, ExtractionRequest, *common.RequestContext) (Draft, *common.TokenUsage, error) {
	return Draft{}, nil, ErrProviderDisabled
}

func (Disabled) ParsePrices(context.Context, string, *common.RequestContext) ([]float64, *common.TokenUsage, error) {
	return nil, nil, ErrProviderDisabled
}
