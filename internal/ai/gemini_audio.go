// gemini_audio.go - Voice note transcription through Gemini audio input

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bosocmputer/voicebill/internal/common"
	"github.com/google/generative-ai-go/genai"
)

// Transcribe implements Transcriber by sending the audio inline
func (g *GeminiClient) Transcribe(ctx context.Context, audio []byte, mimeType string, reqCtx *common.RequestContext) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	if mimeType == "" {
		mimeType = "audio/ogg"
	}
	// Twilio sends "audio/ogg; codecs=opus"; Gemini wants the bare type
	if i := strings.Index(mimeType, ";"); i > 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	model := g.client.GenerativeModel(g.cfg.TranscriptionModel)
	model.SetTemperature(0)

	reqCtx.Logger().Debug("transcribing voice note", "bytes", len(audio), "mime_type", mimeType)

	text, usage, err := g.generate(ctx, model, reqCtx,
		genai.Text(TranscriptionPrompt),
		genai.Blob{MIMEType: mimeType, Data: audio},
	)
	if usage != nil {
		reqCtx.Logger().Debug("transcription tokens", "tokens", usage.TotalTokens, "cost_inr", usage.CostINR)
	}
	if errors.Is(err, errEmptyResponse) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("gemini transcription: %w", err)
	}
	return strings.TrimSpace(text), nil
}
