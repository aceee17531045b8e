// transcribe.go - Transcription markers shared by every provider

package ai

import (
	"context"
	"strings"

	"github.com/bosocmputer/voicebill/internal/common"
)

const (
	TranscriptionFailed = "[Transcription failed]"
	NoSpeechDetected    = "[No speech detected]"
)

// TranscribeOrMarker never fails: errors become TranscriptionFailed and an
// empty result becomes NoSpeechDetected
func TranscribeOrMarker(ctx context.Context, t Transcriber, audio []byte, mimeType string, reqCtx *common.RequestContext) string {
	reqCtx.StartStep("transcribe")
	text, err := t.Transcribe(ctx, audio, mimeType, reqCtx)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return TranscriptionFailed
	}
	reqCtx.EndStep("success", nil, nil)

	text = strings.TrimSpace(text)
	if text == "" {
		return NoSpeechDetected
	}
	reqCtx.Logger().Info("transcription", "provider", t.GetProviderName(), "text", text)
	return text
}

// IsFailedTranscript reports a marker or blank transcript
func IsFailedTranscript(text string) bool {
	text = strings.TrimSpace(text)
	return text == "" || text == TranscriptionFailed || text == NoSpeechDetected
}
