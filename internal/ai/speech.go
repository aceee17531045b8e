// speech.go - Google Cloud Speech-to-Text transcriber

package ai

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/bosocmputer/voicebill/internal/common"
	"github.com/bosocmputer/voicebill/internal/logger"
	"google.golang.org/api/option"
)

// SpeechConfig configures the Cloud Speech transcriber
type SpeechConfig struct {
	LanguageCode string
	// AlternativeLanguages lets mixed Hindi/English notes pass recognition
	AlternativeLanguages []string
	SampleRateHertz      int
}

// SpeechTranscriber implements Transcriber with synchronous recognition,
// which covers WhatsApp voice notes up to one minute
type SpeechTranscriber struct {
	client *speech.Client
	cfg    SpeechConfig
	log    *logger.Logger
}

func NewSpeechTranscriber(ctx context.Context, log *logger.Logger, cfg SpeechConfig, opts ...option.ClientOption) (*SpeechTranscriber, error) {
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-IN"
	}
	return &SpeechTranscriber{client: c, cfg: cfg, log: log.With("service", "gcp.Speech")}, nil
}

func (s *SpeechTranscriber) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *SpeechTranscriber) GetProviderName() string { return "gcp_speech" }

func (s *SpeechTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string, reqCtx *common.RequestContext) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}

	req := &speechpb.RecognizeRequest{
		Config: buildRecognitionConfig(mimeType, s.cfg),
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	}
	resp, err := s.client.Recognize(ctx, req)
	if err != nil {
		return "", fmt.Errorf("speech recognize: %w", err)
	}

	text := joinResults(resp.GetResults())
	reqCtx.Logger().Debug("speech recognized", "chars", len(text), "results", len(resp.GetResults()))
	return text, nil
}

func buildRecognitionConfig(mimeType string, cfg SpeechConfig) *speechpb.RecognitionConfig {
	enc := inferSpeechEncoding(mimeType)
	rc := &speechpb.RecognitionConfig{
		LanguageCode:               cfg.LanguageCode,
		AlternativeLanguageCodes:   cfg.AlternativeLanguages,
		EnableAutomaticPunctuation: true,
		Encoding:                   enc,
	}
	// OGG_OPUS requires an explicit rate; the others carry it in the header
	if enc == speechpb.RecognitionConfig_OGG_OPUS && cfg.SampleRateHertz > 0 {
		rc.SampleRateHertz = int32(cfg.SampleRateHertz)
	}
	return rc
}

func inferSpeechEncoding(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.Contains(m, "wav"):
		return speechpb.RecognitionConfig_LINEAR16
	case strings.Contains(m, "flac"):
		return speechpb.RecognitionConfig_FLAC
	case strings.Contains(m, "mp3"), strings.Contains(m, "mpeg"):
		return speechpb.RecognitionConfig_MP3
	case strings.Contains(m, "ogg"), strings.Contains(m, "opus"):
		return speechpb.RecognitionConfig_OGG_OPUS
	case strings.Contains(m, "amr"):
		return speechpb.RecognitionConfig_AMR
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

func joinResults(results []*speechpb.SpeechRecognitionResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
