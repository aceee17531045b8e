// gemini.go - Gemini-backed extraction and price parsing

package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/bosocmputer/voicebill/internal/common"
	"github.com/bosocmputer/voicebill/internal/logger"
	"github.com/bosocmputer/voicebill/internal/ratelimit"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiConfig configures the Gemini client
type GeminiConfig struct {
	APIKey             string
	Model              string
	TranscriptionModel string
	Timeout            time.Duration
	Retry              RetryConfig
}

// GeminiClient implements Extractor, PriceParser and Transcriber on one genai client
type GeminiClient struct {
	client  *genai.Client
	cfg     GeminiConfig
	limiter *ratelimit.RateLimiter
	log     *logger.Logger
}

// NewGeminiClient creates the shared genai client
func NewGeminiClient(ctx context.Context, log *logger.Logger, cfg GeminiConfig, limiter *ratelimit.RateLimiter) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = cfg.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		cfg:     cfg,
		limiter: limiter,
		log:     log.With("service", "GeminiClient"),
	}, nil
}

func (g *GeminiClient) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *GeminiClient) GetProviderName() string { return "gemini" }

// generate runs one rate-limited, retried call and returns the text and token usage
func (g *GeminiClient) generate(ctx context.Context, model *genai.GenerativeModel, reqCtx *common.RequestContext, parts ...genai.Part) (string, *common.TokenUsage, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	resp, err := callGeminiWithRetry(ctx, reqCtx, g.cfg.Retry, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return model.GenerateContent(ctx, parts...)
	})
	if err != nil {
		return "", nil, err
	}

	var usage *common.TokenUsage
	if resp.UsageMetadata != nil {
		tokens := common.CalculateTokenCost(
			int(resp.UsageMetadata.PromptTokenCount),
			int(resp.UsageMetadata.CandidatesTokenCount),
		)
		usage = &tokens
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		reqCtx.Logger().Warn("Gemini response truncated", "finish_reason", "MAX_TOKENS")
	}

	text, err := responseText(resp)
	if err != nil {
		return "", usage, err
	}
	return text, usage, nil
}

func (g *GeminiClient) jsonModel(name string, instruction string, schema *genai.Schema) *genai.GenerativeModel {
	model := g.client.GenerativeModel(name)
	model.SetTemperature(0.1)
	model.SetMaxOutputTokens(2048)
	model.SystemInstruction = genai.NewUserContent(genai.Text(instruction))
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = schema
	return model
}

// ExtractDraft implements Extractor
func (g *GeminiClient) ExtractDraft(ctx context.Context, req ExtractionRequest, reqCtx *common.RequestContext) (Draft, *common.TokenUsage, error) {
	// Step 1: Build the prompt with catalog + customer hints
	instruction := BuildExtractionSystemInstruction(req.CatalogText, req.CustomerNames)
	model := g.jsonModel(g.cfg.Model, instruction, draftSchema())

	// Step 2: Call Gemini
	raw, usage, err := g.generate(ctx, model, reqCtx, genai.Text(BuildExtractionUserPrompt(req.Transcript)))
	if err != nil {
		return Draft{}, usage, fmt.Errorf("extract draft: %w", err)
	}

	// Step 3: Parse and validate
	draft, err := ParseDraft(raw)
	if err != nil {
		reqCtx.Logger().Warn("draft rejected", "raw_preview", preview(raw, 300), "error", err)
		return Draft{}, usage, err
	}

	reqCtx.Logger().Info("draft extracted", "customer", draft.CustomerName, "items", len(draft.Items))
	return draft, usage, nil
}

// ParsePrices implements PriceParser
func (g *GeminiClient) ParsePrices(ctx context.Context, reply string, reqCtx *common.RequestContext) ([]float64, *common.TokenUsage, error) {
	model := g.jsonModel(g.cfg.Model, PriceParsingSystemInstruction, pricesSchema())

	raw, usage, err := g.generate(ctx, model, reqCtx, genai.Text(reply))
	if err != nil {
		return nil, usage, fmt.Errorf("parse prices: %w", err)
	}

	prices, err := ParsePriceReply(raw)
	if err != nil {
		return nil, usage, err
	}
	return prices, usage, nil
}

func draftSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"customer_name": {
				Type:        genai.TypeString,
				Description: "Customer name exactly as spoken, or 'Walk-in Customer'",
			},
			"items": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name": {
							Type:        genai.TypeString,
							Description: "Singular item name",
						},
						"quantity": {
							Type: genai.TypeNumber,
						},
						"price": {
							Type:        genai.TypeNumber,
							Nullable:    true,
							Description: "Unit price only if spoken, otherwise null",
						},
					},
					Required: []string{"name", "quantity", "price"},
				},
			},
		},
		Required: []string{"customer_name", "items"},
	}
}

func pricesSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"prices": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeNumber},
			},
		},
		Required: []string{"prices"},
	}
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}
