// gemini_retry.go - Error classification and backoff for Gemini calls

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bosocmputer/voicebill/internal/common"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

// RetryConfig bounds the attempts of one logical Gemini call
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    time.Second,
	MaxDelay:        8 * time.Second,
	BackoffMultiple: 2.0,
}

// GeminiError is a failed call with a category used for logs and retry decisions
type GeminiError struct {
	OriginalError error
	Category      string
	StatusCode    int
	Message       string
	Retryable     bool
}

func (e *GeminiError) Error() string {
	return fmt.Sprintf("[%s] %s (status: %d, retryable: %v)", e.Category, e.Message, e.StatusCode, e.Retryable)
}

func (e *GeminiError) Unwrap() error { return e.OriginalError }

type errorClass struct {
	category  string
	message   string
	retryable bool
}

var statusClasses = map[int]errorClass{
	400: {"bad_request", "invalid request format or parameters", false},
	401: {"unauthorized", "invalid API key", false},
	403: {"forbidden", "API key lacks permission for this model", false},
	404: {"not_found", "model not found", false},
	413: {"payload_too_large", "voice note too large for one request", false},
	429: {"rate_limit", "too many requests", true},
	500: {"server_error", "Gemini internal error", true},
	502: {"server_error", "Gemini bad gateway", true},
	503: {"server_error", "Gemini unavailable", true},
	504: {"server_error", "Gemini gateway timeout", true},
}

// messageClasses are matched in order against the lowercased error text
var messageClasses = []struct {
	needles []string
	class   errorClass
}{
	{[]string{"quota"}, errorClass{"quota_exceeded", "API quota exhausted", false}},
	{[]string{"timeout", "deadline"}, errorClass{"timeout", "request timed out", true}},
	{[]string{"connection", "network"}, errorClass{"network_error", "network failure", true}},
}

func classify(err error) errorClass {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if c, ok := statusClasses[apiErr.Code]; ok {
			return c
		}
		return errorClass{"unknown_api_error", apiErr.Message, apiErr.Code >= 500}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errorClass{"timeout", "request timed out", true}
	case errors.Is(err, context.Canceled):
		return errorClass{"canceled", "request canceled", false}
	}

	text := strings.ToLower(err.Error())
	for _, mc := range messageClasses {
		for _, n := range mc.needles {
			if strings.Contains(text, n) {
				return mc.class
			}
		}
	}
	return errorClass{"unknown", err.Error(), false}
}

// categorizeGeminiError wraps err with its category; nil stays nil
func categorizeGeminiError(err error) *GeminiError {
	if err == nil {
		return nil
	}
	c := classify(err)
	out := &GeminiError{OriginalError: err, Category: c.category, Message: c.message, Retryable: c.retryable}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		out.StatusCode = apiErr.Code
	}
	return out
}

type generateFunc func(ctx context.Context) (*genai.GenerateContentResponse, error)

// callGeminiWithRetry retries retryable failures with exponential backoff.
// Rate limits wait twice as long.
func callGeminiWithRetry(ctx context.Context, reqCtx *common.RequestContext, cfg RetryConfig, call generateFunc) (*genai.GenerateContentResponse, error) {
	log := reqCtx.Logger()
	var last *GeminiError

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		resp, err := call(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info("Gemini call recovered", "attempt", attempt)
			}
			return resp, nil
		}

		last = categorizeGeminiError(err)
		log.Warn("Gemini call failed",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"category", last.Category,
			"status", last.StatusCode,
			"retryable", last.Retryable)

		if !last.Retryable {
			return nil, last
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := calculateBackoff(attempt, cfg)
		if last.Category == "rate_limit" {
			wait *= 2
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("retry wait aborted: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("gemini call failed after %d attempts: %w", cfg.MaxAttempts, last)
}

// calculateBackoff is InitialDelay * BackoffMultiple^(attempt-1), capped at MaxDelay
func calculateBackoff(attempt int, cfg RetryConfig) time.Duration {
	delay := cfg.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.BackoffMultiple)
		if delay >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	if delay > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return delay
}
