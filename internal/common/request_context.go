// request_context.go - Request tracking and logging system

package common

import (
	"fmt"
	"time"

	"github.com/bosocmputer/voicebill/configs"
	"github.com/bosocmputer/voicebill/internal/logger"
	"github.com/google/uuid"
)

// RequestContext tracks one inbound message through the pipeline with timing and costs
type RequestContext struct {
	RequestID        string
	Sender           string
	UserID           string
	StartTime        time.Time
	Steps            []StepLog
	TotalTokens      TokenUsage
	CurrentStep      string
	CurrentStepStart time.Time

	log *logger.Logger
}

// StepLog represents a single processing step
type StepLog struct {
	Name      string      `json:"name"`
	StartTime time.Time   `json:"start_time"`
	Duration  int64       `json:"duration_ms"`
	Status    string      `json:"status"` // "success", "failed", "skipped"
	Tokens    *TokenUsage `json:"tokens,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// TokenUsage tracks API token consumption
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	CostINR      float64 `json:"cost_inr"`
}

// NewRequestContext creates a new request tracking context
func NewRequestContext(log *logger.Logger, sender string) *RequestContext {
	if log == nil {
		log = logger.Nop()
	}
	reqID := uuid.New().String()

	rc := &RequestContext{
		RequestID: reqID,
		Sender:    sender,
		StartTime: time.Now(),
		Steps:     []StepLog{},
		log:       log.With("request_id", reqID),
	}
	rc.log.Info("inbound message received", "sender", sender)
	return rc
}

// SetUser attaches the resolved shopkeeper id to every following log line
func (rc *RequestContext) SetUser(userID string) {
	rc.UserID = userID
	rc.log = rc.log.With("user", userID)
}

// Logger exposes the request-scoped logger
func (rc *RequestContext) Logger() *logger.Logger {
	return rc.log
}

// StartStep begins tracking a new processing step
func (rc *RequestContext) StartStep(stepName string) {
	rc.CurrentStep = stepName
	rc.CurrentStepStart = time.Now()
	rc.log.Debug("step started", "step", stepName)
}

// EndStep completes the current step and records timing
func (rc *RequestContext) EndStep(status string, tokens *TokenUsage, err error) {
	duration := time.Since(rc.CurrentStepStart).Milliseconds()

	stepLog := StepLog{
		Name:      rc.CurrentStep,
		StartTime: rc.CurrentStepStart,
		Duration:  duration,
		Status:    status,
		Tokens:    tokens,
	}

	if tokens != nil {
		rc.TotalTokens.InputTokens += tokens.InputTokens
		rc.TotalTokens.OutputTokens += tokens.OutputTokens
		rc.TotalTokens.TotalTokens += tokens.TotalTokens
		rc.TotalTokens.CostUSD += tokens.CostUSD
		rc.TotalTokens.CostINR += tokens.CostINR
	}

	if err != nil {
		stepLog.Error = err.Error()
		rc.log.Error("step failed", "step", rc.CurrentStep, "duration_ms", duration, "error", err)
	} else {
		rc.log.Info("step finished", "step", rc.CurrentStep, "status", status, "duration_ms", duration)
	}

	rc.Steps = append(rc.Steps, stepLog)
	rc.CurrentStep = ""
}

// CalculateTokenCost computes USD and INR cost from token counts
func CalculateTokenCost(inputTokens, outputTokens int) TokenUsage {
	inputCost := float64(inputTokens) * configs.GEMINI_INPUT_PRICE_PER_MILLION / 1_000_000
	outputCost := float64(outputTokens) * configs.GEMINI_OUTPUT_PRICE_PER_MILLION / 1_000_000
	costUSD := inputCost + outputCost

	return TokenUsage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		CostUSD:      costUSD,
		CostINR:      costUSD * configs.USD_TO_INR,
	}
}

// GetSummary returns a final summary of the entire request
func (rc *RequestContext) GetSummary() map[string]interface{} {
	totalDuration := time.Since(rc.StartTime).Milliseconds()

	stepBreakdown := make(map[string]int64)
	for _, step := range rc.Steps {
		stepBreakdown[step.Name] = step.Duration
	}

	summary := map[string]interface{}{
		"request_id":        rc.RequestID,
		"user_id":           rc.UserID,
		"total_duration_ms": totalDuration,
		"step_breakdown":    stepBreakdown,
		"total_steps":       len(rc.Steps),
		"token_usage": map[string]interface{}{
			"input_tokens":  rc.TotalTokens.InputTokens,
			"output_tokens": rc.TotalTokens.OutputTokens,
			"total_tokens":  rc.TotalTokens.TotalTokens,
			"cost_usd":      fmt.Sprintf("$%.4f", rc.TotalTokens.CostUSD),
			"cost_inr":      fmt.Sprintf("₹%.2f", rc.TotalTokens.CostINR),
		},
	}

	rc.log.Info("request summary",
		"duration_ms", totalDuration,
		"steps", len(rc.Steps),
		"tokens", rc.TotalTokens.TotalTokens,
		"cost_inr", rc.TotalTokens.CostINR)

	return summary
}

// LogInfo logs info-level message with request ID prefix
func (rc *RequestContext) LogInfo(format string, args ...interface{}) {
	rc.log.Info(fmt.Sprintf(format, args...))
}

// LogWarning logs warning-level message with request ID prefix
func (rc *RequestContext) LogWarning(format string, args ...interface{}) {
	rc.log.Warn(fmt.Sprintf(format, args...))
}

// LogError logs error-level message with request ID prefix
func (rc *RequestContext) LogError(format string, args ...interface{}) {
	rc.log.Error(fmt.Sprintf(format, args...))
}
