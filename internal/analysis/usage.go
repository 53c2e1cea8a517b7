package analysis

import (
	"fmt"
	"math"
	"time"

	"farmdata-backend/internal/llm"
)

// Statistics reports timing and token usage for one analysis.
type Statistics struct {
	ProcessingTimeSeconds float64 `json:"processingTimeSeconds"`
	InputTokens           int     `json:"inputTokens"`
	OutputTokens          int     `json:"outputTokens"`
	ReasoningTokens       int     `json:"reasoningTokens"`
	TotalTokens           int     `json:"totalTokens"`
}

// NewStatistics normalizes provider usage. A missing total is the sum of
// input and output tokens.
func NewStatistics(elapsed time.Duration, usage llm.Usage) Statistics {
	total := usage.TotalTokens
	if total == 0 {
		total = usage.InputTokens + usage.OutputTokens
	}
	return Statistics{
		ProcessingTimeSeconds: math.Round(elapsed.Seconds()*100) / 100,
		InputTokens:           usage.InputTokens,
		OutputTokens:          usage.OutputTokens,
		ReasoningTokens:       usage.ReasoningTokens,
		TotalTokens:           total,
	}
}

// FinalText substitutes a diagnostic message when the provider spent tokens
// but returned no visible text. substituted reports whether that happened.
func FinalText(text string, stats Statistics, maxOutput int) (final string, substituted bool) {
	if text != "" || (stats.ReasoningTokens == 0 && stats.OutputTokens == 0) {
		return text, false
	}
	return fmt.Sprintf(
		"The model returned no visible text. The output budget of %d tokens was likely used up by internal reasoning (%d reasoning tokens). Increase maxTokens above %d or narrow the request and try again.",
		maxOutput, stats.ReasoningTokens, maxOutput,
	), true
}
