package llm

import (
	"context"
	"fmt"
	"time"
)

// Client sends one chat completion request to a provider.
type Client interface {
	Complete(ctx context.Context, req ChatRequest) (Response, error)
}

// Usage carries token counts normalized across provider field names.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	ReasoningTokens int
	TotalTokens     int
}

// Response is the provider reply reduced to text and usage.
// Text is empty when no known response shape carried any.
type Response struct {
	Text     string
	Usage    Usage
	Duration time.Duration
	Raw      []byte
}

// ProviderError reports a non-success status or transport failure.
// Body holds the provider's raw error payload, untranslated.
type ProviderError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("provider request failed: %v", e.Err)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
