package llm

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the provider body. Exactly one of MaxTokens and
// MaxCompletionTokens is set, depending on the model capability.
type ChatRequest struct {
	Model               string    `json:"model"`
	Messages            []Message `json:"messages"`
	Temperature         *float64  `json:"temperature,omitempty"`
	MaxTokens           *int      `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int      `json:"max_completion_tokens,omitempty"`
}

// MaxOutput returns whichever output cap is set.
func (r ChatRequest) MaxOutput() int {
	switch {
	case r.MaxCompletionTokens != nil:
		return *r.MaxCompletionTokens
	case r.MaxTokens != nil:
		return *r.MaxTokens
	default:
		return 0
	}
}

// NewChatRequest shapes the body for the capability of model. A temperature
// of nil means the caller did not supply one. maxTokens <= 0 selects the default.
func NewChatRequest(capability Capability, model, systemPrompt, userPrompt string, temperature *float64, maxTokens int) ChatRequest {
	req := ChatRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	if capability.SupportsTemperature {
		temp := DefaultTemperature
		if temperature != nil {
			temp = *temperature
		}
		req.Temperature = &temp
	}

	limit := capability.MaxOutputTokens(maxTokens)
	switch capability.TokenField {
	case TokenFieldMaxCompletionTokens:
		req.MaxCompletionTokens = &limit
	default:
		req.MaxTokens = &limit
	}
	return req
}
