package openai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"farmdata-backend/internal/llm"
	"farmdata-backend/internal/shared/telemetry"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 120 * time.Second
	// maxResponseBytes bounds how much of a provider reply is buffered.
	maxResponseBytes = 8 << 20
)

// Options configures the chat completions client.
type Options struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements llm.Client against an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		apiKey:     opts.APIKey,
		endpoint:   baseURL + "/chat/completions",
		httpClient: httpClient,
	}, nil
}

// Complete sends req and returns the extracted text and usage. Any non-2xx
// status or transport failure is returned as *llm.ProviderError. A 2xx body
// that matches no known shape yields empty text, not an error.
func (c *Client) Complete(ctx context.Context, req llm.ChatRequest) (llm.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return llm.Response{}, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return llm.Response{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return llm.Response{}, &llm.ProviderError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	duration := time.Since(start)
	if err != nil {
		return llm.Response{}, &llm.ProviderError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		telemetry.Warn("llm.provider_error", map[string]any{
			"model":       req.Model,
			"status":      resp.StatusCode,
			"duration_ms": duration.Milliseconds(),
		})
		return llm.Response{}, &llm.ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	out := llm.Response{
		Text:     ExtractText(body),
		Usage:    ExtractUsage(body),
		Duration: duration,
		Raw:      body,
	}
	logUsage(req, out)
	return out, nil
}

func logUsage(req llm.ChatRequest, resp llm.Response) {
	telemetry.Info("llm.response", map[string]any{
		"model":            req.Model,
		"prompt_hash":      hashMessages(req.Messages),
		"max_output":       req.MaxOutput(),
		"input_tokens":     resp.Usage.InputTokens,
		"output_tokens":    resp.Usage.OutputTokens,
		"reasoning_tokens": resp.Usage.ReasoningTokens,
		"total_tokens":     resp.Usage.TotalTokens,
		"text_chars":       len(resp.Text),
		"duration_ms":      resp.Duration.Milliseconds(),
	})
}

func hashMessages(messages []llm.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

var _ llm.Client = (*Client)(nil)
