// Package llm implements the intent model adapter.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"leadscout/core/port/out"
	"leadscout/pkg/apperr"
	"leadscout/pkg/logger"

	openai "github.com/sashabaranov/go-openai"
)

// =============================================================================
// OpenAI Intent Model
// =============================================================================

const DefaultModel = "gpt-4o-mini"

// ClientConfig holds the intent model settings.
type ClientConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

// Client calls the chat completion API with a JSON response format. Retries
// are bounded; callers treat any error as "model unavailable" and fall back
// to heuristics.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	maxRetries  int
}

// NewClient creates a new intent model client.
func NewClient(cfg ClientConfig) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.1
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Client{
		client:      openai.NewClient(cfg.APIKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		timeout:     timeout,
		maxRetries:  maxRetries,
	}
}

// Complete returns the model's raw text for a prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.client.CreateChatCompletion(callCtx, req)
		cancel()

		if err == nil {
			if len(resp.Choices) == 0 {
				return "", nil
			}
			return resp.Choices[0].Message.Content, nil
		}

		lastErr = err
		if !retriable(err) {
			break
		}
		logger.WithFields(map[string]any{"attempt": attempt + 1}).
			WithError(err).Warn("intent model call failed, retrying")
	}

	return "", apperr.External(lastErr, "intent model unavailable")
}

// retriable reports whether an API error is worth another attempt.
func retriable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	// Transport failures surface as plain errors.
	msg := err.Error()
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "connection")
}

// =============================================================================
// Interface Compliance
// =============================================================================

var _ out.IntentModel = (*Client)(nil)
