package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient is a Completer backed by the Anthropic Messages API.
type AnthropicClient struct {
	client      anthropic.Client
	model       string
	system      string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

// NewAnthropicClient creates an Anthropic completer.
func NewAnthropicClient(apiKey, model, system string, temperature float64, maxTokens int, timeout time.Duration) *AnthropicClient {
	return &AnthropicClient{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       model,
		system:      system,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     timeout,
	}
}

// Complete sends one Messages API request. The system persona rides in the
// request's system field; history roles map to user/assistant turns.
func (c *AnthropicClient) Complete(ctx context.Context, history []Message) (string, error) {
	msgs := make([]anthropic.MessageParam, 0, len(history))
	for _, m := range history {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(c.maxTokens),
		Temperature: anthropic.Float(c.temperature),
		System:      []anthropic.TextBlockParam{{Text: c.system}},
		Messages:    msgs,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &TimeoutError{Limit: c.timeout}
		}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &ProviderError{Status: apiErr.StatusCode, Message: truncate(apiErr.Error(), 400)}
		}
		return "", &ProviderError{Status: 0, Message: err.Error()}
	}

	var text strings.Builder
	for _, blk := range resp.Content {
		if blk.Type == "text" {
			text.WriteString(blk.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}
