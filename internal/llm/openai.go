package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIClient is a minimal OpenAI chat completions client.
type OpenAIClient struct {
	apiKey      string
	url         string
	model       string
	system      string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	httpClient  *http.Client
}

// NewOpenAIClient creates an OpenAI completer. The model, system persona,
// sampling temperature, and output-token cap come from configuration.
func NewOpenAIClient(apiKey, url, model, system string, temperature float64, maxTokens int, timeout time.Duration) *OpenAIClient {
	return &OpenAIClient{
		apiKey:      apiKey,
		url:         url,
		model:       model,
		system:      system,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     timeout,
		httpClient:  &http.Client{},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion request with the system persona
// prepended. An empty model response yields "" with no error; the caller
// persists the empty reply rather than dropping the turn.
func (c *OpenAIClient) Complete(ctx context.Context, history []Message) (string, error) {
	messages := assemble(c.system, history)

	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &TimeoutError{Limit: c.timeout}
		}
		return "", &ProviderError{Status: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Status: resp.StatusCode, Message: "failed reading response: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{Status: resp.StatusCode, Message: truncate(string(body), 400)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ProviderError{Status: resp.StatusCode, Message: "unparseable response: " + truncate(string(body), 400)}
	}

	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
