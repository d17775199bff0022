package llm

import (
	"context"
	"fmt"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a provider-agnostic chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer generates assistant text for a conversation history. The history
// passed in ends with the user's latest message; implementations prepend the
// configured system persona themselves.
type Completer interface {
	Complete(ctx context.Context, history []Message) (string, error)
}

// ProviderError indicates the completion provider rejected or failed the
// request. Status is the HTTP status code, or 0 for transport failures.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error status=%d: %s", e.Status, e.Message)
}

// TimeoutError indicates the provider call exceeded the request deadline.
type TimeoutError struct {
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider call timed out after %s", e.Limit)
}

// assemble builds the final message list sent to the provider: the system
// persona followed by the conversation history.
func assemble(system string, history []Message) []Message {
	messages := make([]Message, 0, 1+len(history))
	messages = append(messages, Message{Role: RoleSystem, Content: system})
	messages = append(messages, history...)
	return messages
}
