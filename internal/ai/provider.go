package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation. Image is a base64 payload and is only
// understood by providers that accept attachments.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// LastUserMessage returns the most recent user turn, or an empty user message
// when there is none.
func LastUserMessage(messages []Message) Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i]
		}
	}
	return Message{Role: RoleUser}
}
