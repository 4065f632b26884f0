// Package llm talks to the language model behind the chat tutor. Every
// provider returns JSON; when a request carries a Schema the JSON has been
// validated against it.
package llm

import (
	"context"
	"encoding/json"
)

// Provider generates one reply for a conversation.
type Provider interface {
	// Generate returns the model's reply. With req.Schema set, the
	// provider uses its native structured output and Content is a
	// validated JSON object; otherwise Content is a JSON string.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID is the model this provider sends requests to.
	ModelID() string
}

// Request is a single generation request.
type Request struct {
	System   string
	Messages []Message

	// Schema constrains the reply. Nil means free text.
	Schema *Schema

	MaxTokens   int
	Temperature float64
}

// LastUserMessage returns the content of the final user message.
func (r Request) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// Message is one turn of the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema is a named JSON Schema. Name is kebab-case, e.g. "tutor-reply";
// it becomes the tool or schema name on providers that need one.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Response is a generated reply.
type Response struct {
	Content json.RawMessage
	Usage   Usage
	Model   string

	// StopReason is "end" or "max_tokens".
	StopReason string
}

// Usage is the token count of one request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// resolveModel maps a friendly model alias to the provider's model ID.
// Unknown names are passed through so full model IDs also work.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
