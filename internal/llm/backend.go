package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abhisek/investory/internal/api"
)

// ChatBackend is the Investory API's chat endpoint.
type ChatBackend interface {
	Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
}

// BackendProvider sends the conversation to the Investory API, which owns
// the system prompt and the model. Its Content is always an object
// {"answer": ..., "followUps": [...]}.
type BackendProvider struct {
	backend ChatBackend
}

// NewBackendProvider creates a provider over backend.
func NewBackendProvider(backend ChatBackend) (*BackendProvider, error) {
	if backend == nil {
		return nil, errors.New("backend chat client is required")
	}
	return &BackendProvider{backend: backend}, nil
}

func (p *BackendProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	msg := req.LastUserMessage()
	if msg == "" {
		return nil, &ErrPermanent{Err: errors.New("no user message to send")}
	}

	// Everything before the final user turn is history.
	history := make([]api.ChatTurn, 0, len(req.Messages))
	for i, m := range req.Messages {
		if i == len(req.Messages)-1 && m.Role == RoleUser {
			break
		}
		history = append(history, api.ChatTurn{Role: string(m.Role), Content: m.Content})
	}

	resp, err := p.backend.Chat(ctx, api.ChatRequest{Message: msg, History: history})
	if err != nil {
		return nil, mapBackendError(err)
	}

	followUps := resp.FollowUps
	if followUps == nil {
		followUps = []string{}
	}
	content, err := json.Marshal(map[string]any{"answer": resp.Reply, "followUps": followUps})
	if err != nil {
		return nil, fmt.Errorf("encode backend reply: %w", err)
	}
	if req.Schema != nil {
		if err := validateResponse(req.Schema, content); err != nil {
			return nil, err
		}
	}

	return &Response{Content: content, Model: p.ModelID(), StopReason: "end"}, nil
}

func (p *BackendProvider) ModelID() string {
	return "investory-backend"
}

func mapBackendError(err error) error {
	if api.IsUnauthorized(err) {
		return &ErrPermanent{Err: err}
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == 429 {
			return &ErrRateLimit{Err: err}
		}
		if !apiErr.Temporary() {
			return &ErrPermanent{Err: err}
		}
	}
	return &ErrProviderUnavailable{Err: err}
}
