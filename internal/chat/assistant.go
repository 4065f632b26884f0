// Package chat is the investing tutor: a bounded conversation on top of an
// llm.Provider.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/abhisek/investory/internal/llm"
)

// ErrEmptyMessage is returned for blank questions.
var ErrEmptyMessage = errors.New("message is empty")

// Config tunes tutor generation.
type Config struct {
	MaxTokens   int
	Temperature float64

	// HistoryTurns is how many messages, user and assistant, are kept and
	// sent with each question.
	HistoryTurns int
}

// DefaultConfig returns the tutor defaults.
func DefaultConfig() Config {
	return Config{MaxTokens: 600, Temperature: 0.4, HistoryTurns: 20}
}

// Reply is one tutor answer.
type Reply struct {
	Answer    string   `json:"answer"`
	FollowUps []string `json:"followUps"`
}

// Turn is one message of the conversation.
type Turn struct {
	Role    llm.Role
	Content string
}

// Assistant holds one conversation. It is safe for concurrent use; calls
// to Ask are serialized so turns stay in order.
type Assistant struct {
	provider llm.Provider
	cfg      Config
	learner  func() *Learner

	askMu   sync.Mutex
	mu      sync.Mutex
	history []llm.Message
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLearner supplies learner context for the system prompt. fn is called
// on every question.
func WithLearner(fn func() *Learner) Option {
	return func(a *Assistant) { a.learner = fn }
}

// New creates an assistant.
func New(provider llm.Provider, cfg Config, opts ...Option) *Assistant {
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = DefaultConfig().HistoryTurns
	}
	a := &Assistant{provider: provider, cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask sends message with the recent history and records both turns on
// success. A failed question leaves the history unchanged.
func (a *Assistant) Ask(ctx context.Context, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	a.askMu.Lock()
	defer a.askMu.Unlock()

	var learner *Learner
	if a.learner != nil {
		learner = a.learner()
	}

	a.mu.Lock()
	msgs := make([]llm.Message, 0, len(a.history)+1)
	msgs = append(msgs, a.history...)
	a.mu.Unlock()
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: message})

	resp, err := a.provider.Generate(llm.WithPurpose(ctx, "tutor-chat"), llm.Request{
		System:      buildSystemPrompt(learner),
		Messages:    msgs,
		Schema:      ReplySchema,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("tutor reply: %w", err)
	}

	var reply Reply
	if err := json.Unmarshal(resp.Content, &reply); err != nil {
		return nil, fmt.Errorf("parse tutor reply: %w", err)
	}
	if reply.FollowUps == nil {
		reply.FollowUps = []string{}
	}

	a.mu.Lock()
	a.history = append(a.history,
		llm.Message{Role: llm.RoleUser, Content: message},
		llm.Message{Role: llm.RoleAssistant, Content: reply.Answer},
	)
	if over := len(a.history) - a.cfg.HistoryTurns; over > 0 {
		a.history = append([]llm.Message(nil), a.history[over:]...)
	}
	a.mu.Unlock()

	return &reply, nil
}

// History returns a copy of the kept turns, oldest first.
func (a *Assistant) History() []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Turn, len(a.history))
	for i, m := range a.history {
		out[i] = Turn{Role: m.Role, Content: m.Content}
	}
	return out
}

// Reset forgets the conversation.
func (a *Assistant) Reset() {
	a.mu.Lock()
	a.history = nil
	a.mu.Unlock()
}
