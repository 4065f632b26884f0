package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Deps are the collaborators a provider may need.
type Deps struct {
	// Backend serves the "backend" provider.
	Backend ChatBackend

	// Events receives one event per request. Optional.
	Events EventLogger

	// MockReply is returned forever by the "mock" provider.
	MockReply json.RawMessage
}

// NewProvider builds the configured provider wrapped as
// caller → retry → logging → provider. The backend provider is not
// wrapped in retries because the API client already retries.
func NewProvider(ctx context.Context, cfg Config, deps Deps) (Provider, error) {
	var (
		base Provider
		err  error
	)
	switch cfg.Provider {
	case ProviderBackend:
		base, err = NewBackendProvider(deps.Backend)
		if err != nil {
			return nil, err
		}
		return WithLogging(base, cfg.Provider, deps.Events), nil
	case ProviderMock:
		m := NewMockProvider()
		if deps.MockReply != nil {
			m.SetFallback(MockResponse{Content: deps.MockReply})
		}
		return WithLogging(m, cfg.Provider, deps.Events), nil
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case ProviderOpenRouter:
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	return WithRetry(WithLogging(base, cfg.Provider, deps.Events), cfg.Retry), nil
}
