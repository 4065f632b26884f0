package llm

import (
	"fmt"
	"os"
	"time"
)

// Provider names accepted by Config.Provider.
const (
	ProviderBackend    = "backend"
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Config selects and configures the tutor's model provider.
type Config struct {
	// Provider is one of the Provider* names. The default, "backend",
	// sends chat through the Investory API and needs no key.
	Provider string

	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Retry      RetryConfig

	// Timeout bounds one Generate call including retries.
	Timeout time.Duration
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// RetryConfig controls backoff for transient provider failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Provider:   ProviderBackend,
		Anthropic:  AnthropicConfig{Model: "claude-haiku"},
		OpenAI:     OpenAIConfig{Model: "gpt-4o-mini"},
		Gemini:     GeminiConfig{Model: "gemini-flash"},
		OpenRouter: OpenRouterConfig{Model: "google/gemini-2.0-flash-001"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     5 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 30 * time.Second,
	}
}

// ConfigFromEnv reads INVESTORY_* variables on top of DefaultConfig. API
// keys fall back to the vendors' standard names (OPENAI_API_KEY, ...).
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	setIf(&cfg.Anthropic.APIKey, "INVESTORY_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	setIf(&cfg.Anthropic.Model, "INVESTORY_ANTHROPIC_MODEL")
	setIf(&cfg.OpenAI.APIKey, "INVESTORY_OPENAI_API_KEY", "OPENAI_API_KEY")
	setIf(&cfg.OpenAI.Model, "INVESTORY_OPENAI_MODEL")
	setIf(&cfg.OpenAI.BaseURL, "INVESTORY_OPENAI_BASE_URL")
	setIf(&cfg.Gemini.APIKey, "INVESTORY_GEMINI_API_KEY", "GEMINI_API_KEY")
	setIf(&cfg.Gemini.Model, "INVESTORY_GEMINI_MODEL")
	setIf(&cfg.OpenRouter.APIKey, "INVESTORY_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	setIf(&cfg.OpenRouter.Model, "INVESTORY_OPENROUTER_MODEL")

	if d, err := time.ParseDuration(os.Getenv("INVESTORY_LLM_TIMEOUT")); err == nil && d > 0 {
		cfg.Timeout = d
	}

	if p := os.Getenv("INVESTORY_LLM_PROVIDER"); p != "" {
		cfg.Provider = p
	}
	return cfg
}

func setIf(dst *string, keys ...string) {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			*dst = v
			return
		}
	}
}

// Validate checks that the selected provider has what it needs.
func (c Config) Validate() error {
	missing := func(env string) error {
		return fmt.Errorf("%s is required for the %s provider", env, c.Provider)
	}
	switch c.Provider {
	case ProviderBackend, ProviderMock:
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return missing("INVESTORY_ANTHROPIC_API_KEY")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return missing("INVESTORY_OPENAI_API_KEY")
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return missing("INVESTORY_GEMINI_API_KEY")
		}
	case ProviderOpenRouter:
		if c.OpenRouter.APIKey == "" {
			return missing("INVESTORY_OPENROUTER_API_KEY")
		}
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	return nil
}
