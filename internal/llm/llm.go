// Package llm provides a provider-agnostic interface to the language models
// that compose and review partimenti. Concrete implementations exist for
// OpenAI and Anthropic; a deterministic mock serves tests. Providers return
// the raw model text; callers extract and decode the JSON they asked for.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	ErrLLMFailed         = errors.New("LLM request failed")
	ErrInvalidConfig     = errors.New("invalid LLM configuration")
	ErrMalformedResponse = errors.New("malformed LLM response")
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	DefaultOpenAIModel    = "gpt-4o"
	DefaultAnthropicModel = "claude-sonnet-4-5"
)

// LLM defines the interface for interacting with language models.
// Implementations must be safe for sequential reuse across a chain run.
type LLM interface {
	// Generate sends a system prompt and a user prompt and returns the
	// model's text. Providers that support it are asked for a JSON object.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// LLMConfig holds common configuration options for LLM providers.
type LLMConfig struct {
	// Provider selects the backend: "openai" or "anthropic".
	Provider string

	// Model specifies the model identifier (e.g., "gpt-4o")
	Model string

	// Temperature controls randomness (0 = provider default)
	Temperature float64

	// MaxTokens limits the response length (0 = provider default)
	MaxTokens int

	// APIKey is the authentication key for the provider. When empty the
	// provider's usual environment variable is consulted.
	APIKey string

	// Timeout bounds a single attempt. Expiry is retried.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
}

// DefaultLLMConfig returns the settings used for composing and reviewing.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    ProviderOpenAI,
		Model:       DefaultOpenAIModel,
		Temperature: 0.7,
		MaxTokens:   4096,
		Timeout:     2 * time.Minute,
		MaxRetries:  3,
	}
}

// New builds the configured provider wrapped in the retry and timeout policy.
func New(config LLMConfig, logger *slog.Logger) (LLM, error) {
	var (
		provider LLM
		err      error
	)
	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case "", ProviderOpenAI:
		provider, err = NewOpenAILLM(config)
	case ProviderAnthropic:
		provider, err = NewAnthropicLLM(config)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, config.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewRetryLLM(provider, config, WithLogger(logger)), nil
}
