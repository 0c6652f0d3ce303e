package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicLLM implements the LLM interface using the Anthropic Messages API.
// The model has no JSON mode, so the system prompt carries the format
// instruction and callers extract the object from the reply.
type AnthropicLLM struct {
	client anthropic.Client
	config LLMConfig
}

// NewAnthropicLLM creates an Anthropic-backed LLM implementation.
func NewAnthropicLLM(config LLMConfig) (*AnthropicLLM, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing API key (set ANTHROPIC_API_KEY or provide in config)", ErrInvalidConfig)
	}
	if config.Model == "" || strings.HasPrefix(config.Model, "gpt-") {
		config.Model = DefaultAnthropicModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaultAnthropicMaxTokens
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)

	return &AnthropicLLM{
		client: client,
		config: config,
	}, nil
}

// Generate sends the prompts to Anthropic and returns the concatenated text blocks.
func (a *AnthropicLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if userPrompt == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", ErrInvalidConfig)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.config.Model),
		MaxTokens: int64(a.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if a.config.Temperature > 0 {
		params.Temperature = anthropic.Float(a.config.Temperature)
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLLMFailed, err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: no text content in response", ErrLLMFailed)
	}
	return b.String(), nil
}
