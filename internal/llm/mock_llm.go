package llm

import (
	"context"
	"sync"
)

// MockLLM is a deterministic LLM implementation for testing.
// Scripted Responses are returned in order; once they run out, Response is
// returned for every further call.
type MockLLM struct {
	// Responses are returned one per call, in order.
	Responses []string

	// Response is the fixed text returned after Responses are exhausted.
	// If empty, "{}" is returned.
	Response string

	// Errors are returned one per call, in order, before any response.
	// A nil entry lets that call fall through to the responses.
	Errors []error

	// Error, if set, is returned by every call instead of a response.
	Error error

	// LastSystemPrompt and LastPrompt store the most recent prompts.
	LastSystemPrompt string
	LastPrompt       string

	// Prompts records every user prompt received.
	Prompts []string

	// Calls counts Generate invocations.
	Calls int

	mu sync.Mutex
}

// NewMockLLM creates a mock LLM with the given fixed response.
func NewMockLLM(response string) *MockLLM {
	return &MockLLM{Response: response}
}

// NewScriptedMockLLM creates a mock LLM that replies with responses in order.
func NewScriptedMockLLM(responses ...string) *MockLLM {
	return &MockLLM{Responses: responses}
}

// NewMockLLMWithError creates a mock LLM that always returns an error.
func NewMockLLMWithError(err error) *MockLLM {
	return &MockLLM{Error: err}
}

// Generate returns the next scripted error or response.
func (m *MockLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	m.LastSystemPrompt = systemPrompt
	m.LastPrompt = userPrompt
	m.Prompts = append(m.Prompts, userPrompt)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Error != nil {
		return "", m.Error
	}
	if len(m.Errors) > 0 {
		err := m.Errors[0]
		m.Errors = m.Errors[1:]
		if err != nil {
			return "", err
		}
	}
	if len(m.Responses) > 0 {
		resp := m.Responses[0]
		m.Responses = m.Responses[1:]
		return resp, nil
	}
	if m.Response != "" {
		return m.Response, nil
	}
	return "{}", nil
}
