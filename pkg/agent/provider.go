package agent

import (
	"context"
	"fmt"
)

// LLMProvider is an interface for LLM API providers
type LLMProvider interface {
	// Call makes an LLM API call
	Call(ctx context.Context, request LLMRequest) (*LLMResponse, error)

	// Provider returns the provider name
	Provider() string
}

// LLMRequest contains the request parameters for LLM call
type LLMRequest struct {
	Model        string
	Messages     []Message
	Tools        []ToolSpec
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// LLMResponse contains the response from LLM
type LLMResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// ProviderFactory creates LLM providers. BaseURL, when set, overrides the
// provider's default endpoint.
type ProviderFactory struct {
	BaseURL string
}

// NewProvider creates the named provider authenticated with apiKey
func (f *ProviderFactory) NewProvider(provider, apiKey string) (LLMProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s provider requires an API key", provider)
	}

	switch provider {
	case "gemini", "":
		return NewGeminiProvider(apiKey, f.BaseURL), nil
	case "openai":
		return NewOpenAIProvider(apiKey, f.BaseURL), nil
	case "anthropic":
		return NewAnthropicProvider(apiKey, f.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
