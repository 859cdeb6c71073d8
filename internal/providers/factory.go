package providers

import (
	"fmt"

	"github.com/haasonsaas/relay/internal/config"
)

// New builds the LLM client named by the configuration.
func New(cfg config.LLMConfig) (LLMClient, error) {
	switch cfg.Provider {
	case "anthropic", "":
		return NewAnthropicClient(AnthropicConfig{
			APIKey:        cfg.APIKey,
			BaseURL:       cfg.BaseURL,
			Model:         cfg.Model,
			ContextWindow: cfg.ContextWindow,
			MaxRetries:    cfg.MaxRetries,
			RetryDelay:    cfg.RetryDelay,
		})
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:        cfg.APIKey,
			BaseURL:       cfg.BaseURL,
			Model:         cfg.Model,
			ContextWindow: cfg.ContextWindow,
			MaxRetries:    cfg.MaxRetries,
			RetryDelay:    cfg.RetryDelay,
		})
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
