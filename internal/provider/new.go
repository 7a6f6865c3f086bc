package provider

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the provider named by cfg.Type.
func New(cfg Config, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case TypeOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider: api key not set")
		}
		return NewOpenAIProvider(cfg, logger), nil
	case TypeAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider: api key not set")
		}
		return NewAnthropicProvider(cfg, logger), nil
	case TypeDemo:
		logger.Warn("running in demo mode, using mock responses")
		return NewDemoProvider(), nil
	default:
		return nil, fmt.Errorf("%w: %q (use openai, anthropic or demo)", ErrUnsupported, cfg.Type)
	}
}
