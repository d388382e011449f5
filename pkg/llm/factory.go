package llm

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/termsheet-cli/internal/config"
	"github.com/sells-group/termsheet-cli/internal/resilience"
	"github.com/sells-group/termsheet-cli/pkg/anthropic"
)

// NewFromConfig builds the configured gateway with its retry policy and
// circuit breaker.
func NewFromConfig(cfg *config.Config) (Client, error) {
	retry := resilience.FromRetryConfig(cfg.Retry)
	breaker := resilience.FromCircuitConfig(cfg.Circuit)

	switch cfg.LLM.Provider {
	case "", "http":
		if cfg.LLM.URL == "" {
			return nil, eris.New("llm: url is required for the http provider")
		}
		return NewHTTPClient(cfg.LLM.URL, cfg.LLM.Timeout(),
			WithRetry(retry),
			WithCircuitBreaker(breaker),
		), nil
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("llm: anthropic key is required")
		}
		return NewAnthropicClient(
			anthropic.NewClient(cfg.Anthropic.Key),
			cfg.Anthropic.Model,
			cfg.Anthropic.MaxTokens,
			WithAnthropicRetry(retry),
			WithAnthropicBreaker(breaker),
		), nil
	}
	return nil, eris.Errorf("llm: unknown provider %q", cfg.LLM.Provider)
}
