package resilience

import (
	"time"

	"github.com/sells-group/termsheet-cli/internal/config"
)

// FromRetryConfig converts configured retry settings, keeping defaults for
// unset values.
func FromRetryConfig(c config.RetryConfig) RetryConfig {
	cfg := DefaultRetryConfig()
	if c.MaxAttempts > 0 {
		cfg.MaxAttempts = c.MaxAttempts
	}
	if c.InitialBackoff > 0 {
		cfg.InitialBackoff = time.Duration(c.InitialBackoff) * time.Millisecond
	}
	if c.MaxBackoff > 0 {
		cfg.MaxBackoff = time.Duration(c.MaxBackoff) * time.Millisecond
	}
	if c.Multiplier > 0 {
		cfg.Multiplier = c.Multiplier
	}
	if c.JitterFraction >= 0 {
		cfg.JitterFraction = c.JitterFraction
	}
	return cfg
}

// FromCircuitConfig converts configured breaker settings. It returns nil when
// the breaker is disabled.
func FromCircuitConfig(c config.CircuitConfig) *CircuitBreaker {
	if !c.Enabled {
		return nil
	}
	cfg := DefaultCircuitBreakerConfig()
	if c.FailureThreshold > 0 {
		cfg.FailureThreshold = c.FailureThreshold
	}
	if c.ResetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(c.ResetTimeoutSecs) * time.Second
	}
	return NewCircuitBreaker(cfg)
}
