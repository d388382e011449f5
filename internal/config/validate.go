package config

import (
	"fmt"
	"strings"
)

// ConfigurationError reports invalid or missing settings. It is fatal and
// raised before any network call is made.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "config: " + strings.Join(e.Problems, "; ")
}

// Invalid builds a ConfigurationError with a single formatted problem.
func Invalid(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Problems: []string{fmt.Sprintf(format, args...)}}
}

// Validate checks the settings required by the given run mode
// ("run", "structure", "compare", "highlight", "serve", "migrate").
func (c *Config) Validate(mode string) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	needLLM := false
	needStore := false
	switch mode {
	case "run":
		needLLM, needStore = true, true
	case "structure", "compare", "highlight":
		needLLM = true
	case "serve":
		needLLM, needStore = true, true
		if c.Server.Port <= 0 {
			add("server.port must be > 0")
		}
	case "migrate":
		needStore = true
	default:
		return Invalid("unknown mode %q", mode)
	}

	if needLLM {
		switch c.LLM.Provider {
		case "http":
			if c.LLM.URL == "" {
				add("llm.url is required")
			}
		case "anthropic":
			if c.Anthropic.Key == "" {
				add("anthropic.key is required")
			}
		default:
			add("llm.provider %q is not supported", c.LLM.Provider)
		}
		if c.LLM.TimeoutSecs <= 0 {
			add("llm.timeout_secs must be > 0")
		}
		if c.Retry.MaxAttempts < 1 {
			add("retry.max_attempts must be >= 1")
		}
		if c.Worker.PoolSize < 1 || c.Worker.PoolSize > 32 {
			add("worker.pool_size must be between 1 and 32")
		}
		if c.Worker.RequestDelayMs < 0 {
			add("worker.request_delay_ms must be >= 0")
		}
		problems = append(problems, chunkProblems("chunk", c.Chunk.MaxChars, c.Chunk.OverlapChars)...)
		problems = append(problems, chunkProblems("chunk.highlight", c.Chunk.HighlightMaxChars, c.Chunk.HighlightOverlapChars)...)
	}

	if needStore {
		switch c.Store.Driver {
		case "postgres", "sqlite":
		default:
			add("store.driver %q is not supported", c.Store.Driver)
		}
		if c.Store.DatabaseURL == "" {
			add("store.database_url is required")
		}
		switch c.Storage.Backend {
		case "local":
		case "http":
			if c.Storage.BaseURL == "" {
				add("storage.base_url is required for the http backend")
			}
		default:
			add("storage.backend %q is not supported", c.Storage.Backend)
		}
		if c.Email.Enabled && (c.Email.Host == "" || c.Email.From == "") {
			add("email.host and email.from are required when email is enabled")
		}
	}

	if c.Batch.MaxConcurrentTermsheets < 1 || c.Batch.MaxConcurrentTermsheets > 20 {
		add("batch.max_concurrent_termsheets must be between 1 and 20")
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

// CheckChunking validates a max/overlap pair.
func CheckChunking(maxChars, overlapChars int) error {
	if p := chunkProblems("chunk", maxChars, overlapChars); len(p) > 0 {
		return &ConfigurationError{Problems: p}
	}
	return nil
}

func chunkProblems(prefix string, maxChars, overlapChars int) []string {
	var problems []string
	if maxChars <= 0 {
		problems = append(problems, fmt.Sprintf("%s max_chars must be > 0", prefix))
	}
	if overlapChars < 0 {
		problems = append(problems, fmt.Sprintf("%s overlap_chars must be >= 0", prefix))
	}
	if maxChars > 0 && overlapChars >= maxChars {
		problems = append(problems, fmt.Sprintf("%s overlap_chars (%d) must be smaller than max_chars (%d)", prefix, overlapChars, maxChars))
	}
	return problems
}
