package llm

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/metrics"
	"github.com/sells-group/termsheet-cli/internal/resilience"
	"github.com/sells-group/termsheet-cli/pkg/anthropic"
)

// AnthropicClient adapts the Messages API to the gateway contract.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
	breaker   *resilience.CircuitBreaker
}

// AnthropicOption configures an AnthropicClient.
type AnthropicOption func(*AnthropicClient)

// WithAnthropicRetry sets the retry policy.
func WithAnthropicRetry(cfg resilience.RetryConfig) AnthropicOption {
	return func(c *AnthropicClient) {
		c.retry = cfg
	}
}

// WithAnthropicBreaker puts a breaker in front of the API.
func WithAnthropicBreaker(cb *resilience.CircuitBreaker) AnthropicOption {
	return func(c *AnthropicClient) {
		c.breaker = cb
	}
}

// NewAnthropicClient wraps an Anthropic client.
func NewAnthropicClient(client anthropic.Client, model string, maxTokens int64, opts ...AnthropicOption) *AnthropicClient {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	c := &AnthropicClient{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		retry:     resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = func(attempt int, err error) {
			metrics.LLMRetries.Inc()
			resilience.RetryLogger("anthropic", "create_message")(attempt, err)
		}
	}
	return c
}

// Call sends the prompt as a single user message.
func (c *AnthropicClient) Call(ctx context.Context, prompt string) (string, error) {
	req := anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	}

	start := time.Now()
	text, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (string, error) {
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (string, error) {
			return c.send(ctx, req)
		})
	})
	err = classify(err)

	metrics.LLMCalls.WithLabelValues(Outcome(err)).Inc()
	if err != nil {
		zap.L().Warn("anthropic call failed",
			zap.String("outcome", Outcome(err)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", err
	}
	return text, nil
}

func (c *AnthropicClient) send(ctx context.Context, req anthropic.MessageRequest) (string, error) {
	resp, err := c.client.CreateMessage(ctx, req)
	if err != nil {
		var se *anthropic.StatusError
		if errors.As(err, &se) {
			if anthropic.IsRetryableStatus(se.StatusCode) || resilience.IsTransientHTTPStatus(se.StatusCode) {
				return "", resilience.NewTransientError(err, se.StatusCode)
			}
			return "", &RemoteError{StatusCode: se.StatusCode, Body: se.Error()}
		}
		if ctx.Err() != nil {
			return "", eris.Wrap(ctx.Err(), "llm: request canceled")
		}
		return "", resilience.NewTransientError(err, 0)
	}

	resp.Usage.LogCost(c.model, "llm_call")

	text := resp.Text()
	if text == "" {
		return "", resilience.NewTransientError(eris.New("llm: empty generation"), 200)
	}
	return text, nil
}
