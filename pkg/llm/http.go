package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/metrics"
	"github.com/sells-group/termsheet-cli/internal/resilience"
)

const maxBodyBytes = 8 << 20

// Option configures the HTTP gateway.
type Option func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// WithRetry sets the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *HTTPClient) {
		c.retry = cfg
	}
}

// WithCircuitBreaker puts a breaker in front of the endpoint.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *HTTPClient) {
		c.breaker = cb
	}
}

// HTTPClient posts {"prompt": ...} to a generation endpoint.
type HTTPClient struct {
	url     string
	http    *http.Client
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewHTTPClient creates a gateway for the endpoint at url.
func NewHTTPClient(url string, timeout time.Duration, opts ...Option) *HTTPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &HTTPClient{
		url:   url,
		retry: resilience.DefaultRetryConfig(),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = func(attempt int, err error) {
			metrics.LLMRetries.Inc()
			resilience.RetryLogger("llm", "call")(attempt, err)
		}
	}
	return c
}

// Call sends the prompt and returns the normalized response text.
func (c *HTTPClient) Call(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return "", eris.Wrap(err, "llm: encode request")
	}

	start := time.Now()
	text, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (string, error) {
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (string, error) {
			return c.post(ctx, payload)
		})
	})
	err = classify(err)

	metrics.LLMCalls.WithLabelValues(Outcome(err)).Inc()
	if err != nil {
		zap.L().Warn("llm call failed",
			zap.String("outcome", Outcome(err)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", err
	}
	zap.L().Debug("llm call complete",
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("response_chars", len(text)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}

// post performs one attempt. Retryable conditions come back as
// resilience.TransientError.
func (c *HTTPClient) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", eris.Wrap(err, "llm: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", eris.Wrap(ctx.Err(), "llm: request canceled")
		}
		return "", resilience.NewTransientError(eris.Wrap(err, "llm: send request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", resilience.NewTransientError(eris.Wrap(err, "llm: read response body"), 0)
	}

	if resp.StatusCode != http.StatusOK {
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return "", resilience.NewTransientError(
				eris.Errorf("llm: status %d: %s", resp.StatusCode, truncateBody(body)),
				resp.StatusCode,
			)
		}
		return "", &RemoteError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	env := DecodeEnvelope(body)
	if env.Kind == KindUnrecognized {
		return "", eris.Wrapf(ErrUnrecognizedResponseShape, "body %s", truncateBody(body))
	}
	if strings.TrimSpace(env.Text) == "" {
		// Empty generations come from an overloaded backend and usually
		// succeed on the next attempt.
		return "", resilience.NewTransientError(eris.New("llm: empty generation"), resp.StatusCode)
	}
	return env.Text, nil
}

// classify maps retry outcomes onto the gateway's error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if eris.Is(err, resilience.ErrCircuitOpen) {
		return eris.Wrap(ErrConnectionFailed, "circuit open")
	}

	var ex *resilience.ExhaustedError
	if !errors.As(err, &ex) {
		return err
	}
	var te *resilience.TransientError
	if errors.As(ex.Err, &te) && te.StatusCode != 0 {
		return eris.Wrapf(ErrRetryExhausted, "%d attempts, last: %v", ex.Attempts, ex.Err)
	}
	return eris.Wrapf(ErrConnectionFailed, "%d attempts, last: %v", ex.Attempts, ex.Err)
}

func truncateBody(b []byte) string {
	const limit = 200
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
