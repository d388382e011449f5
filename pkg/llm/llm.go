// Package llm provides the text-generation gateway: one prompt in, plain
// response text out, with retry and envelope normalization.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Client sends a prompt and returns the model's raw text.
type Client interface {
	Call(ctx context.Context, prompt string) (string, error)
}

var (
	// ErrRetryExhausted means the endpoint kept answering 429/5xx until the
	// attempt bound was reached.
	ErrRetryExhausted = eris.New("llm: retries exhausted")

	// ErrConnectionFailed means the endpoint could not be reached.
	ErrConnectionFailed = eris.New("llm: connection failed")

	// ErrUnrecognizedResponseShape means a 200 body matched no known envelope.
	ErrUnrecognizedResponseShape = eris.New("llm: unrecognized response shape")
)

// RemoteError is a non-retryable HTTP status from the endpoint.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("llm: remote status %d: %s", e.StatusCode, body)
}

// Outcome names a call result for logs and metrics.
func Outcome(err error) string {
	var remote *RemoteError
	switch {
	case err == nil:
		return "ok"
	case eris.Is(err, ErrRetryExhausted):
		return "retry_exhausted"
	case eris.Is(err, ErrConnectionFailed):
		return "connection_failed"
	case eris.Is(err, ErrUnrecognizedResponseShape):
		return "unrecognized_shape"
	case errors.As(err, &remote):
		return "remote_error"
	}
	return "error"
}
