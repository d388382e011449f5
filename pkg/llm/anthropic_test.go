package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/termsheet-cli/internal/config"
	"github.com/sells-group/termsheet-cli/pkg/anthropic"
)

type fakeMessages struct {
	errs  []error
	text  string
	calls int
}

func (f *fakeMessages) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &anthropic.MessageResponse{
		Model:   req.Model,
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.text}},
	}, nil
}

func statusErr(code int) error {
	return &anthropic.StatusError{StatusCode: code, Err: eris.Errorf("status %d", code)}
}

func TestAnthropicClient_Call(t *testing.T) {
	t.Parallel()

	fake := &fakeMessages{errs: []error{statusErr(529)}, text: "json:{}"}
	c := NewAnthropicClient(fake, "claude-sonnet-4-5-20250929", 0, WithAnthropicRetry(fastRetry(3)))

	got, err := c.Call(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "json:{}", got)
	assert.Equal(t, 2, fake.calls)
}

func TestAnthropicClient_Call_Exhausted(t *testing.T) {
	t.Parallel()

	fake := &fakeMessages{errs: []error{statusErr(429), statusErr(429)}}
	c := NewAnthropicClient(fake, "m", 100, WithAnthropicRetry(fastRetry(2)))

	_, err := c.Call(context.Background(), "prompt")
	assert.True(t, errors.Is(err, ErrRetryExhausted))
}

func TestAnthropicClient_Call_BadRequest(t *testing.T) {
	t.Parallel()

	fake := &fakeMessages{errs: []error{statusErr(http.StatusBadRequest)}}
	c := NewAnthropicClient(fake, "m", 100, WithAnthropicRetry(fastRetry(3)))

	_, err := c.Call(context.Background(), "prompt")
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusBadRequest, remote.StatusCode)
	assert.Equal(t, 1, fake.calls)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.Config
		wantErr string
		check   func(t *testing.T, c Client)
	}{
		{
			name: "http",
			cfg:  config.Config{LLM: config.LLMConfig{Provider: "http", URL: "http://localhost:1", TimeoutSecs: 5}},
			check: func(t *testing.T, c Client) {
				_, ok := c.(*HTTPClient)
				assert.True(t, ok)
			},
		},
		{
			name:    "http without url",
			cfg:     config.Config{LLM: config.LLMConfig{Provider: "http"}},
			wantErr: "url is required",
		},
		{
			name: "anthropic",
			cfg: config.Config{
				LLM:       config.LLMConfig{Provider: "anthropic"},
				Anthropic: config.AnthropicConfig{Key: "k", Model: "m"},
			},
			check: func(t *testing.T, c Client) {
				_, ok := c.(*AnthropicClient)
				assert.True(t, ok)
			},
		},
		{
			name:    "anthropic without key",
			cfg:     config.Config{LLM: config.LLMConfig{Provider: "anthropic"}},
			wantErr: "anthropic key is required",
		},
		{
			name:    "unknown",
			cfg:     config.Config{LLM: config.LLMConfig{Provider: "grpc"}},
			wantErr: "unknown provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, err := NewFromConfig(&tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}
