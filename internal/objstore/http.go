package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/resilience"
)

// HTTPOptions configures the HTTP store.
type HTTPOptions struct {
	BaseURL    string
	AuthToken  string
	UserAgent  string
	Timeout    time.Duration
	RatePerSec int
	Retry      resilience.RetryConfig
}

// HTTPStore downloads any http(s) URL and uploads with PUT under BaseURL.
type HTTPStore struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *AdaptiveLimiter
}

// NewHTTPStore creates an HTTPStore with the given options.
func NewHTTPStore(opts HTTPOptions) *HTTPStore {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "termsheet-cli/1.0"
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("objstore", "http")
	}
	limit := defaultLimit(opts.RatePerSec)
	return &HTTPStore{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:    opts,
		limiter: NewAdaptiveLimiter(limit, max(int(limit), 1)),
	}
}

// Get downloads rawURL and returns the response body.
func (s *HTTPStore) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := s.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "objstore: download %s", rawURL)
	}
	return resp.Body, nil
}

// Put uploads r to BaseURL/key and returns the object URL. The body is
// buffered so the request can be retried.
func (s *HTTPStore) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", eris.Wrap(err, "objstore: read upload body")
	}
	target := strings.TrimRight(s.opts.BaseURL, "/") + "/" + strings.TrimLeft(key, "/")

	resp, err := s.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.ContentLength = int64(len(data))
		req.Header.Set("Content-Type", "application/octet-stream")
		return req, nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "objstore: upload %s", key)
	}
	_ = resp.Body.Close()

	zap.L().Debug("artifact uploaded", zap.String("url", target), zap.Int("bytes", len(data)))
	return target, nil
}

// do sends a request built by newReq, retrying 429 and 5xx responses. The
// returned response has status 2xx and an open body.
func (s *HTTPStore) do(ctx context.Context, newReq func(context.Context) (*http.Request, error)) (*http.Response, error) {
	return resilience.DoVal(ctx, s.opts.Retry, func(ctx context.Context) (*http.Response, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		req, err := newReq(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("User-Agent", s.opts.UserAgent)
		if s.opts.AuthToken != "" {
			req.Header.Set("Authorization", "Bearer "+s.opts.AuthToken)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "request canceled")
			}
			return nil, resilience.NewTransientError(eris.Wrap(err, "send request"), 0)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			s.limiter.OnRateLimit()
			return nil, resilience.NewTransientError(eris.Errorf("http 429 from %s", req.URL), resp.StatusCode)
		}
		if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			return nil, resilience.NewTransientError(eris.Errorf("http %d from %s", resp.StatusCode, req.URL), resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_ = resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode, URL: req.URL.String()}
		}

		s.limiter.OnSuccess()
		return resp, nil
	})
}

// StatusError is a non-retryable HTTP status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}
