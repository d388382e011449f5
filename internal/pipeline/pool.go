package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Pool runs per-chunk work with a bounded number of workers and a minimum
// spacing between task starts.
type Pool struct {
	workers int
	limiter *rate.Limiter
}

// NewPool creates a pool. A non-positive delay disables spacing.
func NewPool(workers int, delay time.Duration) *Pool {
	if workers < 1 {
		workers = 1
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Pool{workers: workers, limiter: rate.NewLimiter(limit, 1)}
}

// Workers returns the concurrency bound.
func (p *Pool) Workers() int { return p.workers }

// Map calls fn for every index in [0, n) and returns the results by index,
// so out[i] always belongs to task i whatever order tasks finish in. A task
// never cancels its siblings; fn reports its own failures in T. When ctx ends
// while a task waits for its turn, fn still runs with the done context and is
// expected to fail fast.
func Map[T any](ctx context.Context, p *Pool, n int, fn func(ctx context.Context, i int) T) []T {
	out := make([]T, n)
	var g errgroup.Group
	g.SetLimit(p.workers)
	for i := range n {
		g.Go(func() error {
			_ = p.limiter.Wait(ctx)
			out[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
