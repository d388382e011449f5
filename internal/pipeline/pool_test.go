package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMap_ResultsByIndex(t *testing.T) {
	t.Parallel()
	p := NewPool(3, 0)

	out := Map(context.Background(), p, 6, func(_ context.Context, i int) int {
		// Later tasks finish first.
		time.Sleep(time.Duration(6-i) * 2 * time.Millisecond)
		return i * 10
	})
	assert.Equal(t, []int{0, 10, 20, 30, 40, 50}, out)
}

func TestMap_BoundsConcurrency(t *testing.T) {
	t.Parallel()
	p := NewPool(2, 0)

	var inFlight, peak atomic.Int32
	Map(context.Background(), p, 8, func(_ context.Context, _ int) struct{} {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return struct{}{}
	})
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestMap_SpacesStarts(t *testing.T) {
	t.Parallel()
	p := NewPool(4, 20*time.Millisecond)

	start := time.Now()
	Map(context.Background(), p, 3, func(context.Context, int) bool { return true })
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestMap_CanceledContextStillReportsEveryTask(t *testing.T) {
	t.Parallel()
	p := NewPool(1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := Map(ctx, p, 3, func(ctx context.Context, _ int) error { return ctx.Err() })
	for _, err := range out {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestNewPool_ClampsWorkers(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1, NewPool(0, 0).Workers())
}
