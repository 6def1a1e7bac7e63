package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestReadThroughTTL(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var calls int32
	c := New("roles", time.Minute, func(_ context.Context, key string) (int, error) {
		return int(atomic.AddInt32(&calls, 1)), nil
	}, WithClock(clock.Now))

	ctx := context.Background()
	v, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, v)

	v, _ = c.Get(ctx, "u1")
	require.Equal(t, 1, v)

	clock.Advance(time.Minute)
	v, _ = c.Get(ctx, "u1")
	require.Equal(t, 2, v)

	c.Invalidate(ctx, "u1")
	v, _ = c.Get(ctx, "u1")
	require.Equal(t, 3, v)
	require.Equal(t, "roles", c.Name())
}

func TestReadThroughSingleFlight(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	c := New("hours", time.Minute, func(_ context.Context, _ string) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "9-17", nil
	})

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background(), "default")
			if err == nil {
				results[i] = v
			}
		}(i)
	}

	// Даем горутинам встать в очередь single-flight
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		require.Equal(t, "9-17", r)
	}
}

func TestReadThroughLoaderError(t *testing.T) {
	boom := errors.New("db down")
	c := New("roles", time.Minute, func(_ context.Context, _ string) ([]string, error) {
		return nil, boom
	})

	_, err := c.Get(context.Background(), "u1")
	require.ErrorIs(t, err, boom)

	// Ошибки не кэшируются
	_, err = c.Get(context.Background(), "u1")
	require.ErrorIs(t, err, boom)
}

func TestInvalidateLocalAll(t *testing.T) {
	var calls int32
	c := New("roles", time.Hour, func(_ context.Context, _ string) (int32, error) {
		return atomic.AddInt32(&calls, 1), nil
	})
	ctx := context.Background()
	_, _ = c.Get(ctx, "a")
	_, _ = c.Get(ctx, "b")

	c.InvalidateLocal("")
	_, _ = c.Get(ctx, "a")
	_, _ = c.Get(ctx, "b")
	require.Equal(t, int32(4), atomic.LoadInt32(&calls))
}
