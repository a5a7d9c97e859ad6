package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct {
	a, b int64
}

func TestCacheCoalescesConcurrentReads(t *testing.T) {
	c := NewCache[*pair]("test", 0, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (*pair, error) {
		calls.Add(1)
		<-release
		return &pair{1, 1}, nil
	}

	var wg sync.WaitGroup
	results := make([]*pair, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(context.Background(), "k", false, fetch)
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestCacheCanceledCallerDoesNotFailWaiters(t *testing.T) {
	c := NewCache[*pair]("test", 0, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (*pair, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &pair{2, 2}, nil
	}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Get(first, "k", false, fetch)
		firstErr <- err
	}()
	<-started

	second := make(chan *pair, 1)
	go func() {
		v, err := c.Get(context.Background(), "k", false, fetch)
		assert.NoError(t, err)
		second <- v
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	select {
	case v := <-second:
		require.NotNil(t, v)
		assert.Equal(t, int64(2), v.a)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter did not get the shared value")
	}
	_, ok := c.lookup("k")
	assert.True(t, ok)
}

func TestCacheForceRaceSeesWholeValues(t *testing.T) {
	c := NewCache[*pair]("test", 0, nil)
	var n atomic.Int64
	fetch := func(context.Context) (*pair, error) {
		v := n.Add(1)
		return &pair{v, v}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), "k", true, fetch)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			v, err := c.Get(context.Background(), "k", false, fetch)
			if assert.NoError(t, err) {
				assert.Equal(t, v.a, v.b)
			}
		}()
	}
	wg.Wait()

	last, ok := c.lookup("k")
	require.True(t, ok)
	assert.Equal(t, last.a, last.b)
}

func TestCacheErrorsNotStored(t *testing.T) {
	c := NewCache[int]("test", 0, nil)
	boom := errors.New("boom")
	_, err := c.Get(context.Background(), "k", false, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())

	v, err := c.Get(context.Background(), "k", false, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCacheTTLAndInvalidate(t *testing.T) {
	c := NewCache[int]("test", time.Minute, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	calls := 0
	fetch := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}
	ctx := context.Background()

	v, _ := c.Get(ctx, "k", false, fetch)
	assert.Equal(t, 1, v)
	now = now.Add(30 * time.Second)
	v, _ = c.Get(ctx, "k", false, fetch)
	assert.Equal(t, 1, v)
	now = now.Add(time.Minute)
	v, _ = c.Get(ctx, "k", false, fetch)
	assert.Equal(t, 2, v)

	c.Invalidate("k")
	v, _ = c.Get(ctx, "k", false, fetch)
	assert.Equal(t, 3, v)

	_, _ = c.Get(ctx, "other", false, fetch)
	assert.Equal(t, 2, c.Len())
	c.Clear()
	assert.Zero(t, c.Len())
}
