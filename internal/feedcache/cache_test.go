package feedcache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/brevet-tracker/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTTL = 2 * time.Minute

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingFetch returns its call count, or err once set.
type countingFetch struct {
	calls atomic.Int32
	mu    sync.Mutex
	err   error
}

func (f *countingFetch) fetch(_ context.Context) (int, error) {
	n := f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return int(n), nil
}

func (f *countingFetch) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func newTestCache(t *testing.T, fetch FetchFunc[int]) (*Cache[int], *clockwork.FakeClock, *observability.Metrics) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, time.August, 4, 10, 0, 0, 0, time.UTC))
	metrics := observability.NewMetricsForTesting()
	return New("tracking", fetch, testTTL, clock, discardLogger(), metrics), clock, metrics
}

func TestGet_CachesWithinTTL(t *testing.T) {
	f := &countingFetch{}
	c, clock, metrics := newTestCache(t, f.fetch)

	r1, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r1.Value)

	clock.Advance(testTTL - time.Second)
	r2, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r2.Value)
	assert.False(t, r2.Stale)

	assert.Equal(t, int32(1), f.calls.Load(), "should only fetch once")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeedCache.WithLabelValues("tracking", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeedCache.WithLabelValues("tracking", "miss")))
}

func TestGet_RefetchesAfterTTL(t *testing.T) {
	f := &countingFetch{}
	c, clock, _ := newTestCache(t, f.fetch)

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	clock.Advance(testTTL)
	r, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, r.Value)
	assert.Equal(t, clock.Now(), r.FetchedAt)
}

func TestGet_StaleOnFailure(t *testing.T) {
	f := &countingFetch{}
	c, clock, metrics := newTestCache(t, f.fetch)

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	fetchedAt := clock.Now()

	f.fail(errors.New("connection refused"))
	clock.Advance(testTTL + time.Minute)

	r, err := c.Get(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NotErrorIs(t, err, ErrNoSnapshot)
	assert.True(t, r.Stale)
	assert.Equal(t, 1, r.Value, "last good snapshot stays available")
	assert.Equal(t, fetchedAt, r.FetchedAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeedCache.WithLabelValues("tracking", "stale")))
}

func TestGet_NoSnapshotYet(t *testing.T) {
	f := &countingFetch{}
	f.fail(errors.New("timeout"))
	c, _, _ := newTestCache(t, f.fetch)

	_, err := c.Get(context.Background())
	require.ErrorIs(t, err, ErrNoSnapshot)

	_, ok := c.Peek()
	assert.False(t, ok)
}

func TestGet_ConcurrentMissesShareOneFetch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(_ context.Context) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return 7, nil
	}
	c, _, _ := newTestCache(t, fetch)

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := c.Get(context.Background())
			assert.NoError(t, err)
			results[i] = r.Value
		}()
	}
	<-started
	// Give the other goroutines a moment to join the in-flight fetch.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []int{7, 7, 7, 7, 7}, results)
}

func TestGet_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var fetchErr atomic.Value
	fetch := func(ctx context.Context) (int, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			fetchErr.Store(err)
			return 0, err
		}
		return 7, nil
	}
	c, _, _ := newTestCache(t, fetch)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Get(ctxA)
		errA <- err
	}()
	<-started

	type result struct {
		r   Result[int]
		err error
	}
	resB := make(chan result, 1)
	go func() {
		r, err := c.Get(context.Background())
		resB <- result{r, err}
	}()
	// Give the second caller a moment to join the in-flight fetch.
	time.Sleep(20 * time.Millisecond)

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, 7, b.r.Value)
	assert.Nil(t, fetchErr.Load(), "shared fetch must not see the first caller's cancellation")

	current, ok := c.Peek()
	require.True(t, ok)
	assert.Equal(t, 7, current.Value)
}

func TestRefresh_OutOfOrderCompletionDiscarded(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	var calls atomic.Int32
	fetch := func(_ context.Context) (int, error) {
		if calls.Add(1) == 1 {
			close(firstStarted)
			<-releaseFirst
			return 1, nil // slow, older response
		}
		return 2, nil
	}
	c, _, metrics := newTestCache(t, fetch)

	done := make(chan Result[int], 1)
	go func() {
		r, err := c.Refresh(context.Background())
		assert.NoError(t, err)
		done <- r
	}()
	<-firstStarted

	newer, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, newer.Value)

	close(releaseFirst)
	late := <-done
	assert.Equal(t, 2, late.Value, "late completion reports the newer snapshot")

	current, ok := c.Peek()
	require.True(t, ok)
	assert.Equal(t, 2, current.Value)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeedDiscarded.WithLabelValues("tracking")))
}

func TestRefresh_BypassesTTL(t *testing.T) {
	f := &countingFetch{}
	c, _, _ := newTestCache(t, f.fetch)

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	r, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, r.Value)
}
