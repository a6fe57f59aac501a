// Package feedcache keeps the last good copy of a remote feed and decides
// when to fetch a new one.
package feedcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/brevet-tracker/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// ErrNoSnapshot is returned when a fetch fails and nothing has been cached yet.
var ErrNoSnapshot = errors.New("no snapshot available")

// FetchFunc retrieves a fresh copy of a feed.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Result is a cached value and its provenance.
type Result[T any] struct {
	Value     T
	FetchedAt time.Time
	// Stale is true when Value is older than the TTL, returned because the
	// most recent fetch failed.
	Stale bool
}

// Cache holds one feed snapshot with a time-to-live.
//
// Get serves the cached value while it is fresh and otherwise fetches, with
// concurrent misses collapsed into one request. Refresh always fetches.
// Every fetch takes a sequence number when it starts; a completion is
// applied only if no later-started fetch has already been applied, so a slow
// response can never replace a newer snapshot.
type Cache[T any] struct {
	feed    string
	fetch   FetchFunc[T]
	ttl     time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	group singleflight.Group
	seq   atomic.Uint64

	mu        sync.RWMutex
	value     T
	fetchedAt time.Time
	applied   uint64 // sequence number of value; 0 when empty
}

// New creates a Cache for the named feed.
func New[T any](feed string, fetch FetchFunc[T], ttl time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Cache[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache[T]{
		feed:    feed,
		fetch:   fetch,
		ttl:     ttl,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Get returns the cached value if it is younger than the TTL, and fetches
// otherwise. On fetch failure the previous value is returned with Stale set
// alongside the error. Cancelling ctx abandons the wait but not the fetch,
// which other callers may share. The fetch function is expected to bound
// its own duration.
func (c *Cache[T]) Get(ctx context.Context) (Result[T], error) {
	if res, ok := c.fresh(); ok {
		c.metrics.FeedCache.WithLabelValues(c.feed, "hit").Inc()
		return res, nil
	}
	c.metrics.FeedCache.WithLabelValues(c.feed, "miss").Inc()

	type outcome struct {
		res Result[T]
		err error
	}
	// The shared fetch outlives any one caller: it runs detached from the
	// first caller's cancellation, and each caller waits on its own ctx.
	ch := c.group.DoChan("fetch", func() (any, error) {
		res, err := c.Refresh(context.WithoutCancel(ctx))
		return outcome{res: res, err: err}, nil
	})
	select {
	case <-ctx.Done():
		return Result[T]{}, fmt.Errorf("%s feed: %w", c.feed, ctx.Err())
	case r := <-ch:
		out := r.Val.(outcome)
		return out.res, out.err
	}
}

// Refresh fetches unconditionally. It is safe to call while other fetches
// are in flight.
func (c *Cache[T]) Refresh(ctx context.Context) (Result[T], error) {
	seq := c.seq.Add(1)
	value, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("feed fetch failed", "feed", c.feed, "seq", seq, "error", err)
		return c.fallback(err)
	}

	c.mu.Lock()
	if seq > c.applied {
		c.value = value
		c.fetchedAt = c.clock.Now()
		c.applied = seq
	} else {
		c.metrics.FeedDiscarded.WithLabelValues(c.feed).Inc()
		c.logger.Debug("discarding out-of-order feed response",
			"feed", c.feed, "seq", seq, "applied_seq", c.applied)
	}
	res := Result[T]{Value: c.value, FetchedAt: c.fetchedAt}
	c.mu.Unlock()

	c.metrics.SnapshotAge.WithLabelValues(c.feed).Set(c.clock.Since(res.FetchedAt).Seconds())
	return res, nil
}

// Peek returns the cached value without fetching. ok is false when empty.
func (c *Cache[T]) Peek() (Result[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.applied == 0 {
		return Result[T]{}, false
	}
	return Result[T]{
		Value:     c.value,
		FetchedAt: c.fetchedAt,
		Stale:     c.clock.Since(c.fetchedAt) >= c.ttl,
	}, true
}

func (c *Cache[T]) fresh() (Result[T], bool) {
	res, ok := c.Peek()
	if !ok || res.Stale {
		return Result[T]{}, false
	}
	return res, true
}

func (c *Cache[T]) fallback(err error) (Result[T], error) {
	res, ok := c.Peek()
	if !ok {
		return Result[T]{}, fmt.Errorf("%s feed: %w: %w", c.feed, ErrNoSnapshot, err)
	}
	c.metrics.FeedCache.WithLabelValues(c.feed, "stale").Inc()
	res.Stale = true
	return res, fmt.Errorf("%s feed: %w", c.feed, err)
}
