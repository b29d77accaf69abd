// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxSize       = 1000
	DefaultTTL           = 5 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Options configures a Cache. Zero values select the defaults;
// a negative SweepInterval disables the background sweep.
type Options struct {
	MaxSize       int
	DefaultTTL    time.Duration
	SweepInterval time.Duration
	Now           func() time.Time
}

type entry struct {
	value      any
	createdAt  time.Time
	expiresAt  time.Time
	lastAccess time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Cache is a process-local key/value store with per-entry TTL and
// least-recently-used eviction. Values are shared between callers and
// must not be mutated after they are stored.
type Cache struct {
	mu         sync.Mutex
	lru        *simplelru.LRU[string, *entry]
	maxSize    int
	defaultTTL time.Duration
	sweepEvery time.Duration
	now        func() time.Time
	createdAt  time.Time

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64

	// Invalidation history for loads in flight. seq is bumped by every
	// invalidation; a load started at seq s does not store its result if the
	// key was deleted, a prefix covering it was cleared, or the cache was
	// purged after s. The maps are reset whenever no load is in flight.
	seq       uint64
	purgedAt  uint64
	deletedAt map[string]uint64
	clearedAt map[string]uint64
	loading   int

	loads singleflight.Group

	running   bool
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// New creates a Cache. Call Start to run the background sweep and Close
// to stop it.
func New(opts Options) *Cache {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	lru, err := simplelru.NewLRU[string, *entry](opts.MaxSize, nil)
	if err != nil {
		// only possible for a non-positive size, ruled out above
		panic(err)
	}

	return &Cache{
		lru:        lru,
		maxSize:    opts.MaxSize,
		defaultTTL: opts.DefaultTTL,
		sweepEvery: opts.SweepInterval,
		now:        opts.Now,
		createdAt:  opts.Now(),
		deletedAt:  make(map[string]uint64),
		clearedAt:  make(map[string]uint64),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// GenerateKey builds a namespace:id[:scope] key. Empty scopes are skipped.
func GenerateKey(namespace, id string, scope ...string) string {
	parts := make([]string, 0, 2+len(scope))
	parts = append(parts, namespace, id)
	for _, s := range scope {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ":")
}

// Get returns the value stored under key if it exists and has not expired.
// Expired entries are removed on access.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return nil, false
	}
	if e.expired(now) {
		c.lru.Remove(key)
		c.expirations++
		c.misses++
		return nil, false
	}

	e.lastAccess = now
	c.hits++
	return e.value, true
}

// Set stores value under key for ttl, or the default TTL when ttl <= 0.
// When the cache is full and key is new, the least recently accessed
// entry is evicted first.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, ttl)
}

func (c *Cache) setLocked(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()
	evicted := c.lru.Add(key, &entry{
		value:      value,
		createdAt:  now,
		expiresAt:  now.Add(ttl),
		lastAccess: now,
	})
	if evicted {
		c.evictions++
	}
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	if c.loading > 0 {
		c.deletedAt[key] = c.seq
	}
	return c.lru.Remove(key)
}

// ClearByPrefix removes the key equal to prefix and every key under
// prefix + ":". "poll_display:42" therefore never matches "poll_display:420".
func (c *Cache) ClearByPrefix(prefix string) int {
	if prefix == "" {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	if c.loading > 0 {
		c.clearedAt[prefix] = c.seq
	}
	scoped := prefix + ":"
	removed := 0
	for _, key := range c.lru.Keys() {
		if key == prefix || strings.HasPrefix(key, scoped) {
			if c.lru.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.purgedAt = c.seq
	c.lru.Purge()
}

// Has reports whether key holds a live entry without touching its recency.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		return false
	}
	if e.expired(c.now()) {
		c.lru.Remove(key)
		c.expirations++
		return false
	}
	return true
}

// Len returns the number of stored entries, including expired entries the
// sweep has not reached yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// MaxSize returns the configured capacity.
func (c *Cache) MaxSize() int {
	return c.maxSize
}

// GetOrSet returns the cached value for key, or calls load and caches its
// result. Concurrent misses on the same key share one load, which runs
// detached from the caller's cancellation so one abandoned request cannot
// fail the others waiting on it. Load errors are returned and never cached.
// A result whose load overlapped an invalidation of key is returned to the
// caller but not stored.
func (c *Cache) GetOrSet(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.loads.Do(key, func() (any, error) {
		c.mu.Lock()
		if e, ok := c.lru.Peek(key); ok && !e.expired(c.now()) {
			c.mu.Unlock()
			return e.value, nil
		}
		since := c.seq
		c.loading++
		c.mu.Unlock()

		v, err := load(context.WithoutCancel(ctx))

		c.mu.Lock()
		defer c.mu.Unlock()
		if err == nil && !c.invalidatedSince(key, since) {
			c.setLocked(key, v, ttl)
		}
		c.loading--
		if c.loading == 0 {
			clear(c.deletedAt)
			clear(c.clearedAt)
		}
		return v, err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// invalidatedSince reports whether key was deleted, purged, or covered by a
// cleared prefix after seq since. Must be called with c.mu held.
func (c *Cache) invalidatedSince(key string, since uint64) bool {
	if c.purgedAt > since || c.deletedAt[key] > since || c.clearedAt[key] > since {
		return true
	}
	for i := 0; i < len(key); i++ {
		if key[i] == ':' && c.clearedAt[key[:i]] > since {
			return true
		}
	}
	return false
}

// GetOrSetTyped is GetOrSet for callers that store a single type under key.
func GetOrSetTyped[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.GetOrSet(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache key %q holds %T, not %T", key, v, zero)
	}
	return typed, nil
}

// Sweep removes every expired entry and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, key := range c.lru.Keys() {
		if e, ok := c.lru.Peek(key); ok && e.expired(now) {
			c.lru.Remove(key)
			removed++
		}
	}
	c.expirations += uint64(removed)
	return removed
}

// Start launches the background sweep. It is a no-op when the sweep is
// disabled or already running.
func (c *Cache) Start() {
	if c.sweepEvery <= 0 {
		return
	}
	c.startOnce.Do(func() {
		c.mu.Lock()
		c.running = true
		c.mu.Unlock()
		go c.sweepLoop()
	})
}

func (c *Cache) sweepLoop() {
	defer close(c.done)

	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				slog.Debug("cache sweep", "removed", n, "size", c.Len())
			}
		}
	}
}

// Close stops the background sweep and drops every entry.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.mu.Lock()
		running := c.running
		c.mu.Unlock()
		if running {
			<-c.done
		}
		c.Clear()
	})
}
