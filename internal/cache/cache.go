// Package cache provides a concurrency-safe key/value cache whose entries
// expire after a per-entry time-to-live.
//
// Expired entries are removed two ways: lazily when a [Cache.Get] finds one,
// and periodically by a background sweeper. Both paths use the same
// expiry predicate, so an entry is never visible to one and gone for the
// other.
package cache

import (
	"sort"
	"sync"
	"time"
)

const defaultSweepInterval = 60 * time.Second

// entry is a cached value together with the data needed to decide expiry.
type entry[V any] struct {
	value     V
	createdAt time.Time
	ttl       time.Duration
}

// expired is the single expiry predicate shared by reads and the sweeper.
// An entry is logically absent once now is strictly after createdAt+ttl.
func (e entry[V]) expired(now time.Time) bool {
	return now.After(e.createdAt.Add(e.ttl))
}

// Cache is an expiring key/value map safe for concurrent use.
//
// The zero value is not usable; create caches with [New]. Call [Cache.Close]
// to stop the background sweeper when the cache is no longer needed.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	now     func() time.Time

	sweepInterval time.Duration
	stop          chan struct{}
	done          chan struct{}
	closeOnce     sync.Once
}

// Option configures a [Cache].
type Option func(*options)

type options struct {
	sweepInterval time.Duration
	now           func() time.Time
}

// WithSweepInterval sets how often expired entries are physically removed.
// Non-positive values disable the background sweeper; expired entries are
// then only removed lazily or by explicit [Cache.Sweep] calls.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		o.sweepInterval = d
	}
}

// WithClock replaces the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates a [Cache] and starts its background sweeper.
func New[V any](opts ...Option) *Cache[V] {
	o := options{
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache[V]{
		entries:       make(map[string]entry[V]),
		now:           o.now,
		sweepInterval: o.sweepInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}

	if c.sweepInterval > 0 {
		go c.sweepLoop()
	} else {
		close(c.done)
	}

	return c
}

// Set stores value under key, replacing any previous entry. The entry
// expires ttl after the call; a non-positive ttl stores an entry that is
// already expired.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{
		value:     value,
		createdAt: c.now(),
		ttl:       ttl,
	}
}

// Get returns the value stored under key if it exists and has not expired.
// An expired entry found here is deleted before returning.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Delete removes key. Missing keys are ignored.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Keys returns the unexpired keys in sorted order. Expired entries that
// have not been swept yet are excluded but left in place.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	now := c.now()
	keys := make([]string, 0, len(c.entries))
	for k, e := range c.entries {
		if !e.expired(now) {
			keys = append(keys, k)
		}
	}
	c.mu.Unlock()

	sort.Strings(keys)
	return keys
}

// Len returns the number of physically stored entries, including expired
// entries that have not been removed yet.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Sweep removes all expired entries and returns how many were removed.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Close stops the background sweeper and waits for it to exit.
// Safe to call multiple times. The cache remains usable afterwards.
func (c *Cache[V]) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
	<-c.done
}

func (c *Cache[V]) sweepLoop() {
	defer close(c.done)

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
