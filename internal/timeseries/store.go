// Package timeseries provides an in-memory store of bounded, per-key
// histories of timestamped values.
//
// Each series is a ring buffer capped at a maximum number of entries; the
// oldest entry is overwritten once the cap is reached. Independently, a
// background reaper drops entries older than a retention horizon. Either
// bound may evict an entry first.
//
// A separate latest-entry slot per series makes [Store.Latest] and
// [Store.AllLatest] O(1) per series without scanning history.
package timeseries

import (
	"sort"
	"sync"
	"time"
)

const (
	defaultMaxEntries   = 1000
	defaultRetention    = 24 * time.Hour
	defaultReapInterval = 5 * time.Minute
)

// Entry is a single timestamped value in a series.
type Entry[T any] struct {
	Timestamp time.Time `json:"timestamp"`
	Data      T         `json:"data"`
}

// series holds one key's history and its latest slot.
type series[T any] struct {
	buf       *ring[T]
	latest    Entry[T]
	hasLatest bool
}

// Store is a set of bounded time series keyed by string.
//
// All methods are safe for concurrent use. A single read/write lock guards
// every series, so each operation is atomic with respect to every other:
// readers never observe a half-appended entry or an entry mid-eviction.
type Store[T any] struct {
	mu     sync.RWMutex
	series map[string]*series[T]

	maxEntries   int
	retention    time.Duration
	reapInterval time.Duration
	now          func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a [Store].
type Option func(*options)

type options struct {
	maxEntries   int
	retention    time.Duration
	reapInterval time.Duration
	now          func() time.Time
}

// WithMaxEntries caps the number of entries kept per series.
// Non-positive values keep the default of 1000.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

// WithRetention sets the maximum age of entries kept by the reaper.
// Non-positive values disable age-based eviction.
func WithRetention(d time.Duration) Option {
	return func(o *options) {
		o.retention = d
	}
}

// WithReapInterval sets how often the reaper runs. Non-positive values
// disable the background reaper; [Store.Purge] can still be called directly.
func WithReapInterval(d time.Duration) Option {
	return func(o *options) {
		o.reapInterval = d
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

// New creates a [Store] and starts its background reaper.
// Call [Store.Close] to stop the reaper.
func New[T any](opts ...Option) *Store[T] {
	o := options{
		maxEntries:   defaultMaxEntries,
		retention:    defaultRetention,
		reapInterval: defaultReapInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store[T]{
		series:       make(map[string]*series[T]),
		maxEntries:   o.maxEntries,
		retention:    o.retention,
		reapInterval: o.reapInterval,
		now:          o.now,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}

	if s.reapInterval > 0 && s.retention > 0 {
		go s.reapLoop()
	} else {
		close(s.done)
	}

	return s
}

// Append adds data to the series for key, creating the series on first use.
// The entry is stamped with the current time, never earlier than the
// previous entry of the same series. Returns the stored entry.
func (s *Store[T]) Append(key string, data T) Entry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	ser, ok := s.series[key]
	if !ok {
		ser = &series[T]{buf: newRing[T](s.maxEntries)}
		s.series[key] = ser
	}

	ts := s.now()
	if ser.hasLatest && ts.Before(ser.latest.Timestamp) {
		ts = ser.latest.Timestamp
	}

	e := Entry[T]{Timestamp: ts, Data: data}
	ser.buf.push(e)
	ser.latest = e
	ser.hasLatest = true

	return e
}

// Latest returns the most recent entry of the series.
func (s *Store[T]) Latest(key string) (Entry[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ser, ok := s.series[key]
	if !ok || !ser.hasLatest {
		return Entry[T]{}, false
	}
	return ser.latest, true
}

// Range returns the entries of the series with timestamps in [start, end],
// oldest first. Unknown series yield an empty slice.
func (s *Store[T]) Range(key string, start, end time.Time) []Entry[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ser, ok := s.series[key]
	if !ok {
		return []Entry[T]{}
	}
	return ser.window(start, end)
}

// Recent returns the entries of the series from the last d up to now.
func (s *Store[T]) Recent(key string, d time.Duration) []Entry[T] {
	end := s.now()
	return s.Range(key, end.Add(-d), end)
}

// RecentAll returns [Store.Recent] for every known series, including series
// with no entries in the window, under a single read lock.
func (s *Store[T]) RecentAll(d time.Duration) map[string][]Entry[T] {
	end := s.now()
	start := end.Add(-d)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]Entry[T], len(s.series))
	for key, ser := range s.series {
		out[key] = ser.window(start, end)
	}
	return out
}

// AllLatest returns a snapshot of the latest entry of every series that has
// one. The snapshot is taken under a single lock.
func (s *Store[T]) AllLatest() map[string]Entry[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Entry[T], len(s.series))
	for key, ser := range s.series {
		if ser.hasLatest {
			out[key] = ser.latest
		}
	}
	return out
}

// Keys returns every known series key in sorted order.
func (s *Store[T]) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.series))
	for key := range s.series {
		keys = append(keys, key)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Len returns the number of entries currently held for key.
func (s *Store[T]) Len(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ser, ok := s.series[key]
	if !ok {
		return 0
	}
	return ser.buf.len()
}

// Purge drops, in every series, the leading entries older than cutoff and
// returns how many were dropped. A series emptied by the purge keeps its
// key but loses its latest slot.
func (s *Store[T]) Purge(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, ser := range s.series {
		for ser.buf.len() > 0 && ser.buf.at(0).Timestamp.Before(cutoff) {
			ser.buf.popOldest()
			removed++
		}
		if ser.buf.len() == 0 {
			ser.latest = Entry[T]{}
			ser.hasLatest = false
		}
	}
	return removed
}

// Close stops the background reaper and waits for it to exit.
// Safe to call multiple times.
func (s *Store[T]) Close() {
	s.closeOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Store[T]) reapLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Purge(s.now().Add(-s.retention))
		}
	}
}

// window copies the entries with timestamps in [start, end]. Entries are
// stored in non-decreasing timestamp order, so the bounds are found by
// binary search.
func (ser *series[T]) window(start, end time.Time) []Entry[T] {
	n := ser.buf.len()
	lo := sort.Search(n, func(i int) bool {
		return !ser.buf.at(i).Timestamp.Before(start)
	})
	hi := sort.Search(n, func(i int) bool {
		return ser.buf.at(i).Timestamp.After(end)
	})

	if lo >= hi {
		return []Entry[T]{}
	}

	out := make([]Entry[T], 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, ser.buf.at(i))
	}
	return out
}
