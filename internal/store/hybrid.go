package store

import (
	"sync"
	"time"

	"github.com/jpalmerr/insmonitor/internal/cache"
	"github.com/jpalmerr/insmonitor/internal/telemetry"
	"github.com/jpalmerr/insmonitor/internal/timeseries"
)

const (
	// DefaultLatestTTL is how long a reading counts as fresh for [HybridStore.Latest].
	DefaultLatestTTL = 300 * time.Second

	subscriberBuffer = 100
)

// Options configures a [HybridStore]. Zero values select the defaults of the
// underlying cache and time series.
type Options struct {
	// LatestTTL is the freshness window of the latest-value cache.
	LatestTTL time.Duration

	// HistorySize caps the number of records kept per device.
	HistorySize int

	// Retention is the maximum age of records kept per device.
	Retention time.Duration

	// SweepInterval is how often the cache drops expired entries.
	SweepInterval time.Duration

	// ReapInterval is how often history older than Retention is purged.
	ReapInterval time.Duration
}

// HybridStore is the in-memory implementation of [Store].
//
// HybridStore pairs a TTL cache, answering "is this device's last reading
// still fresh enough to trust", with bounded per-device histories,
// answering "what happened recently". [HybridStore.Latest] reads the
// cache; [HybridStore.AllLatest], [HybridStore.History] and
// [HybridStore.Positions] read the histories. A device whose readings stop
// therefore disappears from Latest after the TTL while remaining visible in
// AllLatest until its history ages out.
//
// The two sub-writes of [HybridStore.Store] are individually atomic but not
// atomic with each other.
//
// Subscribers receive updates via buffered channels (buffer size 100). Updates
// are sent non-blocking; if a subscriber's buffer is full, the update is dropped
// for that subscriber so the store is never blocked by readers.
type HybridStore struct {
	latest     *cache.Cache[telemetry.Reading]
	timeseries *timeseries.Store[telemetry.Reading]
	ttl        time.Duration

	subscribers map[chan Update]struct{}
	subMu       sync.RWMutex
}

// NewHybridStore creates a [HybridStore] and starts the background cache
// sweeper and history reaper. Call [HybridStore.Close] to stop them.
func NewHybridStore(opts Options) *HybridStore {
	ttl := opts.LatestTTL
	if ttl <= 0 {
		ttl = DefaultLatestTTL
	}

	var cacheOpts []cache.Option
	if opts.SweepInterval > 0 {
		cacheOpts = append(cacheOpts, cache.WithSweepInterval(opts.SweepInterval))
	}

	var tsOpts []timeseries.Option
	if opts.HistorySize > 0 {
		tsOpts = append(tsOpts, timeseries.WithMaxEntries(opts.HistorySize))
	}
	if opts.Retention > 0 {
		tsOpts = append(tsOpts, timeseries.WithRetention(opts.Retention))
	}
	if opts.ReapInterval > 0 {
		tsOpts = append(tsOpts, timeseries.WithReapInterval(opts.ReapInterval))
	}

	return newHybridStore(
		cache.New[telemetry.Reading](cacheOpts...),
		timeseries.New[telemetry.Reading](tsOpts...),
		ttl,
	)
}

func newHybridStore(c *cache.Cache[telemetry.Reading], ts *timeseries.Store[telemetry.Reading], ttl time.Duration) *HybridStore {
	return &HybridStore{
		latest:      c,
		timeseries:  ts,
		ttl:         ttl,
		subscribers: make(map[chan Update]struct{}),
	}
}

// latestKey is the cache key holding a device's freshest reading.
func latestKey(deviceID string) string {
	return "data:" + deviceID + ":latest"
}

// Store records reading for deviceID in both the cache and the history,
// then notifies all subscribers (unless their buffer is full).
// Successive calls for the same device are appended in call order.
func (h *HybridStore) Store(deviceID string, reading telemetry.Reading) {
	h.latest.Set(latestKey(deviceID), reading, h.ttl)
	entry := h.timeseries.Append(deviceID, reading)

	h.notifySubscribers(Update{
		DeviceID:  deviceID,
		Timestamp: entry.Timestamp,
		Data:      reading,
	})
}

// Latest returns the device's reading if one was stored within the TTL.
func (h *HybridStore) Latest(deviceID string) (telemetry.Reading, bool) {
	return h.latest.Get(latestKey(deviceID))
}

// AllLatest returns the newest history record of every device.
func (h *HybridStore) AllLatest() map[string]Record {
	entries := h.timeseries.AllLatest()

	out := make(map[string]Record, len(entries))
	for id, e := range entries {
		out[id] = Record(e)
	}
	return out
}

// History returns the device's records from the last window, oldest first.
func (h *HybridStore) History(deviceID string, window time.Duration) []Record {
	return toRecords(h.timeseries.Recent(deviceID, window))
}

// Positions projects the recent history of every device onto coordinates.
// Offline readings and readings without a position are skipped.
func (h *HybridStore) Positions(window time.Duration) map[string][]telemetry.LatLon {
	recent := h.timeseries.RecentAll(window)

	out := make(map[string][]telemetry.LatLon, len(recent))
	for id, entries := range recent {
		positions := make([]telemetry.LatLon, 0, len(entries))
		for _, e := range entries {
			if !e.Data.Online() {
				continue
			}
			if p, ok := e.Data.Position(); ok {
				positions = append(positions, p)
			}
		}
		out[id] = positions
	}
	return out
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [HybridStore.Unsubscribe] when done to prevent resource leaks.
func (h *HybridStore) Subscribe() <-chan Update {
	ch := make(chan Update, subscriberBuffer)

	h.subMu.Lock()
	h.subscribers[ch] = struct{}{}
	h.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// After calling Unsubscribe, the channel will be closed and no further
// updates will be sent. Safe to call multiple times or with an unknown channel.
func (h *HybridStore) Unsubscribe(ch <-chan Update) {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	for subCh := range h.subscribers {
		if subCh == ch {
			delete(h.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// Close stops the background cache sweeper and history reaper.
// Stored data stays readable.
func (h *HybridStore) Close() {
	h.latest.Close()
	h.timeseries.Close()
}

// notifySubscribers sends the update to all active subscribers without blocking.
func (h *HybridStore) notifySubscribers(u Update) {
	h.subMu.RLock()
	defer h.subMu.RUnlock()

	for ch := range h.subscribers {
		select {
		case ch <- u:
		default:
			// subscriber is slow, drop the message
		}
	}
}

func toRecords(entries []timeseries.Entry[telemetry.Reading]) []Record {
	out := make([]Record, len(entries))
	for i, e := range entries {
		out[i] = Record(e)
	}
	return out
}
