package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(clock *fakeClock) *Cache[string] {
	return New[string](WithClock(clock.Now), WithSweepInterval(0))
}

func TestCache_SetGet(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	defer c.Close()

	c.Set("k", "v", time.Minute)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got != "v" {
		t.Errorf("Get() = %q, want %q", got, "v")
	}
}

func TestCache_GetMissing(t *testing.T) {
	c := newTestCache(newFakeClock())
	defer c.Close()

	got, ok := c.Get("missing")
	if ok {
		t.Error("Get() ok = true for missing key, want false")
	}
	if got != "" {
		t.Errorf("Get() = %q, want zero value", got)
	}
}

func TestCache_SetOverwrites(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	defer c.Close()

	c.Set("k", "old", time.Second)
	clock.Advance(900 * time.Millisecond)
	c.Set("k", "new", time.Second)
	clock.Advance(900 * time.Millisecond)

	// the overwrite reset the expiry, so the entry is still live
	got, ok := c.Get("k")
	if !ok || got != "new" {
		t.Errorf("Get() = %q, %v, want %q, true", got, ok, "new")
	}
}

// TestCache_ExpiryTransition verifies the entry is present up to and
// including createdAt+ttl, absent afterwards, and never flickers back.
func TestCache_ExpiryTransition(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	defer c.Close()

	c.Set("k", "v", time.Second)

	clock.Advance(time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("Get() at exactly ttl ok = false, want true")
	}

	clock.Advance(time.Nanosecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("Get() after ttl ok = true, want false")
	}

	// lazy delete happened; later reads stay absent
	if c.Len() != 0 {
		t.Errorf("Len() = %d after lazy expiry, want 0", c.Len())
	}
	for i := 0; i < 3; i++ {
		if _, ok := c.Get("k"); ok {
			t.Fatalf("Get() #%d ok = true after expiry, want false", i)
		}
	}
}

func TestCache_NonPositiveTTLIsAlreadyExpired(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	defer c.Close()

	c.Set("neg", "v", -time.Second)
	if _, ok := c.Get("neg"); ok {
		t.Error("Get() ok = true for negative ttl, want false")
	}

	c.Set("zero", "v", 0)
	clock.Advance(time.Nanosecond)
	if _, ok := c.Get("zero"); ok {
		t.Error("Get() ok = true for zero ttl after time passed, want false")
	}
}

func TestCache_Delete(t *testing.T) {
	c := newTestCache(newFakeClock())
	defer c.Close()

	c.Set("k", "v", time.Minute)
	c.Delete("k")
	c.Delete("never-set") // must not panic

	if _, ok := c.Get("k"); ok {
		t.Error("Get() ok = true after Delete, want false")
	}
}

func TestCache_KeysExcludesExpiredWithoutDeleting(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	defer c.Close()

	c.Set("b", "1", time.Minute)
	c.Set("a", "2", time.Minute)
	c.Set("short", "3", time.Second)

	clock.Advance(2 * time.Second)

	keys := c.Keys()
	want := []string{"a", "b"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Errorf("Keys() = %v, want %v", keys, want)
	}

	// Keys does not physically remove the expired entry
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3 (expired entry not yet swept)", c.Len())
	}
}

func TestCache_Sweep(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	defer c.Close()

	c.Set("keep", "1", time.Hour)
	c.Set("drop1", "2", time.Second)
	c.Set("drop2", "3", time.Second)

	clock.Advance(2 * time.Second)

	if removed := c.Sweep(); removed != 2 {
		t.Errorf("Sweep() = %d, want 2", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d after Sweep, want 1", c.Len())
	}
	if _, ok := c.Get("keep"); !ok {
		t.Error("unexpired entry was swept")
	}
}

func TestCache_Clear(t *testing.T) {
	c := newTestCache(newFakeClock())
	defer c.Close()

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", c.Len())
	}
}

// TestCache_BackgroundSweeper verifies expired-but-unread entries are
// removed by the sweeper without any Get.
func TestCache_BackgroundSweeper(t *testing.T) {
	c := New[int](WithSweepInterval(10 * time.Millisecond))
	defer c.Close()

	c.Set("k", 1, time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("background sweeper did not remove expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCache_CloseIdempotent(t *testing.T) {
	c := New[int](WithSweepInterval(time.Millisecond))

	c.Close()
	c.Close()

	// cache remains usable after Close
	c.Set("k", 1, time.Minute)
	if v, ok := c.Get("k"); !ok || v != 1 {
		t.Errorf("Get() after Close = %v, %v, want 1, true", v, ok)
	}
}

func TestCache_CloseWithoutSweeper(t *testing.T) {
	c := New[int](WithSweepInterval(0))

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close() blocked with sweeper disabled")
	}
}

// TestCache_ConcurrentAccess exercises every operation concurrently.
// Run with: go test -race ./internal/cache/...
func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int](WithSweepInterval(time.Millisecond))
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", j%10)
				c.Set(key, id, time.Duration(j%3)*time.Millisecond)
				c.Get(key)
				c.Keys()
				if j%17 == 0 {
					c.Delete(key)
				}
			}
		}(i)
	}
	wg.Wait()
}
