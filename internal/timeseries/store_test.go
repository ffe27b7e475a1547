package timeseries

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
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

func (f *fakeClock) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

func newTestStore(clock *fakeClock, opts ...Option) *Store[int] {
	opts = append([]Option{WithClock(clock.Now), WithReapInterval(0)}, opts...)
	return New[int](opts...)
}

var (
	farPast   = time.Unix(0, 0)
	farFuture = time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC)
)

func values(entries []Entry[int]) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

func TestStore_AppendAndLatest(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	if _, ok := s.Latest("dev"); ok {
		t.Fatal("Latest() ok = true for unknown series, want false")
	}

	s.Append("dev", 1)
	clock.Advance(time.Second)
	e := s.Append("dev", 2)

	latest, ok := s.Latest("dev")
	if !ok {
		t.Fatal("Latest() ok = false, want true")
	}
	if latest != e {
		t.Errorf("Latest() = %+v, want %+v", latest, e)
	}
	if latest.Timestamp != clock.Now() {
		t.Errorf("Latest().Timestamp = %v, want %v", latest.Timestamp, clock.Now())
	}
}

// TestStore_CountBound verifies that after N appends exceeding the cap M,
// the full range contains exactly the M most recent entries, oldest first.
func TestStore_CountBound(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		appends int
	}{
		{"below cap", 5, 3},
		{"exactly cap", 5, 5},
		{"one over cap", 5, 6},
		{"many wraps", 5, 23},
		{"cap of one", 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			s := newTestStore(clock, WithMaxEntries(tt.max))
			defer s.Close()

			for i := 0; i < tt.appends; i++ {
				s.Append("dev", i)
				clock.Advance(time.Millisecond)
			}

			got := values(s.Range("dev", farPast, farFuture))

			wantLen := tt.max
			if tt.appends < tt.max {
				wantLen = tt.appends
			}
			want := make([]int, 0, wantLen)
			for i := tt.appends - wantLen; i < tt.appends; i++ {
				want = append(want, i)
			}

			if fmt.Sprint(got) != fmt.Sprint(want) {
				t.Errorf("Range() = %v, want %v", got, want)
			}
			if s.Len("dev") != wantLen {
				t.Errorf("Len() = %d, want %d", s.Len("dev"), wantLen)
			}
		})
	}
}

// TestStore_LatestIsLastOfRange verifies Latest always equals the last
// element of an unbounded Range.
func TestStore_LatestIsLastOfRange(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock, WithMaxEntries(3))
	defer s.Close()

	for i := 0; i < 10; i++ {
		s.Append("dev", i)
		if i%2 == 0 {
			clock.Advance(time.Second)
		}

		all := s.Range("dev", farPast, farFuture)
		latest, ok := s.Latest("dev")
		if !ok {
			t.Fatalf("Latest() ok = false after %d appends", i+1)
		}
		if all[len(all)-1] != latest {
			t.Fatalf("after %d appends: last of Range = %+v, Latest = %+v", i+1, all[len(all)-1], latest)
		}
	}
}

func TestStore_RangeInclusiveBounds(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	base := clock.Now()
	for i := 0; i < 5; i++ {
		s.Append("dev", i)
		clock.Advance(time.Second)
	}

	tests := []struct {
		name       string
		start, end time.Time
		want       []int
	}{
		{"exact bounds", base.Add(1 * time.Second), base.Add(3 * time.Second), []int{1, 2, 3}},
		{"single point", base.Add(2 * time.Second), base.Add(2 * time.Second), []int{2}},
		{"between points", base.Add(1500 * time.Millisecond), base.Add(2500 * time.Millisecond), []int{2}},
		{"before all", farPast, base.Add(-time.Second), []int{}},
		{"after all", base.Add(10 * time.Second), farFuture, []int{}},
		{"inverted", base.Add(3 * time.Second), base.Add(1 * time.Second), []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := values(s.Range("dev", tt.start, tt.end))
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Range() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStore_RangeUnknownSeries(t *testing.T) {
	s := newTestStore(newFakeClock())
	defer s.Close()

	got := s.Range("missing", farPast, farFuture)
	if got == nil {
		t.Error("Range() = nil for unknown series, want empty slice")
	}
	if len(got) != 0 {
		t.Errorf("Range() = %v items, want 0", len(got))
	}
}

func TestStore_Recent(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	for i := 0; i < 10; i++ {
		s.Append("dev", i)
		clock.Advance(time.Minute)
	}

	// now is 10 minutes after the first append; entries 6..9 are within 4m
	got := values(s.Recent("dev", 4*time.Minute))
	want := []int{6, 7, 8, 9}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Recent() = %v, want %v", got, want)
	}
}

func TestStore_RecentAllIncludesEmptySeries(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	s.Append("old", 1)
	clock.Advance(time.Hour)
	s.Append("fresh", 2)

	all := s.RecentAll(time.Minute)

	if len(all) != 2 {
		t.Fatalf("RecentAll() = %d series, want 2", len(all))
	}
	if got := all["old"]; got == nil || len(got) != 0 {
		t.Errorf("RecentAll()[old] = %v, want empty non-nil slice", got)
	}
	if got := values(all["fresh"]); fmt.Sprint(got) != "[2]" {
		t.Errorf("RecentAll()[fresh] = %v, want [2]", got)
	}
}

func TestStore_TimestampsNeverDecrease(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	start := clock.Now()
	s.Append("dev", 1)

	// wall clock steps backwards
	clock.Set(start.Add(-time.Hour))
	e := s.Append("dev", 2)

	if e.Timestamp.Before(start) {
		t.Errorf("Append() timestamp = %v, want >= %v", e.Timestamp, start)
	}

	all := values(s.Range("dev", farPast, farFuture))
	if fmt.Sprint(all) != "[1 2]" {
		t.Errorf("Range() = %v, want [1 2] in append order", all)
	}
}

func TestStore_TiesKeepAppendOrder(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	for i := 0; i < 4; i++ {
		s.Append("dev", i) // clock never advances
	}

	now := clock.Now()
	got := values(s.Range("dev", now, now))
	if fmt.Sprint(got) != "[0 1 2 3]" {
		t.Errorf("Range() = %v, want [0 1 2 3]", got)
	}
}

func TestStore_AllLatest(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	s.Append("a", 1)
	s.Append("b", 2)
	s.Append("a", 3)

	all := s.AllLatest()
	if len(all) != 2 {
		t.Fatalf("AllLatest() = %d entries, want 2", len(all))
	}
	if all["a"].Data != 3 {
		t.Errorf("AllLatest()[a] = %d, want 3", all["a"].Data)
	}
	if all["b"].Data != 2 {
		t.Errorf("AllLatest()[b] = %d, want 2", all["b"].Data)
	}

	// snapshot is detached from later appends
	s.Append("a", 4)
	if all["a"].Data != 3 {
		t.Error("AllLatest() snapshot changed after a later Append")
	}
}

func TestStore_Purge(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	base := clock.Now()
	for i := 0; i < 5; i++ {
		s.Append("dev", i)
		clock.Advance(time.Hour)
	}
	s.Append("stale", 99)

	// stale was appended at base+5h; purge everything before base+2h
	removed := s.Purge(base.Add(2 * time.Hour))
	if removed != 2 {
		t.Errorf("Purge() = %d, want 2", removed)
	}

	got := values(s.Range("dev", farPast, farFuture))
	if fmt.Sprint(got) != "[2 3 4]" {
		t.Errorf("Range() after Purge = %v, want [2 3 4]", got)
	}
	if latest, ok := s.Latest("dev"); !ok || latest.Data != 4 {
		t.Errorf("Latest() after partial Purge = %+v, %v, want 4, true", latest, ok)
	}
}

func TestStore_PurgeEmptiesSeries(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	s.Append("dev", 1)
	clock.Advance(time.Hour)

	s.Purge(clock.Now())

	if s.Len("dev") != 0 {
		t.Errorf("Len() = %d after full Purge, want 0", s.Len("dev"))
	}
	if _, ok := s.Latest("dev"); ok {
		t.Error("Latest() ok = true for purged series, want false")
	}
	if _, ok := s.AllLatest()["dev"]; ok {
		t.Error("AllLatest() still contains purged series")
	}
	if keys := s.Keys(); fmt.Sprint(keys) != "[dev]" {
		t.Errorf("Keys() = %v, want [dev] (key kept after purge)", keys)
	}
}

// TestStore_BackgroundReaper verifies age-based eviction happens without
// any explicit Purge call.
func TestStore_BackgroundReaper(t *testing.T) {
	s := New[int](
		WithRetention(20*time.Millisecond),
		WithReapInterval(5*time.Millisecond),
	)
	defer s.Close()

	s.Append("dev", 1)

	deadline := time.Now().Add(2 * time.Second)
	for s.Len("dev") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("reaper did not purge entry past retention")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStore_CloseIdempotent(t *testing.T) {
	s := New[int](WithReapInterval(time.Millisecond))
	s.Close()
	s.Close()

	s.Append("dev", 1)
	if s.Len("dev") != 1 {
		t.Error("store should remain usable after Close")
	}
}

// TestStore_ConcurrentAppendAndRead checks for torn reads under contention.
// Run with: go test -race ./internal/timeseries/...
func TestStore_ConcurrentAppendAndRead(t *testing.T) {
	s := New[int](WithMaxEntries(16), WithReapInterval(time.Millisecond), WithRetention(time.Millisecond))
	defer s.Close()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			key := fmt.Sprintf("dev%d", w)
			for i := 0; i < 500; i++ {
				s.Append(key, i)
			}
		}(w)
	}

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				for _, entries := range s.RecentAll(time.Hour) {
					for j := 1; j < len(entries); j++ {
						if entries[j].Timestamp.Before(entries[j-1].Timestamp) {
							t.Error("entries out of order")
							return
						}
					}
				}
				s.AllLatest()
			}
		}()
	}

	wg.Wait()
}
