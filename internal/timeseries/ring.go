package timeseries

// ring is a fixed-capacity circular buffer of entries. When full, pushing
// overwrites the oldest entry. It is not safe for concurrent use; the
// owning [Store] serialises access.
type ring[T any] struct {
	data  []Entry[T]
	head  int // next write position
	count int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{data: make([]Entry[T], capacity)}
}

// push appends e, dropping the oldest entry if the ring is full.
// Returns true if an entry was dropped.
func (r *ring[T]) push(e Entry[T]) bool {
	dropped := false
	if r.count == len(r.data) {
		r.count--
		dropped = true
	}
	r.data[r.head] = e
	r.head = (r.head + 1) % len(r.data)
	r.count++
	return dropped
}

// at returns the i-th oldest entry, 0 <= i < count.
func (r *ring[T]) at(i int) Entry[T] {
	return r.data[r.index(i)]
}

func (r *ring[T]) index(i int) int {
	return (r.head - r.count + i + len(r.data)) % len(r.data)
}

// newest returns the most recently pushed entry.
func (r *ring[T]) newest() (Entry[T], bool) {
	if r.count == 0 {
		return Entry[T]{}, false
	}
	return r.at(r.count - 1), true
}

// popOldest removes the oldest entry, clearing its slot for GC.
func (r *ring[T]) popOldest() {
	if r.count == 0 {
		return
	}
	r.data[r.index(0)] = Entry[T]{}
	r.count--
}

func (r *ring[T]) len() int {
	return r.count
}
