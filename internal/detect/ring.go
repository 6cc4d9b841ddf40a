package detect

// Ring is a fixed-capacity circular buffer. Push is O(1) and evicts the
// oldest entry once the buffer is full. The zero value is unusable; create
// with NewRing.
//
// Not safe for concurrent use; every Ring in this package is confined to the
// serialized frame-delivery path.
type Ring[T any] struct {
	buf    []T
	next   int
	length int
}

// NewRing creates a ring holding at most capacity entries. Capacity must be
// positive.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("detect: ring capacity must be positive")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest entry if the ring is full.
func (r *Ring[T]) Push(v T) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.length < len(r.buf) {
		r.length++
	}
}

// Len returns the number of entries currently held.
func (r *Ring[T]) Len() int { return r.length }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Full reports whether the ring holds Cap entries.
func (r *Ring[T]) Full() bool { return r.length == len(r.buf) }

// Clear removes all entries and zeroes the backing slots so evicted values
// do not pin memory.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.next = 0
	r.length = 0
}

// Each calls fn for every entry, oldest first.
func (r *Ring[T]) Each(fn func(T)) {
	n := len(r.buf)
	for i := range r.length {
		fn(r.buf[(r.next+n-r.length+i)%n])
	}
}

// Snapshot returns the entries oldest-first in a fresh slice.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, 0, r.length)
	r.Each(func(v T) { out = append(out, v) })
	return out
}
