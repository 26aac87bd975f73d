package cellz

import "sync"

// ring is a thread-safe fixed-size buffer keeping the most recent items.
// A nil ring is valid and retains nothing.
type ring[E any] struct {
	mu    sync.RWMutex
	items []E
	head  int
	count int
}

// newRing returns a ring of the given capacity, or nil when size <= 0.
func newRing[E any](size int) *ring[E] {
	if size <= 0 {
		return nil
	}
	return &ring[E]{items: make([]E, size)}
}

func (r *ring[E]) push(item E) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[r.head] = item
	r.head = (r.head + 1) % len(r.items)
	if r.count < len(r.items) {
		r.count++
	}
}

func (r *ring[E]) clear() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero E
	for i := range r.items {
		r.items[i] = zero
	}
	r.head = 0
	r.count = 0
}

// all returns the retained items, oldest first.
func (r *ring[E]) all() []E {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return nil
	}
	size := len(r.items)
	out := make([]E, r.count)
	start := (r.head - r.count + size) % size
	for i := range out {
		out[i] = r.items[(start+i)%size]
	}
	return out
}
