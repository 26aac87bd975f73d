package cellz

import (
	"sync"
	"sync/atomic"
)

type listener[A any] struct {
	fn     func(A)
	active atomic.Bool
}

// Emitter is an ordered multicast list of listeners. Listeners are notified
// in the order they were added. Emit works over a snapshot of the list, so
// listeners may add or remove listeners while being notified; a listener
// removed before its turn in the current emission is skipped.
type Emitter[A any] struct {
	mu        sync.Mutex
	listeners []*listener[A]
}

// Add registers fn and returns a function that removes it. The returned
// function is idempotent.
func (e *Emitter[A]) Add(fn func(A)) (remove func()) {
	l := &listener[A]{fn: fn}
	l.active.Store(true)

	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()

	return func() {
		if !l.active.CompareAndSwap(true, false) {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, existing := range e.listeners {
			if existing == l {
				// Copy on removal; in-flight emissions hold the old slice.
				next := make([]*listener[A], 0, len(e.listeners)-1)
				next = append(next, e.listeners[:i]...)
				e.listeners = append(next, e.listeners[i+1:]...)
				return
			}
		}
	}
}

// Emit notifies every listener registered at the time of the call.
func (e *Emitter[A]) Emit(arg A) {
	e.mu.Lock()
	snapshot := e.listeners
	e.mu.Unlock()

	for _, l := range snapshot {
		if l.active.Load() {
			l.fn(arg)
		}
	}
}

// Len returns the number of registered listeners.
func (e *Emitter[A]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Clear removes every listener.
func (e *Emitter[A]) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, l := range e.listeners {
		l.active.Store(false)
	}
	e.listeners = nil
}
