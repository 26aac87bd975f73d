package cellz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

// recorder captures the states a container notifies.
type recorder[T any] struct {
	mu     sync.Mutex
	states []State[T]
}

func record[T any](t *testing.T, c *Container[T]) *recorder[T] {
	t.Helper()
	r := &recorder[T]{}
	t.Cleanup(c.Subscribe(func(s State[T]) {
		r.mu.Lock()
		r.states = append(r.states, s)
		r.mu.Unlock()
	}))
	return r
}

func (r *recorder[T]) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *recorder[T]) last() State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return State[T]{}
	}
	return r.states[len(r.states)-1]
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatalf("timed out: %s", msg)
	}
}

// settle waits for c to stop loading and returns the outcome.
func settle[T any](t *testing.T, c *Container[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return c.Wait().Await(ctx)
}

// advance moves clock forward and fails if timer callbacks keep Advance
// from returning.
func advance(t *testing.T, clock *clockz.FakeClock, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		clock.Advance(d)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Advance(%v) did not return", d)
	}
	clock.BlockUntilReady()
}
