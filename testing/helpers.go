// Package testing provides helpers for testing code built on cellz
// containers.
package testing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/cellz"
)

// TestSettings is a value type for exercising feeds and hydration.
// It implements cellz.Validator.
type TestSettings struct {
	Port    int    `yaml:"port" json:"port"`
	Host    string `yaml:"host" json:"host"`
	Timeout int    `yaml:"timeout" json:"timeout"`
}

// Validate implements cellz.Validator.
func (s TestSettings) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if s.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return condition()
}

// WaitForPhase waits until the container reaches the expected phase.
func WaitForPhase[T any](t *testing.T, c *cellz.Container[T], expected cellz.Phase, timeout time.Duration) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		return c.Phase() == expected
	})
}

// RequirePhase fails the test immediately if the container is not in the
// expected phase.
func RequirePhase[T any](t *testing.T, c *cellz.Container[T], expected cellz.Phase) {
	t.Helper()
	if got := c.Phase(); got != expected {
		t.Fatalf("expected phase %s, got %s", expected, got)
	}
}

// RequireSettled waits for the container to settle and returns its value,
// failing the test on error or timeout.
func RequireSettled[T any](t *testing.T, c *cellz.Container[T], timeout time.Duration) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	v, err := c.Wait().Await(ctx)
	if err != nil {
		t.Fatalf("container %s did not settle: %v", c.Name(), err)
	}
	return v
}

// Recorder captures every state a container notifies.
type Recorder[T any] struct {
	mu     sync.Mutex
	states []cellz.State[T]
	stop   func()
}

// Record subscribes a Recorder to c. It unsubscribes when the test ends.
func Record[T any](t *testing.T, c *cellz.Container[T]) *Recorder[T] {
	t.Helper()
	r := &Recorder[T]{}
	r.stop = c.Subscribe(func(s cellz.State[T]) {
		r.mu.Lock()
		r.states = append(r.states, s)
		r.mu.Unlock()
	})
	t.Cleanup(r.stop)
	return r
}

// Count returns the number of notifications received.
func (r *Recorder[T]) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// States returns a copy of the received states, oldest first.
func (r *Recorder[T]) States() []cellz.State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cellz.State[T](nil), r.states...)
}

// Last returns the most recent state and whether there was one.
func (r *Recorder[T]) Last() (cellz.State[T], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return cellz.State[T]{}, false
	}
	return r.states[len(r.states)-1], true
}

// NewTestFeed creates a sync-mode feed over a buffered channel writing to a
// new TestSettings container. Send encoded values on the returned channel,
// then call Start or Process.
func NewTestFeed(t *testing.T, opts ...cellz.FeedOption[TestSettings]) (*cellz.Feed[TestSettings], chan<- []byte) {
	t.Helper()
	ch := make(chan []byte, 10)
	target := cellz.New(cellz.Value(TestSettings{}))
	t.Cleanup(target.Dispose)
	f := cellz.NewFeed(cellz.NewSyncChannelWatcher(ch), target, opts...).SyncMode()
	return f, ch
}
