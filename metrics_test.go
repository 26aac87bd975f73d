package cellz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNoOpMetricsProvider_DoesNotPanic(_ *testing.T) {
	var m NoOpMetricsProvider

	m.OnCreate("c")
	m.OnUpdate("c", "value")
	m.OnSettle("c", 100*time.Millisecond)
	m.OnFailure("c", errors.New("boom"))
	m.OnDrop("c", "throttle")
	m.OnDispose("c")
}

// countingMetrics records the calls it receives.
type countingMetrics struct {
	NoOpMetricsProvider

	mu       sync.Mutex
	created  int
	updates  []string
	settles  int
	failures []error
	drops    []string
	disposed int
}

func (m *countingMetrics) OnCreate(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *countingMetrics) OnUpdate(_, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, kind)
}

func (m *countingMetrics) OnSettle(string, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settles++
}

func (m *countingMetrics) OnFailure(_ string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, err)
}

func (m *countingMetrics) OnDrop(_, mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops = append(m.drops, mode)
}

func (m *countingMetrics) OnDispose(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposed++
}

func TestMetricsProvider_Lifecycle(t *testing.T) {
	m := &countingMetrics{}
	c := New(Value(0), WithMetrics[int](m))

	c.Set(Value(1))
	c.Set(Async(func(context.Context) (int, error) { return 2, nil }))
	settle(t, c)
	c.Set(Fail[int](errors.New("boom")))
	c.Dispose()
	c.Dispose()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.created != 1 {
		t.Errorf("expected 1 create, got %d", m.created)
	}
	want := []string{"value", "async", "fail"}
	if len(m.updates) != len(want) {
		t.Fatalf("expected updates %v, got %v", want, m.updates)
	}
	for i := range want {
		if m.updates[i] != want[i] {
			t.Errorf("update %d: expected %s, got %s", i, want[i], m.updates[i])
		}
	}
	if m.settles != 2 {
		t.Errorf("expected 2 settles, got %d", m.settles)
	}
	if len(m.failures) != 1 {
		t.Errorf("expected 1 failure, got %d", len(m.failures))
	}
	if m.disposed != 1 {
		t.Errorf("expected 1 dispose, got %d", m.disposed)
	}
}

func TestMetricsProvider_Drops(t *testing.T) {
	m := &countingMetrics{}
	c := New(Value(0), WithMetrics[int](m))
	defer c.Dispose()

	c.Set(Value(1), Throttle(time.Hour))
	c.Set(Value(2), Throttle(time.Hour))

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.drops) != 1 || m.drops[0] != "throttle" {
		t.Errorf("expected one throttle drop, got %v", m.drops)
	}
}
