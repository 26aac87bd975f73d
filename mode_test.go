package cellz

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestImmediate(t *testing.T) {
	c := New(Value(0))
	defer c.Dispose()

	c.Set(Value(1), Immediate())

	if c.Get() != 1 {
		t.Errorf("expected 1, got %d", c.Get())
	}
}

func TestDebounce_LastValueWins(t *testing.T) {
	clock := clockz.NewFakeClock()
	c := New(Value(0), WithClock[int](clock))
	defer c.Dispose()
	r := record(t, c)

	c.Set(Value(1), Debounce(100*time.Millisecond))
	advance(t, clock, 50*time.Millisecond)
	c.Set(Value(2), Debounce(100*time.Millisecond))
	advance(t, clock, 50*time.Millisecond)
	c.Set(Value(3), Debounce(100*time.Millisecond))

	advance(t, clock, 99*time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	if c.Get() != 0 {
		t.Fatalf("debounced update applied early: %d", c.Get())
	}

	advance(t, clock, time.Millisecond)
	eventually(t, func() bool { return c.Peek() == 3 }, "debounced update never applied")

	advance(t, clock, time.Second)
	time.Sleep(10 * time.Millisecond)
	if r.count() != 1 {
		t.Errorf("expected 1 notification, got %d", r.count())
	}
}

func TestDebounce_AppliesPastTheWindow(t *testing.T) {
	clock := clockz.NewFakeClock()
	c := New(Value(0), WithClock[int](clock))
	defer c.Dispose()

	c.Set(Value(1), Debounce(100*time.Millisecond))
	advance(t, clock, 200*time.Millisecond)

	eventually(t, func() bool { return c.Peek() == 1 }, "debounced update never applied")
	if c.Phase() != PhaseSettled {
		t.Errorf("expected settled, got %s", c.Phase())
	}
}

func TestDebounce_DisposedByPlainSet(t *testing.T) {
	clock := clockz.NewFakeClock()
	c := New(Value(0), WithClock[int](clock))
	defer c.Dispose()

	c.Set(Value(1), Debounce(100*time.Millisecond))
	c.Set(Value(2))

	clock.Advance(time.Second)
	clock.BlockUntilReady()
	time.Sleep(10 * time.Millisecond)
	if c.Get() != 2 {
		t.Errorf("expected pending debounce to be dropped, got %d", c.Get())
	}
}

func TestDebounce_StoppedByDispose(t *testing.T) {
	clock := clockz.NewFakeClock()
	c := New(Value(0), WithClock[int](clock))

	c.Set(Value(1), Debounce(100*time.Millisecond))
	c.Dispose()

	clock.Advance(time.Second)
	clock.BlockUntilReady()
	time.Sleep(10 * time.Millisecond)
	if c.Peek() != 0 {
		t.Errorf("debounced update applied after dispose: %d", c.Peek())
	}
}

func TestThrottle(t *testing.T) {
	clock := clockz.NewFakeClock()
	c := New(Value(0), WithClock[int](clock))
	defer c.Dispose()

	c.Set(Value(1), Throttle(500*time.Millisecond))
	clock.Advance(100 * time.Millisecond)
	c.Set(Value(2), Throttle(500*time.Millisecond))

	if c.Get() != 1 {
		t.Fatalf("expected first call to apply and second to drop, got %d", c.Get())
	}

	clock.Advance(600 * time.Millisecond)
	c.Set(Value(3), Throttle(500*time.Millisecond))
	if c.Get() != 3 {
		t.Errorf("expected third call to apply, got %d", c.Get())
	}
}

func TestDroppable(t *testing.T) {
	c := New(Value(0))
	defer c.Dispose()

	first, resolveFirst, _ := NewPromise[int]()
	c.Set(Pending(first), Droppable())

	var ran atomic.Bool
	c.Set(Async(func(context.Context) (int, error) {
		ran.Store(true)
		return 2, nil
	}), Droppable())

	resolveFirst(1)
	if v, err := settle(t, c); err != nil || v != 1 {
		t.Fatalf("expected 1, got %d (%v)", v, err)
	}
	if ran.Load() {
		t.Error("second droppable update ran while the first was in flight")
	}

	eventually(t, func() bool {
		c.Set(Value(3), Droppable())
		return c.Get() == 3
	}, "droppable stayed locked after settlement")
}

func TestDroppable_ReleasedOnFailure(t *testing.T) {
	c := New(Value(0))
	defer c.Dispose()

	c.Set(Async(func(context.Context) (int, error) {
		return 0, context.DeadlineExceeded
	}), Droppable())
	settle(t, c)

	eventually(t, func() bool {
		c.Set(Value(5), Droppable())
		return c.Get() == 5
	}, "droppable stayed locked after failure")
}

func TestModeContext_CustomMode(t *testing.T) {
	type countKey struct{}

	everyOther := func(mc *ModeContext, proceed func()) Controller {
		n, _ := mc.Value(countKey{})
		count, _ := n.(int)
		mc.SetValue(countKey{}, count+1)
		if count%2 == 0 {
			proceed()
		}
		return nil
	}

	c := New(Value(0), WithName[int]("custom"))
	defer c.Dispose()

	for i := 1; i <= 4; i++ {
		c.Set(Value(i), everyOther)
	}
	if c.Get() != 3 {
		t.Errorf("expected 3, got %d", c.Get())
	}
}

func TestControllerFuncs_NilSafe(t *testing.T) {
	var c ControllerFuncs
	c.Done(nil)
	c.Dispose()

	var done, disposed bool
	c = ControllerFuncs{
		OnDone:    func(error) { done = true },
		OnDispose: func() { disposed = true },
	}
	c.Done(nil)
	c.Dispose()
	if !done || !disposed {
		t.Error("expected both callbacks to run")
	}
}
