package cellz

import (
	"sync"
	"testing"
)

func TestBatch_CoalescesNotifications(t *testing.T) {
	t.Cleanup(ResetBatch)

	c := New(Value(0))
	defer c.Dispose()
	r := record(t, c)

	Batch(func() {
		for i := 1; i <= 5; i++ {
			c.Set(Value(i))
		}
		if r.count() != 0 {
			t.Errorf("notified inside batch: %d", r.count())
		}
	})

	if r.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", r.count())
	}
	if r.last().Data != 5 {
		t.Errorf("expected final state 5, got %d", r.last().Data)
	}
}

func TestBatch_Nested(t *testing.T) {
	t.Cleanup(ResetBatch)

	c := New(Value(0))
	defer c.Dispose()
	r := record(t, c)

	Batch(func() {
		c.Set(Value(1))
		Batch(func() {
			c.Set(Value(2))
		})
		if r.count() != 0 {
			t.Error("inner batch flushed before the outer one closed")
		}
		c.Set(Value(3))
	})

	if r.count() != 1 {
		t.Errorf("expected 1 notification, got %d", r.count())
	}
}

func TestBatch_FlushOrder(t *testing.T) {
	t.Cleanup(ResetBatch)

	a := New(Value("a"))
	b := New(Value("b"))
	defer a.Dispose()
	defer b.Dispose()

	var (
		mu    sync.Mutex
		order []string
	)
	a.Watch(func() {
		mu.Lock()
		order = append(order, "a")
		mu.Unlock()
	})
	b.Watch(func() {
		mu.Lock()
		order = append(order, "b")
		mu.Unlock()
	})

	Batch(func() {
		b.Set(Value("b1"))
		a.Set(Value("a1"))
		b.Set(Value("b2"))
	})

	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Errorf("expected [b a], got %v", order)
	}
}

func TestBatch_PanicClosesTransaction(t *testing.T) {
	t.Cleanup(ResetBatch)

	c := New(Value(0))
	defer c.Dispose()
	r := record(t, c)

	func() {
		defer func() { _ = recover() }()
		Batch(func() {
			c.Set(Value(1))
			panic("boom")
		})
	}()

	if DefaultBatcher.Active() {
		t.Fatal("batch still open after panic")
	}
	if r.count() != 1 {
		t.Errorf("expected queued notification to flush, got %d", r.count())
	}

	c.Set(Value(2))
	if r.count() != 2 {
		t.Errorf("expected direct notification after batch, got %d", r.count())
	}
}

func TestBatcher_Isolated(t *testing.T) {
	b := &Batcher{}
	c := New(Value(0), WithBatcher[int](b))
	defer c.Dispose()
	r := record(t, c)

	Batch(func() {
		c.Set(Value(1))
		if r.count() != 1 {
			t.Error("default batch deferred a container with its own batcher")
		}
	})

	b.Run(func() {
		c.Set(Value(2))
		c.Set(Value(3))
	})
	if r.count() != 2 {
		t.Errorf("expected 2 notifications, got %d", r.count())
	}
}

func TestBatcher_Reset(t *testing.T) {
	b := &Batcher{}
	c := New(Value(0), WithBatcher[int](b))
	defer c.Dispose()
	r := record(t, c)

	b.mu.Lock()
	b.depth = 1
	b.mu.Unlock()
	c.Set(Value(1))
	b.Reset()

	if b.Active() {
		t.Error("expected reset batcher to be inactive")
	}
	if r.count() != 0 {
		t.Errorf("reset flushed pending notifications: %d", r.count())
	}
	c.Set(Value(2))
	if r.count() != 1 {
		t.Errorf("expected 1 notification, got %d", r.count())
	}
}
