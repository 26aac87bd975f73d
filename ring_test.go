package cellz

import (
	"errors"
	"testing"
)

func TestRing_NilSafe(t *testing.T) {
	var r *ring[error]

	// All operations should be safe on nil
	r.push(errors.New("test"))
	r.clear()

	if r.all() != nil {
		t.Error("expected nil from nil ring")
	}
}

func TestRing_DisabledForNonPositiveSize(t *testing.T) {
	if newRing[error](0) != nil || newRing[error](-1) != nil {
		t.Error("expected nil ring for non-positive size")
	}
}

func TestRing_WrapsOldestFirst(t *testing.T) {
	r := newRing[int](3)
	for i := 1; i <= 5; i++ {
		r.push(i)
	}

	got := r.all()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestRing_PartialFill(t *testing.T) {
	r := newRing[string](4)
	r.push("a")
	r.push("b")

	got := r.all()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected [a b], got %v", got)
	}
}

func TestRing_Clear(t *testing.T) {
	r := newRing[int](2)
	r.push(1)
	r.clear()

	if r.all() != nil {
		t.Error("expected empty ring after clear")
	}
	r.push(7)
	if got := r.all(); len(got) != 1 || got[0] != 7 {
		t.Errorf("expected [7], got %v", got)
	}
}
