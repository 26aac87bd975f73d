package cellz

import (
	"errors"
	"testing"
)

func TestMerge(t *testing.T) {
	c := New(Value(map[string]int{"a": 1, "b": 2}))
	defer c.Dispose()
	r := record(t, c)

	Merge(c, map[string]int{"b": 3, "c": 4})

	got := c.Get()
	want := map[string]int{"a": 1, "b": 3, "c": 4}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("key %s: expected %d, got %d", k, v, got[k])
		}
	}
	if r.count() != 1 {
		t.Errorf("expected 1 notification, got %d", r.count())
	}
}

func TestMerge_UnchangedKeepsReference(t *testing.T) {
	c := New(Value(map[string]int{"a": 1}))
	defer c.Dispose()
	r := record(t, c)
	before := c.Get()

	Merge(c, map[string]int{"a": 1})
	Merge(c, nil)

	if !Same(before, c.Get()) {
		t.Error("expected map reference to be kept")
	}
	if r.count() != 0 {
		t.Errorf("expected no notification, got %d", r.count())
	}
}

func TestMerge_DoesNotMutate(t *testing.T) {
	before := map[string]int{"a": 1}
	c := New(Value(before))
	defer c.Dispose()

	Merge(c, map[string]int{"a": 2})

	if before["a"] != 1 {
		t.Error("merge mutated the previous map")
	}
	if c.Get()["a"] != 2 {
		t.Errorf("expected 2, got %d", c.Get()["a"])
	}
}

func TestMerge_NilMap(t *testing.T) {
	c := New(Value[map[string]int](nil))
	defer c.Dispose()

	Merge(c, map[string]int{"a": 1})
	if c.Get()["a"] != 1 {
		t.Errorf("expected 1, got %v", c.Get())
	}
}

func TestContainer_MergeFields(t *testing.T) {
	before := person{Name: "ada", Tags: []string{"math"}, Address: &address{City: "London"}}
	c := New(Value(before))
	defer c.Dispose()
	c.Get()
	r := record(t, c)

	err := c.MergeFields(map[string]any{
		"name":    "Ada",
		"Address": &address{City: "Paris"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := c.Get()
	if got.Name != "Ada" || got.Address.City != "Paris" {
		t.Errorf("unexpected result %+v", got)
	}
	if &got.Tags[0] != &before.Tags[0] {
		t.Error("expected untouched field to keep its reference")
	}
	if before.Name != "ada" {
		t.Error("original value was mutated")
	}
	if r.count() != 1 {
		t.Errorf("expected 1 notification, got %d", r.count())
	}
}

func TestContainer_MergeFields_AllOrNothing(t *testing.T) {
	c := New(Value(person{Name: "ada"}))
	defer c.Dispose()

	_ = c.MergeFields(map[string]any{"name": "Ada", "age": 36})
	if c.Peek().Name != "ada" {
		t.Error("partial merge was applied")
	}
	if !errors.Is(c.Err(), ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", c.Err())
	}

	_ = c.MergeFields(map[string]any{"name": 7})
	if !errors.Is(c.Err(), ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", c.Err())
	}

	if err := c.MergeFields(map[string]any{"": 1}); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected malformed field name to be returned, got %v", err)
	}
}
