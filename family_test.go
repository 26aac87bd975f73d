package cellz

import (
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterFamily(created *atomic.Int32) *Family[string, int] {
	return NewFamily(func(string) *Container[int] {
		created.Add(1)
		return New(Value(0))
	})
}

func TestFamily_SameMember(t *testing.T) {
	var created atomic.Int32
	fam := counterFamily(&created)

	a := fam.Get("a")
	assert.Same(t, a, fam.Get("a"))
	assert.NotSame(t, a, fam.Get("b"))
	assert.Equal(t, int32(2), created.Load())
	assert.Equal(t, 2, fam.Len())
}

func TestFamily_DisposeEvicts(t *testing.T) {
	var created atomic.Int32
	fam := counterFamily(&created)

	a := fam.Get("a")
	a.Set(Value(5))
	a.Dispose()

	assert.Equal(t, 0, fam.Len())

	again := fam.Get("a")
	require.NotSame(t, a, again)
	assert.Equal(t, 0, again.Get())
	assert.Equal(t, int32(2), created.Load())
}

func TestFamily_Delete(t *testing.T) {
	var created atomic.Int32
	fam := counterFamily(&created)

	a := fam.Get("a")
	assert.True(t, fam.Delete("a"))
	assert.False(t, fam.Delete("a"))
	assert.Equal(t, PhaseDisposed, a.Phase())
	assert.Equal(t, 0, fam.Len())
}

func TestFamily_ClearKeepsMembersAlive(t *testing.T) {
	var created atomic.Int32
	fam := counterFamily(&created)

	a := fam.Get("a")
	fam.Clear()

	assert.Equal(t, 0, fam.Len())
	a.Set(Value(1))
	assert.Equal(t, 1, a.Get())
	assert.NotEqual(t, PhaseDisposed, a.Phase())

	assert.NotSame(t, a, fam.Get("a"))

	a.Dispose()
	assert.Equal(t, 1, fam.Len(), "disposing a cleared member must not evict its replacement")
}

func TestFamily_Keys(t *testing.T) {
	var created atomic.Int32
	fam := counterFamily(&created)

	fam.Get("c")
	fam.Get("a")
	fam.Get("b")
	fam.Get("a")

	assert.Equal(t, []string{"c", "a", "b"}, fam.Keys())
}

func TestFamily_KeyEqual(t *testing.T) {
	fam := NewFamily(func(ids []int) *Container[int] {
		return New(Value(len(ids)))
	}, WithKeyEqual[[]int, int](func(a, b []int) bool {
		return slices.Equal(a, b)
	}))

	a := fam.Get([]int{1, 2})
	assert.Same(t, a, fam.Get([]int{1, 2}))
	assert.NotSame(t, a, fam.Get([]int{2, 1}))
	assert.Equal(t, 2, fam.Len())

	assert.True(t, fam.Delete([]int{1, 2}))
	assert.Equal(t, 1, fam.Len())
}

func TestFamily_NonComparableKeysUseIdentity(t *testing.T) {
	fam := NewFamily(func(m map[string]int) *Container[int] {
		return New(Value(m["n"]))
	})

	key := map[string]int{"n": 1}
	a := fam.Get(key)
	assert.Same(t, a, fam.Get(key))
	assert.NotSame(t, a, fam.Get(map[string]int{"n": 1}))
}

func TestFamily_ConcurrentGet(t *testing.T) {
	var created atomic.Int32
	fam := counterFamily(&created)

	var wg sync.WaitGroup
	members := make([]*Container[int], 16)
	for i := range members {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			members[i] = fam.Get("shared")
		}(i)
	}
	wg.Wait()

	for _, m := range members {
		assert.Same(t, members[0], m)
	}
	assert.Equal(t, 1, fam.Len())
	assert.NotEqual(t, PhaseDisposed, members[0].Phase())
}

type region string

func (r region) String() string { return "region:" + string(r) }

func TestMemberKey(t *testing.T) {
	assert.Equal(t, "plain", MemberKey("plain"))
	assert.Equal(t, "region:eu", MemberKey(region("eu")))
	assert.Equal(t, "42", MemberKey(42))
	assert.Equal(t, `[1,2]`, MemberKey([]int{1, 2}))
	assert.Equal(t, `{"id":3,"email":""}`, MemberKey(account{ID: 3}))
}
