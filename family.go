package cellz

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/zoobzio/capitan"
)

type familyEntry[K any, T any] struct {
	key    K
	member *Container[T]
}

// Family is a keyed cache of containers built by a factory.
//
// Keys that are comparable are looked up by ==. Other keys, or all keys
// when WithKeyEqual is set, are found by a linear scan.
type Family[K any, T any] struct {
	factory   func(K) *Container[T]
	equal     func(a, b K) bool
	hydration *Hydration
	slot      string

	mu      sync.Mutex
	index   map[any]*familyEntry[K, T]
	entries []*familyEntry[K, T]
}

// FamilyOption configures a Family.
type FamilyOption[K any, T any] func(*Family[K, T])

// WithKeyEqual sets the key equality used to find members, for keys such as
// slices or structs that should match by content.
func WithKeyEqual[K any, T any](fn func(a, b K) bool) FamilyOption[K, T] {
	return func(f *Family[K, T]) {
		f.equal = fn
	}
}

// WithFamilyHydration attaches every member to the family slot key of h,
// under the member's key.
func WithFamilyHydration[K any, T any](h *Hydration, key string) FamilyOption[K, T] {
	return func(f *Family[K, T]) {
		f.hydration = h
		f.slot = key
	}
}

// NewFamily creates a Family whose members are built by factory.
//
// Example:
//
//	users := cellz.NewFamily(func(id int) *cellz.Container[User] {
//	    return cellz.New(cellz.Async(func(ctx context.Context) (User, error) {
//	        return fetchUser(ctx, id)
//	    }))
//	})
//	u := users.Get(42)
func NewFamily[K any, T any](factory func(K) *Container[T], opts ...FamilyOption[K, T]) *Family[K, T] {
	f := &Family[K, T]{
		factory: factory,
		index:   make(map[any]*familyEntry[K, T]),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get returns the member for key, creating it on first use. Disposing the
// member removes it from the family.
func (f *Family[K, T]) Get(key K) *Container[T] {
	f.mu.Lock()
	if e := f.lookup(key); e != nil {
		f.mu.Unlock()
		return e.member
	}
	f.mu.Unlock()

	member := f.factory(key)

	f.mu.Lock()
	if e := f.lookup(key); e != nil {
		f.mu.Unlock()
		member.Dispose()
		return e.member
	}
	e := &familyEntry[K, T]{key: key, member: member}
	f.entries = append(f.entries, e)
	if f.fast(key) {
		f.index[key] = e
	}
	f.mu.Unlock()

	label := MemberKey(key)
	if f.hydration != nil {
		member.attach(f.hydration.OfMember(f.slot, label))
	}
	member.onDispose(func() { f.evict(e) })

	capitan.Emit(context.Background(), FamilyMemberCreated,
		KeyContainer.Field(member.Name()),
		KeyKey.Field(label),
	)
	return member
}

// Delete disposes the member for key, which also evicts it. It reports
// whether a member existed.
func (f *Family[K, T]) Delete(key K) bool {
	f.mu.Lock()
	e := f.lookup(key)
	f.mu.Unlock()
	if e == nil {
		return false
	}
	e.member.Dispose()
	return true
}

// Clear drops every member without disposing it. Holders of a member keep
// a working container; the family simply forgets it. Use Delete for a
// graceful teardown.
func (f *Family[K, T]) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = make(map[any]*familyEntry[K, T])
	f.entries = nil
}

// Len returns the number of members.
func (f *Family[K, T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Keys returns the member keys in creation order.
func (f *Family[K, T]) Keys() []K {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]K, len(f.entries))
	for i, e := range f.entries {
		keys[i] = e.key
	}
	return keys
}

func (f *Family[K, T]) fast(key K) bool {
	return f.equal == nil && reflect.ValueOf(&key).Elem().Comparable()
}

// lookup finds the entry for key. Callers hold f.mu.
func (f *Family[K, T]) lookup(key K) *familyEntry[K, T] {
	if f.fast(key) {
		return f.index[key]
	}
	eq := f.equal
	if eq == nil {
		eq = Same[K]
	}
	for _, e := range f.entries {
		if eq(e.key, key) {
			return e
		}
	}
	return nil
}

func (f *Family[K, T]) evict(e *familyEntry[K, T]) {
	f.mu.Lock()
	found := false
	for i, existing := range f.entries {
		if existing == e {
			f.entries = append(f.entries[:i:i], f.entries[i+1:]...)
			found = true
			break
		}
	}
	if found && f.fast(e.key) && f.index[e.key] == e {
		delete(f.index, e.key)
	}
	f.mu.Unlock()

	if found {
		capitan.Emit(context.Background(), FamilyMemberEvicted,
			KeyContainer.Field(e.member.Name()),
			KeyKey.Field(MemberKey(e.key)),
		)
	}
}

// MemberKey returns the hydration member key for a family key: strings as
// they are, Stringers by String, anything else as JSON.
func MemberKey(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case fmt.Stringer:
		return k.String()
	}
	if data, err := json.Marshal(key); err == nil {
		return string(data)
	}
	return fmt.Sprint(key)
}
