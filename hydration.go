package cellz

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/zoobzio/capitan"
)

// Hook connects a container to a hydration slot. It is called once, at
// construction, with the new container, and reports whether the slot was
// pre-seeded and with what value.
type Hook func(owner Observable) (seeded bool, value any)

// Member is one family member of a dehydrated entry.
type Member struct {
	Key   string
	Value any
}

// Entry is one slot of a Snapshot. It carries either Data or Members,
// never both.
type Entry struct {
	Key     string
	Data    any
	HasData bool
	Members []Member
}

// Snapshot is a dehydrated collection of container values.
type Snapshot []Entry

// Hydration is a keyed table of container snapshots. Containers attach to
// slots through Of and OfMember; Dehydrate captures their current values so
// a later Hydrate can seed new containers with them.
type Hydration struct {
	mu        sync.Mutex
	slots     map[string]*slot
	order     []string
	cache     Snapshot
	cached    bool
	listeners Emitter[struct{}]
}

type slot struct {
	data    any
	hasData bool
	owner   Observable

	members map[string]*slot
	order   []string
}

// Hydrate builds a Hydration pre-seeded from snapshot, which may be nil.
//
// Example:
//
//	h := cellz.Hydrate(snapshot)
//	user := cellz.New(cellz.Async(fetchUser), cellz.WithHydration[User](h.Of("user")))
func Hydrate(snapshot Snapshot) *Hydration {
	h := &Hydration{slots: make(map[string]*slot)}
	for _, e := range snapshot {
		if e.HasData {
			h.slot(e.Key).seed(e.Data)
			continue
		}
		parent := h.slot(e.Key)
		for _, m := range e.Members {
			parent.member(m.Key).seed(m.Value)
		}
	}
	return h
}

// Of returns the hook for the slot at key.
func (h *Hydration) Of(key string) Hook {
	return func(owner Observable) (bool, any) {
		h.mu.Lock()
		s := h.slot(key)
		h.mu.Unlock()
		return h.attach(s, owner, key)
	}
}

// OfMember returns the hook for member of the family slot at key.
func (h *Hydration) OfMember(key, member string) Hook {
	return func(owner Observable) (bool, any) {
		h.mu.Lock()
		s := h.slot(key).member(member)
		h.mu.Unlock()
		return h.attach(s, owner, key+"/"+member)
	}
}

// DataOf pre-seeds the slot at key. It has no effect once a container owns
// the slot.
func (h *Hydration) DataOf(key string, value any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.slot(key)
	if s.owner == nil {
		s.seed(value)
		h.cached = false
	}
}

// DataOfMember pre-seeds member of the family slot at key. It has no effect
// once a container owns the slot.
func (h *Hydration) DataOfMember(key, member string, value any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.slot(key).member(member)
	if s.owner == nil {
		s.seed(value)
		h.cached = false
	}
}

// Dehydrate returns one entry per slot, in the order the slots were first
// seen. Owned slots report their container's current value; unowned slots
// report the value they were seeded with or last held. The result is
// cached: it is the same Snapshot until a slot changes.
func (h *Hydration) Dehydrate() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cached {
		return h.cache
	}

	snap := Snapshot{}
	for _, key := range h.order {
		s := h.slots[key]
		if v, ok := s.value(); ok {
			snap = append(snap, Entry{Key: key, Data: v, HasData: true})
			continue
		}
		var members []Member
		for _, mk := range s.order {
			if v, ok := s.members[mk].value(); ok {
				members = append(members, Member{Key: mk, Value: v})
			}
		}
		if len(members) > 0 {
			snap = append(snap, Entry{Key: key, Members: members})
		}
	}
	h.cache = snap
	h.cached = true
	return snap
}

// OnDehydrate registers fn to be called whenever an attached container
// changes. Call Dehydrate from fn to obtain the new snapshot.
func (h *Hydration) OnDehydrate(fn func()) (unsubscribe func()) {
	return h.listeners.Add(func(struct{}) { fn() })
}

// Encode dehydrates and marshals the snapshot with codec.
func (h *Hydration) Encode(codec Codec) ([]byte, error) {
	data, err := codec.Marshal(h.Dehydrate())
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot unmarshals a snapshot produced by Encode.
func DecodeSnapshot(codec Codec, data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := codec.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// slot returns the slot at key, creating it. Callers hold h.mu.
func (h *Hydration) slot(key string) *slot {
	if s, ok := h.slots[key]; ok {
		return s
	}
	s := &slot{}
	h.slots[key] = s
	h.order = append(h.order, key)
	return s
}

func (s *slot) member(key string) *slot {
	if s.members == nil {
		s.members = make(map[string]*slot)
	}
	if m, ok := s.members[key]; ok {
		return m
	}
	m := &slot{}
	s.members[key] = m
	s.order = append(s.order, key)
	return m
}

// value is what the slot dehydrates to. Callers hold h.mu.
func (s *slot) value() (any, bool) {
	if s.owner != nil {
		return s.owner.PeekAny(), true
	}
	return s.data, s.hasData
}

func (s *slot) seed(v any) {
	s.data = v
	s.hasData = true
}

func (h *Hydration) attach(s *slot, owner Observable, label string) (bool, any) {
	h.mu.Lock()
	s.owner = owner
	seeded, value := s.hasData, s.data
	s.data, s.hasData = nil, false
	h.cached = false
	h.cache = nil
	h.mu.Unlock()

	owner.Watch(h.invalidate)
	if d, ok := owner.(disposer); ok {
		d.onDispose(func() { h.release(s, owner) })
	}

	capitan.Emit(context.Background(), HydrationAttached,
		KeyContainer.Field(owner.Name()),
		KeyKey.Field(label),
	)
	return seeded, value
}

type disposer interface {
	onDispose(fn func())
}

// release detaches owner from s and keeps its last value as the slot's
// seed, so the value survives in later snapshots and hydrates the next
// owner.
func (h *Hydration) release(s *slot, owner Observable) {
	last := owner.PeekAny()
	h.mu.Lock()
	if s.owner != owner {
		h.mu.Unlock()
		return
	}
	s.owner = nil
	s.seed(last)
	h.mu.Unlock()
	h.invalidate()
}

func (h *Hydration) invalidate() {
	h.mu.Lock()
	h.cached = false
	h.cache = nil
	h.mu.Unlock()

	capitan.Emit(context.Background(), HydrationInvalidated)
	h.listeners.Emit(struct{}{})
}

// convert turns a hydrated value into T. Values decoded from the wire arrive
// as generic JSON shapes and are converted with a JSON round trip.
func convert[T any](v any) (T, error) {
	if t, ok := v.(T); ok {
		return t, nil
	}
	var out T
	if v == nil {
		return out, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return out, nil
}

type memberTuple = [2]any

// MarshalJSON encodes the entry as [key, {"data": v}] or
// [key, {"members": [[member, v], ...]}].
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.wire())
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var key string
	if err := json.Unmarshal(raw[0], &key); err != nil {
		return fmt.Errorf("entry key: %w", err)
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw[1], &body); err != nil {
		return fmt.Errorf("entry %s: %w", key, err)
	}
	*e = Entry{Key: key}
	if d, ok := body["data"]; ok {
		var v any
		if err := json.Unmarshal(d, &v); err != nil {
			return fmt.Errorf("entry %s: %w", key, err)
		}
		e.Data, e.HasData = v, true
		return nil
	}
	var members [][2]any
	if m, ok := body["members"]; ok {
		if err := json.Unmarshal(m, &members); err != nil {
			return fmt.Errorf("entry %s: %w", key, err)
		}
	}
	return e.setMembers(members)
}

// MarshalYAML encodes the entry in the same shape as MarshalJSON.
func (e Entry) MarshalYAML() (any, error) {
	return e.wire(), nil
}

// UnmarshalYAML decodes the form written by MarshalYAML.
func (e *Entry) UnmarshalYAML(unmarshal func(any) error) error {
	var raw [2]any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	key, ok := raw[0].(string)
	if !ok {
		return fmt.Errorf("entry key: %w: %T", ErrTypeMismatch, raw[0])
	}
	body, ok := raw[1].(map[string]any)
	if !ok {
		return fmt.Errorf("entry %s: %w: %T", key, ErrTypeMismatch, raw[1])
	}
	*e = Entry{Key: key}
	if d, ok := body["data"]; ok {
		e.Data, e.HasData = d, true
		return nil
	}
	var members [][2]any
	if list, ok := body["members"].([]any); ok {
		for _, item := range list {
			pair, ok := item.([]any)
			if !ok || len(pair) != 2 {
				return fmt.Errorf("entry %s: %w: malformed member", key, ErrTypeMismatch)
			}
			members = append(members, [2]any{pair[0], pair[1]})
		}
	}
	return e.setMembers(members)
}

func (e Entry) wire() [2]any {
	if e.HasData {
		return [2]any{e.Key, map[string]any{"data": e.Data}}
	}
	members := make([]memberTuple, len(e.Members))
	for i, m := range e.Members {
		members[i] = memberTuple{m.Key, m.Value}
	}
	return [2]any{e.Key, map[string]any{"members": members}}
}

func (e *Entry) setMembers(pairs [][2]any) error {
	for _, p := range pairs {
		mk, ok := p[0].(string)
		if !ok {
			return fmt.Errorf("entry %s: %w: member key %T", e.Key, ErrTypeMismatch, p[0])
		}
		e.Members = append(e.Members, Member{Key: mk, Value: p[1]})
	}
	return nil
}
