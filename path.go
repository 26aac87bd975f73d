package cellz

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Segment is one step of a Path: a map key or struct field, or an index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path addresses a value inside a nested structure.
type Path []Segment

// ParsePath parses a dotted path such as "users.3.name" or "users[3].name".
// Numeric parts become index segments; they still match string map keys.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	s = strings.ReplaceAll(s, "[", ".")
	s = strings.ReplaceAll(s, "]", "")

	parts := strings.Split(s, ".")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, s)
		}
		seg := Segment{Key: part}
		if n, err := strconv.Atoi(part); err == nil && n >= 0 {
			seg.Index = n
			seg.IsIndex = true
		}
		p = append(p, seg)
	}
	return p, nil
}

// MustPath is ParsePath that panics on error.
func MustPath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the dotted form of p.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		if seg.IsIndex {
			parts[i] = strconv.Itoa(seg.Index)
		} else {
			parts[i] = seg.Key
		}
	}
	return strings.Join(parts, ".")
}

func (p Path) validate() error {
	for i, seg := range p {
		if !seg.IsIndex && seg.Key == "" {
			return fmt.Errorf("%w: empty key at segment %d", ErrInvalidPath, i)
		}
		if seg.IsIndex && seg.Index < 0 {
			return fmt.Errorf("%w: negative index at segment %d", ErrInvalidPath, i)
		}
	}
	return nil
}

// PathWrite is one write of MSet. Update, when set, computes the new leaf
// from the old one and takes precedence over Value.
type PathWrite struct {
	Path   Path
	Value  any
	Update func(old any) (any, error)
}

func (w PathWrite) fn() func(any, bool) (any, error) {
	if w.Update != nil {
		return func(old any, _ bool) (any, error) { return w.Update(old) }
	}
	return func(any, bool) (any, error) { return w.Value, nil }
}

// At returns the value at p, or false if p does not resolve.
func (c *Container[T]) At(p Path) (any, bool) {
	return getIn(c.Get(), p)
}

// SetAt writes v at p. Every ancestor on the path is copied; everything off
// the path keeps its reference. Missing intermediate keys are created as
// map[string]any. Traversal failures are recorded on the container; only a
// malformed path is returned.
func (c *Container[T]) SetAt(p Path, v any, mode ...Mode) error {
	return c.MSet([]PathWrite{{Path: p, Value: v}}, mode...)
}

// UpdateAt replaces the value at p with fn of the old one.
func (c *Container[T]) UpdateAt(p Path, fn func(old any) (any, error), mode ...Mode) error {
	return c.MSet([]PathWrite{{Path: p, Update: fn}}, mode...)
}

// MSet applies several path writes as one update, producing at most one
// notification.
func (c *Container[T]) MSet(writes []PathWrite, mode ...Mode) error {
	for _, w := range writes {
		if err := w.Path.validate(); err != nil {
			return err
		}
	}
	c.Set(Reduce(func(prev T, _ *UpdateContext[T]) (T, error) {
		next := prev
		for _, w := range writes {
			var err error
			next, err = setIn(next, w.Path, w.fn())
			if err != nil {
				return prev, fmt.Errorf("set %s: %w", w.Path, err)
			}
		}
		return next, nil
	}), mode...)
	return nil
}

// getIn resolves p inside root.
func getIn(root any, p Path) (any, bool) {
	rv := reflect.ValueOf(root)
	for _, seg := range p {
		rv = indirect(rv)
		if !rv.IsValid() {
			return nil, false
		}
		var ok bool
		rv, ok = child(rv, seg)
		if !ok {
			return nil, false
		}
	}
	if !rv.IsValid() {
		return nil, false
	}
	return rv.Interface(), true
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

func child(rv reflect.Value, seg Segment) (reflect.Value, bool) {
	switch rv.Kind() {
	case reflect.Map:
		k, ok := mapKey(rv.Type().Key(), seg)
		if !ok {
			return reflect.Value{}, false
		}
		v := rv.MapIndex(k)
		return v, v.IsValid()
	case reflect.Slice, reflect.Array:
		if !seg.IsIndex || seg.Index >= rv.Len() {
			return reflect.Value{}, false
		}
		return rv.Index(seg.Index), true
	case reflect.Struct:
		i, ok := fieldIndex(rv.Type(), seg.Key)
		if !ok {
			return reflect.Value{}, false
		}
		return rv.Field(i), true
	default:
		return reflect.Value{}, false
	}
}

func mapKey(t reflect.Type, seg Segment) (reflect.Value, bool) {
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(seg.Key).Convert(t), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !seg.IsIndex {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(int64(seg.Index)).Convert(t), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if !seg.IsIndex {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(uint64(seg.Index)).Convert(t), true
	case reflect.Interface:
		if seg.IsIndex {
			return reflect.ValueOf(seg.Index), true
		}
		return reflect.ValueOf(seg.Key), true
	default:
		return reflect.Value{}, false
	}
}

// fieldIndex finds an exported field by name or by json tag.
func fieldIndex(t reflect.Type, key string) (int, bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Name == key {
			return i, true
		}
		if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag == key {
			return i, true
		}
	}
	return 0, false
}

// setIn returns a copy of root with the leaf at p replaced by fn(old).
// Only the ancestors of the leaf are copied.
func setIn[T any](root T, p Path, fn func(old any, ok bool) (any, error)) (T, error) {
	rv := reflect.ValueOf(&root).Elem()
	out, err := assoc(rv, rv.Type(), p, fn)
	if err != nil {
		return root, err
	}
	next, _ := out.Interface().(T)
	return next, nil
}

func assoc(cur reflect.Value, t reflect.Type, p Path, fn func(any, bool) (any, error)) (reflect.Value, error) {
	if len(p) == 0 {
		var old any
		ok := cur.IsValid()
		if ok {
			old = cur.Interface()
		}
		nv, err := fn(old, ok)
		if err != nil {
			return reflect.Value{}, err
		}
		return assignable(nv, t)
	}

	seg := p[0]
	switch t.Kind() {
	case reflect.Interface:
		inner := indirectInterface(cur)
		if !inner.IsValid() {
			if seg.IsIndex {
				return reflect.Value{}, fmt.Errorf("%w: cannot create index %d", ErrInvalidPath, seg.Index)
			}
			inner = reflect.ValueOf(map[string]any(nil))
		}
		next, err := assoc(inner, inner.Type(), p, fn)
		if err != nil {
			return reflect.Value{}, err
		}
		w := reflect.New(t).Elem()
		w.Set(next)
		return w, nil

	case reflect.Pointer:
		if t.Elem().Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("%w: cannot descend into %s", ErrInvalidPath, t)
		}
		var elem reflect.Value
		if cur.IsValid() && !cur.IsNil() {
			elem = cur.Elem()
		}
		next, err := assoc(elem, t.Elem(), p, fn)
		if err != nil {
			return reflect.Value{}, err
		}
		np := reflect.New(t.Elem())
		np.Elem().Set(next)
		return np, nil

	case reflect.Map:
		k, ok := mapKey(t.Key(), seg)
		if !ok {
			return reflect.Value{}, fmt.Errorf("%w: key %q does not fit %s", ErrInvalidPath, seg.Key, t)
		}
		nm := reflect.MakeMap(t)
		var old reflect.Value
		if cur.IsValid() && !cur.IsNil() {
			iter := cur.MapRange()
			for iter.Next() {
				nm.SetMapIndex(iter.Key(), iter.Value())
			}
			old = cur.MapIndex(k)
		}
		next, err := assoc(old, t.Elem(), p[1:], fn)
		if err != nil {
			return reflect.Value{}, err
		}
		nm.SetMapIndex(k, next)
		return nm, nil

	case reflect.Slice:
		n := 0
		if cur.IsValid() {
			n = cur.Len()
		}
		if !seg.IsIndex || seg.Index > n {
			return reflect.Value{}, fmt.Errorf("%w: index %s out of range [0,%d]", ErrInvalidPath, seg.Key, n)
		}
		size := n
		if seg.Index == n {
			size++
		}
		ns := reflect.MakeSlice(t, size, size)
		var old reflect.Value
		if n > 0 {
			reflect.Copy(ns, cur)
		}
		if seg.Index < n {
			old = cur.Index(seg.Index)
		}
		next, err := assoc(old, t.Elem(), p[1:], fn)
		if err != nil {
			return reflect.Value{}, err
		}
		ns.Index(seg.Index).Set(next)
		return ns, nil

	case reflect.Array:
		if !seg.IsIndex || seg.Index >= t.Len() {
			return reflect.Value{}, fmt.Errorf("%w: index %s out of range [0,%d)", ErrInvalidPath, seg.Key, t.Len())
		}
		na := reflect.New(t).Elem()
		if cur.IsValid() {
			na.Set(cur)
		}
		next, err := assoc(na.Index(seg.Index), t.Elem(), p[1:], fn)
		if err != nil {
			return reflect.Value{}, err
		}
		na.Index(seg.Index).Set(next)
		return na, nil

	case reflect.Struct:
		i, ok := fieldIndex(t, seg.Key)
		if !ok {
			return reflect.Value{}, fmt.Errorf("%w: no field %q in %s", ErrInvalidPath, seg.Key, t)
		}
		ns := reflect.New(t).Elem()
		if cur.IsValid() {
			ns.Set(cur)
		}
		next, err := assoc(ns.Field(i), t.Field(i).Type, p[1:], fn)
		if err != nil {
			return reflect.Value{}, err
		}
		ns.Field(i).Set(next)
		return ns, nil

	default:
		return reflect.Value{}, fmt.Errorf("%w: cannot descend into %s", ErrInvalidPath, t)
	}
}

func indirectInterface(rv reflect.Value) reflect.Value {
	for rv.IsValid() && rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

// assignable converts v to a value of type t.
func assignable(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(t):
		w := reflect.New(t).Elem()
		w.Set(rv)
		return w, nil
	case rv.Type().ConvertibleTo(t) && rv.Kind() == t.Kind():
		return rv.Convert(t), nil
	default:
		return reflect.Value{}, fmt.Errorf("%w: %s is not assignable to %s", ErrTypeMismatch, rv.Type(), t)
	}
}
