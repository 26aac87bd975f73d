package cellz

import "reflect"

// Same reports whether a and b are the same value under reference semantics:
// comparable values compare with ==, maps, slices, pointers, channels and
// functions compare by identity. Non-nil slices with no capacity share one
// runtime allocation, so they never compare Same. Non-comparable structs,
// which have no identity, fall back to reflect.DeepEqual.
func Same[T any](a, b T) bool {
	return same(any(a), any(b))
}

func same(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() && vb.IsNil()
		}
		if va.Cap() == 0 || vb.Cap() == 0 {
			return false
		}
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len() && va.Cap() == vb.Cap()
	}
	if va.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// ShallowEqual compares a and b one level deep: maps key by key, slices and
// arrays element by element, structs field by field, each member compared
// with Same.
func ShallowEqual[T any](a, b T) bool {
	return shallowEqual(any(a), any(b))
}

func shallowEqual(a, b any) bool {
	if same(a, b) {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map:
		if va.IsNil() != vb.IsNil() || va.Len() != vb.Len() {
			return false
		}
		iter := va.MapRange()
		for iter.Next() {
			other := vb.MapIndex(iter.Key())
			if !other.IsValid() || !sameValue(iter.Value(), other) {
				return false
			}
		}
		return true
	case reflect.Slice, reflect.Array:
		if va.Kind() == reflect.Slice && va.IsNil() != vb.IsNil() {
			return false
		}
		if va.Len() != vb.Len() {
			return false
		}
		for i := 0; i < va.Len(); i++ {
			if !sameValue(va.Index(i), vb.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < va.NumField(); i++ {
			if !va.Type().Field(i).IsExported() {
				return reflect.DeepEqual(a, b)
			}
		}
		for i := 0; i < va.NumField(); i++ {
			if !sameValue(va.Field(i), vb.Field(i)) {
				return false
			}
		}
		return true
	}
	return false
}

func sameValue(a, b reflect.Value) bool {
	if !a.CanInterface() || !b.CanInterface() {
		return false
	}
	return same(a.Interface(), b.Interface())
}

// shallowClone returns a copy of v that shares its members with v.
// Maps and slices get new backing storage; pointers to structs get a new
// pointee. Other values are returned as is, since they are already copies.
func shallowClone[T any](v T) T {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return v
	}
	out := cloneValue(rv)
	if !out.IsValid() {
		return v
	}
	return out.Interface().(T)
}

func cloneValue(rv reflect.Value) reflect.Value {
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return rv
		}
		m := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m.SetMapIndex(iter.Key(), iter.Value())
		}
		return m
	case reflect.Slice:
		if rv.IsNil() {
			return rv
		}
		s := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(s, rv)
		return s
	case reflect.Pointer:
		if rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return rv
		}
		p := reflect.New(rv.Elem().Type())
		p.Elem().Set(rv.Elem())
		return p
	case reflect.Interface:
		if rv.IsNil() {
			return rv
		}
		return cloneValue(rv.Elem())
	}
	return rv
}
