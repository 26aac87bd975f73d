package cellz

import (
	"maps"
	"slices"
)

// Merge shallow-merges partial into the map held by c. The write is skipped
// entirely when every key in partial already holds the same value, so the
// map keeps its reference.
func Merge[K comparable, V any](c *Container[map[K]V], partial map[K]V, mode ...Mode) {
	if len(partial) == 0 {
		return
	}
	c.Set(Reduce(func(prev map[K]V, _ *UpdateContext[map[K]V]) (map[K]V, error) {
		if !differs(prev, partial) {
			return prev, nil
		}
		next := make(map[K]V, len(prev)+len(partial))
		for k, v := range prev {
			next[k] = v
		}
		for k, v := range partial {
			next[k] = v
		}
		return next, nil
	}), mode...)
}

func differs[K comparable, V any](prev, partial map[K]V) bool {
	for k, v := range partial {
		old, ok := prev[k]
		if !ok || !Same(old, v) {
			return true
		}
	}
	return false
}

// MergeFields writes several top-level fields of the value held by c as one
// update. Keys name exported struct fields or their json tags, or map keys
// when c holds a map, exactly as SetAt resolves them. Like MSet the write is
// all or nothing: a field that does not resolve or does not accept its value
// is recorded on the container and nothing changes.
func (c *Container[T]) MergeFields(fields map[string]any, mode ...Mode) error {
	if len(fields) == 0 {
		return nil
	}
	writes := make([]PathWrite, 0, len(fields))
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		writes = append(writes, PathWrite{Path: Path{{Key: name}}, Value: fields[name]})
	}
	return c.MSet(writes, mode...)
}
