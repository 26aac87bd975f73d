package cellz

import (
	"fmt"
	"sort"
	"sync"
)

// Sources names the containers a linked container is computed from.
type Sources map[string]Observable

// Values holds the current data of each source, by name.
type Values map[string]any

// ValueOf returns the value of the source called name as S.
func ValueOf[S any](vals Values, name string) (S, error) {
	var zero S
	v, ok := vals[name]
	if !ok {
		return zero, fmt.Errorf("source %q: %w", name, ErrNotFound)
	}
	if v == nil {
		return zero, nil
	}
	s, ok := v.(S)
	if !ok {
		return zero, fmt.Errorf("source %q: %w: %T", name, ErrTypeMismatch, v)
	}
	return s, nil
}

type linkConfig[T any] struct {
	mode Mode
	opts []Option[T]
}

// LinkOption configures Link and Derive.
type LinkOption[T any] func(*linkConfig[T])

// WithMode sets the concurrency mode used when a source change triggers a
// recomputation.
func WithMode[T any](mode Mode) LinkOption[T] {
	return func(c *linkConfig[T]) {
		c.mode = mode
	}
}

// LinkWith passes container options through to the linked container.
func LinkWith[T any](opts ...Option[T]) LinkOption[T] {
	return func(c *linkConfig[T]) {
		c.opts = append(c.opts, opts...)
	}
}

// Link creates a container computed from sources by selector. It
// recomputes whenever a source changes:
//
//   - if every source holds an error, it fails with the first one, taking
//     sources in sorted name order
//   - otherwise, if any source is loading, it is loading too
//   - otherwise selector runs; a result shallow-equal to the previous value
//     keeps the previous reference
//
// The first computation is lazy. Disposing the container unsubscribes it
// from every source.
//
// Example:
//
//	total := cellz.Link(cellz.Sources{"items": items, "tax": tax},
//	    func(v cellz.Values, _ float64, _ *cellz.UpdateContext[float64]) (float64, error) {
//	        ...
//	    })
func Link[T any](sources Sources, selector func(vals Values, prev T, uc *UpdateContext[T]) (T, error), opts ...LinkOption[T]) *Container[T] {
	var cfg linkConfig[T]
	for _, opt := range opts {
		opt(&cfg)
	}

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	recompute := ReduceWith(func(prev T, _ *UpdateContext[T]) (Update[T], error) {
		vals := make(Values, len(names))
		var firstErr error
		allFailed := len(names) > 0
		loading := false
		for _, name := range names {
			s := sources[name].Snapshot()
			vals[name] = s.Data
			if s.Err == nil {
				allFailed = false
			} else if firstErr == nil {
				firstErr = s.Err
			}
			if s.Loading {
				loading = true
			}
		}
		switch {
		case allFailed:
			return Fail[T](firstErr), nil
		case loading:
			return Pending(Never[T]()), nil
		}
		return Reduce(func(prev T, uc *UpdateContext[T]) (T, error) {
			next, err := selector(vals, prev, uc)
			if err != nil {
				return prev, err
			}
			if ShallowEqual(prev, next) {
				return prev, nil
			}
			return next, nil
		}), nil
	})

	c := New(recompute, cfg.opts...)

	stops := make([]func(), 0, len(names))
	for _, name := range names {
		stops = append(stops, sources[name].Watch(func() {
			c.Set(recompute, cfg.mode)
		}))
	}
	var once sync.Once
	c.onDispose(func() {
		once.Do(func() {
			for _, stop := range stops {
				stop()
			}
		})
	})
	return c
}

// Derive is Link with a single source.
func Derive[S, T any](src *Container[S], selector func(v S, prev T, uc *UpdateContext[T]) (T, error), opts ...LinkOption[T]) *Container[T] {
	name := src.Name()
	return Link(Sources{name: src}, func(vals Values, prev T, uc *UpdateContext[T]) (T, error) {
		v, err := ValueOf[S](vals, name)
		if err != nil {
			return prev, err
		}
		return selector(v, prev, uc)
	}, opts...)
}
