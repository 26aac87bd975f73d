package cellz

import "context"

type updateKind uint8

const (
	kindValue updateKind = iota
	kindReducer
	kindAsync
	kindPending
	kindFail
)

func (k updateKind) String() string {
	switch k {
	case kindValue:
		return "value"
	case kindReducer:
		return "reducer"
	case kindAsync:
		return "async"
	case kindPending:
		return "pending"
	case kindFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Update describes a write to a Container. It is one of:
//
//   - Value: a plain replacement value
//   - Reduce / ReduceWith: a function of the current value
//   - Async / Pending: a value that arrives later
//   - Fail: an error to record
//
// The zero Update is Value of the zero T.
type Update[T any] struct {
	kind    updateKind
	value   T
	reducer func(prev T, uc *UpdateContext[T]) (Update[T], error)
	async   func(ctx context.Context) (T, error)
	future  *Future[T]
	err     error
}

// Value replaces the current value with v.
func Value[T any](v T) Update[T] {
	return Update[T]{kind: kindValue, value: v}
}

// Reduce computes the next value from the current one. A returned error or a
// panic is recorded on the container.
func Reduce[T any](fn func(prev T, uc *UpdateContext[T]) (T, error)) Update[T] {
	return Update[T]{kind: kindReducer, reducer: func(prev T, uc *UpdateContext[T]) (Update[T], error) {
		next, err := fn(prev, uc)
		if err != nil {
			return Update[T]{}, err
		}
		return Value(next), nil
	}}
}

// ReduceWith is Reduce for reducers that produce another Update, typically
// Async or Pending.
func ReduceWith[T any](fn func(prev T, uc *UpdateContext[T]) (Update[T], error)) Update[T] {
	return Update[T]{kind: kindReducer, reducer: fn}
}

// Async runs fn on its own goroutine. ctx is canceled when the update is
// superseded or the container is disposed.
func Async[T any](fn func(ctx context.Context) (T, error)) Update[T] {
	return Update[T]{kind: kindAsync, async: fn}
}

// Pending settles the container with the result of f.
func Pending[T any](f *Future[T]) Update[T] {
	return Update[T]{kind: kindPending, future: f}
}

// Fail records err on the container without touching its value.
func Fail[T any](err error) Update[T] {
	return Update[T]{kind: kindFail, err: err}
}

// IsValue reports whether u is a plain value, and returns it.
func (u Update[T]) IsValue() (T, bool) {
	return u.value, u.kind == kindValue
}
