package cellz

import (
	"context"
	"sync"
)

// UpdateContext is handed to reducers. It carries the cancellation signal of
// the update attempt and a copy helper for mutating values safely.
type UpdateContext[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	data   func() T
}

func newUpdateContext[T any](parent context.Context, data func() T) *UpdateContext[T] {
	ctx, cancel := context.WithCancelCause(parent)
	return &UpdateContext[T]{
		ctx:    ctx,
		cancel: func() { cancel(ErrCanceled) },
		data:   data,
	}
}

// Context returns a context canceled when this update is superseded.
func (u *UpdateContext[T]) Context() context.Context {
	return u.ctx
}

// Cancel cancels the update. Safe to call more than once.
func (u *UpdateContext[T]) Cancel() {
	u.once.Do(u.cancel)
}

// Canceled reports whether the update was canceled.
func (u *UpdateContext[T]) Canceled() bool {
	return u.ctx.Err() != nil
}

// Clone returns a shallow copy of the container's current data with the same
// type: a new map for a map, a new slice for a slice, a new pointee for a
// pointer to struct.
func (u *UpdateContext[T]) Clone() T {
	return shallowClone(u.data())
}
