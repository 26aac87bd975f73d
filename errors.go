package cellz

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCanceled is returned by futures whose update was superseded.
	// Cancellation-class errors are never stored on a container.
	ErrCanceled = errors.New("cellz: update canceled")

	// ErrDisposed is returned when an operation targets a disposed container.
	ErrDisposed = errors.New("cellz: container disposed")

	// ErrInvalidPath is returned when a path cannot be parsed or traversed.
	ErrInvalidPath = errors.New("cellz: invalid path")

	// ErrUnknownAction is returned by Dispatch for an unregistered action name.
	ErrUnknownAction = errors.New("cellz: unknown action")

	// ErrNotFound is returned when a named source value does not exist.
	ErrNotFound = errors.New("cellz: not found")

	// ErrTypeMismatch is returned when a value cannot be used as the
	// requested type.
	ErrTypeMismatch = errors.New("cellz: type mismatch")
)

// PanicError wraps a value recovered from a panicking reducer.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("cellz: reducer panicked: %v", e.Value)
}

// IsCanceled reports whether err belongs to the cancellation class.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}
