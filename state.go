package cellz

// State is a point-in-time view of a Container.
// Loading and Err are never set together.
type State[T any] struct {
	Data    T
	Loading bool
	Err     error
}

// Settled reports whether the state holds a definite value or error.
func (s State[T]) Settled() bool {
	return !s.Loading
}

// Phase represents the lifecycle position of a Container.
type Phase int32

const (
	// PhaseUninitialized indicates the lazy initializer has not run yet.
	PhaseUninitialized Phase = iota

	// PhaseLoading indicates an asynchronous update is in flight.
	PhaseLoading

	// PhaseSettled indicates the container holds a value and no error.
	PhaseSettled

	// PhaseErrored indicates the last update failed. The previous value,
	// if any, is still held.
	PhaseErrored

	// PhaseDisposed is terminal. The container no longer notifies or refreshes.
	PhaseDisposed
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseSettled:
		return "settled"
	case PhaseErrored:
		return "errored"
	case PhaseDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}
