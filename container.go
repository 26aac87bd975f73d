package cellz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// Observable is the type-erased view of a Container used by Link, Family and
// Hydration.
type Observable interface {
	// Name returns the container name.
	Name() string

	// Snapshot returns the current state, running the lazy initializer first.
	Snapshot() State[any]

	// PeekAny returns the current value without running the initializer.
	PeekAny() any

	// Watch calls fn after every notification until stop is called.
	Watch(fn func()) (stop func())
}

// Container is a reactive cell holding a value together with loading and
// error status. Writes go through Set; observers subscribe with Subscribe.
//
// Every write bumps a version token. An asynchronous settlement is applied
// only if no newer write happened since it started, so the most recent Set
// always wins regardless of the order in which futures settle.
type Container[T any] struct {
	name     string
	ctx      context.Context
	clock    clockz.Clock
	compare  func(a, b T) bool
	props    map[string]any
	actions  map[string]Action[T]
	metrics  MetricsProvider
	batcher  *Batcher
	errors   *ring[error]
	schedule Scheduler
	initial  Update[T]
	modes    *ModeContext
	emitter  Emitter[State[T]]

	mu          sync.Mutex
	state       State[T]
	initialized bool
	refreshing  bool
	disposed    bool
	version     uint64
	uc          *UpdateContext[T]
	ctrl        Controller
	ctrlSeq     uint64
	waiter      *Future[T]
	resolve     func(T)
	reject      func(error)
	stopRefresh func()
	cleanups    []func()
}

// New creates a Container.
//
// A Value initial is applied immediately. Any other initial update (Reduce,
// Async, Pending) is a lazy initializer: it does not run until the value is
// first observed through Get, State, Wait, At, Loading or Err. Reset and
// auto-refresh re-run it.
//
// Example:
//
//	todos := cellz.New(
//	    cellz.Async(fetchTodos),
//	    cellz.WithName[[]Todo]("todos"),
//	    cellz.WithAutoRefresh[[]Todo](time.Minute),
//	)
//	todos.Subscribe(func(s cellz.State[[]Todo]) { render(s) })
func New[T any](initial Update[T], opts ...Option[T]) *Container[T] {
	cfg := config[T]{
		ctx:     context.Background(),
		clock:   clockz.RealClock,
		compare: Same[T],
		batcher: DefaultBatcher,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.name == "" {
		cfg.name = uuid.NewString()
	}
	if cfg.refreshScheduler == nil && cfg.refreshEvery > 0 {
		cfg.refreshScheduler = Every(cfg.clock, cfg.refreshEvery)
	}

	c := &Container[T]{
		name:     cfg.name,
		ctx:      cfg.ctx,
		clock:    cfg.clock,
		compare:  cfg.compare,
		props:    cfg.props,
		actions:  cfg.actions,
		metrics:  cfg.metrics,
		batcher:  cfg.batcher,
		errors:   newRing[error](cfg.errorHistory),
		schedule: cfg.refreshScheduler,
		initial:  initial,
	}
	c.modes = newModeContext(c.ctx, c.clock, c.name, c.metrics)

	if v, ok := initial.IsValue(); ok {
		c.state.Data = v
		c.initialized = true
	}

	capitan.Emit(c.ctx, ContainerCreated,
		KeyContainer.Field(c.name),
	)
	if c.metrics != nil {
		c.metrics.OnCreate(c.name)
	}

	if cfg.hydrate != nil {
		c.attach(cfg.hydrate)
	}
	if c.initialized {
		c.startRefresh()
	}
	return c
}

// Name returns the container name.
func (c *Container[T]) Name() string {
	return c.name
}

// Get returns the current value, running the lazy initializer first.
func (c *Container[T]) Get() T {
	c.ensureInit()
	return c.Peek()
}

// Peek returns the current value without running the initializer.
func (c *Container[T]) Peek() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Data
}

// State returns the current state, running the lazy initializer first.
func (c *Container[T]) State() State[T] {
	c.ensureInit()
	return c.snapshot()
}

// Loading reports whether an asynchronous update is in flight.
func (c *Container[T]) Loading() bool {
	return c.State().Loading
}

// Err returns the error recorded by the last failed update, if any.
func (c *Container[T]) Err() error {
	return c.State().Err
}

// Phase returns the lifecycle phase without running the initializer.
func (c *Container[T]) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.disposed:
		return PhaseDisposed
	case !c.initialized:
		return PhaseUninitialized
	case c.state.Loading:
		return PhaseLoading
	case c.state.Err != nil:
		return PhaseErrored
	default:
		return PhaseSettled
	}
}

// ErrorHistory returns recently recorded errors, oldest first.
// Returns nil unless WithErrorHistory was set.
func (c *Container[T]) ErrorHistory() []error {
	return c.errors.all()
}

// Prop returns a property registered with WithProps.
func (c *Container[T]) Prop(name string) (any, bool) {
	v, ok := c.props[name]
	return v, ok
}

// Dispatch runs the action registered under name with args.
func (c *Container[T]) Dispatch(name string, args ...any) error {
	act, ok := c.actions[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	c.Set(Reduce(func(prev T, uc *UpdateContext[T]) (T, error) {
		return act(prev, uc, args...)
	}))
	return nil
}

// Subscribe registers fn to be called with the new state after every
// change. The returned function unsubscribes.
func (c *Container[T]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	c.mu.Lock()
	disposed := c.disposed
	c.mu.Unlock()
	if disposed {
		return func() {}
	}
	return c.emitter.Add(fn)
}

// Snapshot implements Observable.
func (c *Container[T]) Snapshot() State[any] {
	s := c.State()
	return State[any]{Data: s.Data, Loading: s.Loading, Err: s.Err}
}

// PeekAny implements Observable.
func (c *Container[T]) PeekAny() any {
	return c.Peek()
}

// Watch implements Observable.
func (c *Container[T]) Watch(fn func()) (stop func()) {
	return c.Subscribe(func(State[T]) { fn() })
}

// Set writes u to the container.
//
// Without a mode the update runs now: the previous update context is
// canceled, then the update is dispatched on its kind. With a mode, the
// mode decides whether and when that happens. Errors never propagate to the
// caller; they are recorded on the container and delivered to subscribers.
// Set on a disposed container is a no-op.
func (c *Container[T]) Set(u Update[T], mode ...Mode) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	first := !c.initialized
	c.initialized = true
	prev := c.ctrl
	c.ctrl = nil
	c.ctrlSeq++
	seq := c.ctrlSeq
	c.mu.Unlock()

	if prev != nil {
		prev.Dispose()
	}
	if first {
		c.startRefresh()
	}

	var m Mode
	if len(mode) > 0 {
		m = mode[0]
	}
	if m == nil {
		c.apply(u, nil)
		return
	}

	s := &settlement{}
	ctrl := m(c.modes, func() { c.apply(u, s.settle) })
	s.bind(ctrl)
	if ctrl == nil {
		return
	}

	c.mu.Lock()
	current := c.ctrlSeq == seq && !c.disposed
	if current {
		c.ctrl = ctrl
	}
	c.mu.Unlock()
	if !current {
		ctrl.Dispose()
	}
}

// Reset re-runs the initializer. It does nothing if the container was never
// initialized or is disposed.
func (c *Container[T]) Reset() {
	c.mu.Lock()
	skip := !c.initialized || c.disposed
	c.mu.Unlock()
	if skip {
		return
	}
	c.Set(c.initial)
}

// ClearError clears the recorded error without touching the value.
func (c *Container[T]) ClearError() {
	c.mu.Lock()
	if c.state.Err == nil || c.disposed {
		c.mu.Unlock()
		return
	}
	c.state.Err = nil
	c.mu.Unlock()
	c.notify()
}

// Wait returns a future that settles with the value once the container is
// no longer loading, or with the recorded error. While loading, repeated
// calls return the same future.
func (c *Container[T]) Wait() *Future[T] {
	c.ensureInit()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return Rejected[T](ErrDisposed)
	}
	if !c.state.Loading {
		if c.state.Err != nil {
			return Rejected[T](c.state.Err)
		}
		return Resolved(c.state.Data)
	}
	if c.waiter == nil {
		c.waiter, c.resolve, c.reject = NewPromise[T]()
	}
	return c.waiter
}

// Dispose tears the container down: the in-flight update is canceled,
// auto-refresh stops for good, subscribers are dropped and registered
// cleanups run. Safe to call more than once.
func (c *Container[T]) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	if c.uc != nil {
		c.uc.Cancel()
	}
	ctrl := c.ctrl
	c.ctrl = nil
	stop := c.stopRefresh
	c.stopRefresh = nil
	cleanups := c.cleanups
	c.cleanups = nil
	if c.reject != nil {
		c.reject(ErrDisposed)
		c.waiter, c.resolve, c.reject = nil, nil, nil
	}
	c.mu.Unlock()

	if ctrl != nil {
		ctrl.Dispose()
	}
	if stop != nil {
		stop()
	}
	for _, fn := range cleanups {
		fn()
	}
	c.emitter.Clear()

	capitan.Emit(c.ctx, ContainerDisposed,
		KeyContainer.Field(c.name),
	)
	if c.metrics != nil {
		c.metrics.OnDispose(c.name)
	}
}

// onDispose registers fn to run once on disposal. If the container is
// already disposed fn runs immediately.
func (c *Container[T]) onDispose(fn func()) {
	c.mu.Lock()
	if !c.disposed {
		c.cleanups = append(c.cleanups, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn()
}

// attach connects the container to a hydration slot. A seeded value that
// converts to T replaces the initializer.
func (c *Container[T]) attach(hook Hook) {
	seeded, raw := hook(c)
	if !seeded {
		return
	}
	v, err := convert[T](raw)
	if err != nil {
		capitan.Emit(c.ctx, ContainerFailed,
			KeyContainer.Field(c.name),
			KeyError.Field(err.Error()),
		)
		return
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.state.Data = v
	c.initialized = true
	c.mu.Unlock()
	c.startRefresh()
}

func (c *Container[T]) ensureInit() {
	c.mu.Lock()
	if c.initialized || c.disposed {
		c.mu.Unlock()
		return
	}
	c.initialized = true
	c.mu.Unlock()

	capitan.Emit(c.ctx, ContainerInitialized,
		KeyContainer.Field(c.name),
		KeyUpdate.Field(c.initial.kind.String()),
	)
	c.apply(c.initial, nil)
	c.startRefresh()
}

func (c *Container[T]) startRefresh() {
	if c.schedule == nil {
		return
	}
	c.mu.Lock()
	if c.refreshing || c.disposed {
		c.mu.Unlock()
		return
	}
	c.refreshing = true
	c.mu.Unlock()

	stop := c.schedule(func() {
		c.mu.Lock()
		disposed := c.disposed
		c.mu.Unlock()
		if !disposed {
			c.Set(c.initial)
		}
	})

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		if stop != nil {
			stop()
		}
		return
	}
	c.stopRefresh = stop
	c.mu.Unlock()
}

func (c *Container[T]) snapshot() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// apply performs the real update. settle, if non-nil, is told how the
// update ended.
func (c *Container[T]) apply(u Update[T], settle func(error)) {
	if settle == nil {
		settle = func(error) {}
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		settle(ErrDisposed)
		return
	}
	if c.uc != nil {
		c.uc.Cancel()
	}
	c.version++
	version := c.version
	uc := newUpdateContext(c.ctx, c.Peek)
	c.uc = uc
	prev := c.state.Data
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.OnUpdate(c.name, u.kind.String())
	}
	c.dispatch(u, prev, uc, version, c.clock.Now(), settle)
}

func (c *Container[T]) dispatch(u Update[T], prev T, uc *UpdateContext[T], version uint64, start time.Time, settle func(error)) {
	switch u.kind {
	case kindValue:
		c.commit(version, u.value, start)
		settle(nil)
	case kindFail:
		c.fail(version, u.err)
		settle(u.err)
	case kindReducer:
		next, err := runReducer(u.reducer, prev, uc)
		if err != nil {
			c.fail(version, err)
			settle(err)
			return
		}
		c.dispatch(next, prev, uc, version, start, settle)
	case kindAsync:
		c.await(Go(uc.Context(), u.async), uc, version, start, settle)
	case kindPending:
		c.await(u.future, uc, version, start, settle)
	default:
		panic(fmt.Sprintf("cellz: unknown update kind %d", u.kind))
	}
}

func runReducer[T any](fn func(T, *UpdateContext[T]) (Update[T], error), prev T, uc *UpdateContext[T]) (next Update[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn(prev, uc)
}

func (c *Container[T]) await(f *Future[T], uc *UpdateContext[T], version uint64, start time.Time, settle func(error)) {
	c.mu.Lock()
	if c.version != version || c.disposed {
		c.mu.Unlock()
		settle(ErrCanceled)
		return
	}
	changed := !c.state.Loading || c.state.Err != nil
	c.state.Loading = true
	c.state.Err = nil
	c.mu.Unlock()

	if changed {
		capitan.Emit(c.ctx, ContainerLoading,
			KeyContainer.Field(c.name),
		)
		c.notify()
	}

	go func() {
		select {
		case <-f.Done():
			v, err := f.Result()
			if err != nil {
				c.fail(version, err)
			} else {
				c.commit(version, v, start)
			}
			settle(err)
		case <-uc.Context().Done():
			c.fail(version, ErrCanceled)
			settle(ErrCanceled)
		}
	}()
}

// commit stores v if version is still current.
func (c *Container[T]) commit(version uint64, v T, start time.Time) {
	c.mu.Lock()
	if c.version != version || c.disposed {
		c.mu.Unlock()
		c.discarded()
		return
	}
	changed := c.state.Loading || c.state.Err != nil
	if !c.compare(c.state.Data, v) {
		c.state.Data = v
		changed = true
	}
	c.state.Loading = false
	c.state.Err = nil
	data := c.state.Data
	resolve := c.resolve
	c.waiter, c.resolve, c.reject = nil, nil, nil
	c.mu.Unlock()

	if resolve != nil {
		resolve(data)
	}
	if !changed {
		return
	}
	capitan.Emit(c.ctx, ContainerSettled,
		KeyContainer.Field(c.name),
	)
	if c.metrics != nil {
		c.metrics.OnSettle(c.name, c.clock.Since(start))
	}
	c.notify()
}

// fail records err if version is still current. Cancellation-class errors
// only end the loading state.
func (c *Container[T]) fail(version uint64, err error) {
	c.mu.Lock()
	if c.version != version || c.disposed {
		c.mu.Unlock()
		c.discarded()
		return
	}
	if IsCanceled(err) {
		wasLoading := c.state.Loading
		c.state.Loading = false
		data := c.state.Data
		resolve := c.resolve
		c.waiter, c.resolve, c.reject = nil, nil, nil
		c.mu.Unlock()
		if resolve != nil {
			resolve(data)
		}
		if wasLoading {
			c.notify()
		}
		return
	}
	c.state.Loading = false
	c.state.Err = err
	reject := c.reject
	c.waiter, c.resolve, c.reject = nil, nil, nil
	c.mu.Unlock()

	c.errors.push(err)
	if reject != nil {
		reject(err)
	}
	capitan.Emit(c.ctx, ContainerFailed,
		KeyContainer.Field(c.name),
		KeyError.Field(err.Error()),
	)
	if c.metrics != nil {
		c.metrics.OnFailure(c.name, err)
	}
	c.notify()
}

func (c *Container[T]) discarded() {
	capitan.Emit(c.ctx, UpdateDiscarded,
		KeyContainer.Field(c.name),
	)
}

func (c *Container[T]) notify() {
	if c.batcher != nil && c.batcher.enqueue(c) {
		return
	}
	c.flush()
}

// flush delivers the current state to subscribers.
func (c *Container[T]) flush() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	s := c.state
	c.mu.Unlock()
	c.emitter.Emit(s)
}

// settlement forwards the outcome of a mode-gated update to the mode's
// controller exactly once, whichever of the two is known first.
type settlement struct {
	mu      sync.Mutex
	ctrl    Controller
	bound   bool
	settled bool
	err     error
}

func (s *settlement) settle(err error) {
	s.mu.Lock()
	if s.settled {
		s.mu.Unlock()
		return
	}
	s.settled = true
	s.err = err
	ctrl, bound := s.ctrl, s.bound
	s.mu.Unlock()
	if bound && ctrl != nil {
		ctrl.Done(err)
	}
}

func (s *settlement) bind(ctrl Controller) {
	s.mu.Lock()
	s.bound = true
	s.ctrl = ctrl
	settled, err := s.settled, s.err
	s.mu.Unlock()
	if settled && ctrl != nil {
		ctrl.Done(err)
	}
}

// Every returns a Scheduler that calls refresh every d on clock. Each
// refresh runs on its own goroutine after the next one is armed.
func Every(clock clockz.Clock, d time.Duration) Scheduler {
	return func(refresh func()) func() {
		var (
			mu      sync.Mutex
			stopped bool
			timer   clockz.Timer
		)
		var arm func()
		arm = func() {
			t := clock.AfterFunc(d, func() {
				mu.Lock()
				if stopped {
					mu.Unlock()
					return
				}
				mu.Unlock()
				go func() {
					arm()
					refresh()
				}()
			})
			mu.Lock()
			if stopped {
				t.Stop()
			} else {
				timer = t
			}
			mu.Unlock()
		}
		arm()
		return func() {
			mu.Lock()
			defer mu.Unlock()
			stopped = true
			if timer != nil {
				timer.Stop()
			}
		}
	}
}
