package cellz

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// Controller is returned by a Mode for an update it accepted.
type Controller interface {
	// Done is called once when the update it guards settles.
	Done(err error)

	// Dispose is called when a newer Set supersedes the update.
	Dispose()
}

// ControllerFuncs adapts plain functions to Controller. Nil fields are no-ops.
type ControllerFuncs struct {
	OnDone    func(err error)
	OnDispose func()
}

// Done calls OnDone.
func (c ControllerFuncs) Done(err error) {
	if c.OnDone != nil {
		c.OnDone(err)
	}
}

// Dispose calls OnDispose.
func (c ControllerFuncs) Dispose() {
	if c.OnDispose != nil {
		c.OnDispose()
	}
}

// Mode decides whether and when an update proceeds. proceed performs the
// real update; a Mode may call it now, later, or never. The returned
// Controller may be nil.
type Mode func(mc *ModeContext, proceed func()) Controller

// ModeContext is the coordination state a Container keeps for its modes.
// It persists across calls and is never shared between containers.
type ModeContext struct {
	mu      sync.Mutex
	ctx     context.Context
	clock   clockz.Clock
	name    string
	metrics MetricsProvider

	timer    clockz.Timer
	timerSeq uint64
	lastRun  time.Time
	ran      bool
	inFlight uint64
	tokenSeq uint64
	values   map[any]any
}

func newModeContext(ctx context.Context, clock clockz.Clock, name string, metrics MetricsProvider) *ModeContext {
	return &ModeContext{ctx: ctx, clock: clock, name: name, metrics: metrics}
}

// Clock returns the clock of the owning container.
func (mc *ModeContext) Clock() clockz.Clock {
	return mc.clock
}

// Name returns the name of the owning container.
func (mc *ModeContext) Name() string {
	return mc.name
}

// Value returns custom mode state stored under key.
func (mc *ModeContext) Value(key any) (any, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	v, ok := mc.values[key]
	return v, ok
}

// SetValue stores custom mode state under key.
func (mc *ModeContext) SetValue(key, v any) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.values == nil {
		mc.values = make(map[any]any)
	}
	mc.values[key] = v
}

func (mc *ModeContext) dropped(mode string) {
	if mc.metrics != nil {
		mc.metrics.OnDrop(mc.name, mode)
	}
	capitan.Emit(mc.ctx, UpdateDropped,
		KeyContainer.Field(mc.name),
		KeyMode.Field(mode),
	)
}

// stopTimer cancels any scheduled debounce. Callers hold mc.mu.
func (mc *ModeContext) stopTimer() {
	if mc.timer != nil {
		mc.timer.Stop()
		mc.timer = nil
	}
	mc.timerSeq++
}

// Immediate proceeds right away.
func Immediate() Mode {
	return func(_ *ModeContext, proceed func()) Controller {
		proceed()
		return nil
	}
}

// Debounce delays the update by d. A later call within the window replaces
// the pending one, so only the last value is applied.
func Debounce(d time.Duration) Mode {
	return func(mc *ModeContext, proceed func()) Controller {
		mc.mu.Lock()
		mc.stopTimer()
		seq := mc.timerSeq
		mc.mu.Unlock()

		timer := mc.clock.AfterFunc(d, func() {
			mc.mu.Lock()
			if mc.timerSeq != seq {
				mc.mu.Unlock()
				return
			}
			mc.timer = nil
			mc.mu.Unlock()
			// The clock may still be locked while its callbacks run, and
			// applying the update reads it.
			go proceed()
		})

		mc.mu.Lock()
		if mc.timerSeq == seq {
			mc.timer = timer
		} else {
			timer.Stop()
		}
		mc.mu.Unlock()

		return ControllerFuncs{OnDispose: func() {
			mc.mu.Lock()
			defer mc.mu.Unlock()
			if mc.timerSeq == seq {
				mc.stopTimer()
			}
		}}
	}
}

// Throttle proceeds only if at least d has passed since the last update it
// let through. The first call always proceeds. Other calls are dropped.
func Throttle(d time.Duration) Mode {
	return func(mc *ModeContext, proceed func()) Controller {
		mc.mu.Lock()
		now := mc.clock.Now()
		if mc.ran && now.Sub(mc.lastRun) < d {
			mc.mu.Unlock()
			mc.dropped("throttle")
			return nil
		}
		mc.ran = true
		mc.lastRun = now
		mc.mu.Unlock()

		proceed()
		return nil
	}
}

// Droppable proceeds only if no droppable update is in flight. The in-flight
// token is released by the controller's Done, which the container calls when
// the update settles.
func Droppable() Mode {
	return func(mc *ModeContext, proceed func()) Controller {
		mc.mu.Lock()
		if mc.inFlight != 0 {
			mc.mu.Unlock()
			mc.dropped("droppable")
			return nil
		}
		mc.tokenSeq++
		token := mc.tokenSeq
		mc.inFlight = token
		mc.mu.Unlock()

		proceed()

		return ControllerFuncs{OnDone: func(error) {
			mc.mu.Lock()
			defer mc.mu.Unlock()
			if mc.inFlight == token {
				mc.inFlight = 0
			}
		}}
	}
}
