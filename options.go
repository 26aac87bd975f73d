package cellz

import (
	"context"
	"time"

	"github.com/zoobzio/clockz"
)

// Action is a named reducer registered with WithActions and run by Dispatch.
type Action[T any] func(prev T, uc *UpdateContext[T], args ...any) (T, error)

// Scheduler drives auto-refresh. It calls refresh whenever the container
// should re-run its initializer and returns a function that stops it.
type Scheduler func(refresh func()) (stop func())

// config holds configuration options for a Container.
type config[T any] struct {
	name             string
	ctx              context.Context
	clock            clockz.Clock
	compare          func(a, b T) bool
	props            map[string]any
	actions          map[string]Action[T]
	hydrate          Hook
	refreshEvery     time.Duration
	refreshScheduler Scheduler
	metrics          MetricsProvider
	errorHistory     int
	batcher          *Batcher
}

// Option configures a Container.
type Option[T any] func(*config[T])

// WithName sets the container name used in signals and metrics.
// Default: a random UUID.
func WithName[T any](name string) Option[T] {
	return func(c *config[T]) {
		c.name = name
	}
}

// WithContext sets the parent context of every update context and of
// emitted signals. Default: context.Background().
func WithContext[T any](ctx context.Context) Option[T] {
	return func(c *config[T]) {
		c.ctx = ctx
	}
}

// WithClock sets the clock used by modes and auto-refresh.
// Use clockz.NewFakeClock() for deterministic tests.
func WithClock[T any](clock clockz.Clock) Option[T] {
	return func(c *config[T]) {
		c.clock = clock
	}
}

// WithCompare sets the equality function deciding whether a write changes
// the value. Default: Same, i.e. reference equality.
func WithCompare[T any](fn func(a, b T) bool) Option[T] {
	return func(c *config[T]) {
		c.compare = fn
	}
}

// WithProps attaches extra named properties, readable through Prop.
func WithProps[T any](props map[string]any) Option[T] {
	return func(c *config[T]) {
		c.props = props
	}
}

// WithActions registers named reducers, run through Dispatch.
func WithActions[T any](actions map[string]Action[T]) Option[T] {
	return func(c *config[T]) {
		c.actions = actions
	}
}

// WithHydration connects the container to a hydration slot. The hook runs
// once at construction; a pre-seeded slot value replaces the initializer.
func WithHydration[T any](hook Hook) Option[T] {
	return func(c *config[T]) {
		c.hydrate = hook
	}
}

// WithAutoRefresh re-runs the initializer every d once the container is
// initialized, until it is disposed.
func WithAutoRefresh[T any](d time.Duration) Option[T] {
	return func(c *config[T]) {
		c.refreshEvery = d
	}
}

// WithRefreshScheduler is WithAutoRefresh with a custom schedule.
func WithRefreshScheduler[T any](s Scheduler) Option[T] {
	return func(c *config[T]) {
		c.refreshScheduler = s
	}
}

// WithMetrics sets a metrics provider.
func WithMetrics[T any](provider MetricsProvider) Option[T] {
	return func(c *config[T]) {
		c.metrics = provider
	}
}

// WithErrorHistory retains the last n recorded errors, see ErrorHistory.
func WithErrorHistory[T any](n int) Option[T] {
	return func(c *config[T]) {
		c.errorHistory = n
	}
}

// WithBatcher sets the batcher the container defers notifications to.
// Default: DefaultBatcher.
func WithBatcher[T any](b *Batcher) Option[T] {
	return func(c *config[T]) {
		c.batcher = b
	}
}
