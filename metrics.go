package cellz

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key container events.
// See pkg/prometheus for a ready-made implementation.
type MetricsProvider interface {
	// OnCreate is called when a container is constructed.
	OnCreate(container string)

	// OnUpdate is called when an update enters the pipeline.
	// Kind is one of "value", "reducer", "async", "pending" or "fail".
	OnUpdate(container, kind string)

	// OnSettle is called when a value is committed. Duration is measured
	// from the start of the update attempt.
	OnSettle(container string, duration time.Duration)

	// OnFailure is called when an update records an error.
	OnFailure(container string, err error)

	// OnDrop is called when a concurrency mode skips an update.
	OnDrop(container, mode string)

	// OnDispose is called once when a container is disposed.
	OnDispose(container string)
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnCreate(_ string)                  {}
func (NoOpMetricsProvider) OnUpdate(_, _ string)               {}
func (NoOpMetricsProvider) OnSettle(_ string, _ time.Duration) {}
func (NoOpMetricsProvider) OnFailure(_ string, _ error)        {}
func (NoOpMetricsProvider) OnDrop(_, _ string)                 {}
func (NoOpMetricsProvider) OnDispose(_ string)                 {}
