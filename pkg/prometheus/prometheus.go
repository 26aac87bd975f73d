// Package prometheus reports cellz container metrics to Prometheus.
package prometheus

import (
	"errors"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zoobzio/cellz"
)

// Config configures the Prometheus provider.
type Config struct {
	// Namespace is the metrics namespace (default: "cellz").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prom.Labels

	// Buckets are the histogram buckets for settle duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prom.Registerer
}

// Option configures the Prometheus provider.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prom.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the settle duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prom.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Provider implements cellz.MetricsProvider.
//
// Metrics collected:
//   - cellz_containers: gauge of live containers
//   - cellz_updates_total: updates started, by container and kind
//   - cellz_settle_duration_seconds: time from update start to commit
//   - cellz_failures_total: recorded errors, by container and class
//   - cellz_drops_total: updates skipped by a concurrency mode
type Provider struct {
	containers prom.Gauge
	updates    *prom.CounterVec
	settle     *prom.HistogramVec
	failures   *prom.CounterVec
	drops      *prom.CounterVec
}

var _ cellz.MetricsProvider = (*Provider)(nil)

// New registers the metrics and returns the provider.
//
// Example:
//
//	metrics := prometheus.New(prometheus.WithRegistry(reg))
//	c := cellz.New(cellz.Value(0), cellz.WithMetrics[int](metrics))
func New(opts ...Option) *Provider {
	cfg := Config{
		Namespace: "cellz",
		Buckets:   prom.DefBuckets,
		Registry:  prom.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Provider{
		containers: factory.NewGauge(prom.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "containers",
			Help:        "Number of live containers",
			ConstLabels: cfg.ConstLabels,
		}),
		updates: factory.NewCounterVec(prom.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "updates_total",
			Help:        "Total number of container updates started",
			ConstLabels: cfg.ConstLabels,
		}, []string{"container", "kind"}),
		settle: factory.NewHistogramVec(prom.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "settle_duration_seconds",
			Help:        "Time from update start to committed value",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"container"}),
		failures: factory.NewCounterVec(prom.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "failures_total",
			Help:        "Total number of errors recorded on containers",
			ConstLabels: cfg.ConstLabels,
		}, []string{"container", "class"}),
		drops: factory.NewCounterVec(prom.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "drops_total",
			Help:        "Total number of updates skipped by a concurrency mode",
			ConstLabels: cfg.ConstLabels,
		}, []string{"container", "mode"}),
	}
}

// OnCreate implements cellz.MetricsProvider.
func (p *Provider) OnCreate(_ string) {
	p.containers.Inc()
}

// OnUpdate implements cellz.MetricsProvider.
func (p *Provider) OnUpdate(container, kind string) {
	p.updates.WithLabelValues(container, kind).Inc()
}

// OnSettle implements cellz.MetricsProvider.
func (p *Provider) OnSettle(container string, d time.Duration) {
	p.settle.WithLabelValues(container).Observe(d.Seconds())
}

// OnFailure implements cellz.MetricsProvider.
func (p *Provider) OnFailure(container string, err error) {
	p.failures.WithLabelValues(container, classify(err)).Inc()
}

// OnDrop implements cellz.MetricsProvider.
func (p *Provider) OnDrop(container, mode string) {
	p.drops.WithLabelValues(container, mode).Inc()
}

// OnDispose implements cellz.MetricsProvider.
func (p *Provider) OnDispose(_ string) {
	p.containers.Dec()
}

func classify(err error) string {
	var panicErr *cellz.PanicError
	switch {
	case errors.As(err, &panicErr):
		return "panic"
	case errors.Is(err, cellz.ErrInvalidPath), errors.Is(err, cellz.ErrTypeMismatch):
		return "path"
	default:
		return "error"
	}
}
