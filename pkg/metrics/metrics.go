// Package metrics exposes Prometheus collectors for the rendering engine.
//
// Metrics collected:
//   - retain_renders_total: Counter of render passes by mode
//   - retain_render_duration_seconds: Histogram of render pass duration by mode
//   - retain_host_mutations_total: Counter of host mutations by kind
//   - retain_external_mutations_total: Counter of foreign writes that forced a first paint
//   - retain_state_flushes_total: Counter of batched state flushes
//   - retain_state_batch_size: Histogram of partial updates folded per flush
//   - retain_loader_fetches_total: Counter of component fetches by result
//   - retain_loader_fetch_duration_seconds: Histogram of component fetch duration
//   - retain_mirror_clients: Gauge of connected mirror viewers
//
// Every recorder method is safe to call on a nil *Collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures a Collector.
type Config struct {
	// Namespace is the metrics namespace (default: "retain").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures a Collector.
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
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "retain",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector holds the engine's Prometheus metrics.
type Collector struct {
	renders           *prometheus.CounterVec
	renderDuration    *prometheus.HistogramVec
	hostMutations     *prometheus.CounterVec
	externalMutations prometheus.Counter
	flushes           prometheus.Counter
	batchSize         prometheus.Histogram
	fetches           *prometheus.CounterVec
	fetchDuration     prometheus.Histogram
	mirrorClients     prometheus.Gauge
	events            *prometheus.CounterVec
	eventDuration     *prometheus.HistogramVec
}

// New creates and registers a Collector.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Collector{
		renders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "renders_total",
			Help:        "Total number of render passes",
			ConstLabels: config.ConstLabels,
		}, []string{"mode"}),

		renderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_duration_seconds",
			Help:        "Render pass duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"mode"}),

		hostMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "host_mutations_total",
			Help:        "Total number of host surface mutations",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		externalMutations: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "external_mutations_total",
			Help:        "Total number of foreign mutations that invalidated a committed tree",
			ConstLabels: config.ConstLabels,
		}),

		flushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "state_flushes_total",
			Help:        "Total number of batched state flushes",
			ConstLabels: config.ConstLabels,
		}),

		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "state_batch_size",
			Help:        "Number of partial updates folded per flush",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 4, 8, 16, 32, 64},
		}),

		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "loader_fetches_total",
			Help:        "Total number of component fetches",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "loader_fetch_duration_seconds",
			Help:        "Component fetch duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		mirrorClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mirror_clients",
			Help:        "Number of connected mirror viewers",
			ConstLabels: config.ConstLabels,
		}),

		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mirror_events_total",
			Help:        "Total number of viewer events dispatched",
			ConstLabels: config.ConstLabels,
		}, []string{"type", "status"}),

		eventDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mirror_event_duration_seconds",
			Help:        "Viewer event dispatch duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"type"}),
	}
}

// RecordRender records one render pass.
func (c *Collector) RecordRender(mode string, d time.Duration) {
	if c == nil {
		return
	}
	c.renders.WithLabelValues(mode).Inc()
	c.renderDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordMutations records n host mutations of one kind.
func (c *Collector) RecordMutations(kind string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.hostMutations.WithLabelValues(kind).Add(float64(n))
}

// RecordExternalMutation records a foreign write to a mounted subtree.
func (c *Collector) RecordExternalMutation() {
	if c == nil {
		return
	}
	c.externalMutations.Inc()
}

// RecordFlush records a batched flush that folded size partial updates.
func (c *Collector) RecordFlush(size int) {
	if c == nil {
		return
	}
	c.flushes.Inc()
	c.batchSize.Observe(float64(size))
}

// RecordFetch records a component fetch.
func (c *Collector) RecordFetch(err error, d time.Duration) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.fetches.WithLabelValues(result).Inc()
	c.fetchDuration.Observe(d.Seconds())
}

// MirrorConnected records a viewer connecting.
func (c *Collector) MirrorConnected() {
	if c == nil {
		return
	}
	c.mirrorClients.Inc()
}

// MirrorDisconnected records a viewer disconnecting.
func (c *Collector) MirrorDisconnected() {
	if c == nil {
		return
	}
	c.mirrorClients.Dec()
}

// RecordEvent records one dispatched viewer event.
func (c *Collector) RecordEvent(eventType string, err error, d time.Duration) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.events.WithLabelValues(eventType, status).Inc()
	c.eventDuration.WithLabelValues(eventType).Observe(d.Seconds())
}
