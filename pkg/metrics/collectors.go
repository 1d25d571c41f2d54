package metrics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	validMetricName = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
	validLabelName  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// CounterOpts describes a counter. The exported name is namespace_subsystem_name.
type CounterOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
}

// GaugeOpts describes a gauge.
type GaugeOpts CounterOpts

// HistogramOpts describes a histogram. Nil Buckets selects prometheus.DefBuckets.
type HistogramOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
	Buckets   []float64
}

// Counter is a labelled Prometheus counter.
type Counter struct {
	vec *prometheus.CounterVec
}

// Gauge is a labelled Prometheus gauge.
type Gauge struct {
	vec *prometheus.GaugeVec
}

// Histogram is a labelled Prometheus histogram.
type Histogram struct {
	vec *prometheus.HistogramVec
}

// register validates the name and labels, then registers c with the global registry.
func register(kind, namespace, subsystem, name string, labels []string, c prometheus.Collector) error {
	if !IsInitialized() {
		return fmt.Errorf("metrics not initialized, call Init() first")
	}
	if err := validateMetricOpts(namespace, subsystem, name, labels); err != nil {
		return err
	}
	if err := Registry().Register(c); err != nil {
		return fmt.Errorf("failed to register %s: %w", kind, err)
	}
	return nil
}

// NewCounter creates and registers a counter.
func NewCounter(opts CounterOpts) (*Counter, error) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Subsystem: opts.Subsystem,
		Name:      opts.Name,
		Help:      opts.Help,
	}, opts.Labels)

	if err := register("counter", opts.Namespace, opts.Subsystem, opts.Name, opts.Labels, vec); err != nil {
		return nil, err
	}
	return &Counter{vec: vec}, nil
}

// Inc adds one for the given label values.
func (c *Counter) Inc(labelValues ...string) {
	c.vec.WithLabelValues(labelValues...).Inc()
}

// Add adds a non-negative value for the given label values.
func (c *Counter) Add(value float64, labelValues ...string) {
	c.vec.WithLabelValues(labelValues...).Add(value)
}

// WithLabelValues returns the child counter for repeated use.
func (c *Counter) WithLabelValues(labelValues ...string) prometheus.Counter {
	return c.vec.WithLabelValues(labelValues...)
}

// NewGauge creates and registers a gauge.
func NewGauge(opts GaugeOpts) (*Gauge, error) {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: opts.Namespace,
		Subsystem: opts.Subsystem,
		Name:      opts.Name,
		Help:      opts.Help,
	}, opts.Labels)

	if err := register("gauge", opts.Namespace, opts.Subsystem, opts.Name, opts.Labels, vec); err != nil {
		return nil, err
	}
	return &Gauge{vec: vec}, nil
}

func (g *Gauge) Set(value float64, labelValues ...string) {
	g.vec.WithLabelValues(labelValues...).Set(value)
}

func (g *Gauge) Inc(labelValues ...string) {
	g.vec.WithLabelValues(labelValues...).Inc()
}

func (g *Gauge) Dec(labelValues ...string) {
	g.vec.WithLabelValues(labelValues...).Dec()
}

func (g *Gauge) Add(value float64, labelValues ...string) {
	g.vec.WithLabelValues(labelValues...).Add(value)
}

func (g *Gauge) Sub(value float64, labelValues ...string) {
	g.vec.WithLabelValues(labelValues...).Sub(value)
}

// WithLabelValues returns the child gauge for repeated use.
func (g *Gauge) WithLabelValues(labelValues ...string) prometheus.Gauge {
	return g.vec.WithLabelValues(labelValues...)
}

// NewHistogram creates and registers a histogram.
func NewHistogram(opts HistogramOpts) (*Histogram, error) {
	buckets := opts.Buckets
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}

	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: opts.Namespace,
		Subsystem: opts.Subsystem,
		Name:      opts.Name,
		Help:      opts.Help,
		Buckets:   buckets,
	}, opts.Labels)

	if err := register("histogram", opts.Namespace, opts.Subsystem, opts.Name, opts.Labels, vec); err != nil {
		return nil, err
	}
	return &Histogram{vec: vec}, nil
}

// Observe records value for the given label values.
func (h *Histogram) Observe(value float64, labelValues ...string) {
	h.vec.WithLabelValues(labelValues...).Observe(value)
}

// WithLabelValues returns the child observer for repeated use.
func (h *Histogram) WithLabelValues(labelValues ...string) prometheus.Observer {
	return h.vec.WithLabelValues(labelValues...)
}

func validateMetricOpts(namespace, subsystem, name string, labels []string) error {
	fullName := prometheus.BuildFQName(namespace, subsystem, name)
	if !validMetricName.MatchString(fullName) {
		return fmt.Errorf("invalid metric name: %s (must match %s)", fullName, validMetricName.String())
	}

	for _, label := range labels {
		if !validLabelName.MatchString(label) {
			return fmt.Errorf("invalid label name: %s (must match %s)", label, validLabelName.String())
		}
		if strings.HasPrefix(label, "__") {
			return fmt.Errorf("label name %s is reserved (starts with __)", label)
		}
	}
	return nil
}
