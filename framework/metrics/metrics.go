// Package metrics exports Prometheus metrics for the kernel.
package metrics

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/km-arc/go-kernel/framework/container"
	gohttp "github.com/km-arc/go-kernel/framework/http"
	"github.com/km-arc/go-kernel/framework/kernel"
	"github.com/km-arc/go-kernel/framework/routing"
)

// unmatched labels requests that no route served.
const unmatched = "unmatched"

// otherMethod labels request methods no route can be registered for.
const otherMethod = "other"

var startKey = container.NewKey[time.Time]("metrics.start")

// Collector holds the kernel collectors and the registry serving them.
type Collector struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	upgrades *prometheus.CounterVec
}

// Option configures New.
type Option func(*options)

type options struct {
	registry *prometheus.Registry
	buckets  []float64
}

// WithRegistry registers the collectors with reg instead of a fresh
// registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithBuckets sets the duration histogram buckets.
func WithBuckets(b []float64) Option {
	return func(o *options) { o.buckets = b }
}

// New creates the collectors under namespace.
func New(namespace string, opts ...Option) *Collector {
	o := &options{buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}
	factory := promauto.With(o.registry)

	return &Collector{
		registry: o.registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of dispatched requests.",
		}, []string{"method", "route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request dispatch duration in seconds.",
			Buckets:   o.buckets,
		}, []string{"method", "route"}),
		upgrades: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upgrades_total",
			Help:      "Total number of upgraded connections.",
		}, []string{"route"}),
	}
}

// Attach installs the kernel listeners feeding the collectors.
func (c *Collector) Attach(k *kernel.Kernel) {
	k.OnRequest(func(_ context.Context, s *container.Scope) error {
		return container.Set(s, startKey, time.Now())
	})
	k.OnFinished(func(ctx context.Context, s *container.Scope, res *gohttp.Response) {
		method, route := labels(ctx, s)
		c.requests.WithLabelValues(method, route, strconv.Itoa(res.Status)).Inc()
		if start, err := container.Get(ctx, s, startKey); err == nil {
			c.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		}
	})
	k.OnUpgraded(func(ctx context.Context, s *container.Scope) {
		_, route := labels(ctx, s)
		c.upgrades.WithLabelValues(route).Inc()
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the registry the collectors live in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// labels reads method and route template; route templates keep label
// cardinality bounded.
func labels(ctx context.Context, s *container.Scope) (method, route string) {
	method, route = "", unmatched
	if req, err := container.Get(ctx, s, gohttp.RequestKey); err == nil {
		method = methodLabel(req.Method())
	}
	if container.Has(s, routing.MatchKey) {
		if m, err := container.Get(ctx, s, routing.MatchKey); err == nil {
			route = m.Route.Path
		}
	}
	return method, route
}

// methodLabel keeps the method label to the routable methods plus HEAD.
func methodLabel(m string) string {
	if m == http.MethodHead || slices.Contains(routing.AnyMethods, m) {
		return m
	}
	return otherMethod
}
