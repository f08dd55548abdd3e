package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus implements every hook interface on top of a Prometheus
// registry.
type Prometheus struct {
	LayoutsTotal     *prometheus.CounterVec
	LayoutDuration   *prometheus.HistogramVec
	LayoutNodes      *prometheus.HistogramVec
	LayoutIterations *prometheus.CounterVec
	LayoutRebuilds   *prometheus.CounterVec
	HighEnergyNodes  prometheus.Counter
	LayoutsInFlight  prometheus.Gauge

	RendersTotal    *prometheus.CounterVec
	RenderSizeBytes *prometheus.HistogramVec

	CacheEventsTotal *prometheus.CounterVec
	CacheBytesTotal  *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewPrometheus registers the evolayout metrics on reg. A nil reg gets a
// fresh registry.
func NewPrometheus(reg *prometheus.Registry) *Prometheus {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	p := &Prometheus{registry: reg}
	p.initLayoutMetrics()
	p.initCacheMetrics()
	p.initHTTPMetrics()
	return p
}

// Registry returns the underlying registry, for promhttp.HandlerFor.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

func (p *Prometheus) initLayoutMetrics() {
	f := promauto.With(p.registry)
	p.LayoutsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evolayout_layouts_total",
			Help: "Total number of layout runs",
		},
		[]string{"mode", "status"},
	)
	p.LayoutDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evolayout_layout_duration_seconds",
			Help:    "Layout latency in seconds",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)
	p.LayoutNodes = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evolayout_layout_nodes",
			Help:    "Number of nodes per layout",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		},
		[]string{"mode"},
	)
	p.LayoutIterations = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evolayout_solver_iterations_total",
			Help: "Total number of solver iterations",
		},
		[]string{"mode"},
	)
	p.LayoutRebuilds = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evolayout_spatial_tree_rebuilds_total",
			Help: "Total number of spatial tree rebuilds",
		},
		[]string{"mode"},
	)
	p.HighEnergyNodes = f.NewCounter(
		prometheus.CounterOpts{
			Name: "evolayout_high_energy_nodes_total",
			Help: "Total number of nodes flagged for relaxation",
		},
	)
	p.LayoutsInFlight = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "evolayout_layouts_in_flight",
			Help: "Current number of layouts being solved",
		},
	)
	p.RendersTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evolayout_renders_total",
			Help: "Total number of rendered artifacts",
		},
		[]string{"format", "status"},
	)
	p.RenderSizeBytes = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evolayout_render_size_bytes",
			Help:    "Rendered artifact size in bytes",
			Buckets: []float64{1000, 10000, 100000, 1000000, 10000000},
		},
		[]string{"format"},
	)
}

func (p *Prometheus) initCacheMetrics() {
	f := promauto.With(p.registry)
	p.CacheEventsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evolayout_cache_events_total",
			Help: "Cache hits, misses and writes",
		},
		[]string{"key_type", "event"},
	)
	p.CacheBytesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evolayout_cache_written_bytes_total",
			Help: "Bytes written to the cache",
		},
		[]string{"key_type"},
	)
}

func (p *Prometheus) initHTTPMetrics() {
	f := promauto.With(p.registry)
	p.HTTPRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evolayout_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	p.HTTPRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evolayout_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (p *Prometheus) OnLayoutStart(_ context.Context, mode string, nodeCount int) {
	p.LayoutsInFlight.Inc()
	p.LayoutNodes.WithLabelValues(mode).Observe(float64(nodeCount))
}

func (p *Prometheus) OnLayoutComplete(_ context.Context, mode string, stats LayoutStats, d time.Duration, err error) {
	p.LayoutsInFlight.Dec()
	p.LayoutsTotal.WithLabelValues(mode, status(err)).Inc()
	p.LayoutDuration.WithLabelValues(mode).Observe(d.Seconds())
	p.LayoutIterations.WithLabelValues(mode).Add(float64(stats.Iterations))
	p.LayoutRebuilds.WithLabelValues(mode).Add(float64(stats.Rebuilds))
	p.HighEnergyNodes.Add(float64(stats.HighEnergy))
}

func (p *Prometheus) OnRenderStart(context.Context, string) {}

func (p *Prometheus) OnRenderComplete(_ context.Context, format string, size int, _ time.Duration, err error) {
	p.RendersTotal.WithLabelValues(format, status(err)).Inc()
	if err == nil {
		p.RenderSizeBytes.WithLabelValues(format).Observe(float64(size))
	}
}

func (p *Prometheus) OnCacheHit(_ context.Context, keyType string) {
	p.CacheEventsTotal.WithLabelValues(keyType, "hit").Inc()
}

func (p *Prometheus) OnCacheMiss(_ context.Context, keyType string) {
	p.CacheEventsTotal.WithLabelValues(keyType, "miss").Inc()
}

func (p *Prometheus) OnCacheSet(_ context.Context, keyType string, size int) {
	p.CacheEventsTotal.WithLabelValues(keyType, "set").Inc()
	p.CacheBytesTotal.WithLabelValues(keyType).Add(float64(size))
}

func (p *Prometheus) OnRequest(_ context.Context, method, route string, code int, d time.Duration) {
	p.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	p.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

var (
	_ PipelineHooks = (*Prometheus)(nil)
	_ CacheHooks    = (*Prometheus)(nil)
	_ HTTPHooks     = (*Prometheus)(nil)
)
