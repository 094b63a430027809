package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/latency-globe/model"
)

// GlobeCollector bundles Prometheus metrics for a mounted globe view. All
// methods are safe to call on a nil collector.
type GlobeCollector struct {
	gatherer prometheus.Gatherer

	Frames         prometheus.Counter
	RenderErrors   prometheus.Counter
	Rebuilds       *prometheus.CounterVec
	BuildDurations prometheus.Histogram
	Markers        prometheus.Gauge
	Arcs           prometheus.Gauge
	Picks          *prometheus.CounterVec
	Refreshes      prometheus.Counter
	PointLatency   *prometheus.GaugeVec
}

// NewGlobeCollector registers globe metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewGlobeCollector(reg prometheus.Registerer) (*GlobeCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globe_frames_total",
		Help: "Total number of frames drawn.",
	}), "globe_frames_total")
	if err != nil {
		return nil, err
	}
	renderErrors, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globe_render_errors_total",
		Help: "Total number of frames the surface failed to draw.",
	}), "globe_render_errors_total")
	if err != nil {
		return nil, err
	}

	rebuilds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "globe_scene_rebuilds_total",
		Help: "Scene constructions, labeled by what triggered them.",
	}, []string{"reason"})
	rebuilds, err = registerCounterVec(reg, rebuilds, "globe_scene_rebuilds_total")
	if err != nil {
		return nil, err
	}

	buildDurations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "globe_scene_build_duration_seconds",
		Help:    "Time spent constructing a scene.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})
	buildDurations, err = registerHistogram(reg, buildDurations, "globe_scene_build_duration_seconds")
	if err != nil {
		return nil, err
	}

	markers, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "globe_markers",
		Help: "Number of markers in the current scene.",
	}), "globe_markers")
	if err != nil {
		return nil, err
	}
	arcs, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "globe_arcs",
		Help: "Number of connection arcs in the current scene.",
	}), "globe_arcs")
	if err != nil {
		return nil, err
	}

	picks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "globe_picks_total",
		Help: "Pointer picks, labeled by kind (hover, select) and result (hit, miss).",
	}, []string{"kind", "result"})
	picks, err = registerCounterVec(reg, picks, "globe_picks_total")
	if err != nil {
		return nil, err
	}

	refreshes, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globe_metric_refreshes_total",
		Help: "Total number of latency mapping refreshes.",
	}), "globe_metric_refreshes_total")
	if err != nil {
		return nil, err
	}

	pointLatency := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "globe_point_latency_ms",
		Help: "Most recent latency sample per point, in milliseconds.",
	}, []string{"point"})
	pointLatency, err = registerGaugeVec(reg, pointLatency, "globe_point_latency_ms")
	if err != nil {
		return nil, err
	}

	return &GlobeCollector{
		gatherer:       gatherer,
		Frames:         frames,
		RenderErrors:   renderErrors,
		Rebuilds:       rebuilds,
		BuildDurations: buildDurations,
		Markers:        markers,
		Arcs:           arcs,
		Picks:          picks,
		Refreshes:      refreshes,
		PointLatency:   pointLatency,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *GlobeCollector) Handler() http.Handler {
	var gatherer prometheus.Gatherer
	if c != nil {
		gatherer = c.gatherer
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// IncFrames counts one drawn frame.
func (c *GlobeCollector) IncFrames() {
	if c == nil || c.Frames == nil {
		return
	}
	c.Frames.Inc()
}

// IncRenderErrors counts one failed draw.
func (c *GlobeCollector) IncRenderErrors() {
	if c == nil || c.RenderErrors == nil {
		return
	}
	c.RenderErrors.Inc()
}

// ObserveRebuild records a scene construction and the resulting scene size.
func (c *GlobeCollector) ObserveRebuild(reason string, d time.Duration, markers, arcs int) {
	if c == nil {
		return
	}
	if c.Rebuilds != nil {
		c.Rebuilds.WithLabelValues(reason).Inc()
	}
	if c.BuildDurations != nil {
		c.BuildDurations.Observe(d.Seconds())
	}
	if c.Markers != nil {
		c.Markers.Set(float64(markers))
	}
	if c.Arcs != nil {
		c.Arcs.Set(float64(arcs))
	}
}

// ObservePick records a hover or select pick.
func (c *GlobeCollector) ObservePick(kind string, hit bool) {
	if c == nil || c.Picks == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.Picks.WithLabelValues(kind, result).Inc()
}

// ObserveRefresh records a latency refresh. Per-point gauges are replaced
// wholesale so points that vanished from the mapping stop being exported.
func (c *GlobeCollector) ObserveRefresh(latency model.LatencyMap) {
	if c == nil {
		return
	}
	if c.Refreshes != nil {
		c.Refreshes.Inc()
	}
	if c.PointLatency == nil {
		return
	}
	c.PointLatency.Reset()
	for id, ms := range latency {
		c.PointLatency.WithLabelValues(id).Set(float64(ms))
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
