package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerCollector exposes frame scheduling metrics. It implements
// timectrl.Observer.
type SchedulerCollector struct {
	gatherer prometheus.Gatherer

	TickLag      prometheus.Histogram
	DroppedTicks prometheus.Counter
	QueueDepth   prometheus.Gauge
}

// NewSchedulerCollector registers scheduler metrics against the provided registerer.
func NewSchedulerCollector(reg prometheus.Registerer) (*SchedulerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	lag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "globe_tick_lag_seconds",
		Help:    "Delay between a tick firing and its callback running on the loop goroutine.",
		Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.016, 0.033, 0.05, 0.1, 0.25},
	})
	lag, err := registerHistogram(reg, lag, "globe_tick_lag_seconds")
	if err != nil {
		return nil, err
	}

	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globe_ticks_dropped_total",
		Help: "Ticks skipped because the previous tick had not run yet.",
	})
	dropped, err = registerCounter(reg, dropped, "globe_ticks_dropped_total")
	if err != nil {
		return nil, err
	}

	depth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "globe_dispatch_queue_depth",
		Help: "Callbacks waiting on the loop goroutine.",
	})
	depth, err = registerGauge(reg, depth, "globe_dispatch_queue_depth")
	if err != nil {
		return nil, err
	}

	return &SchedulerCollector{
		gatherer:     gatherer,
		TickLag:      lag,
		DroppedTicks: dropped,
		QueueDepth:   depth,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SchedulerCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTickLag records how late a tick ran.
func (c *SchedulerCollector) ObserveTickLag(d time.Duration) {
	if c == nil || c.TickLag == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	c.TickLag.Observe(d.Seconds())
}

// IncDroppedTicks counts a coalesced tick.
func (c *SchedulerCollector) IncDroppedTicks() {
	if c == nil || c.DroppedTicks == nil {
		return
	}
	c.DroppedTicks.Inc()
}

// SetQueueDepth updates the dispatch queue gauge.
func (c *SchedulerCollector) SetQueueDepth(n int) {
	if c == nil || c.QueueDepth == nil {
		return
	}
	c.QueueDepth.Set(float64(n))
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
