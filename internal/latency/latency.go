// Package latency keeps the latency mapping fresh. Samples come from a
// Source; the Refresher replaces the whole mapping on every tick of its
// scheduler and fans the result out to subscribers.
package latency

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/latency-globe/internal/logging"
	"github.com/signalsfoundry/latency-globe/internal/observability"
	"github.com/signalsfoundry/latency-globe/model"
	"github.com/signalsfoundry/latency-globe/timectrl"
)

const tracerName = "github.com/signalsfoundry/latency-globe/internal/latency"

// ErrStopped is returned by Start once the refresher has been stopped.
var ErrStopped = errors.New("refresher stopped")

// Source produces one latency sample per point. IDs missing from the result
// are treated as unknown.
type Source interface {
	Sample(ctx context.Context, points []model.Point) (model.LatencyMap, error)
}

// PointSource yields the active data set. kb.Catalog implements it.
type PointSource interface {
	Points() []model.Point
}

// StaticPoints is a PointSource over a fixed slice.
type StaticPoints []model.Point

// Points implements PointSource.
func (s StaticPoints) Points() []model.Point { return append([]model.Point(nil), s...) }

// RandomSource is the mock source: every point gets a uniform integer in
// [MinMs, MinMs+SpanMs).
type RandomSource struct {
	MinMs  int
	SpanMs int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSource returns a mock source. A zero seed draws from the clock.
func NewRandomSource(seed int64, minMs, spanMs int) *RandomSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomSource{
		MinMs:  minMs,
		SpanMs: spanMs,
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
	}
}

// Sample implements Source.
func (s *RandomSource) Sample(_ context.Context, points []model.Point) (model.LatencyMap, error) {
	if s.SpanMs <= 0 {
		return nil, fmt.Errorf("random source: span must be positive, got %d", s.SpanMs)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(model.LatencyMap, len(points))
	for _, p := range points {
		out[p.ID] = s.MinMs + s.rng.IntN(s.SpanMs)
	}
	return out, nil
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithLogger sets the refresher's logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Refresher) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock sets the clock used to stamp refreshes.
func WithClock(c timectrl.Clock) Option {
	return func(r *Refresher) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithMetrics records refreshes on the collector.
func WithMetrics(c *observability.GlobeCollector) Option {
	return func(r *Refresher) { r.metrics = c }
}

// Refresher periodically replaces the latency mapping. Subscribers are
// called on the scheduler's goroutine, after the mapping has been swapped.
type Refresher struct {
	points  PointSource
	src     Source
	sched   timectrl.Scheduler
	clock   timectrl.Clock
	log     logging.Logger
	metrics *observability.GlobeCollector

	mu      sync.RWMutex
	current model.LatencyMap
	updated time.Time
	stopped bool

	subsMu  sync.Mutex
	nextSub int
	subs    map[int]func(model.LatencyMap)

	stopOnce sync.Once
}

// NewRefresher wires a refresher. Nothing runs until Start.
func NewRefresher(points PointSource, src Source, sched timectrl.Scheduler, opts ...Option) *Refresher {
	r := &Refresher{
		points:  points,
		src:     src,
		sched:   sched,
		clock:   timectrl.SystemClock{},
		log:     logging.Noop(),
		current: model.LatencyMap{},
		subs:    make(map[int]func(model.LatencyMap)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start refreshes once immediately, then on every scheduler tick.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.RLock()
	stopped := r.stopped
	r.mu.RUnlock()
	if stopped {
		return ErrStopped
	}

	if err := r.Refresh(ctx); err != nil {
		r.log.Warn(ctx, "initial latency refresh failed", logging.Err(err))
	}
	if r.sched == nil {
		return nil
	}
	return r.sched.Start(func(time.Time) {
		if err := r.Refresh(ctx); err != nil {
			r.log.Warn(ctx, "latency refresh failed", logging.Err(err))
		}
	})
}

// Refresh samples every point and replaces the mapping wholesale. On error
// the previous mapping is kept.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.mu.RLock()
	stopped := r.stopped
	r.mu.RUnlock()
	if stopped {
		return nil
	}

	var points []model.Point
	if r.points != nil {
		points = r.points.Points()
	}

	ctx, span := observability.StartSpan(ctx, tracerName, "latency.refresh",
		attribute.Int("points", len(points)))
	defer span.End()

	next, err := r.src.Sample(ctx, points)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("sample latency: %w", err)
	}
	if next == nil {
		next = model.LatencyMap{}
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.current = next
	r.updated = r.clock.Now()
	r.mu.Unlock()

	r.metrics.ObserveRefresh(next)
	r.log.Debug(ctx, "latency refreshed", logging.Int("points", len(next)))

	r.subsMu.Lock()
	subs := make([]func(model.LatencyMap), 0, len(r.subs))
	for id := 0; id < r.nextSub; id++ {
		if fn, ok := r.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	r.subsMu.Unlock()

	for _, fn := range subs {
		fn(next.Clone())
	}
	return nil
}

// Current returns a copy of the latest mapping.
func (r *Refresher) Current() model.LatencyMap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Clone()
}

// Lookup returns the latest sample for id.
func (r *Refresher) Lookup(id string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Lookup(id)
}

// Updated returns when the mapping was last replaced.
func (r *Refresher) Updated() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updated
}

// Subscribe registers fn for every future refresh. The returned function
// unsubscribes and is safe to call more than once.
func (r *Refresher) Subscribe(fn func(model.LatencyMap)) (unsubscribe func()) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	return func() {
		r.subsMu.Lock()
		defer r.subsMu.Unlock()
		delete(r.subs, id)
	}
}

// Stop halts the scheduler. It is idempotent; no refresh runs after it
// returns.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopped = true
		r.mu.Unlock()
		if r.sched != nil {
			r.sched.Stop()
		}
	})
}
