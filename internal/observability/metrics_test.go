package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/latency-globe/internal/logging"
	"github.com/signalsfoundry/latency-globe/model"
)

func TestGlobeCollectorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("NewGlobeCollector: %v", err)
	}

	c.IncFrames()
	c.IncFrames()
	c.IncRenderErrors()
	c.ObserveRebuild("filter", 3*time.Millisecond, 5, 9)
	c.ObservePick("select", true)
	c.ObservePick("hover", false)
	c.ObserveRefresh(model.LatencyMap{"Binance": 42, "OKX": 120})

	if got := testutil.ToFloat64(c.Frames); got != 2 {
		t.Fatalf("globe_frames_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.RenderErrors); got != 1 {
		t.Fatalf("globe_render_errors_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Rebuilds.WithLabelValues("filter")); got != 1 {
		t.Fatalf("globe_scene_rebuilds_total{filter} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Markers); got != 5 {
		t.Fatalf("globe_markers = %v, want 5", got)
	}
	if got := testutil.ToFloat64(c.Arcs); got != 9 {
		t.Fatalf("globe_arcs = %v, want 9", got)
	}
	if got := testutil.ToFloat64(c.Picks.WithLabelValues("select", "hit")); got != 1 {
		t.Fatalf("globe_picks_total{select,hit} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Picks.WithLabelValues("hover", "miss")); got != 1 {
		t.Fatalf("globe_picks_total{hover,miss} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.PointLatency.WithLabelValues("OKX")); got != 120 {
		t.Fatalf("globe_point_latency_ms{OKX} = %v, want 120", got)
	}
	if count := histogramSampleCount(t, reg, "globe_scene_build_duration_seconds"); count != 1 {
		t.Fatalf("globe_scene_build_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestObserveRefreshDropsVanishedPoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("NewGlobeCollector: %v", err)
	}
	c.ObserveRefresh(model.LatencyMap{"a": 1, "b": 2})
	c.ObserveRefresh(model.LatencyMap{"a": 3})

	if n := testutil.CollectAndCount(c.PointLatency); n != 1 {
		t.Fatalf("globe_point_latency_ms series = %d, want 1", n)
	}
	if got := testutil.ToFloat64(c.Refreshes); got != 2 {
		t.Fatalf("globe_metric_refreshes_total = %v, want 2", got)
	}
}

func TestCollectorsReuseExistingRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("first NewGlobeCollector: %v", err)
	}
	second, err := NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("second NewGlobeCollector: %v", err)
	}
	first.IncFrames()
	if got := testutil.ToFloat64(second.Frames); got != 1 {
		t.Fatalf("collectors do not share registered metrics (got %v)", got)
	}
}

func TestNilCollectorsAreSafe(t *testing.T) {
	var g *GlobeCollector
	g.IncFrames()
	g.IncRenderErrors()
	g.ObserveRebuild("mount", time.Millisecond, 1, 0)
	g.ObservePick("hover", true)
	g.ObserveRefresh(model.LatencyMap{"a": 1})

	var s *SchedulerCollector
	s.ObserveTickLag(time.Millisecond)
	s.IncDroppedTicks()
	s.SetQueueDepth(3)
	if s.Gatherer() != nil {
		t.Fatalf("nil collector returned a gatherer")
	}
}

func TestSchedulerCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSchedulerCollector(reg)
	if err != nil {
		t.Fatalf("NewSchedulerCollector: %v", err)
	}
	c.ObserveTickLag(2 * time.Millisecond)
	c.ObserveTickLag(-time.Millisecond)
	c.IncDroppedTicks()
	c.SetQueueDepth(4)

	if count := histogramSampleCount(t, reg, "globe_tick_lag_seconds"); count != 2 {
		t.Fatalf("globe_tick_lag_seconds sample_count = %d, want 2", count)
	}
	if got := testutil.ToFloat64(c.DroppedTicks); got != 1 {
		t.Fatalf("globe_ticks_dropped_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.QueueDepth); got != 4 {
		t.Fatalf("globe_dispatch_queue_depth = %v, want 4", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("NewGlobeCollector: %v", err)
	}
	c.IncFrames()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "globe_frames_total 1") {
		t.Fatalf("metrics body missing frame counter:\n%s", rec.Body.String())
	}
}

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("GLOBE_TRACING_ENABLED", "true")
	t.Setenv("GLOBE_TRACING_EXPORTER", "OTLP")
	t.Setenv("GLOBE_TRACING_SAMPLE_RATIO", "0.25")
	cfg := TracingConfigFromEnv(TracingConfig{SampleRatio: 1})
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.SampleRatio != 0.25 || cfg.ServiceName != "latency-globe" {
		t.Fatalf("TracingConfigFromEnv = %+v", cfg)
	}
}

func TestStdoutTracingWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, TracingConfig{
		Enabled:     true,
		ServiceName: "test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	}, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	ctx = logging.ContextWithSessionID(ctx, "s-1")
	_, span := StartSpan(ctx, "test", "view.mount", attribute.Int("markers", 3))
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	out := buf.String()
	if !strings.Contains(out, "view.mount") || !strings.Contains(out, "s-1") {
		t.Fatalf("exported span missing name or session id:\n%s", out)
	}

	if _, err := InitTracing(ctx, TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
	if _, err := InitTracing(ctx, TracingConfig{}, nil); err != nil {
		t.Fatalf("disabled tracing: %v", err)
	}
}

func histogramSampleCount(t *testing.T, reg prometheus.Gatherer, name string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if mf.GetType() == dto.MetricType_HISTOGRAM {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}
