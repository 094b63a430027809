package core

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/latency-globe/model"
)

func newTestBuilder() *SceneBuilder {
	return NewSceneBuilder(DefaultSceneConfig(), model.DefaultPalette())
}

func TestBuildMarkersFiltersAndOrients(t *testing.T) {
	b := newTestBuilder()
	points := model.SamplePoints()

	markers := b.BuildMarkers(points, model.Filter(model.CategoryGCP))
	want := []string{"Coinbase", "Deribit", "KuCoin"}
	if len(markers) != len(want) {
		t.Fatalf("BuildMarkers(GCP) = %d markers, want %d", len(markers), len(want))
	}
	for i, m := range markers {
		if m.Point.ID != want[i] {
			t.Fatalf("marker %d = %q, want %q", i, m.Point.ID, want[i])
		}
		if m.Order != i {
			t.Fatalf("marker %d has order %d", i, m.Order)
		}
		if d := math.Abs(r3.Norm(m.Position) - 82); d > 1e-9 {
			t.Fatalf("marker %q not at marker radius (off by %v)", m.Point.ID, d)
		}
		if r3.Norm(m.Position) <= b.Config().GlobeRadius {
			t.Fatalf("marker %q sits inside the globe", m.Point.ID)
		}
		if c := r3.Dot(m.Normal, r3.Unit(m.Position)); math.Abs(c-1) > 1e-9 {
			t.Fatalf("marker %q normal not outward (cos=%v)", m.Point.ID, c)
		}
		if m.Color != model.Hex(0x4285f4) {
			t.Fatalf("marker %q color = %v, want GCP blue", m.Point.ID, m.Color)
		}
	}

	if all := b.BuildMarkers(points, model.FilterAll); len(all) != len(points) {
		t.Fatalf("BuildMarkers(all) = %d markers, want %d", len(all), len(points))
	}
}

func TestBuildConnectionsCount(t *testing.T) {
	b := newTestBuilder()
	points := model.SamplePoints()
	for n := 0; n <= len(points); n++ {
		arcs := b.BuildConnections(points[:n], nil)
		want := n - 1
		if want < 0 {
			want = 0
		}
		if len(arcs) != want {
			t.Fatalf("BuildConnections(%d points) = %d arcs, want %d", n, len(arcs), want)
		}
	}
}

func TestBuildConnectionsUsesUnfilteredOrder(t *testing.T) {
	b := newTestBuilder()
	points := model.SamplePoints()
	scene := b.Build(points, model.Filter(model.CategoryAzure), true, nil)

	if len(scene.Markers) != 2 {
		t.Fatalf("Azure filter produced %d markers, want 2", len(scene.Markers))
	}
	if len(scene.Arcs) != len(points)-1 {
		t.Fatalf("arcs = %d, want %d", len(scene.Arcs), len(points)-1)
	}
	for i, a := range scene.Arcs {
		if a.From != points[i].ID || a.To != points[i+1].ID {
			t.Fatalf("arc %d joins %s->%s, want %s->%s", i, a.From, a.To, points[i].ID, points[i+1].ID)
		}
	}
}

func TestArcGeometry(t *testing.T) {
	b := newTestBuilder()
	points := model.SamplePoints()[:2]
	arcs := b.BuildConnections(points, nil)
	a := arcs[0]

	start := Project(points[0].Latitude, points[0].Longitude, 82)
	end := Project(points[1].Latitude, points[1].Longitude, 82)
	if a.Start != start || a.End != end {
		t.Fatalf("arc endpoints do not coincide with projected marker positions")
	}
	if len(a.Polyline) != 51 {
		t.Fatalf("polyline has %d points, want 51", len(a.Polyline))
	}
	if a.Polyline[0] != start || a.Polyline[50] != end {
		t.Fatalf("polyline does not start/end on the endpoints")
	}
	mid := r3.Scale(0.5, r3.Add(start, end))
	if r3.Norm(a.Control) <= r3.Norm(mid) {
		t.Fatalf("control point not lifted above the chord midpoint")
	}
	if a.Opacity <= 0 || a.Opacity >= 1 {
		t.Fatalf("arc opacity = %v, want semi-transparent", a.Opacity)
	}
}

func TestArcRecolorFollowsLatency(t *testing.T) {
	b := newTestBuilder()
	points := []model.Point{
		{ID: "a", Category: model.CategoryAWS},
		{ID: "b", Category: model.CategoryAWS, Longitude: 10},
	}
	arcs := b.BuildConnections(points, nil)
	if arcs[0].Known || arcs[0].Bucket != model.BucketUnknown {
		t.Fatalf("arc without samples should be unknown, got %+v", arcs[0].Bucket)
	}

	cases := []struct {
		a, b int
		want model.LatencyBucket
	}{
		{49, 49, model.BucketGood},
		{50, 50, model.BucketWarn},
		{99, 99, model.BucketWarn},
		{100, 100, model.BucketBad},
		{20, 80, model.BucketWarn},
	}
	scene := &Scene{Arcs: arcs}
	for _, tc := range cases {
		scene.Recolor(model.LatencyMap{"a": tc.a, "b": tc.b})
		if arcs[0].Bucket != tc.want {
			t.Errorf("latency (%d,%d): bucket %v, want %v", tc.a, tc.b, arcs[0].Bucket, tc.want)
		}
		if arcs[0].Color != tc.want.Color() {
			t.Errorf("latency (%d,%d): color %v, want %v", tc.a, tc.b, arcs[0].Color, tc.want.Color())
		}
	}

	scene.Recolor(model.LatencyMap{"a": 10})
	if arcs[0].Known {
		t.Fatalf("arc with one unknown endpoint should be unknown")
	}
}

func TestBuildEmptyAndHiddenConnections(t *testing.T) {
	b := newTestBuilder()
	empty := b.Build(nil, model.FilterAll, true, nil)
	if len(empty.Markers) != 0 || len(empty.Arcs) != 0 {
		t.Fatalf("empty data set produced %d markers, %d arcs", len(empty.Markers), len(empty.Arcs))
	}

	hidden := b.Build(model.SamplePoints(), model.FilterAll, false, nil)
	if len(hidden.Arcs) != 0 {
		t.Fatalf("connections hidden but %d arcs built", len(hidden.Arcs))
	}
	if len(hidden.Lights) != 2 {
		t.Fatalf("scene has %d lights, want ambient + directional", len(hidden.Lights))
	}
}

func TestSceneDisposeIsIdempotent(t *testing.T) {
	s := newTestBuilder().Build(model.SamplePoints(), model.FilterAll, true, nil)
	s.Dispose()
	s.Dispose()
	if !s.Disposed() || len(s.Markers) != 0 || len(s.Arcs) != 0 {
		t.Fatalf("disposed scene still holds entities")
	}
	cam := NewCamera(DefaultCameraConfig(), DeviceDesktop)
	if m := s.PickAt(cam, Orientation{}, 400, 300, 800, 600, true); m != nil {
		t.Fatalf("disposed scene returned a pick")
	}
}

func TestEarthTexture(t *testing.T) {
	tex := DefaultEarthTexture()
	// Texture centre (1000, 500) is land; the poles are ocean.
	lon := 1000.0/2048*360 - 180
	lat := 90 - 500.0/1024*180
	if got := tex.At(lat, lon); got != tex.Land {
		t.Fatalf("At(%v, %v) = %v, want land", lat, lon, got)
	}
	if got := tex.At(89, 0); got != tex.Ocean {
		t.Fatalf("At(89, 0) = %v, want ocean", got)
	}
}
