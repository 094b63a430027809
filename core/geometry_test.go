package core

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

const eps = 1e-9

func TestProjectKeepsRadius(t *testing.T) {
	for lat := -90.0; lat <= 90; lat += 7.5 {
		for lon := -180.0; lon <= 180; lon += 11.25 {
			for _, r := range []float64{1, 80, 82} {
				p := Project(lat, lon, r)
				if d := math.Abs(r3.Norm(p) - r); d > eps*r {
					t.Fatalf("|Project(%v, %v, %v)| off by %v", lat, lon, r, d)
				}
			}
		}
	}
}

func TestProjectKnownPositions(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon float64
		want     r3.Vec
	}{
		{"north pole", 90, 0, r3.Vec{Y: 1}},
		{"south pole", -90, 0, r3.Vec{Y: -1}},
		{"null island", 0, 0, r3.Vec{X: 1}},
		{"90E", 0, 90, r3.Vec{Z: -1}},
		{"90W", 0, -90, r3.Vec{Z: 1}},
	}
	for _, tc := range cases {
		got := Project(tc.lat, tc.lon, 1)
		if r3.Norm(r3.Sub(got, tc.want)) > eps {
			t.Errorf("%s: Project = %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestProjectIsContinuous(t *testing.T) {
	const step = 1e-4
	const r = 82.0
	// Chord length for an angular step is at most r*step(rad).
	maxJump := r*step*deg2rad*1.01 + eps
	for lat := -89.0; lat <= 89; lat += 3 {
		for lon := -179.0; lon <= 179; lon += 5 {
			p := Project(lat, lon, r)
			if d := r3.Norm(r3.Sub(Project(lat+step, lon, r), p)); d > maxJump {
				t.Fatalf("latitude step at (%v, %v) jumped %v", lat, lon, d)
			}
			if d := r3.Norm(r3.Sub(Project(lat, lon+step, r), p)); d > maxJump {
				t.Fatalf("longitude step at (%v, %v) jumped %v", lat, lon, d)
			}
		}
	}
}

func TestProjectOutOfRangeIsFinite(t *testing.T) {
	p := Project(120, 400, 80)
	for _, v := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("Project(120, 400) = %+v, want finite values", p)
		}
	}
}

func TestUnprojectInvertsProject(t *testing.T) {
	for _, c := range [][2]float64{{35.6762, 139.6503}, {-33.8688, 151.2093}, {51.5074, -0.1278}, {0, 179.5}, {10, -179.5}} {
		lat, lon := Unproject(Project(c[0], c[1], 80))
		if math.Abs(lat-c[0]) > 1e-9 || math.Abs(lon-c[1]) > 1e-9 {
			t.Errorf("Unproject(Project(%v, %v)) = (%v, %v)", c[0], c[1], lat, lon)
		}
	}
}

func TestSampleQuadraticEndpoints(t *testing.T) {
	p0 := r3.Vec{X: 1}
	p1 := r3.Vec{X: 1, Y: 2}
	p2 := r3.Vec{Y: 1}
	pts := SampleQuadratic(p0, p1, p2, 50)
	if len(pts) != 51 {
		t.Fatalf("SampleQuadratic returned %d points, want 51", len(pts))
	}
	if pts[0] != p0 || pts[50] != p2 {
		t.Fatalf("endpoints = %+v, %+v; want exact %+v, %+v", pts[0], pts[50], p0, p2)
	}
	mid := QuadraticBezier(p0, p1, p2, 0.5)
	want := r3.Vec{X: 0.75, Y: 1.25}
	if r3.Norm(r3.Sub(mid, want)) > eps {
		t.Fatalf("midpoint = %+v, want %+v", mid, want)
	}
}

func TestIntersectSphere(t *testing.T) {
	ray := Ray{Origin: r3.Vec{Z: 300}, Dir: r3.Vec{Z: -1}}
	tHit, ok := IntersectSphere(ray, r3.Vec{}, 80)
	if !ok || math.Abs(tHit-220) > eps {
		t.Fatalf("IntersectSphere = (%v, %v), want (220, true)", tHit, ok)
	}

	miss := Ray{Origin: r3.Vec{X: 100, Z: 300}, Dir: r3.Vec{Z: -1}}
	if _, ok := IntersectSphere(miss, r3.Vec{}, 80); ok {
		t.Fatalf("expected ray at x=100 to miss a radius-80 sphere")
	}

	away := Ray{Origin: r3.Vec{Z: 300}, Dir: r3.Vec{Z: 1}}
	if _, ok := IntersectSphere(away, r3.Vec{}, 80); ok {
		t.Fatalf("expected ray pointing away to miss")
	}
}

func TestLineOfSight(t *testing.T) {
	if !lineOfSight(r3.Vec{X: 100}, r3.Vec{X: 100, Y: 50}, 80) {
		t.Errorf("expected clear segment outside the sphere")
	}
	if lineOfSight(r3.Vec{X: 100}, r3.Vec{X: -100}, 80) {
		t.Errorf("expected segment through the sphere to be blocked")
	}
}

func TestOrientationRoundTrip(t *testing.T) {
	o := Orientation{Yaw: 1.234, Pitch: -0.7}
	v := r3.Vec{X: 3, Y: -4, Z: 12}
	back := o.Inverse(o.Apply(v))
	if r3.Norm(r3.Sub(back, v)) > 1e-9 {
		t.Fatalf("Inverse(Apply(v)) = %+v, want %+v", back, v)
	}
	if d := math.Abs(r3.Norm(o.Apply(v)) - r3.Norm(v)); d > 1e-9 {
		t.Fatalf("rotation changed length by %v", d)
	}
}

func TestClampPitch(t *testing.T) {
	if got := ClampPitch(2); got != math.Pi/2 {
		t.Fatalf("ClampPitch(2) = %v", got)
	}
	if got := ClampPitch(-2); got != -math.Pi/2 {
		t.Fatalf("ClampPitch(-2) = %v", got)
	}
	if got := ClampPitch(0.3); got != 0.3 {
		t.Fatalf("ClampPitch(0.3) = %v", got)
	}
}
