package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const deg2rad = math.Pi / 180

// Project converts geographic coordinates to a position on a sphere of the
// given radius centred at the origin. Markers and arc endpoints both go
// through this function so they coincide exactly on the surface.
//
// Latitude and longitude outside their documented ranges are not clamped;
// the result is still finite.
func Project(lat, lon, radius float64) r3.Vec {
	phi := (90 - lat) * deg2rad
	theta := (lon + 180) * deg2rad
	return r3.Vec{
		X: -radius * math.Sin(phi) * math.Cos(theta),
		Y: radius * math.Cos(phi),
		Z: radius * math.Sin(phi) * math.Sin(theta),
	}
}

// Unproject is the inverse of Project for any non-zero p. The returned
// longitude is in (-180, 180].
func Unproject(p r3.Vec) (lat, lon float64) {
	r := r3.Norm(p)
	if r == 0 {
		return 0, 0
	}
	cosPhi := p.Y / r
	if cosPhi > 1 {
		cosPhi = 1
	} else if cosPhi < -1 {
		cosPhi = -1
	}
	lat = 90 - math.Acos(cosPhi)/deg2rad
	lon = math.Atan2(p.Z, -p.X)/deg2rad - 180
	if lon <= -180 {
		lon += 360
	}
	return lat, lon
}

// QuadraticBezier evaluates the curve (p0, p1, p2) at t in [0, 1].
func QuadraticBezier(p0, p1, p2 r3.Vec, t float64) r3.Vec {
	u := 1 - t
	return r3.Add(r3.Add(r3.Scale(u*u, p0), r3.Scale(2*u*t, p1)), r3.Scale(t*t, p2))
}

// SampleQuadratic returns segments+1 evenly spaced samples along the curve,
// starting exactly at p0 and ending exactly at p2.
func SampleQuadratic(p0, p1, p2 r3.Vec, segments int) []r3.Vec {
	if segments < 1 {
		segments = 1
	}
	out := make([]r3.Vec, segments+1)
	out[0] = p0
	for i := 1; i < segments; i++ {
		out[i] = QuadraticBezier(p0, p1, p2, float64(i)/float64(segments))
	}
	out[segments] = p2
	return out
}

// Ray is a half-line with a unit direction.
type Ray struct {
	Origin r3.Vec
	Dir    r3.Vec
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) r3.Vec {
	return r3.Add(r.Origin, r3.Scale(t, r.Dir))
}

// IntersectSphere returns the smallest non-negative distance at which the ray
// enters (or, from inside, leaves) the sphere.
func IntersectSphere(ray Ray, center r3.Vec, radius float64) (float64, bool) {
	oc := r3.Sub(ray.Origin, center)
	b := r3.Dot(oc, ray.Dir)
	c := r3.Dot(oc, oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

// lineOfSight reports whether the straight segment between p1 and p2 stays
// outside a sphere of the given radius at the origin.
func lineOfSight(p1, p2 r3.Vec, radius float64) bool {
	v := r3.Sub(p2, p1)
	a := r3.Dot(v, v)
	if a == 0 {
		return r3.Dot(p1, p1) > radius*radius
	}

	// Closest point on the segment to the origin.
	t := -r3.Dot(p1, v) / a
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	closest := r3.Add(p1, r3.Scale(t, v))
	return r3.Dot(closest, closest) > radius*radius
}

// Orientation is the globe's rotation: yaw about +Y, pitch about +X, applied
// in that order (Euler XYZ).
type Orientation struct {
	Yaw   float64
	Pitch float64
}

var (
	axisX = r3.Vec{X: 1}
	axisY = r3.Vec{Y: 1}
)

// Apply maps a globe-local position into world space.
func (o Orientation) Apply(v r3.Vec) r3.Vec {
	return r3.Rotate(r3.Rotate(v, o.Yaw, axisY), o.Pitch, axisX)
}

// Inverse maps a world-space position back into globe-local space.
func (o Orientation) Inverse(v r3.Vec) r3.Vec {
	return r3.Rotate(r3.Rotate(v, -o.Pitch, axisX), -o.Yaw, axisY)
}

// ClampPitch limits pitch to [-π/2, π/2].
func ClampPitch(pitch float64) float64 {
	return clamp(pitch, -math.Pi/2, math.Pi/2)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
