package core

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Pick casts ray against the scene's markers, with the globe rotated by o,
// and returns the nearest hit or nil. Equal distances keep the marker added
// first. With occlude set, markers hidden behind the globe are not hit.
func (s *Scene) Pick(ray Ray, o Orientation, occlude bool) *Marker {
	if s == nil || s.disposed || len(s.Markers) == 0 {
		return nil
	}

	globeT, globeHit := 0.0, false
	if occlude && s.Globe.Radius > 0 {
		globeT, globeHit = IntersectSphere(ray, r3.Vec{}, s.Globe.Radius)
	}

	var (
		best  *Marker
		bestT float64
	)
	for _, m := range s.Markers {
		t, ok := IntersectSphere(ray, o.Apply(m.Position), m.PickRadius)
		if !ok {
			continue
		}
		if globeHit && globeT < t {
			continue
		}
		if best == nil || t < bestT {
			best, bestT = m, t
		}
	}
	return best
}

// PickAt picks at a pixel position on a w×h surface.
func (s *Scene) PickAt(cam *Camera, o Orientation, px, py float64, w, h int, occlude bool) *Marker {
	x, y := NDC(px, py, w, h)
	return s.Pick(cam.RayFromNDC(x, y), o, occlude)
}
