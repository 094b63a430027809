package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// CameraConfig describes the perspective camera and its zoom limits.
type CameraConfig struct {
	FOV           float64 // vertical field of view, degrees
	Near          float64
	Far           float64
	Distance      float64 // default distance on desktop devices
	TouchDistance float64 // default distance on touch-primary devices
	MinDistance   float64
	MaxDistance   float64
}

// DefaultCameraConfig mirrors the original viewer's camera.
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		FOV:           45,
		Near:          0.1,
		Far:           1000,
		Distance:      300,
		TouchDistance: 350,
		MinDistance:   150,
		MaxDistance:   500,
	}
}

// DefaultDistance returns the starting distance for a device class.
func (c CameraConfig) DefaultDistance(d DeviceClass) float64 {
	if d == DeviceTouch && c.TouchDistance > 0 {
		return c.TouchDistance
	}
	return c.Distance
}

// Camera sits on the +Z axis at Distance from the origin, looking at the
// origin with +Y up. Distance is always within [MinDistance, MaxDistance].
type Camera struct {
	cfg      CameraConfig
	distance float64
	aspect   float64
}

// NewCamera builds a camera at the device's default distance.
func NewCamera(cfg CameraConfig, device DeviceClass) *Camera {
	c := &Camera{cfg: cfg, aspect: 1}
	c.SetDistance(cfg.DefaultDistance(device))
	return c
}

// Config returns the camera configuration.
func (c *Camera) Config() CameraConfig { return c.cfg }

// Distance returns the current distance from the globe centre.
func (c *Camera) Distance() float64 { return c.distance }

// SetDistance moves the camera, clamped to the zoom limits.
func (c *Camera) SetDistance(d float64) {
	c.distance = clamp(d, c.cfg.MinDistance, c.cfg.MaxDistance)
}

// Zoom moves the camera by delta (positive is away from the globe).
func (c *Camera) Zoom(delta float64) {
	c.SetDistance(c.distance + delta)
}

// Aspect returns the viewport width/height ratio.
func (c *Camera) Aspect() float64 { return c.aspect }

// SetAspect updates the viewport ratio; non-positive values are ignored.
func (c *Camera) SetAspect(aspect float64) {
	if aspect > 0 && !math.IsInf(aspect, 0) {
		c.aspect = aspect
	}
}

// Position returns the camera position in world space.
func (c *Camera) Position() r3.Vec {
	return r3.Vec{Z: c.distance}
}

func (c *Camera) halfHeight() float64 {
	return math.Tan(c.cfg.FOV * deg2rad / 2)
}

// NDC converts a pixel coordinate on a w×h surface into normalized device
// coordinates (x right, y up, both in [-1, 1]).
func NDC(px, py float64, w, h int) (float64, float64) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	return px/float64(w)*2 - 1, -(py/float64(h))*2 + 1
}

// RayFromNDC returns the ray from the camera through the given NDC point.
func (c *Camera) RayFromNDC(x, y float64) Ray {
	hh := c.halfHeight()
	dir := r3.Unit(r3.Vec{X: x * hh * c.aspect, Y: y * hh, Z: -1})
	return Ray{Origin: c.Position(), Dir: dir}
}

// ToScreen projects a world position onto a w×h surface. ok is false for
// points behind the near plane.
func (c *Camera) ToScreen(p r3.Vec, w, h int) (x, y, depth float64, ok bool) {
	rel := r3.Sub(p, c.Position())
	depth = -rel.Z
	if depth <= c.cfg.Near {
		return 0, 0, depth, false
	}
	hh := c.halfHeight()
	ndcX := rel.X / depth / (hh * c.aspect)
	ndcY := rel.Y / depth / hh
	x = (ndcX + 1) / 2 * float64(w)
	y = (1 - ndcY) / 2 * float64(h)
	return x, y, depth, true
}
