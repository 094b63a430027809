package core

import (
	"math"

	"github.com/signalsfoundry/latency-globe/model"
)

// DeviceClass tells the controller whether hover is a meaningful signal.
type DeviceClass int

const (
	DeviceDesktop DeviceClass = iota
	DeviceTouch               // touch-primary: no hover picking
)

func (d DeviceClass) String() string {
	if d == DeviceTouch {
		return "touch"
	}
	return "desktop"
}

// PointerKind is the input device behind a pointer event.
type PointerKind int

const (
	PointerMouse PointerKind = iota
	PointerTouch
)

// PointerEvent is a pointer position in surface pixels. Touches is the
// number of active touch points for touch events.
type PointerEvent struct {
	X, Y    float64
	Kind    PointerKind
	Touches int
}

// WheelEvent carries a scroll delta; positive zooms out.
type WheelEvent struct {
	DeltaY float64
}

// Cursor is the hint a surface shows under the pointer.
type Cursor int

const (
	CursorDefault Cursor = iota
	CursorPointer
)

// InputHandler receives surface input. Controller implements it.
type InputHandler interface {
	PointerDown(ev PointerEvent)
	PointerMove(ev PointerEvent)
	PointerUp(ev PointerEvent)
	PointerCancel()
	// Wheel reports whether the surface must suppress its default scrolling.
	Wheel(ev WheelEvent) bool
}

// Phase is the drag state machine's state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDragging
)

func (p Phase) String() string {
	if p == PhaseDragging {
		return "dragging"
	}
	return "idle"
}

// Vec2 is a surface position in pixels.
type Vec2 struct {
	X, Y float64
}

// AngularVelocity is the per-frame rotation increment. Pitch is driven by
// vertical pointer motion, Yaw by horizontal motion.
type AngularVelocity struct {
	Pitch float64
	Yaw   float64
}

// Magnitude returns the Euclidean norm of the velocity.
func (v AngularVelocity) Magnitude() float64 {
	return math.Hypot(v.Pitch, v.Yaw)
}

// InteractionState is the mutable state shared between the controller and
// the render loop. Both run on the same goroutine.
type InteractionState struct {
	Phase       Phase
	Press       Vec2
	Last        Vec2
	Moved       bool // the drag left the tap slop at some point
	Velocity    AngularVelocity
	Orientation Orientation

	Hovered  *model.Point
	Selected *model.Point
	Cursor   Cursor
}

// Dragging reports whether a drag is in progress.
func (s *InteractionState) Dragging() bool { return s.Phase == PhaseDragging }

// InteractionConfig tunes pointer handling.
type InteractionConfig struct {
	Sensitivity float64 // radians per pixel of pointer delta
	WheelScale  float64 // distance units per wheel delta unit
	TapSlop     float64 // max press-to-release displacement of a tap, pixels
	Occlude     bool    // markers behind the globe are not pickable
}

// DefaultInteractionConfig mirrors the original viewer.
func DefaultInteractionConfig() InteractionConfig {
	return InteractionConfig{
		Sensitivity: 0.005,
		WheelScale:  0.1,
		TapSlop:     6,
		Occlude:     true,
	}
}

// Listener receives controller events. Nil funcs are skipped.
type Listener struct {
	OnHover  func(p *model.Point)
	OnSelect func(p model.Point)
	OnCursor func(c Cursor)
	OnPick   func(kind string, hit bool)
}

// Controller owns pointer, touch and wheel handling for one mounted view.
type Controller struct {
	cfg      InteractionConfig
	state    *InteractionState
	camera   *Camera
	scene    *Scene
	device   DeviceClass
	width    int
	height   int
	listener Listener
}

// NewController builds a controller mutating state and camera.
func NewController(cfg InteractionConfig, state *InteractionState, cam *Camera, listener Listener) *Controller {
	if state == nil {
		state = &InteractionState{}
	}
	return &Controller{cfg: cfg, state: state, camera: cam, listener: listener}
}

// State returns the shared interaction state.
func (c *Controller) State() *InteractionState { return c.state }

// SetScene swaps the marker set used for picking.
func (c *Controller) SetScene(s *Scene) { c.scene = s }

// SetDevice switches the device class. Moving to a touch device clears any
// hover, which has no meaning there.
func (c *Controller) SetDevice(d DeviceClass) {
	c.device = d
	if d == DeviceTouch {
		c.setHover(nil)
	}
}

// Device returns the current device class.
func (c *Controller) Device() DeviceClass { return c.device }

// SetViewport records the surface size and updates the camera aspect.
func (c *Controller) SetViewport(w, h int, aspect float64) {
	c.width, c.height = w, h
	if c.camera != nil {
		c.camera.SetAspect(aspect)
	}
}

// PointerDown starts a drag. Multi-touch gestures are ignored.
func (c *Controller) PointerDown(ev PointerEvent) {
	if ev.Kind == PointerTouch && ev.Touches > 1 {
		return
	}
	p := Vec2{X: ev.X, Y: ev.Y}
	c.state.Phase = PhaseDragging
	c.state.Press = p
	c.state.Last = p
	c.state.Moved = false
}

// PointerMove updates drag velocity and, on desktop mice, hover.
func (c *Controller) PointerMove(ev PointerEvent) {
	if ev.Kind == PointerTouch && ev.Touches > 1 {
		return
	}
	if c.state.Dragging() {
		dx := ev.X - c.state.Last.X
		dy := ev.Y - c.state.Last.Y
		c.state.Velocity = AngularVelocity{
			Pitch: dy * c.cfg.Sensitivity,
			Yaw:   dx * c.cfg.Sensitivity,
		}
		c.state.Last = Vec2{X: ev.X, Y: ev.Y}
		if math.Hypot(ev.X-c.state.Press.X, ev.Y-c.state.Press.Y) > c.cfg.TapSlop {
			c.state.Moved = true
		}
	}
	if c.device == DeviceDesktop && ev.Kind == PointerMouse {
		m := c.pick(ev.X, ev.Y)
		c.report("hover", m != nil)
		if m == nil {
			c.setHover(nil)
		} else {
			p := m.Point
			c.setHover(&p)
		}
	}
}

// PointerUp ends a drag. A release within TapSlop of the press selects the
// marker under the release position, unless the pointer strayed beyond
// TapSlop on the way. Velocity is left to decay.
func (c *Controller) PointerUp(ev PointerEvent) {
	if !c.state.Dragging() {
		return
	}
	c.state.Phase = PhaseIdle
	if c.state.Moved || math.Hypot(ev.X-c.state.Press.X, ev.Y-c.state.Press.Y) > c.cfg.TapSlop {
		return
	}
	m := c.pick(ev.X, ev.Y)
	c.report("select", m != nil)
	if m == nil {
		return
	}
	p := m.Point
	c.state.Selected = &p
	if c.listener.OnSelect != nil {
		c.listener.OnSelect(p)
	}
}

// PointerCancel ends a drag without selecting.
func (c *Controller) PointerCancel() {
	c.state.Phase = PhaseIdle
}

// Wheel zooms the camera and always claims the event.
func (c *Controller) Wheel(ev WheelEvent) bool {
	if c.camera != nil {
		c.camera.Zoom(ev.DeltaY * c.cfg.WheelScale)
	}
	return true
}

// ClearSelection drops the selected point.
func (c *Controller) ClearSelection() {
	c.state.Selected = nil
}

// ClearHover drops the hovered point, emitting a hover event if one was set.
func (c *Controller) ClearHover() {
	c.setHover(nil)
}

func (c *Controller) pick(px, py float64) *Marker {
	if c.scene == nil || c.camera == nil || c.width <= 0 || c.height <= 0 {
		return nil
	}
	return c.scene.PickAt(c.camera, c.state.Orientation, px, py, c.width, c.height, c.cfg.Occlude)
}

func (c *Controller) setHover(p *model.Point) {
	prev := c.state.Hovered
	changed := (prev == nil) != (p == nil) || (prev != nil && p != nil && prev.ID != p.ID)
	c.state.Hovered = p

	cursor := CursorDefault
	if p != nil {
		cursor = CursorPointer
	}
	if cursor != c.state.Cursor {
		c.state.Cursor = cursor
		if c.listener.OnCursor != nil {
			c.listener.OnCursor(cursor)
		}
	}
	if changed && c.listener.OnHover != nil {
		c.listener.OnHover(p)
	}
}

func (c *Controller) report(kind string, hit bool) {
	if c.listener.OnPick != nil {
		c.listener.OnPick(kind, hit)
	}
}
