package core

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/latency-globe/model"
)

// ScreenPoint is a projected vertex. Visible is false when the vertex is
// behind the camera or hidden by the globe.
type ScreenPoint struct {
	X, Y    float64
	Depth   float64
	Visible bool
}

// ScreenMarker is a marker projected for one frame.
type ScreenMarker struct {
	Marker   *Marker
	ScreenPoint
	Hovered  bool
	Selected bool
}

// ScreenArc is an arc polyline projected for one frame.
type ScreenArc struct {
	Arc    *Arc
	Points []ScreenPoint
}

// Frame is everything a surface needs to draw one image: the projected
// markers and arcs plus enough camera state to shade the globe per pixel.
type Frame struct {
	Width, Height int
	Number        uint64

	Background  model.RGB
	Orientation Orientation
	Distance    float64

	Markers []ScreenMarker
	Arcs    []ScreenArc

	Hovered  *model.Point
	Selected *model.Point

	// Status of the owning view, filled in by the caller.
	Latency         model.LatencyMap
	Palette         model.Palette
	Filter          model.Filter
	ShowConnections bool
	Device          DeviceClass
	ActivePoints    int

	scene  *Scene
	camera *Camera
}

// ComposeFrame projects the scene for a w×h surface.
func ComposeFrame(scene *Scene, cam *Camera, state *InteractionState, w, h int) *Frame {
	f := &Frame{
		Width:    w,
		Height:   h,
		scene:    scene,
		camera:   cam,
		Distance: cam.Distance(),
	}
	if state != nil {
		f.Orientation = state.Orientation
		f.Hovered = state.Hovered
		f.Selected = state.Selected
	}
	if scene == nil || scene.Disposed() {
		return f
	}
	f.Background = scene.Background

	eye := cam.Position()
	radius := scene.Globe.Radius
	project := func(local r3.Vec) ScreenPoint {
		world := f.Orientation.Apply(local)
		x, y, depth, ok := cam.ToScreen(world, w, h)
		return ScreenPoint{X: x, Y: y, Depth: depth, Visible: ok && lineOfSight(eye, world, radius)}
	}

	f.Markers = make([]ScreenMarker, 0, len(scene.Markers))
	for _, m := range scene.Markers {
		sm := ScreenMarker{Marker: m, ScreenPoint: project(m.Position)}
		sm.Hovered = f.Hovered != nil && f.Hovered.ID == m.Point.ID
		sm.Selected = f.Selected != nil && f.Selected.ID == m.Point.ID
		f.Markers = append(f.Markers, sm)
	}

	f.Arcs = make([]ScreenArc, 0, len(scene.Arcs))
	for _, a := range scene.Arcs {
		sa := ScreenArc{Arc: a, Points: make([]ScreenPoint, len(a.Polyline))}
		for i, p := range a.Polyline {
			sa.Points[i] = project(p)
		}
		f.Arcs = append(f.Arcs, sa)
	}
	return f
}

// ShadeGlobe returns the globe color under pixel (px, py), composited over
// the background, and whether the pixel covers the globe at all.
func (f *Frame) ShadeGlobe(px, py float64) (model.RGB, bool) {
	if f.scene == nil || f.scene.Disposed() || f.camera == nil {
		return f.Background, false
	}
	g := f.scene.Globe
	x, y := NDC(px, py, f.Width, f.Height)
	ray := f.camera.RayFromNDC(x, y)
	t, ok := IntersectSphere(ray, r3.Vec{}, g.Radius)
	if !ok {
		return f.Background, false
	}
	hit := ray.At(t)
	normal := r3.Unit(hit)

	lat, lon := Unproject(f.Orientation.Inverse(hit))
	base := g.Texture.At(lat, lon)

	intensity := 0.0
	for _, l := range f.scene.Lights {
		switch l.Kind {
		case LightAmbient:
			intensity += l.Intensity
		case LightDirectional:
			intensity += l.Intensity * math.Max(0, r3.Dot(normal, l.Direction))
		}
	}
	lit := base.Scale(math.Min(intensity, 1))
	return lit.Blend(f.Background, g.Opacity), true
}

// TooltipLines describes the hovered point: name, provider, region and
// latency. It is nil when nothing is hovered.
func (f *Frame) TooltipLines() []string {
	if f.Hovered == nil {
		return nil
	}
	p := f.Hovered
	return []string{
		p.ID,
		"Provider: " + string(p.Category),
		"Region: " + p.Region,
		"Latency: " + f.Latency.Format(p.ID),
	}
}

// SelectionLine summarises the selected point, or returns "".
func (f *Frame) SelectionLine() string {
	if f.Selected == nil {
		return ""
	}
	p := f.Selected
	return fmt.Sprintf("Selected: %s (%s, %s) %s", p.ID, p.Category, p.Region, f.Latency.Format(p.ID))
}

// StatusLine summarises the view settings.
func (f *Frame) StatusLine() string {
	conn := "off"
	if f.ShowConnections {
		conn = "on"
	}
	filter := f.Filter
	if filter == "" {
		filter = model.FilterAll
	}
	return fmt.Sprintf("Filter: %s | Connections: %s | Active points: %d | %s", filter, conn, f.ActivePoints, f.Device)
}
