package core

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/latency-globe/model"
)

// SceneConfig holds the geometric constants of the scene.
type SceneConfig struct {
	GlobeRadius   float64
	GlobeOpacity  float64
	MarkerRadius  float64 // must exceed GlobeRadius so markers sit on the surface
	PickRadius    float64 // bounding sphere radius used for picking
	ArcLift       float64 // control point = midpoint * ArcLift, > 1
	ArcSegments   int
	ArcOpacity    float64
	Background    model.RGB
	Texture       *EarthTexture
	AmbientLight  float64
	DirectLight   float64
	LightPosition r3.Vec
}

// DefaultSceneConfig mirrors the original viewer.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		GlobeRadius:   80,
		GlobeOpacity:  0.95,
		MarkerRadius:  82,
		PickRadius:    2,
		ArcLift:       1.2,
		ArcSegments:   50,
		ArcOpacity:    0.4,
		Background:    model.Hex(0x0a0a0a),
		Texture:       DefaultEarthTexture(),
		AmbientLight:  0.6,
		DirectLight:   0.8,
		LightPosition: r3.Vec{X: 5, Y: 3, Z: 5},
	}
}

// LightKind distinguishes ambient from directional lights.
type LightKind int

const (
	LightAmbient LightKind = iota
	LightDirectional
)

// Light is a white light source. Direction is a unit vector pointing from the
// origin towards the light and is ignored for ambient lights.
type Light struct {
	Kind      LightKind
	Intensity float64
	Direction r3.Vec
}

// Globe is the textured sphere at the origin.
type Globe struct {
	Radius  float64
	Opacity float64
	Texture *EarthTexture
}

// Marker is the pickable representation of one point. Point is a copy of
// the source record used only for lookups on pick.
type Marker struct {
	Point      model.Point
	Position   r3.Vec // globe-local
	Normal     r3.Vec // unit, pointing away from the globe centre
	Color      model.RGB
	PickRadius float64
	Order      int
}

// Arc is a curved connection between two consecutive points.
type Arc struct {
	From, To string
	Start    r3.Vec
	Control  r3.Vec
	End      r3.Vec
	Polyline []r3.Vec

	Latency int
	Known   bool
	Bucket  model.LatencyBucket
	Color   model.RGB
	Opacity float64
}

// Recolor re-derives the bucket and color from the current mapping.
func (a *Arc) Recolor(latency model.LatencyMap) {
	a.Latency, a.Known = ConnectionLatency(latency, a.From, a.To)
	if a.Known {
		a.Bucket = model.BucketFor(a.Latency)
	} else {
		a.Bucket = model.BucketUnknown
	}
	a.Color = a.Bucket.Color()
}

// ConnectionLatency derives a connection's latency as the mean of both
// endpoint samples. It is unknown when either endpoint is.
func ConnectionLatency(latency model.LatencyMap, from, to string) (int, bool) {
	a, okA := latency.Lookup(from)
	b, okB := latency.Lookup(to)
	if !okA || !okB {
		return 0, false
	}
	return (a + b) / 2, true
}

// Scene is one construction pass: globe, lights, markers and arcs. Markers
// double as the pick registry.
type Scene struct {
	Background model.RGB
	Globe      Globe
	Lights     []Light
	Markers    []*Marker
	Arcs       []*Arc

	disposed bool
}

// Recolor updates every arc from a fresh latency mapping.
func (s *Scene) Recolor(latency model.LatencyMap) {
	if s == nil {
		return
	}
	for _, a := range s.Arcs {
		a.Recolor(latency)
	}
}

// Dispose releases the scene's entities. It is safe to call more than once.
func (s *Scene) Dispose() {
	if s == nil || s.disposed {
		return
	}
	s.disposed = true
	s.Markers = nil
	s.Arcs = nil
	s.Lights = nil
	s.Globe.Texture = nil
}

// Disposed reports whether Dispose has been called.
func (s *Scene) Disposed() bool { return s == nil || s.disposed }

// SceneBuilder constructs scenes from a data set.
type SceneBuilder struct {
	cfg     SceneConfig
	palette model.Palette
}

// NewSceneBuilder returns a builder using cfg and the category palette.
func NewSceneBuilder(cfg SceneConfig, palette model.Palette) *SceneBuilder {
	if palette == nil {
		palette = model.DefaultPalette()
	}
	return &SceneBuilder{cfg: cfg, palette: palette}
}

// Config returns the builder's scene configuration.
func (b *SceneBuilder) Config() SceneConfig { return b.cfg }

// BuildMarkers creates one marker per point matching filter, in input order.
func (b *SceneBuilder) BuildMarkers(points []model.Point, filter model.Filter) []*Marker {
	visible := model.FilterPoints(points, filter)
	markers := make([]*Marker, 0, len(visible))
	for i, p := range visible {
		pos := Project(p.Latitude, p.Longitude, b.cfg.MarkerRadius)
		markers = append(markers, &Marker{
			Point:      p,
			Position:   pos,
			Normal:     outward(pos),
			Color:      b.palette.Color(p.Category),
			PickRadius: b.cfg.PickRadius,
			Order:      i,
		})
	}
	return markers
}

// BuildConnections creates max(0, N-1) arcs joining each point to the next
// one in the unfiltered input order.
func (b *SceneBuilder) BuildConnections(points []model.Point, latency model.LatencyMap) []*Arc {
	if len(points) < 2 {
		return []*Arc{}
	}
	arcs := make([]*Arc, 0, len(points)-1)
	for i := 0; i < len(points)-1; i++ {
		from, to := points[i], points[i+1]
		start := Project(from.Latitude, from.Longitude, b.cfg.MarkerRadius)
		end := Project(to.Latitude, to.Longitude, b.cfg.MarkerRadius)
		mid := r3.Scale(0.5, r3.Add(start, end))
		control := r3.Scale(b.cfg.ArcLift, mid)

		arc := &Arc{
			From:     from.ID,
			To:       to.ID,
			Start:    start,
			Control:  control,
			End:      end,
			Polyline: SampleQuadratic(start, control, end, b.cfg.ArcSegments),
			Opacity:  b.cfg.ArcOpacity,
		}
		arc.Recolor(latency)
		arcs = append(arcs, arc)
	}
	return arcs
}

// Build assembles a complete scene. Connections are omitted when
// showConnections is false.
func (b *SceneBuilder) Build(points []model.Point, filter model.Filter, showConnections bool, latency model.LatencyMap) *Scene {
	s := &Scene{
		Background: b.cfg.Background,
		Globe: Globe{
			Radius:  b.cfg.GlobeRadius,
			Opacity: b.cfg.GlobeOpacity,
			Texture: b.cfg.Texture,
		},
		Lights: []Light{
			{Kind: LightAmbient, Intensity: b.cfg.AmbientLight},
			{Kind: LightDirectional, Intensity: b.cfg.DirectLight, Direction: outward(b.cfg.LightPosition)},
		},
		Markers: b.BuildMarkers(points, filter),
		Arcs:    []*Arc{},
	}
	if showConnections {
		s.Arcs = b.BuildConnections(points, latency)
	}
	return s
}

func outward(p r3.Vec) r3.Vec {
	if r3.Norm(p) == 0 {
		return r3.Vec{Y: 1}
	}
	return r3.Unit(p)
}
