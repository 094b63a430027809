// Package view owns the lifecycle of one mounted globe: it opens a render
// surface, builds the scene, wires input, drives the render loop and tears
// everything down again.
//
// A View is not safe for concurrent use. Every method, and every callback it
// registers, must run on one goroutine; Options.Dispatch is used to bring
// catalog and latency notifications onto it.
package view

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/latency-globe/core"
	"github.com/signalsfoundry/latency-globe/internal/logging"
	"github.com/signalsfoundry/latency-globe/internal/observability"
	"github.com/signalsfoundry/latency-globe/kb"
	"github.com/signalsfoundry/latency-globe/model"
	"github.com/signalsfoundry/latency-globe/timectrl"
)

const tracerName = "github.com/signalsfoundry/latency-globe/internal/view"

var (
	ErrInvalidSurface = errors.New("invalid render surface")
	ErrUnmounted      = errors.New("view unmounted")
	ErrUnknownFilter  = errors.New("unknown filter")
)

// Surface is where frames are drawn and input comes from.
type Surface interface {
	// Size returns the drawable area in surface pixels.
	Size() (width, height int)
	// Bind starts delivering input to h until the returned func is called.
	Bind(h core.InputHandler) (unbind func())
	Draw(f *core.Frame) error
	SetCursor(c core.Cursor)
	// ReleaseScene frees any surface-side resources derived from s.
	ReleaseScene(s *core.Scene)
	Close() error
}

// PixelAspecter is implemented by surfaces whose pixels are not square,
// such as terminal cells. PixelAspect is pixel width over pixel height.
type PixelAspecter interface {
	PixelAspect() float64
}

// Opener acquires a surface.
type Opener func(ctx context.Context) (Surface, error)

// LatencyFeed supplies latency mappings. latency.Refresher implements it.
type LatencyFeed interface {
	Current() model.LatencyMap
	Subscribe(fn func(model.LatencyMap)) (unsubscribe func())
}

// Detail is what a selection reports.
type Detail struct {
	Point     model.Point
	Latency   string // "<n> ms" or the unknown sentinel
	LatencyMs int
	Known     bool
	Color     model.RGB
}

// Events are the view's outbound notifications. Nil funcs are skipped.
type Events struct {
	OnHover   func(p *model.Point)
	OnSelect  func(d Detail)
	OnMetrics func(m model.LatencyMap)
}

// Options configure Mount. Zero values fall back to the stock viewer.
type Options struct {
	// Catalog provides the data set and change notifications. When nil,
	// Points is used as a fixed data set.
	Catalog *kb.Catalog
	Points  []model.Point

	Filter          model.Filter
	ShowConnections bool
	Device          core.DeviceClass
	Palette         model.Palette

	Scene       *core.SceneConfig
	Camera      *core.CameraConfig
	Interaction *core.InteractionConfig
	Loop        *core.LoopConfig

	// Frames drives the render loop. Defaults to a 60 Hz TickScheduler
	// posting through Dispatch.
	Frames   timectrl.Scheduler
	Dispatch func(func()) bool

	Latency LatencyFeed
	Events  Events

	Logger  logging.Logger
	Metrics *observability.GlobeCollector
}

// View is one mounted globe.
type View struct {
	ctx     context.Context
	log     logging.Logger
	metrics *observability.GlobeCollector
	events  Events
	palette model.Palette
	post    func(func())

	surface Surface
	builder *core.SceneBuilder
	camera  *core.Camera
	state   *core.InteractionState
	ctrl    *core.Controller
	loop    *core.RenderLoop
	frames  timectrl.Scheduler

	scene   *core.Scene
	unbind  func()
	unsubs  []func()
	catalog *kb.Catalog

	points          []model.Point
	latency         model.LatencyMap
	filter          model.Filter
	showConnections bool
	device          core.DeviceClass
	width, height   int

	unmounted bool
}

// Mount opens a surface and starts rendering. On any failure everything
// acquired so far is released and the error wraps ErrInvalidSurface.
func Mount(ctx context.Context, open Opener, opts Options) (v *View, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, log := logging.WithSession(ctx, opts.Logger)
	ctx, span := observability.StartSpan(ctx, tracerName, "view.mount")
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	if open == nil {
		return nil, fmt.Errorf("%w: no opener", ErrInvalidSurface)
	}
	surface, err := open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSurface, err)
	}
	if surface == nil {
		return nil, fmt.Errorf("%w: opener returned nil", ErrInvalidSurface)
	}
	w, h := surface.Size()
	if w <= 0 || h <= 0 {
		if cerr := surface.Close(); cerr != nil {
			log.Warn(ctx, "closing rejected surface failed", logging.Err(cerr))
		}
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidSurface, w, h)
	}

	v = newView(ctx, log, surface, opts)
	if opts.Filter != "" && opts.Filter != model.FilterAll {
		if _, ok := v.palette[model.Category(opts.Filter)]; !ok {
			v.teardown()
			return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, opts.Filter)
		}
	}

	v.syncViewport()
	v.rebuild(ctx, "mount")

	if opts.Latency != nil {
		v.unsubs = append(v.unsubs, opts.Latency.Subscribe(func(m model.LatencyMap) {
			v.post(func() { v.applyLatency(m) })
		}))
	}
	if v.catalog != nil {
		v.unsubs = append(v.unsubs, v.catalog.Subscribe(func(e kb.Event) {
			v.post(func() { v.applyPoints(e.Points) })
		}))
	}

	if err := v.frames.Start(v.loop.Tick); err != nil {
		v.teardown()
		return nil, fmt.Errorf("start frame scheduler: %w", err)
	}

	span.SetAttributes(
		attribute.Int("markers", len(v.scene.Markers)),
		attribute.Int("arcs", len(v.scene.Arcs)),
		attribute.String("device", v.device.String()),
	)
	log.Info(ctx, "globe mounted",
		logging.Int("width", w),
		logging.Int("height", h),
		logging.Int("points", len(v.points)),
		logging.String("filter", string(v.filter)),
		logging.String("device", v.device.String()),
	)
	return v, nil
}

func newView(ctx context.Context, log logging.Logger, surface Surface, opts Options) *View {
	palette := opts.Palette
	if palette == nil {
		palette = model.DefaultPalette()
	}
	sceneCfg := core.DefaultSceneConfig()
	if opts.Scene != nil {
		sceneCfg = *opts.Scene
	}
	camCfg := core.DefaultCameraConfig()
	if opts.Camera != nil {
		camCfg = *opts.Camera
	}
	inCfg := core.DefaultInteractionConfig()
	if opts.Interaction != nil {
		inCfg = *opts.Interaction
	}
	loopCfg := core.DefaultLoopConfig()
	if opts.Loop != nil {
		loopCfg = *opts.Loop
	}
	filter := opts.Filter
	if filter == "" {
		filter = model.FilterAll
	}

	v := &View{
		ctx:             ctx,
		log:             log,
		metrics:         opts.Metrics,
		events:          opts.Events,
		palette:         palette,
		surface:         surface,
		builder:         core.NewSceneBuilder(sceneCfg, palette),
		camera:          core.NewCamera(camCfg, opts.Device),
		state:           &core.InteractionState{},
		catalog:         opts.Catalog,
		filter:          filter,
		showConnections: opts.ShowConnections,
		device:          opts.Device,
	}

	v.post = func(fn func()) { fn() }
	if opts.Dispatch != nil {
		dispatch := opts.Dispatch
		v.post = func(fn func()) {
			if !dispatch(fn) {
				log.Debug(ctx, "dispatcher closed; dropping view update")
			}
		}
	}

	if v.catalog != nil {
		v.points = v.catalog.Points()
	} else {
		v.points = append([]model.Point(nil), opts.Points...)
	}
	v.latency = model.LatencyMap{}
	if opts.Latency != nil {
		v.latency = opts.Latency.Current()
	}

	v.ctrl = core.NewController(inCfg, v.state, v.camera, core.Listener{
		OnHover:  v.onHover,
		OnSelect: v.onSelect,
		OnCursor: surface.SetCursor,
		OnPick:   v.metrics.ObservePick,
	})
	v.ctrl.SetDevice(opts.Device)
	v.loop = core.NewRenderLoop(loopCfg, v.state, v.draw, v.onDrawError)

	v.frames = opts.Frames
	if v.frames == nil {
		v.frames = timectrl.NewTickScheduler(time.Second/60, opts.Dispatch)
	}
	return v
}

// SetFilter rebuilds the scene showing only markers of the given category.
func (v *View) SetFilter(f model.Filter) error {
	if v.unmounted {
		return ErrUnmounted
	}
	if f == "" {
		f = model.FilterAll
	}
	if f != model.FilterAll {
		if _, ok := v.palette[model.Category(f)]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownFilter, f)
		}
	}
	v.filter = f
	v.rebuild(v.ctx, "filter")
	return nil
}

// SetShowConnections toggles the connection arcs.
func (v *View) SetShowConnections(show bool) error {
	if v.unmounted {
		return ErrUnmounted
	}
	v.showConnections = show
	v.rebuild(v.ctx, "connections")
	return nil
}

// SetDevice switches device class and moves the camera to that device's
// default distance.
func (v *View) SetDevice(d core.DeviceClass) error {
	if v.unmounted {
		return ErrUnmounted
	}
	v.device = d
	v.ctrl.SetDevice(d)
	v.camera.SetDistance(v.camera.Config().DefaultDistance(d))
	v.rebuild(v.ctx, "device")
	return nil
}

// SetPoints replaces the data set. With a catalog the change goes through
// it, so other subscribers see it too.
func (v *View) SetPoints(points []model.Point) error {
	if v.unmounted {
		return ErrUnmounted
	}
	if v.catalog != nil {
		return v.catalog.Replace(points)
	}
	if err := model.ValidatePoints(points, v.palette); err != nil {
		return err
	}
	v.applyPoints(append([]model.Point(nil), points...))
	return nil
}

// Zoom moves the camera by delta, clamped to the zoom limits.
func (v *View) Zoom(delta float64) {
	if v.unmounted {
		return
	}
	v.camera.Zoom(delta)
}

// ClearSelection drops the current selection.
func (v *View) ClearSelection() {
	if v.unmounted {
		return
	}
	v.ctrl.ClearSelection()
}

// Unmount stops rendering and releases everything Mount acquired. It is
// idempotent and never fails; close errors are logged.
func (v *View) Unmount() {
	if v == nil || v.unmounted {
		return
	}
	v.teardown()
	v.log.Info(v.ctx, "globe unmounted", logging.Int("frames", int(v.loop.Frames())))
}

func (v *View) teardown() {
	v.unmounted = true
	if v.frames != nil {
		v.frames.Stop()
	}
	for _, unsub := range v.unsubs {
		unsub()
	}
	v.unsubs = nil
	if v.unbind != nil {
		v.unbind()
		v.unbind = nil
	}
	if v.scene != nil {
		v.surface.ReleaseScene(v.scene)
		v.scene.Dispose()
	}
	v.ctrl.SetScene(nil)
	if err := v.surface.Close(); err != nil {
		v.log.Warn(v.ctx, "closing surface failed", logging.Err(err))
	}
}

// Mounted reports whether the view is live.
func (v *View) Mounted() bool { return v != nil && !v.unmounted }

// Hovered returns the hovered point, if any.
func (v *View) Hovered() *model.Point { return v.state.Hovered }

// Selected returns the selected point, if any.
func (v *View) Selected() *model.Point { return v.state.Selected }

// State exposes the interaction state.
func (v *View) State() *core.InteractionState { return v.state }

// Scene returns the current scene.
func (v *View) Scene() *core.Scene { return v.scene }

// Camera returns the view's camera.
func (v *View) Camera() *core.Camera { return v.camera }

// Latency returns the mapping the arcs are currently colored by.
func (v *View) Latency() model.LatencyMap { return v.latency.Clone() }

// Filter returns the active filter.
func (v *View) Filter() model.Filter { return v.filter }

// ShowConnections reports whether arcs are shown.
func (v *View) ShowConnections() bool { return v.showConnections }

// Device returns the active device class.
func (v *View) Device() core.DeviceClass { return v.device }

// Frames returns the number of frames rendered.
func (v *View) Frames() uint64 { return v.loop.Frames() }

// Detail looks up a point in the data set.
func (v *View) Detail(id string) (Detail, bool) {
	for _, p := range v.points {
		if p.ID == id {
			return v.detail(p), true
		}
	}
	return Detail{}, false
}

func (v *View) detail(p model.Point) Detail {
	ms, ok := v.latency.Lookup(p.ID)
	return Detail{
		Point:     p,
		Latency:   v.latency.Format(p.ID),
		LatencyMs: ms,
		Known:     ok,
		Color:     v.palette.Color(p.Category),
	}
}

func (v *View) rebuild(ctx context.Context, reason string) {
	start := time.Now()
	_, span := observability.StartSpan(ctx, tracerName, "view.rebuild",
		attribute.String("reason", reason))
	defer span.End()

	if v.unbind != nil {
		v.unbind()
		v.unbind = nil
	}
	if v.scene != nil {
		v.surface.ReleaseScene(v.scene)
		v.scene.Dispose()
	}

	v.scene = v.builder.Build(v.points, v.filter, v.showConnections, v.latency)
	v.ctrl.SetScene(v.scene)

	if h := v.state.Hovered; h != nil && !v.hasMarker(h.ID) {
		v.ctrl.ClearHover()
	}
	if s := v.state.Selected; s != nil && !v.hasPoint(s.ID) {
		v.ctrl.ClearSelection()
	}

	v.unbind = v.surface.Bind(v.ctrl)

	d := time.Since(start)
	markers, arcs := len(v.scene.Markers), len(v.scene.Arcs)
	v.metrics.ObserveRebuild(reason, d, markers, arcs)
	span.SetAttributes(attribute.Int("markers", markers), attribute.Int("arcs", arcs))
	v.log.Debug(ctx, "scene rebuilt",
		logging.String("reason", reason),
		logging.Int("markers", markers),
		logging.Int("arcs", arcs),
		logging.Duration("took", d),
	)
}

func (v *View) applyLatency(m model.LatencyMap) {
	if v.unmounted {
		return
	}
	v.latency = m
	v.scene.Recolor(m)
	if v.events.OnMetrics != nil {
		v.events.OnMetrics(m.Clone())
	}
}

func (v *View) applyPoints(points []model.Point) {
	if v.unmounted {
		return
	}
	v.points = points
	v.rebuild(v.ctx, "points")
}

func (v *View) syncViewport() {
	w, h := v.surface.Size()
	if w <= 0 || h <= 0 || (w == v.width && h == v.height) {
		return
	}
	v.width, v.height = w, h
	aspect := float64(w) / float64(h)
	if pa, ok := v.surface.(PixelAspecter); ok && pa.PixelAspect() > 0 {
		aspect *= pa.PixelAspect()
	}
	v.ctrl.SetViewport(w, h, aspect)
}

func (v *View) draw(time.Time) error {
	if v.unmounted {
		return nil
	}
	v.syncViewport()
	f := core.ComposeFrame(v.scene, v.camera, v.state, v.width, v.height)
	f.Number = v.loop.Frames()
	f.Latency = v.latency
	f.Palette = v.palette
	f.Filter = v.filter
	f.ShowConnections = v.showConnections
	f.Device = v.device
	f.ActivePoints = len(v.scene.Markers)

	if err := v.surface.Draw(f); err != nil {
		v.metrics.IncRenderErrors()
		return err
	}
	v.metrics.IncFrames()
	return nil
}

func (v *View) onDrawError(err error) {
	v.log.Warn(v.ctx, "frame draw failed", logging.Err(err), logging.Int("frame", int(v.loop.Frames())))
}

func (v *View) onHover(p *model.Point) {
	if v.events.OnHover != nil {
		v.events.OnHover(p)
	}
}

func (v *View) onSelect(p model.Point) {
	d := v.detail(p)
	v.log.Debug(v.ctx, "point selected", logging.String("point", p.ID), logging.String("latency", d.Latency))
	if v.events.OnSelect != nil {
		v.events.OnSelect(d)
	}
}

func (v *View) hasMarker(id string) bool {
	for _, m := range v.scene.Markers {
		if m.Point.ID == id {
			return true
		}
	}
	return false
}

func (v *View) hasPoint(id string) bool {
	for _, p := range v.points {
		if p.ID == id {
			return true
		}
	}
	return false
}
