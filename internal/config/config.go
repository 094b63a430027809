// Package config loads the globe's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/signalsfoundry/latency-globe/core"
	"github.com/signalsfoundry/latency-globe/internal/logging"
	"github.com/signalsfoundry/latency-globe/internal/observability"
	"github.com/signalsfoundry/latency-globe/model"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Duration is a time.Duration decoded from strings such as "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	Scene       SceneConfig       `toml:"scene"`
	Camera      CameraConfig      `toml:"camera"`
	Interaction InteractionConfig `toml:"interaction"`
	Loop        LoopConfig        `toml:"loop"`
	Refresh     RefreshConfig     `toml:"refresh"`
	Categories  []CategoryConfig  `toml:"categories"`
	Data        DataConfig        `toml:"data"`
	View        ViewConfig        `toml:"view"`
	Logging     LoggingConfig     `toml:"logging"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Tracing     TracingConfig     `toml:"tracing"`
}

type SceneConfig struct {
	GlobeRadius  float64 `toml:"globe_radius"`
	GlobeOpacity float64 `toml:"globe_opacity"`
	MarkerRadius float64 `toml:"marker_radius"`
	PickRadius   float64 `toml:"pick_radius"`
	ArcLift      float64 `toml:"arc_lift"`
	ArcSegments  int     `toml:"arc_segments"`
	ArcOpacity   float64 `toml:"arc_opacity"`
	Background   string  `toml:"background"`
}

type CameraConfig struct {
	FOV           float64 `toml:"fov"`
	Near          float64 `toml:"near"`
	Far           float64 `toml:"far"`
	Distance      float64 `toml:"distance"`
	TouchDistance float64 `toml:"touch_distance"`
	MinDistance   float64 `toml:"min_distance"`
	MaxDistance   float64 `toml:"max_distance"`
}

type InteractionConfig struct {
	Sensitivity float64 `toml:"sensitivity"`
	WheelScale  float64 `toml:"wheel_scale"`
	TapSlop     float64 `toml:"tap_slop"`
	Occlude     bool    `toml:"occlude"`
}

type LoopConfig struct {
	Damping     float64 `toml:"damping"`
	IdleEpsilon float64 `toml:"idle_epsilon"`
	AutoRotate  float64 `toml:"auto_rotate"`
	FPS         int     `toml:"fps"`
}

type RefreshConfig struct {
	Interval Duration `toml:"interval"`
	MinMs    int      `toml:"min_ms"`
	SpanMs   int      `toml:"span_ms"`
	Seed     int64    `toml:"seed"`
}

type CategoryConfig struct {
	Name  string `toml:"name"`
	Color string `toml:"color"`
}

type DataConfig struct {
	// Points is a GeoJSON FeatureCollection path. Empty uses the built-in
	// sample data set.
	Points string `toml:"points"`
}

type ViewConfig struct {
	Filter          string `toml:"filter"`
	ShowConnections bool   `toml:"show_connections"`
	Touch           bool   `toml:"touch"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Path   string `toml:"path"`
}

type MetricsConfig struct {
	// Listen is the address of the /metrics endpoint. Empty disables it.
	Listen string `toml:"listen"`
}

type TracingConfig struct {
	Enabled     bool    `toml:"enabled"`
	Exporter    string  `toml:"exporter"`
	Endpoint    string  `toml:"endpoint"`
	ServiceName string  `toml:"service_name"`
	SampleRatio float64 `toml:"sample_ratio"`
}

// Default returns the configuration of the stock viewer.
func Default() Config {
	scene := core.DefaultSceneConfig()
	cam := core.DefaultCameraConfig()
	in := core.DefaultInteractionConfig()
	loop := core.DefaultLoopConfig()

	palette := model.DefaultPalette()
	cats := make([]CategoryConfig, 0, len(palette))
	for _, c := range palette.Categories() {
		cats = append(cats, CategoryConfig{Name: string(c), Color: palette.Color(c).String()})
	}

	return Config{
		Scene: SceneConfig{
			GlobeRadius:  scene.GlobeRadius,
			GlobeOpacity: scene.GlobeOpacity,
			MarkerRadius: scene.MarkerRadius,
			PickRadius:   scene.PickRadius,
			ArcLift:      scene.ArcLift,
			ArcSegments:  scene.ArcSegments,
			ArcOpacity:   scene.ArcOpacity,
			Background:   scene.Background.String(),
		},
		Camera: CameraConfig{
			FOV:           cam.FOV,
			Near:          cam.Near,
			Far:           cam.Far,
			Distance:      cam.Distance,
			TouchDistance: cam.TouchDistance,
			MinDistance:   cam.MinDistance,
			MaxDistance:   cam.MaxDistance,
		},
		Interaction: InteractionConfig{
			Sensitivity: in.Sensitivity,
			WheelScale:  in.WheelScale,
			TapSlop:     in.TapSlop,
			Occlude:     in.Occlude,
		},
		Loop: LoopConfig{
			Damping:     loop.Damping,
			IdleEpsilon: loop.IdleEpsilon,
			AutoRotate:  loop.AutoRotate,
			FPS:         60,
		},
		Refresh: RefreshConfig{
			Interval: Duration{5 * time.Second},
			MinMs:    20,
			SpanMs:   150,
		},
		Categories: cats,
		View: ViewConfig{
			Filter:          string(model.FilterAll),
			ShowConnections: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Path:   "latency-globe.log",
		},
		Tracing: TracingConfig{
			Exporter:    "stdout",
			ServiceName: "latency-globe",
			SampleRatio: 1,
		},
	}
}

// Load decodes a TOML file over Default and validates the result. An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	cats := cfg.Categories
	cfg.Categories = nil
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return finish(cfg, cats)
}

// Decode reads TOML from r over Default and validates the result.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	cats := cfg.Categories
	cfg.Categories = nil
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return finish(cfg, cats)
}

func finish(cfg Config, defaultCats []CategoryConfig) (Config, error) {
	if len(cfg.Categories) == 0 {
		cfg.Categories = defaultCats
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants. All problems are reported at once.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Scene.GlobeRadius <= 0 {
		bad("scene.globe_radius must be positive")
	}
	if c.Scene.MarkerRadius <= c.Scene.GlobeRadius {
		bad("scene.marker_radius (%v) must exceed globe_radius (%v)", c.Scene.MarkerRadius, c.Scene.GlobeRadius)
	}
	if c.Scene.ArcLift <= 1 {
		bad("scene.arc_lift must be greater than 1")
	}
	if c.Scene.ArcSegments < 1 {
		bad("scene.arc_segments must be at least 1")
	}
	if c.Scene.PickRadius <= 0 {
		bad("scene.pick_radius must be positive")
	}
	if c.Scene.ArcOpacity < 0 || c.Scene.ArcOpacity > 1 || c.Scene.GlobeOpacity < 0 || c.Scene.GlobeOpacity > 1 {
		bad("opacities must be within [0, 1]")
	}
	if _, err := model.ParseRGB(c.Scene.Background); err != nil {
		bad("scene.background: %v", err)
	}

	if c.Camera.FOV <= 0 || c.Camera.FOV >= 180 {
		bad("camera.fov must be within (0, 180)")
	}
	if c.Camera.MinDistance > c.Camera.MaxDistance {
		bad("camera.min_distance exceeds max_distance")
	}
	for _, d := range []float64{c.Camera.Distance, c.Camera.TouchDistance} {
		if d < c.Camera.MinDistance || d > c.Camera.MaxDistance {
			bad("camera distance %v outside [%v, %v]", d, c.Camera.MinDistance, c.Camera.MaxDistance)
		}
	}
	if c.Camera.MinDistance <= c.Scene.MarkerRadius {
		bad("camera.min_distance must keep the camera outside the markers")
	}

	if c.Loop.Damping <= 0 || c.Loop.Damping >= 1 {
		bad("loop.damping must be within (0, 1)")
	}
	if c.Loop.FPS <= 0 {
		bad("loop.fps must be positive")
	}
	if c.Interaction.Sensitivity <= 0 {
		bad("interaction.sensitivity must be positive")
	}
	if c.Refresh.Interval.Duration <= 0 {
		bad("refresh.interval must be positive")
	}
	if c.Refresh.MinMs < 0 || c.Refresh.SpanMs <= 0 {
		bad("refresh.min_ms must be non-negative and span_ms positive")
	}

	if _, err := c.Palette(); err != nil {
		errs = append(errs, err)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		bad("tracing.sample_ratio must be within [0, 1]")
	}
	return errors.Join(errs...)
}

// Palette builds the category palette.
func (c Config) Palette() (model.Palette, error) {
	p := make(model.Palette, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return nil, fmt.Errorf("%w: category with empty name", ErrInvalid)
		}
		if cat.Name == string(model.FilterAll) {
			return nil, fmt.Errorf("%w: category name %q is reserved", ErrInvalid, cat.Name)
		}
		rgb, err := model.ParseRGB(cat.Color)
		if err != nil {
			return nil, fmt.Errorf("%w: category %q: %v", ErrInvalid, cat.Name, err)
		}
		if _, dup := p[model.Category(cat.Name)]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalid, cat.Name)
		}
		p[model.Category(cat.Name)] = rgb
	}
	return p, nil
}

// SceneConfig converts to the core scene configuration.
func (c Config) SceneConfig() core.SceneConfig {
	out := core.DefaultSceneConfig()
	out.GlobeRadius = c.Scene.GlobeRadius
	out.GlobeOpacity = c.Scene.GlobeOpacity
	out.MarkerRadius = c.Scene.MarkerRadius
	out.PickRadius = c.Scene.PickRadius
	out.ArcLift = c.Scene.ArcLift
	out.ArcSegments = c.Scene.ArcSegments
	out.ArcOpacity = c.Scene.ArcOpacity
	if bg, err := model.ParseRGB(c.Scene.Background); err == nil {
		out.Background = bg
	}
	return out
}

// CameraConfig converts to the core camera configuration.
func (c Config) CameraConfig() core.CameraConfig {
	return core.CameraConfig{
		FOV:           c.Camera.FOV,
		Near:          c.Camera.Near,
		Far:           c.Camera.Far,
		Distance:      c.Camera.Distance,
		TouchDistance: c.Camera.TouchDistance,
		MinDistance:   c.Camera.MinDistance,
		MaxDistance:   c.Camera.MaxDistance,
	}
}

// InteractionConfig converts to the core interaction configuration.
func (c Config) InteractionConfig() core.InteractionConfig {
	return core.InteractionConfig{
		Sensitivity: c.Interaction.Sensitivity,
		WheelScale:  c.Interaction.WheelScale,
		TapSlop:     c.Interaction.TapSlop,
		Occlude:     c.Interaction.Occlude,
	}
}

// LoopConfig converts to the core render loop configuration.
func (c Config) LoopConfig() core.LoopConfig {
	return core.LoopConfig{
		Damping:     c.Loop.Damping,
		IdleEpsilon: c.Loop.IdleEpsilon,
		AutoRotate:  c.Loop.AutoRotate,
	}
}

// FrameInterval is the wall-clock time between frames.
func (c Config) FrameInterval() time.Duration {
	if c.Loop.FPS <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.Loop.FPS)
}

// Device returns the configured device class.
func (c Config) Device() core.DeviceClass {
	if c.View.Touch {
		return core.DeviceTouch
	}
	return core.DeviceDesktop
}

// LoggingConfig converts to a logger configuration writing to out.
func (c Config) LoggingConfig(out io.Writer) logging.Config {
	return logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: out,
	}
}

// TracingConfig converts to an observability tracing configuration.
func (c Config) TracingConfig(w io.Writer) observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
		Writer:      w,
	}
}
