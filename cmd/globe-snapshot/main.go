// Command globe-snapshot renders the globe offscreen and writes a PNG. It
// drives frames by hand, so the output is reproducible for a given seed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/latency-globe/core"
	"github.com/signalsfoundry/latency-globe/internal/config"
	"github.com/signalsfoundry/latency-globe/internal/latency"
	"github.com/signalsfoundry/latency-globe/internal/logging"
	"github.com/signalsfoundry/latency-globe/internal/snapshot"
	"github.com/signalsfoundry/latency-globe/internal/view"
	"github.com/signalsfoundry/latency-globe/kb"
	"github.com/signalsfoundry/latency-globe/model"
	"github.com/signalsfoundry/latency-globe/timectrl"
)

type options struct {
	width, height int
	frames        int
	drag          string
	selectID      string
	out           string
}

func main() {
	configPath := flag.String("config", "", "Path to a TOML configuration file")
	pointsPath := flag.String("points", "", "GeoJSON FeatureCollection of exchange locations (default: built-in sample)")
	filter := flag.String("filter", "", "Category filter (all, or a category name)")
	seed := flag.Int64("seed", 1, "Seed for the mock latency source")
	var opts options
	flag.IntVar(&opts.width, "width", 800, "Image width in pixels")
	flag.IntVar(&opts.height, "height", 600, "Image height in pixels")
	flag.IntVar(&opts.frames, "frames", 60, "Frames to advance before capturing")
	flag.StringVar(&opts.drag, "drag", "", "Drag from the image centre by dx,dy pixels before capturing")
	flag.StringVar(&opts.selectID, "select", "", "Tap the marker with this id before capturing")
	flag.StringVar(&opts.out, "out", "globe.png", "Output PNG path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err == nil {
		if *pointsPath != "" {
			cfg.Data.Points = *pointsPath
		}
		if *filter != "" {
			cfg.View.Filter = *filter
		}
		cfg.Refresh.Seed = *seed
		err = run(cfg, opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "globe-snapshot: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, opts options) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logging.New(logging.ConfigFromEnv(cfg.LoggingConfig(os.Stderr)))
	ctx := context.Background()

	palette, err := cfg.Palette()
	if err != nil {
		return err
	}
	set, err := core.LoadPointsFile(cfg.Data.Points)
	if err != nil {
		return err
	}
	catalog := kb.NewCatalog(palette)
	if err := catalog.Replace(set.Points); err != nil {
		return err
	}

	refresher := latency.NewRefresher(catalog,
		latency.NewRandomSource(cfg.Refresh.Seed, cfg.Refresh.MinMs, cfg.Refresh.SpanMs), nil,
		latency.WithLogger(log))
	if err := refresher.Refresh(ctx); err != nil {
		return err
	}

	surface := snapshot.New(opts.width, opts.height,
		fmt.Sprintf("Refreshes every %s", cfg.Refresh.Interval.Duration))
	frames := timectrl.NewManualScheduler(time.Unix(0, 0), cfg.FrameInterval())
	sceneCfg, camCfg, inCfg, loopCfg := cfg.SceneConfig(), cfg.CameraConfig(), cfg.InteractionConfig(), cfg.LoopConfig()

	v, err := view.Mount(ctx, func(context.Context) (view.Surface, error) { return surface, nil }, view.Options{
		Catalog:         catalog,
		Filter:          model.Filter(cfg.View.Filter),
		ShowConnections: cfg.View.ShowConnections,
		Device:          cfg.Device(),
		Palette:         palette,
		Scene:           &sceneCfg,
		Camera:          &camCfg,
		Interaction:     &inCfg,
		Loop:            &loopCfg,
		Frames:          frames,
		Latency:         refresher,
		Logger:          log,
	})
	if err != nil {
		return err
	}
	defer v.Unmount()

	if opts.drag != "" {
		dx, dy, err := parseDrag(opts.drag)
		if err != nil {
			return err
		}
		cx, cy := float64(opts.width)/2, float64(opts.height)/2
		surface.Inject(func(h core.InputHandler) {
			h.PointerDown(core.PointerEvent{X: cx, Y: cy})
			h.PointerMove(core.PointerEvent{X: cx + dx, Y: cy + dy})
			h.PointerUp(core.PointerEvent{X: cx + dx, Y: cy + dy})
		})
	}

	frames.Advance(opts.frames)

	if opts.selectID != "" {
		x, y, ok := markerScreenPos(v, opts.selectID, opts.width, opts.height)
		if !ok {
			return fmt.Errorf("marker %q is not visible", opts.selectID)
		}
		surface.Inject(func(h core.InputHandler) {
			h.PointerDown(core.PointerEvent{X: x, Y: y})
			h.PointerUp(core.PointerEvent{X: x, Y: y})
		})
		frames.Advance(1)
	}
	if frames.Ticks() == 0 {
		frames.Advance(1)
	}

	if err := surface.SavePNG(opts.out); err != nil {
		return err
	}
	log.Info(ctx, "snapshot written",
		logging.String("path", opts.out),
		logging.Int("frames", int(v.Frames())),
		logging.Int("markers", len(v.Scene().Markers)),
	)
	return nil
}

func parseDrag(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("drag %q: want dx,dy", s)
	}
	dx, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("drag %q: %w", s, err)
	}
	dy, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("drag %q: %w", s, err)
	}
	return dx, dy, nil
}

func markerScreenPos(v *view.View, id string, w, h int) (float64, float64, bool) {
	f := core.ComposeFrame(v.Scene(), v.Camera(), v.State(), w, h)
	for _, m := range f.Markers {
		if m.Marker.Point.ID == id && m.Visible {
			return m.X, m.Y, true
		}
	}
	return 0, 0, false
}
