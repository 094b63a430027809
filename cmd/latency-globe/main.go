package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/latency-globe/core"
	"github.com/signalsfoundry/latency-globe/internal/config"
	"github.com/signalsfoundry/latency-globe/internal/latency"
	"github.com/signalsfoundry/latency-globe/internal/logging"
	"github.com/signalsfoundry/latency-globe/internal/observability"
	"github.com/signalsfoundry/latency-globe/internal/tui"
	"github.com/signalsfoundry/latency-globe/internal/view"
	"github.com/signalsfoundry/latency-globe/kb"
	"github.com/signalsfoundry/latency-globe/model"
	"github.com/signalsfoundry/latency-globe/timectrl"
)

func main() {
	configPath := flag.String("config", "", "Path to a TOML configuration file")
	pointsPath := flag.String("points", "", "GeoJSON FeatureCollection of exchange locations (default: built-in sample)")
	filter := flag.String("filter", "", "Initial category filter (all, or a category name)")
	touch := flag.Bool("touch", false, "Start in touch mode (no hover picking)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (empty disables)")
	logPath := flag.String("log-file", "", "Log file; the terminal is owned by the globe")
	seed := flag.Int64("seed", 0, "Seed for the mock latency source (0 draws from the clock)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "latency-globe: %v\n", err)
		os.Exit(1)
	}
	if *pointsPath != "" {
		cfg.Data.Points = *pointsPath
	}
	if *filter != "" {
		cfg.View.Filter = *filter
	}
	if *touch {
		cfg.View.Touch = true
	}
	if *metricsAddr != "" {
		cfg.Metrics.Listen = *metricsAddr
	}
	if *logPath != "" {
		cfg.Logging.Path = *logPath
	}
	if *seed != 0 {
		cfg.Refresh.Seed = *seed
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "latency-globe: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logFile, err := os.OpenFile(cfg.Logging.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	log := logging.New(logging.ConfigFromEnv(cfg.LoggingConfig(logFile)))
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx,
		observability.TracingConfigFromEnv(cfg.TracingConfig(logFile)), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	reg := prometheus.NewRegistry()
	globeMetrics, err := observability.NewGlobeCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	schedMetrics, err := observability.NewSchedulerCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if srv := serveMetrics(cfg.Metrics.Listen, globeMetrics, log); srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	palette, err := cfg.Palette()
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(ctx, cfg.Data.Points, palette, log)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	quitCtx, quit := context.WithCancel(sigCtx)
	defer quit()

	dispatcher := timectrl.NewDispatcher()
	dispatcher.Observer = schedMetrics
	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	go func() {
		_ = dispatcher.Run(runCtx)
	}()

	refresher := latency.NewRefresher(catalog,
		latency.NewRandomSource(cfg.Refresh.Seed, cfg.Refresh.MinMs, cfg.Refresh.SpanMs),
		timectrl.NewTickScheduler(cfg.Refresh.Interval.Duration, nil),
		latency.WithLogger(log),
		latency.WithMetrics(globeMetrics),
	)
	if err := refresher.Start(quitCtx); err != nil {
		return fmt.Errorf("start latency refresh: %w", err)
	}
	defer refresher.Stop()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	controls := &tui.Controls{
		Filters: palette.Filters(),
		Quit:    quit,
		OnError: func(err error) { log.Warn(ctx, "command rejected", logging.Err(err)) },
	}
	open := func(context.Context) (view.Surface, error) {
		s, err := tui.New(screen, tui.Options{
			Dispatch: dispatcher.Post,
			Keys:     controls.HandleKey,
			Footer:   fmt.Sprintf("Refreshes every %s | q quit  f filter  c connections  t touch  +/- zoom", cfg.Refresh.Interval.Duration),
			Logger:   log,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	frames := timectrl.NewTickScheduler(cfg.FrameInterval(), dispatcher.Post)
	frames.Observer = schedMetrics
	sceneCfg, camCfg, inCfg, loopCfg := cfg.SceneConfig(), cfg.CameraConfig(), cfg.InteractionConfig(), cfg.LoopConfig()

	var v *view.View
	var mountErr error
	err = dispatcher.Do(quitCtx, func() {
		v, mountErr = view.Mount(quitCtx, open, view.Options{
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
			Dispatch:        dispatcher.Post,
			Latency:         refresher,
			Events: view.Events{
				OnSelect: func(d view.Detail) {
					log.Info(ctx, "exchange selected",
						logging.String("point", d.Point.ID),
						logging.String("region", d.Point.Region),
						logging.String("latency", d.Latency),
					)
				},
			},
			Logger:  log,
			Metrics: globeMetrics,
		})
		controls.Target = v
	})
	if err == nil {
		err = mountErr
	}
	if err != nil {
		return fmt.Errorf("mount globe: %w", err)
	}

	<-quitCtx.Done()
	log.Info(ctx, "shutting down", logging.String("cause", context.Cause(quitCtx).Error()))

	refresher.Stop()
	unmountCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := dispatcher.Do(unmountCtx, v.Unmount); err != nil && !errors.Is(err, timectrl.ErrDispatcherClosed) {
		log.Warn(ctx, "unmount did not complete", logging.Err(err))
	}
	stopRun()
	<-dispatcher.Done()
	return nil
}

func loadCatalog(ctx context.Context, path string, palette model.Palette, log logging.Logger) (*kb.Catalog, error) {
	set, err := core.LoadPointsFile(path)
	if err != nil {
		return nil, err
	}
	for _, id := range set.OutOfRange {
		log.Warn(ctx, "point coordinates out of range", logging.String("point", id))
	}
	catalog := kb.NewCatalog(palette)
	if err := catalog.Replace(set.Points); err != nil {
		return nil, err
	}
	source := path
	if source == "" {
		source = "sample"
	}
	log.Info(ctx, "loaded exchange locations",
		logging.String("source", source),
		logging.Int("count", catalog.Len()),
	)
	return catalog, nil
}

func serveMetrics(addr string, collector *observability.GlobeCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
