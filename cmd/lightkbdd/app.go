package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/raung0/lightkbdd/pkg/backlight"
	"github.com/raung0/lightkbdd/pkg/config"
	"github.com/raung0/lightkbdd/pkg/dimmer"
	"github.com/raung0/lightkbdd/pkg/input"
	"github.com/raung0/lightkbdd/pkg/interfaces"
	"github.com/raung0/lightkbdd/pkg/logging"
	"github.com/raung0/lightkbdd/pkg/metrics"
)

// Dependencies holds all the dependencies for the daemon.
type Dependencies struct {
	Config  *config.Config
	Logger  *zap.SugaredLogger
	Sink    interfaces.BrightnessSink
	Source  *input.EvdevSource
	Machine *dimmer.Machine
	Loop    *dimmer.Loop

	metricsServer *http.Server
}

// NewDependencies creates all dependencies with the given configuration.
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	logging.SetVerbose(cfg.Verbose)

	deps := &Dependencies{
		Config: cfg,
		Logger: logging.New("main"),
	}

	var (
		sink interfaces.BrightnessSink
		err  error
	)
	switch cfg.Sink {
	case config.SinkLogind:
		sink, err = backlight.NewLogindSink(cfg.BacklightPath)
	default:
		sink, err = backlight.NewSysfsSink(cfg.BacklightPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open backlight: %w", err)
	}
	deps.Sink = sink

	source, err := input.NewEvdevSource(cfg.KeyboardOnly, logging.New("input"))
	if err != nil {
		return nil, fmt.Errorf("failed to open input devices: %w", err)
	}
	deps.Source = source

	clock := interfaces.SystemClock{}
	deps.Machine = dimmer.NewMachine(dimmer.Config{
		IdleTimeout: cfg.IdleTimeout,
		FadeOut:     cfg.FadeOut,
		FadeIn:      cfg.FadeIn,
	}, sink, logging.New("dimmer"), clock.Now())
	deps.Loop = dimmer.NewLoop(deps.Machine, source, clock, logging.New("loop"))

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		deps.metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			deps.Logger.Infow("serving metrics", "addr", cfg.MetricsAddr)
			if err := deps.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				deps.Logger.Warnw("metrics server failed", "error", err)
			}
		}()
	}

	return deps, nil
}

// Close cleans up all dependencies.
func (d *Dependencies) Close() {
	if d.Source != nil {
		d.Source.Close()
	}

	if d.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.metricsServer.Shutdown(ctx)
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}
}

// Application represents the running daemon.
type Application struct {
	deps *Dependencies
}

// NewApplication creates an application with the given dependencies.
func NewApplication(deps *Dependencies) *Application {
	return &Application{deps: deps}
}

// Run drives the daemon loop until shutdown or a fatal source error.
func (a *Application) Run(ctx context.Context) error {
	return a.deps.Loop.Run(ctx)
}

// Stop unblocks the loop for a graceful shutdown.
func (a *Application) Stop() {
	if a.deps.Source != nil {
		a.deps.Source.Close()
	}
}
