package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/raung0/lightkbdd/pkg/config"
)

func main() {
	var (
		configPath    string
		idleTimeout   time.Duration
		fadeOut       time.Duration
		fadeIn        time.Duration
		backlightPath string
		sinkKind      string
		metricsAddr   string
		keyboardOnly  bool
		verbose       bool
		help          bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.DurationVarP(&idleTimeout, "idle", "i", 0, "Keyboard idle time before dimming (e.g. 10s)")
	flag.DurationVarP(&fadeOut, "fade-out", "O", 0, "Fade out duration")
	flag.DurationVarP(&fadeIn, "fade-in", "I", 0, "Fade in duration")
	flag.StringVar(&backlightPath, "backlight-path", "", "Sysfs backlight device directory")
	flag.StringVar(&sinkKind, "sink", "", "Brightness sink: sysfs or logind")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (disabled when empty)")
	flag.BoolVar(&keyboardOnly, "keyboard-only", true, "Watch only keyboard-like input devices")
	flag.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flag.BoolVar(&help, "help", false, "Show help message")
	flag.Parse()

	if help {
		printUsage()
		os.Exit(0)
	}

	if configPath != "" {
		if err := os.Setenv("LIGHTKBDD_CONFIG", configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error setting config path: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Command line flags override file and environment.
	if flag.CommandLine.Changed("idle") {
		cfg.IdleTimeout = idleTimeout
	}
	if flag.CommandLine.Changed("fade-out") {
		cfg.FadeOut = fadeOut
	}
	if flag.CommandLine.Changed("fade-in") {
		cfg.FadeIn = fadeIn
	}
	if flag.CommandLine.Changed("backlight-path") {
		cfg.BacklightPath = backlightPath
	}
	if flag.CommandLine.Changed("sink") {
		cfg.Sink = sinkKind
	}
	if flag.CommandLine.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if flag.CommandLine.Changed("keyboard-only") {
		cfg.KeyboardOnly = keyboardOnly
	}
	if verbose {
		cfg.Verbose = true
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	deps, err := NewDependencies(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	app := NewApplication(deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		deps.Logger.Info("shutting down")
		cancel()
		app.Stop()
	}()

	deps.Logger.Infow("started",
		"idle_timeout", cfg.IdleTimeout,
		"fade_out", cfg.FadeOut,
		"fade_in", cfg.FadeIn,
		"sink", cfg.Sink,
		"backlight_path", cfg.BacklightPath,
	)

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		// A dead activity source is fatal; the service supervisor restarts us.
		deps.Logger.Errorw("daemon loop failed", "error", err)
		deps.Close()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("lightkbdd - keyboard backlight dimming daemon")
	fmt.Println()
	fmt.Println("Usage: lightkbdd [OPTIONS]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  LIGHTKBDD_IDLE_TIMEOUT    Idle time before dimming (default: 10s)")
	fmt.Println("  LIGHTKBDD_FADE_OUT        Fade out duration (default: 800ms)")
	fmt.Println("  LIGHTKBDD_FADE_IN         Fade in duration (default: 250ms)")
	fmt.Println("  LIGHTKBDD_BACKLIGHT_PATH  Sysfs backlight device directory")
	fmt.Println("  LIGHTKBDD_SINK            Brightness sink: sysfs or logind")
	fmt.Println("  LIGHTKBDD_METRICS_ADDR    Prometheus metrics listen address")
	fmt.Println("  LIGHTKBDD_CONFIG          Path to config file")
	fmt.Println()
	fmt.Println("Configuration file: ~/.config/lightkbdd/config.yaml")
}
