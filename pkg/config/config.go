// Package config loads and validates daemon configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"
)

// Sink kinds selectable via configuration.
const (
	SinkSysfs  = "sysfs"
	SinkLogind = "logind"
)

// Config holds all configuration for lightkbdd.
type Config struct {
	// Timing
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"LIGHTKBDD_IDLE_TIMEOUT"`
	FadeOut     time.Duration `yaml:"fade_out" env:"LIGHTKBDD_FADE_OUT"`
	FadeIn      time.Duration `yaml:"fade_in" env:"LIGHTKBDD_FADE_IN"`

	// Hardware
	BacklightPath string `yaml:"backlight_path" env:"LIGHTKBDD_BACKLIGHT_PATH"`
	Sink          string `yaml:"sink" env:"LIGHTKBDD_SINK"`

	// Input
	KeyboardOnly bool `yaml:"keyboard_only" env:"LIGHTKBDD_KEYBOARD_ONLY"`

	// Observability
	MetricsAddr string `yaml:"metrics_addr" env:"LIGHTKBDD_METRICS_ADDR"`
	Verbose     bool   `yaml:"verbose" env:"LIGHTKBDD_VERBOSE"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		IdleTimeout:   10 * time.Second,
		FadeOut:       800 * time.Millisecond,
		FadeIn:        250 * time.Millisecond,
		BacklightPath: "/sys/class/leds/kbd_backlight",
		Sink:          SinkSysfs,
		KeyboardOnly:  true,
	}
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// getConfigPath returns the config file path.
func getConfigPath() string {
	// Check for explicit config path
	if path := os.Getenv("LIGHTKBDD_CONFIG"); path != "" {
		return path
	}

	// Check XDG config directory
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "lightkbdd", "config.yaml")
	}

	// Fall back to home directory
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "lightkbdd", "config.yaml")
	}

	return ""
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *Config, path string) error {
	// #nosec G304 - The config file path comes from trusted sources (env var or standard locations)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// Validate checks the configuration for invalid values. It is called by
// Load and again by main after flag overrides are applied.
func Validate(cfg *Config) error {
	if cfg.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be positive")
	}

	if cfg.FadeOut < 0 {
		return fmt.Errorf("fade_out must be non-negative")
	}

	if cfg.FadeIn < 0 {
		return fmt.Errorf("fade_in must be non-negative")
	}

	if cfg.BacklightPath == "" {
		return fmt.Errorf("backlight_path is required")
	}

	switch cfg.Sink {
	case SinkSysfs, SinkLogind:
	default:
		return fmt.Errorf("unknown sink %q (use %s or %s)", cfg.Sink, SinkSysfs, SinkLogind)
	}

	return nil
}
