// Package backlight provides brightness sinks for LED and display
// backlight devices.
package backlight

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SinkError wraps a failed hardware brightness write. Write failures are
// reported to the caller and logged, but never crash the daemon.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("brightness write failed: %v", e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// SysfsSink writes brightness levels directly to a sysfs device directory
// such as /sys/class/leds/kbd_backlight or /sys/class/backlight/<name>.
// Requires write access to the brightness file (usually root).
type SysfsSink struct {
	dir string
	max int
}

// NewSysfsSink opens the device directory and reads its brightness ceiling.
func NewSysfsSink(dir string) (*SysfsSink, error) {
	max, err := readInt(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return nil, fmt.Errorf("failed to read max brightness: %w", err)
	}
	if max <= 0 {
		return nil, fmt.Errorf("invalid max brightness %d for %s", max, dir)
	}

	return &SysfsSink{dir: dir, max: max}, nil
}

// Max returns the hardware brightness ceiling.
func (s *SysfsSink) Max() int {
	return s.max
}

// Current returns the brightness level the hardware currently reports.
func (s *SysfsSink) Current() (int, error) {
	v, err := readInt(filepath.Join(s.dir, "brightness"))
	if err != nil {
		return 0, fmt.Errorf("failed to read current brightness: %w", err)
	}
	return v, nil
}

// Set writes a brightness level, clamped to [0, Max].
func (s *SysfsSink) Set(level int) error {
	level = clamp(level, 0, s.max)

	path := filepath.Join(s.dir, "brightness")
	if err := os.WriteFile(path, []byte(strconv.Itoa(level)+"\n"), 0o644); err != nil {
		return &SinkError{Err: err}
	}
	return nil
}

func readInt(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid integer in %s: %w", path, err)
	}
	return v, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
