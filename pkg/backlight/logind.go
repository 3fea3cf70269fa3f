package backlight

import (
	"fmt"
	"path/filepath"

	"github.com/godbus/dbus/v5"
)

// LogindSink sets brightness through systemd-logind's
// org.freedesktop.login1.Session.SetBrightness call, which logind permits
// for the session owner without root. Max and current levels are still
// read from sysfs, which is world-readable.
type LogindSink struct {
	sysfs     *SysfsSink
	obj       dbus.BusObject
	subsystem string
	name      string
}

// NewLogindSink connects to the system bus and targets the caller's own
// session. The device directory determines the logind subsystem/name pair,
// e.g. /sys/class/leds/kbd_backlight -> ("leds", "kbd_backlight").
func NewLogindSink(dir string) (*LogindSink, error) {
	sysfs, err := NewSysfsSink(dir)
	if err != nil {
		return nil, err
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	return &LogindSink{
		sysfs:     sysfs,
		obj:       conn.Object("org.freedesktop.login1", "/org/freedesktop/login1/session/auto"),
		subsystem: filepath.Base(filepath.Dir(dir)),
		name:      filepath.Base(dir),
	}, nil
}

// Max returns the hardware brightness ceiling.
func (s *LogindSink) Max() int {
	return s.sysfs.Max()
}

// Current returns the brightness level the hardware currently reports.
func (s *LogindSink) Current() (int, error) {
	return s.sysfs.Current()
}

// Set writes a brightness level through logind, clamped to [0, Max].
func (s *LogindSink) Set(level int) error {
	level = clamp(level, 0, s.sysfs.Max())

	call := s.obj.Call("org.freedesktop.login1.Session.SetBrightness", 0,
		s.subsystem, s.name, uint32(level))
	if call.Err != nil {
		return &SinkError{Err: call.Err}
	}
	return nil
}
