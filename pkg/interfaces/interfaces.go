// Package interfaces defines the core interfaces used throughout the daemon.
package interfaces

import (
	"errors"
	"time"
)

// ErrDeadline is returned by ActivitySource.Next when the deadline elapses
// before any activity arrives.
var ErrDeadline = errors.New("deadline elapsed")

// ErrClosed is returned by ActivitySource.Next after the source has been
// closed. It signals a clean shutdown, not a failure.
var ErrClosed = errors.New("activity source closed")

// Clock provides the current time. Production code uses SystemClock;
// tests substitute a synthetic clock to drive the daemon deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock implementation.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// BrightnessSink accepts brightness writes for a backlight device.
type BrightnessSink interface {
	// Set writes a brightness level, clamped to [0, Max].
	// A failed write is reported but is never fatal to the daemon.
	Set(level int) error
	// Max returns the hardware brightness ceiling.
	Max() int
	// Current returns the brightness level the hardware currently reports.
	Current() (int, error)
}

// ActivitySource delivers user input activity events.
type ActivitySource interface {
	// Next blocks until an activity event arrives or the deadline passes,
	// whichever comes first. A zero deadline means wait indefinitely.
	// It returns the event timestamp, ErrDeadline if the deadline elapsed
	// with no event, ErrClosed after Close, or a fatal source error.
	// A pending event always wins over a simultaneously expired deadline.
	Next(deadline time.Time) (time.Time, error)
}
