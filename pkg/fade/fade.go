// Package fade implements timed linear brightness ramps.
package fade

import (
	"math"
	"time"
)

// TickInterval is the sample spacing within a ramp. 10ms keeps even the
// shortest useful fades (around 200ms) at twenty or more steps, which
// renders as visually smooth on typical backlight ranges.
const TickInterval = 10 * time.Millisecond

// Task is a single in-progress ramp between two brightness levels.
// At most one Task is active at any instant; starting a new ramp always
// supersedes and discards the previous one. Cancellation is simply
// dropping the Task at a tick boundary: the last written level stands.
type Task struct {
	From     int
	To       int
	Start    time.Time
	Duration time.Duration
}

// New creates a ramp from one level to another starting at start.
func New(from, to int, start time.Time, duration time.Duration) *Task {
	return &Task{From: from, To: to, Start: start, Duration: duration}
}

// LevelAt returns the interpolated level for the given time, clamped to
// the ramp's endpoints. Levels are monotonic in time toward To.
func (t *Task) LevelAt(now time.Time) int {
	if t.Duration <= 0 {
		return t.To
	}

	frac := float64(now.Sub(t.Start)) / float64(t.Duration)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}

	return t.From + int(math.Round(float64(t.To-t.From)*frac))
}

// Done reports whether the ramp has reached its target by now.
// A ramp with From == To is done immediately and emits no samples.
func (t *Task) Done(now time.Time) bool {
	if t.From == t.To {
		return true
	}
	return !now.Before(t.Start.Add(t.Duration))
}

// End returns the instant at which the ramp reaches its target.
func (t *Task) End() time.Time {
	return t.Start.Add(t.Duration)
}

// NextTick returns the next sample deadline after now: one TickInterval
// ahead, capped at the ramp's end so the final sample lands exactly on
// the target.
func (t *Task) NextTick(now time.Time) time.Time {
	next := now.Add(TickInterval)
	if end := t.End(); next.After(end) {
		return end
	}
	return next
}
