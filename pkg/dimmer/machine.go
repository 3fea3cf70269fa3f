// Package dimmer implements the activity-driven fade state machine that
// dims the backlight after idle and restores it on activity.
package dimmer

import (
	"time"

	"go.uber.org/zap"

	"github.com/raung0/lightkbdd/pkg/fade"
	"github.com/raung0/lightkbdd/pkg/interfaces"
	"github.com/raung0/lightkbdd/pkg/metrics"
)

// State is the dimmer's operating state.
type State int

const (
	// StateActive means full brightness with no fade running.
	StateActive State = iota
	// StateFadingOut means a ramp toward 0 is in progress.
	StateFadingOut
	// StateIdle means brightness is at 0, holding.
	StateIdle
	// StateFadingIn means a ramp back toward the restore level is in progress.
	StateFadingIn
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFadingOut:
		return "fading-out"
	case StateIdle:
		return "idle"
	case StateFadingIn:
		return "fading-in"
	default:
		return "unknown"
	}
}

// Config holds the machine's timing parameters.
type Config struct {
	// IdleTimeout is how long without activity before fade-out begins.
	IdleTimeout time.Duration
	// FadeOut is the duration of the ramp down to 0.
	FadeOut time.Duration
	// FadeIn is the duration of the ramp back up.
	FadeIn time.Duration
}

// Machine owns the dimmer state: the operating state, the last-activity
// timestamp, the current brightness level and the in-flight fade task.
// It is driven from a single goroutine by the daemon loop; all methods
// are synchronous and non-blocking.
type Machine struct {
	cfg  Config
	sink interfaces.BrightnessSink
	log  *zap.SugaredLogger

	state        State
	lastActivity time.Time
	level        int
	restore      int
	task         *fade.Task
}

// NewMachine creates a machine in the Active state. The starting level is
// read from the sink; if the hardware won't say, full brightness is assumed.
func NewMachine(cfg Config, sink interfaces.BrightnessSink, log *zap.SugaredLogger, now time.Time) *Machine {
	level, err := sink.Current()
	if err != nil {
		log.Warnw("failed to read current brightness, assuming max", "error", err)
		level = sink.Max()
	}

	m := &Machine{
		cfg:          cfg,
		sink:         sink,
		log:          log,
		state:        StateActive,
		lastActivity: now,
		level:        level,
		restore:      level,
	}
	metrics.Brightness.Set(float64(level))
	metrics.MachineState.Set(float64(StateActive))
	return m
}

// State returns the current operating state.
func (m *Machine) State() State { return m.state }

// Level returns the brightness level as last written.
func (m *Machine) Level() int { return m.level }

// LastActivity returns the most recent activity timestamp.
func (m *Machine) LastActivity() time.Time { return m.lastActivity }

// OnActivity feeds an activity event into the machine. The idle clock is
// refreshed; an in-flight fade-out is cancelled and reversed from whatever
// partial level it reached. Activity during a fade-in only refreshes the
// idle clock: the ramp is already heading up and is not restarted.
func (m *Machine) OnActivity(now time.Time) {
	// Newer always supersedes older; a stale event never rewinds the clock.
	if now.After(m.lastActivity) {
		m.lastActivity = now
	}
	metrics.ActivityEvents.Inc()

	switch m.state {
	case StateActive, StateFadingIn:
		// Idle clock refreshed, nothing else to do.
	case StateFadingOut, StateIdle:
		m.startFade(m.level, m.restore, m.cfg.FadeIn, now, StateFadingIn, StateActive)
	}
}

// OnDeadline feeds an elapsed deadline into the machine: either the next
// fade tick or the idle timeout, whichever the machine last scheduled.
func (m *Machine) OnDeadline(now time.Time) {
	if m.task != nil {
		m.advanceFade(now)
		return
	}

	// Re-evaluate against the clock rather than trusting the wakeup:
	// activity may have pushed the idle deadline forward in the meantime.
	if m.state == StateActive && !now.Before(m.lastActivity.Add(m.cfg.IdleTimeout)) {
		m.beginDim(now)
	}
}

// NextDeadline returns the next instant the machine needs waking: the next
// fade tick while a ramp runs, the idle deadline while active, and the zero
// time (wait indefinitely) while idle with nothing scheduled.
func (m *Machine) NextDeadline(now time.Time) time.Time {
	if m.task != nil {
		return m.task.NextTick(now)
	}
	if m.state == StateActive {
		return m.lastActivity.Add(m.cfg.IdleTimeout)
	}
	return time.Time{}
}

// beginDim saves the level to restore later and starts the ramp to 0.
// A keyboard that already sat at 0 restores to full instead of to darkness.
func (m *Machine) beginDim(now time.Time) {
	m.restore = m.level
	if m.restore == 0 {
		m.restore = m.sink.Max()
	}
	m.startFade(m.level, 0, m.cfg.FadeOut, now, StateFadingOut, StateIdle)
}

// startFade replaces any in-flight task with a new ramp. Degenerate ramps
// settle immediately: from == to emits nothing, zero duration emits a
// single write of the target.
func (m *Machine) startFade(from, to int, duration time.Duration, now time.Time, fading, settled State) {
	m.task = nil

	if from == to {
		m.setState(settled)
		return
	}

	direction := "out"
	if to > from {
		direction = "in"
	}
	metrics.FadesStarted.WithLabelValues(direction).Inc()

	if duration <= 0 {
		m.write(to)
		m.setState(settled)
		return
	}

	m.task = fade.New(from, to, now, duration)
	m.setState(fading)
}

// advanceFade emits the sample for now and completes the task once the
// target is reached. Samples are written only when the rounded level
// actually changes, so coarse hardware ranges see no duplicate writes.
func (m *Machine) advanceFade(now time.Time) {
	level := m.task.LevelAt(now)
	if level != m.level {
		m.write(level)
	}

	if m.task.Done(now) {
		settled := StateIdle
		if m.state == StateFadingIn {
			settled = StateActive
		}
		m.task = nil
		m.setState(settled)
	}
}

// write pushes a level to the sink. Failed writes are logged and counted
// but the machine's notion of the level still advances: hardware control
// is best-effort and a transient glitch must not wedge the state machine.
func (m *Machine) write(level int) {
	if err := m.sink.Set(level); err != nil {
		metrics.SinkWriteErrors.Inc()
		m.log.Warnw("brightness write failed", "level", level, "error", err)
	}
	m.level = level
	metrics.Brightness.Set(float64(level))
}

func (m *Machine) setState(s State) {
	if s == m.state {
		return
	}
	m.log.Debugw("state transition", "from", m.state.String(), "to", s.String(), "level", m.level)
	m.state = s
	metrics.MachineState.Set(float64(s))
}
