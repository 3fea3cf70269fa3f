package dimmer

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeSink records every brightness write.
type fakeSink struct {
	max        int
	current    int
	currentErr error
	setErr     error
	writes     []int
}

func (s *fakeSink) Set(level int) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.writes = append(s.writes, level)
	s.current = level
	return nil
}

func (s *fakeSink) Max() int { return s.max }

func (s *fakeSink) Current() (int, error) {
	if s.currentErr != nil {
		return 0, s.currentErr
	}
	return s.current, nil
}

func testConfig() Config {
	return Config{
		IdleTimeout: 10 * time.Second,
		FadeOut:     800 * time.Millisecond,
		FadeIn:      250 * time.Millisecond,
	}
}

func testMachine(t *testing.T, cfg Config, sink *fakeSink, start time.Time) *Machine {
	t.Helper()
	return NewMachine(cfg, sink, zap.NewNop().Sugar(), start)
}

// advanceTo drives the machine's deadlines forward until the next deadline
// would pass the target instant, returning the reached time.
func advanceTo(m *Machine, now, until time.Time) time.Time {
	for {
		d := m.NextDeadline(now)
		if d.IsZero() || d.After(until) {
			return until
		}
		now = d
		m.OnDeadline(now)
	}
}

func TestNewMachine(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sink := &fakeSink{max: 100, current: 70}
	m := testMachine(t, testConfig(), sink, start)

	if m.State() != StateActive {
		t.Errorf("initial state = %v, want %v", m.State(), StateActive)
	}
	if m.Level() != 70 {
		t.Errorf("initial level = %d, want the hardware's 70", m.Level())
	}
	if !m.LastActivity().Equal(start) {
		t.Errorf("initial last activity = %v, want %v", m.LastActivity(), start)
	}
}

func TestNewMachine_UnreadableCurrentAssumesMax(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sink := &fakeSink{max: 100, currentErr: errors.New("device busy")}
	m := testMachine(t, testConfig(), sink, start)

	if m.Level() != 100 {
		t.Errorf("level = %d, want max 100 when current is unreadable", m.Level())
	}
}

func TestMachine_EndToEndScenario(t *testing.T) {
	// idle 10s, fade out 800ms, fade in 250ms, max 100: no activity for
	// 10s starts the fade-out, level 0 by 10.8s, a keypress at 11s fades
	// back in from 0 and lands on 100 at 11.25s.
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sink := &fakeSink{max: 100, current: 100}
	m := testMachine(t, testConfig(), sink, start)

	if d := m.NextDeadline(start); !d.Equal(start.Add(10 * time.Second)) {
		t.Fatalf("idle deadline = %v, want %v", d, start.Add(10*time.Second))
	}

	now := advanceTo(m, start, start.Add(10*time.Second))
	if m.State() != StateFadingOut {
		t.Fatalf("state after idle timeout = %v, want %v", m.State(), StateFadingOut)
	}

	now = advanceTo(m, now, start.Add(10800*time.Millisecond))
	if m.State() != StateIdle {
		t.Fatalf("state after fade-out = %v, want %v", m.State(), StateIdle)
	}
	if m.Level() != 0 {
		t.Fatalf("level after fade-out = %d, want 0", m.Level())
	}
	if d := m.NextDeadline(now); !d.IsZero() {
		t.Fatalf("idle machine scheduled a deadline %v, want none", d)
	}

	keypress := start.Add(11 * time.Second)
	m.OnActivity(keypress)
	if m.State() != StateFadingIn {
		t.Fatalf("state after keypress = %v, want %v", m.State(), StateFadingIn)
	}

	now = advanceTo(m, keypress, keypress.Add(250*time.Millisecond))
	if m.State() != StateActive {
		t.Fatalf("state after fade-in = %v, want %v", m.State(), StateActive)
	}
	if m.Level() != 100 {
		t.Fatalf("level after fade-in = %d, want 100", m.Level())
	}

	// The idle clock runs from the keypress, not from fade completion.
	if d := m.NextDeadline(now); !d.Equal(keypress.Add(10 * time.Second)) {
		t.Errorf("next idle deadline = %v, want %v", d, keypress.Add(10*time.Second))
	}
}

func TestMachine_FadeOutMonotonic(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sink := &fakeSink{max: 100, current: 100}
	m := testMachine(t, testConfig(), sink, start)

	now := advanceTo(m, start, start.Add(10*time.Second))
	advanceTo(m, now, start.Add(11*time.Second))

	if len(sink.writes) < 20 {
		t.Fatalf("fade-out produced %d writes, want at least 20", len(sink.writes))
	}
	prev := 100
	for i, w := range sink.writes {
		if w > prev {
			t.Fatalf("write %d: level %d went up during fade-out (prev %d)", i, w, prev)
		}
		if w < 0 || w > 100 {
			t.Fatalf("write %d: level %d outside [0, 100]", i, w)
		}
		prev = w
	}
	if last := sink.writes[len(sink.writes)-1]; last != 0 {
		t.Errorf("final write = %d, want 0", last)
	}
}

func TestMachine_IdempotentActivityWhileActive(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sink := &fakeSink{max: 100, current: 100}
	m := testMachine(t, testConfig(), sink, start)

	first := start.Add(time.Second)
	second := start.Add(2 * time.Second)
	m.OnActivity(first)
	m.OnActivity(second)

	if m.State() != StateActive {
		t.Errorf("state = %v, want %v", m.State(), StateActive)
	}
	if len(sink.writes) != 0 {
		t.Errorf("activity while active wrote %v, want no writes", sink.writes)
	}
	if !m.LastActivity().Equal(second) {
		t.Errorf("last activity = %v, want the later event %v", m.LastActivity(), second)
	}
}

func TestMachine_StaleActivityDoesNotRewindClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sink := &fakeSink{max: 100, current: 100}
	m := testMachine(t, testConfig(), sink, start)

	newer := start.Add(5 * time.Second)
	older := start.Add(2 * time.Second)
	m.OnActivity(newer)
	m.OnActivity(older)

	if !m.LastActivity().Equal(newer) {
		t.Errorf("last activity = %v, want %v", m.LastActivity(), newer)
	}
}

func TestMachine_ActivityInterruptsFadeOut(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sink := &fakeSink{max: 100, current: 100}
	m := testMachine(t, testConfig(), sink, start)

	// Run the fade-out to its halfway point.
	now := advanceTo(m, start, start.Add(10*time.Second))
	now = advanceTo(m, now, start.Add(10400*time.Millisecond))
	partial := m.Level()
	if partial <= 0 || partial >= 100 {
		t.Fatalf("mid-fade level = %d, want strictly between 0 and 100", partial)
	}
	if partial < 45 || partial > 55 {
		t.Fatalf("mid-fade level = %d, want about half of 100", partial)
	}

	// Activity reverses the ramp from the partial level, not from 0 and
	// not from the pre-fade level.
	m.OnActivity(now)
	if m.State() != StateFadingIn {
		t.Fatalf("state = %v, want %v", m.State(), StateFadingIn)
	}

	writesBefore := len(sink.writes)
	advanceTo(m, now, now.Add(250*time.Millisecond))

	if m.Level() != 100 {
		t.Errorf("level after fade-in = %d, want 100", m.Level())
	}
	for i, w := range sink.writes[writesBefore:] {
		if w < partial {
			t.Errorf("fade-in write %d: level %d dips below the partial level %d", i, w, partial)
		}
	}
}

func TestMachine_ActivityDuringFadeInKeepsRamp(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sink := &fakeSink{max: 100, current: 100}
	m := testMachine(t, testConfig(), sink, start)

	// Dim fully, then start a fade-in.
	now := advanceTo(m, start, start.Add(11*time.Second))
	wake := start.Add(12 * time.Second)
	m.OnActivity(wake)

	// A second keypress mid-ramp refreshes the idle clock only; the ramp
	// keeps its original schedule.
	now = advanceTo(m, wake, wake.Add(100*time.Millisecond))
	midLevel := m.Level()
	second := now
	m.OnActivity(second)

	if m.State() != StateFadingIn {
		t.Fatalf("state = %v, want still %v", m.State(), StateFadingIn)
	}
	if m.Level() != midLevel {
		t.Errorf("level changed from %d to %d on mid-ramp activity", midLevel, m.Level())
	}

	now = advanceTo(m, now, wake.Add(250*time.Millisecond))
	if m.State() != StateActive {
		t.Fatalf("state = %v, want %v after the original ramp end", m.State(), StateActive)
	}
	if m.Level() != 100 {
		t.Errorf("level = %d, want 100", m.Level())
	}

	// The subsequent idle deadline is computed from the second keypress.
	if d := m.NextDeadline(now); !d.Equal(second.Add(10 * time.Second)) {
		t.Errorf("idle deadline = %v, want %v", d, second.Add(10*time.Second))
	}
}

func TestMachine_ZeroFadeOutWritesImmediately(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := testConfig()
	cfg.FadeOut = 0
	sink := &fakeSink{max: 100, current: 100}
	m := testMachine(t, cfg, sink, start)

	advanceTo(m, start, start.Add(10*time.Second))

	if m.State() != StateIdle {
		t.Fatalf("state = %v, want %v", m.State(), StateIdle)
	}
	if len(sink.writes) != 1 || sink.writes[0] != 0 {
		t.Errorf("writes = %v, want a single immediate write of 0", sink.writes)
	}
}

func TestMachine_AlreadyDarkSkipsFade(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sink := &fakeSink{max: 100, current: 0}
	m := testMachine(t, testConfig(), sink, start)

	advanceTo(m, start, start.Add(10*time.Second))

	if m.State() != StateIdle {
		t.Fatalf("state = %v, want %v", m.State(), StateIdle)
	}
	if len(sink.writes) != 0 {
		t.Errorf("writes = %v, want none for a from == to ramp", sink.writes)
	}

	// The keyboard was dark when dimming began; restore to full, not to 0.
	wake := start.Add(15 * time.Second)
	m.OnActivity(wake)
	advanceTo(m, wake, wake.Add(250*time.Millisecond))
	if m.Level() != 100 {
		t.Errorf("restored level = %d, want max 100", m.Level())
	}
}

func TestMachine_RestoresPreDimLevel(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sink := &fakeSink{max: 100, current: 40}
	m := testMachine(t, testConfig(), sink, start)

	now := advanceTo(m, start, start.Add(11*time.Second))
	if m.Level() != 0 {
		t.Fatalf("level after fade-out = %d, want 0", m.Level())
	}

	wake := now.Add(time.Second)
	m.OnActivity(wake)
	advanceTo(m, wake, wake.Add(250*time.Millisecond))

	if m.Level() != 40 {
		t.Errorf("restored level = %d, want the pre-dim 40", m.Level())
	}
}

func TestMachine_SinkFailuresStillAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sink := &fakeSink{max: 100, current: 100, setErr: errors.New("device removed")}
	m := testMachine(t, testConfig(), sink, start)

	advanceTo(m, start, start.Add(11*time.Second))

	// Best-effort hardware control: the machine's level and state advance
	// even though every write failed.
	if m.State() != StateIdle {
		t.Errorf("state = %v, want %v despite write failures", m.State(), StateIdle)
	}
	if m.Level() != 0 {
		t.Errorf("level = %d, want 0 despite write failures", m.Level())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateActive, "active"},
		{StateFadingOut, "fading-out"},
		{StateIdle, "idle"},
		{StateFadingIn, "fading-in"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
