// Package input provides activity sources backed by Linux evdev devices.
package input

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"go.uber.org/zap"

	"github.com/raung0/lightkbdd/pkg/interfaces"
)

// SourceError wraps a fatal activity source failure. It kills the daemon
// loop; the surrounding supervisor is expected to restart the process.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("activity source failed: %v", e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// watchedDevice pairs an open device with the path it was opened from.
type watchedDevice struct {
	dev  *evdev.InputDevice
	path string
}

// EvdevSource watches /dev/input event devices and reports key activity.
// One reader goroutine per device feeds a coalescing buffer: bursts may
// collapse into a single wakeup, but the most recent activity timestamp
// is always preserved, and no event is lost while the daemon loop is busy
// processing a previous tick.
type EvdevSource struct {
	log     *zap.SugaredLogger
	devices []watchedDevice

	lastNanos atomic.Int64
	notify    chan struct{}
	errs      chan error
	done      chan struct{}
	live      atomic.Int32

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewEvdevSource opens all suitable input devices and starts watching them.
// With keyboardOnly set, only devices exposing typing keys are watched;
// otherwise any key-capable device (including mice) counts as activity.
func NewEvdevSource(keyboardOnly bool, log *zap.SugaredLogger) (*EvdevSource, error) {
	devices, err := openDevices(keyboardOnly)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no usable input devices found")
	}

	s := &EvdevSource{
		log:     log,
		devices: devices,
		notify:  make(chan struct{}, 1),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	s.live.Store(int32(len(devices)))

	for _, wd := range devices {
		name, _ := wd.dev.Name()
		log.Debugw("watching input device", "path", wd.path, "name", name)

		s.wg.Add(1)
		go s.watch(wd)
	}

	return s, nil
}

// openDevices enumerates /dev/input and opens matching event devices.
func openDevices(keyboardOnly bool) ([]watchedDevice, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to list input devices: %w", err)
	}

	var devices []watchedDevice
	for _, p := range paths {
		dev, err := evdev.Open(p.Path)
		if err != nil {
			// Permission or hotplug races; skip and keep scanning.
			continue
		}

		codes := dev.CapableEvents(evdev.EV_KEY)
		if len(codes) == 0 || (keyboardOnly && !IsKeyboard(codes)) {
			_ = dev.Close()
			continue
		}

		devices = append(devices, watchedDevice{dev: dev, path: p.Path})
	}

	return devices, nil
}

// IsKeyboard reports whether a device's EV_KEY capabilities look like a
// physical keyboard: it must emit both letter and enter keys. This filters
// out mice, lid switches and power buttons, which also speak EV_KEY.
func IsKeyboard(codes []evdev.EvCode) bool {
	hasA := false
	hasEnter := false
	for _, c := range codes {
		switch c {
		case evdev.KEY_A:
			hasA = true
		case evdev.KEY_ENTER:
			hasEnter = true
		}
	}
	return hasA && hasEnter
}

// watch reads events from one device until it errors or the source closes.
// When the last device dies the source reports a fatal error.
func (s *EvdevSource) watch(wd watchedDevice) {
	defer s.wg.Done()

	for {
		ev, err := wd.dev.ReadOne()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}

			s.log.Warnw("input device read failed", "path", wd.path, "error", err)
			if s.live.Add(-1) == 0 {
				select {
				case s.errs <- &SourceError{Err: fmt.Errorf("all input devices failed, last: %w", err)}:
				default:
				}
			}
			return
		}

		if ev.Type != evdev.EV_KEY {
			continue
		}
		// 1 = press, 2 = autorepeat; releases alone don't count.
		if ev.Value != 1 && ev.Value != 2 {
			continue
		}

		s.record(time.Now())
	}
}

// record notes an activity timestamp and wakes a pending Next call.
// The timestamp is monotonic-latest; the wakeup channel coalesces.
func (s *EvdevSource) record(t time.Time) {
	nanos := t.UnixNano()
	for {
		prev := s.lastNanos.Load()
		if nanos <= prev {
			break
		}
		if s.lastNanos.CompareAndSwap(prev, nanos) {
			break
		}
	}

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until an activity event arrives or the deadline passes.
// A zero deadline waits indefinitely. A pending event wins over a
// simultaneously expired deadline.
func (s *EvdevSource) Next(deadline time.Time) (time.Time, error) {
	// Drain any event that arrived while the caller was busy.
	select {
	case <-s.notify:
		return s.last(), nil
	default:
	}

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-s.notify:
		return s.last(), nil
	case err := <-s.errs:
		return time.Time{}, err
	case <-s.done:
		return time.Time{}, interfaces.ErrClosed
	case <-timeout:
		// An event may have raced the timer; activity takes priority.
		select {
		case <-s.notify:
			return s.last(), nil
		default:
		}
		return time.Time{}, interfaces.ErrDeadline
	}
}

func (s *EvdevSource) last() time.Time {
	return time.Unix(0, s.lastNanos.Load())
}

// Close stops all device readers and unblocks a pending Next with
// ErrClosed. Safe to call more than once.
func (s *EvdevSource) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		for _, wd := range s.devices {
			_ = wd.dev.Close()
		}
	})
	s.wg.Wait()
}
