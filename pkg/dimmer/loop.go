package dimmer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/raung0/lightkbdd/pkg/interfaces"
)

// Loop is the daemon's single control loop. Each iteration it asks the
// machine for the next relevant deadline, blocks on the activity source
// until an event or that deadline, and dispatches the wakeup cause to the
// machine. The machine and fade engine run synchronously inside this loop;
// there is no shared state to lock.
type Loop struct {
	machine *Machine
	source  interfaces.ActivitySource
	clock   interfaces.Clock
	log     *zap.SugaredLogger
}

// NewLoop wires a loop around a machine, source and clock.
func NewLoop(machine *Machine, source interfaces.ActivitySource, clock interfaces.Clock, log *zap.SugaredLogger) *Loop {
	return &Loop{
		machine: machine,
		source:  source,
		clock:   clock,
		log:     log,
	}
}

// Run drives the loop until the context is cancelled, the source is closed
// (clean shutdown, returns nil) or the source fails fatally (the error is
// propagated so the supervising process can restart the daemon).
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deadline := l.machine.NextDeadline(l.clock.Now())

		ts, err := l.source.Next(deadline)
		switch {
		case err == nil:
			l.machine.OnActivity(ts)
		case errors.Is(err, interfaces.ErrDeadline):
			l.machine.OnDeadline(l.clock.Now())
		case errors.Is(err, interfaces.ErrClosed):
			l.log.Debug("activity source closed, stopping")
			return nil
		default:
			return fmt.Errorf("daemon loop: %w", err)
		}
	}
}
