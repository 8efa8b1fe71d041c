package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sarchlab/meshlaunch/ctrl"
	"github.com/sarchlab/meshlaunch/util"
)

// Wait polls the status array until no core in scope is SCHEDULED or RUNNING.
// There is no wake-up from the cores, so it sleeps a fixed interval between
// polls. Without a timeout, a core that never starts keeps Wait polling until
// ctx is done.
//
// The scope is the team's cores unless the device was built with
// WithDeviceScopedWait.
func (d *deviceImpl) Wait(ctx context.Context, team *Team) error {
	data, err := d.opened()
	if err != nil {
		return err
	}

	if err := d.member(team); err != nil {
		return err
	}

	lo, hi := team.start, team.start+team.count
	if d.deviceScopedWait {
		lo, hi = 0, d.topology.Nodes()
	}

	var deadline time.Time
	if d.waitTimeout > 0 {
		deadline = d.clock.Now().Add(d.waitTimeout)
	}

	for polls := 1; ; polls++ {
		statuses, err := data.ctrl.ReadAll()
		if err != nil {
			return err
		}

		pending := countActive(statuses[lo:hi])
		if pending == 0 {
			util.Trace("Wait",
				"Behavior", "Done",
				"Device", d.name,
				"Polls", polls,
			)
			return nil
		}

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %d cores active: %w", ErrWaitCanceled, pending, err)
		}

		if !deadline.IsZero() && !d.clock.Now().Before(deadline) {
			slog.Warn("wait timed out",
				"device", d.name,
				"pending", pending,
				"timeout", d.waitTimeout,
				"status", "\n"+ctrl.Grid(statuses, d.topology.Cols),
			)
			return fmt.Errorf("%w: %d cores still active after %s",
				ErrLaunchTimeout, pending, d.waitTimeout)
		}

		slog.Debug("wait poll",
			"device", d.name,
			"polls", polls,
			"pending", pending,
		)

		d.clock.Sleep(d.pollInterval)
	}
}

func countActive(statuses []ctrl.Status) int {
	n := 0
	for _, s := range statuses {
		if s.Active() {
			n++
		}
	}
	return n
}
