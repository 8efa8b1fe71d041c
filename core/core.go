// Package core simulates a mesh core that follows the launch protocol: it
// waits until its status word says SCHEDULED, reports RUNNING, runs for a
// number of cycles and reports DONE.
package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/meshlaunch/args"
	"github.com/sarchlab/meshlaunch/ctrl"
	"github.com/sarchlab/meshlaunch/shm"
	"github.com/sarchlab/meshlaunch/util"
)

var (
	// ErrNotLoaded means a core was started without a program.
	ErrNotLoaded = errors.New("no program loaded")

	// ErrLocalBounds means an access runs past the local memory of a core.
	ErrLocalBounds = errors.New("local memory access out of bounds")
)

type phase int

const (
	phaseIdle phase = iota
	phaseBoot
	phaseRun
	phaseHalted
)

type coreState struct {
	Program   Program
	Loaded    bool
	Phase     phase
	Remaining int
	Budget    int
}

// Core is one simulated core. It only ticks while it has cycles granted.
type Core struct {
	*sim.TickingComponent

	row, col, index int

	mem    shm.Provider
	ctrl   *ctrl.Block
	layout ctrl.Layout
	local  []byte

	state coreState
}

// Row returns the row of the core in the grid.
func (c *Core) Row() int {
	return c.row
}

// Col returns the column of the core in the grid.
func (c *Core) Col() int {
	return c.col
}

// Load places a program on the core and puts it back to idle.
func (c *Core) Load(p Program) {
	c.state = coreState{
		Program: p,
		Loaded:  true,
	}

	util.Trace("Core",
		"Behavior", "Load",
		"Name", c.Name(),
		"Program", p.Name,
		"Action", string(p.Action),
	)
}

// Start lets the core boot on its next granted cycle.
func (c *Core) Start() error {
	if !c.state.Loaded {
		return fmt.Errorf("%s: %w", c.Name(), ErrNotLoaded)
	}

	c.state.Phase = phaseBoot
	c.state.Remaining = c.state.Program.Cycles

	util.Trace("Core",
		"Behavior", "Start",
		"Name", c.Name(),
		"Time", float64(c.Engine.CurrentTime()*1e9),
	)

	return nil
}

// Reset drops the program and clears local memory.
func (c *Core) Reset() {
	c.state = coreState{}
	clear(c.local)
}

// Started reports whether the core has been started and has not halted.
func (c *Core) Started() bool {
	return c.state.Phase == phaseBoot || c.state.Phase == phaseRun
}

// Grant gives the core n more cycles and schedules a tick. It returns false
// if the core has nothing to do.
func (c *Core) Grant(n int) bool {
	if !c.Started() || n <= 0 {
		return false
	}

	c.state.Budget += n

	// The engine stops at the last tick the core made, so a tick at the
	// current time would be dropped as already taken.
	c.TickLater()

	return true
}

// ReadLocal reads the local memory of the core.
func (c *Core) ReadLocal(offset uint32, buf []byte) error {
	if uint64(offset)+uint64(len(buf)) > uint64(len(c.local)) {
		return fmt.Errorf("%s: read [%#x, +%d): %w", c.Name(), offset, len(buf), ErrLocalBounds)
	}
	copy(buf, c.local[offset:])
	return nil
}

// WriteLocal writes the local memory of the core.
func (c *Core) WriteLocal(offset uint32, buf []byte) error {
	if uint64(offset)+uint64(len(buf)) > uint64(len(c.local)) {
		return fmt.Errorf("%s: write [%#x, +%d): %w", c.Name(), offset, len(buf), ErrLocalBounds)
	}
	copy(c.local[offset:], buf)
	return nil
}

// Tick runs the core for one cycle.
func (c *Core) Tick() (madeProgress bool) {
	if !c.Started() || c.state.Budget <= 0 {
		return false
	}
	c.state.Budget--

	var err error
	switch c.state.Phase {
	case phaseBoot:
		err = c.boot()
	case phaseRun:
		err = c.run()
	}

	if err != nil {
		slog.Error("core halted",
			"core", c.Name(),
			"error", err,
		)
		c.state.Phase = phaseHalted
		return false
	}

	return c.state.Budget > 0 && c.Started()
}

func (c *Core) boot() error {
	if c.state.Program.Action == ActionStall {
		return nil
	}

	s, err := c.ctrl.Status(c.index)
	if err != nil {
		return err
	}

	if s != ctrl.Scheduled {
		return nil
	}

	if err := c.ctrl.SetStatus(c.index, ctrl.Running); err != nil {
		return err
	}
	c.state.Phase = phaseRun

	util.Trace("Core",
		"Behavior", "Running",
		"Name", c.Name(),
		"Time", float64(c.Engine.CurrentTime()*1e9),
	)

	return nil
}

func (c *Core) run() error {
	if c.state.Program.Action == ActionHang {
		return nil
	}

	if c.state.Remaining > 0 {
		c.state.Remaining--
		return nil
	}

	if err := c.act(); err != nil {
		return err
	}

	if err := c.ctrl.SetStatus(c.index, ctrl.Done); err != nil {
		return err
	}
	c.state.Phase = phaseHalted

	util.Trace("Core",
		"Behavior", "Done",
		"Name", c.Name(),
		"Time", float64(c.Engine.CurrentTime()*1e9),
	)

	return nil
}

func (c *Core) act() error {
	switch c.state.Program.Action {
	case ActionEcho:
		list, err := c.readArgs()
		if err != nil {
			return err
		}

		var payload []byte
		for _, a := range list {
			payload = append(payload, a...)
		}
		return c.WriteLocal(0, payload)

	case ActionSum:
		list, err := c.readArgs()
		if err != nil {
			return err
		}

		var sum uint32
		for _, a := range list {
			for _, w := range args.Words(a) {
				sum += w
			}
		}

		var word [4]byte
		binary.LittleEndian.PutUint32(word[:], sum)
		return c.WriteLocal(0, word[:])
	}

	return nil
}

// readArgs follows argsoffset to the argument block of the current launch.
func (c *Core) readArgs() ([][]byte, error) {
	offset, err := c.ctrl.ArgsOffset()
	if err != nil {
		return nil, err
	}

	header := make([]byte, args.HeaderSize(c.layout.MaxArgs))
	if err := c.mem.ReadAt(offset, header); err != nil {
		return nil, fmt.Errorf("read argument header at %#x: %w", offset, err)
	}

	sizes, err := args.DecodeHeader(header, c.layout.MaxArgs)
	if err != nil {
		return nil, err
	}

	total := uint64(len(header))
	for _, s := range sizes {
		total += uint64(s)
	}
	if total > uint64(c.layout.MaxArgsBlockSize()) {
		return nil, fmt.Errorf("%w: block of %d bytes at %#x", args.ErrMalformed, total, offset)
	}

	block := make([]byte, total)
	if err := c.mem.ReadAt(offset, block); err != nil {
		return nil, fmt.Errorf("read argument block at %#x: %w", offset, err)
	}

	return args.Decode(block, c.layout.MaxArgs)
}
