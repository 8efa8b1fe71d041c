package api

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sarchlab/meshlaunch/args"
	"github.com/sarchlab/meshlaunch/ctrl"
	"github.com/sarchlab/meshlaunch/fabric"
	"github.com/sarchlab/meshlaunch/util"
)

// Program is a compiled program image.
type Program struct {
	// Path names the image. The fabric driver resolves it.
	Path string
}

// LaunchRequest describes one launch.
type LaunchRequest struct {
	Program Program

	// Function is the entry point. The image decides where execution
	// starts; the name is only recorded.
	Function string

	// Start and Size select the cores [Start, Start+Size) of the device.
	Start int
	Size  int

	// Args are copied into the argument block that every core of the launch
	// shares.
	Args [][]byte

	// Flags is reserved.
	Flags uint32
}

// Launch packs the arguments once for the whole range, records where they
// are, and then loads, marks and starts the cores. Each of the three phases
// covers the whole range before the next one begins, so no core can move past
// SCHEDULED before every core of the batch is marked.
func (d *deviceImpl) Launch(ctx context.Context, team *Team, req LaunchRequest) error {
	n := d.topology.Nodes()
	if req.Start < 0 || req.Size <= 0 || req.Start+req.Size > n {
		return fmt.Errorf("%w: cores [%d, %d) on a grid of %d",
			ErrInvalidRange, req.Start, req.Start+req.Size, n)
	}

	data, err := d.opened()
	if err != nil {
		return err
	}

	if err := d.member(team); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	id := uuid.NewString()

	if err := d.writeArgs(data, id, req.Args); err != nil {
		return err
	}

	l := &launch{
		id:   id,
		dev:  d,
		data: data,
		req:  req,
	}

	if err := l.loadAll(); err != nil {
		return err
	}

	if err := l.markAll(); err != nil {
		return err
	}

	if err := l.startAll(); err != nil {
		return err
	}

	util.Trace("Launch",
		"Behavior", "Started",
		"ID", id,
		"Program", req.Program.Path,
		"Function", req.Function,
		"Start", req.Start,
		"Size", req.Size,
	)

	return nil
}

// writeArgs replaces the argument block of the device and records its
// offset in the control region.
func (d *deviceImpl) writeArgs(data *deviceData, id string, list [][]byte) error {
	if data.args != nil {
		if err := data.args.Region.Free(); err != nil {
			return fmt.Errorf("%w: release previous argument block: %w", ErrIoFailure, err)
		}
		data.args = nil
	}

	block, err := args.Pack(d.driver, d.layout, list)
	if err != nil {
		return err
	}
	data.args = block

	if err := data.ctrl.RecordArgsOffset(block.Offset); err != nil {
		return err
	}

	util.Trace("Launch",
		"Behavior", "ArgsPacked",
		"ID", id,
		"NumArgs", len(list),
		"Offset", block.Offset,
		"Size", block.Size,
	)

	return nil
}

// launch tracks the progress of one launch so that a failure can report
// which cores were touched.
type launch struct {
	id   string
	dev  *deviceImpl
	data *deviceData
	req  LaunchRequest

	loaded  []int
	marked  []int
	started []int
}

func (l *launch) cores() []int {
	out := make([]int, 0, l.req.Size)
	for i := l.req.Start; i < l.req.Start+l.req.Size; i++ {
		out = append(out, i)
	}
	return out
}

func (l *launch) coord(i int) (int, int) {
	return fabric.CoreCoord(i, l.dev.topology.Cols)
}

func (l *launch) loadAll() error {
	for _, i := range l.cores() {
		row, col := l.coord(i)
		if err := l.data.wg.Load(l.req.Program.Path, row, col); err != nil {
			return l.fail(PhaseLoad, i, err)
		}
		l.loaded = append(l.loaded, i)
	}
	return nil
}

func (l *launch) markAll() error {
	for _, i := range l.cores() {
		if err := l.data.ctrl.SetStatus(i, ctrl.Scheduled); err != nil {
			return l.fail(PhaseMark, i, err)
		}
		l.marked = append(l.marked, i)
	}
	return nil
}

func (l *launch) startAll() error {
	for _, i := range l.cores() {
		row, col := l.coord(i)
		if err := l.data.wg.Start(row, col); err != nil {
			return l.fail(PhaseStart, i, err)
		}
		l.started = append(l.started, i)
	}
	return nil
}

func (l *launch) fail(phase Phase, core int, err error) error {
	row, col := l.coord(core)

	lerr := &LaunchError{
		ID:      l.id,
		Phase:   phase,
		Core:    core,
		Row:     row,
		Col:     col,
		Loaded:  l.loaded,
		Marked:  l.marked,
		Started: l.started,
		Err:     err,
	}

	util.Trace("Launch",
		"Behavior", "Failed",
		"ID", l.id,
		"Phase", phase.String(),
		"Core", core,
		"Error", err.Error(),
	)

	return lerr
}
