// Package api is the host side of the launch protocol. It opens a device,
// hands out teams of cores, launches programs on them and waits for the cores
// to finish.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sarchlab/meshlaunch/args"
	"github.com/sarchlab/meshlaunch/ctrl"
	"github.com/sarchlab/meshlaunch/fabric"
	"github.com/sarchlab/meshlaunch/util"
	"go.uber.org/multierr"
)

// Device provides the interface to control a mesh of cores.
type Device interface {
	// Name returns the name the device was built with.
	Name() string

	// Init opens the whole grid and creates the control region. Calling
	// Init on an initialized device does nothing.
	Init() error

	// Fini releases everything Init acquired. It is safe to call on a device
	// that is not initialized.
	Fini() error

	// Query reports a static property of the device.
	Query(prop Property) (int, error)

	// OpenTeam binds the cores [start, start+count) of the device.
	OpenTeam(start, count int) (*Team, error)

	// Launch runs a program on a range of cores. It returns once every core
	// in the range has been started, not when the cores are done.
	Launch(ctx context.Context, team *Team, req LaunchRequest) error

	// Wait blocks until no core in scope is scheduled or running.
	Wait(ctx context.Context, team *Team) error

	// Status reads the status words of every core.
	Status() ([]ctrl.Status, error)

	// ReadCore and WriteCore access the local memory of a core.
	ReadCore(row, col int, offset uint32, buf []byte) error
	WriteCore(row, col int, offset uint32, buf []byte) error
}

// deviceData is everything that only exists while the device is open.
type deviceData struct {
	wg   fabric.Workgroup
	ctrl *ctrl.Block
	args *args.Block
}

type deviceImpl struct {
	name     string
	driver   fabric.Driver
	topology Topology
	layout   ctrl.Layout

	clock            clock.Clock
	pollInterval     time.Duration
	waitTimeout      time.Duration
	deviceScopedWait bool

	data *deviceData
}

func (d *deviceImpl) Name() string {
	return d.name
}

func (d *deviceImpl) Init() error {
	if d.data != nil {
		return nil
	}

	if err := d.driver.Init(); err != nil {
		return fmt.Errorf("%w: init fabric: %w", ErrIoFailure, err)
	}

	data, err := d.open()
	if err != nil {
		return multierr.Append(err, d.driver.Finalize())
	}

	d.data = data

	util.Trace("Device",
		"Behavior", "Init",
		"Name", d.name,
		"Rows", d.topology.Rows,
		"Cols", d.topology.Cols,
		"CtrlOffset", d.layout.CtrlOffset,
	)

	return nil
}

func (d *deviceImpl) open() (*deviceData, error) {
	if err := d.driver.ResetSystem(); err != nil {
		return nil, fmt.Errorf("%w: reset fabric: %w", ErrIoFailure, err)
	}

	wg, err := d.driver.Open(0, 0, d.topology.Rows, d.topology.Cols)
	if err != nil {
		return nil, fmt.Errorf("%w: open %dx%d cores: %w",
			ErrIoFailure, d.topology.Rows, d.topology.Cols, err)
	}

	block, err := ctrl.Create(d.driver, d.layout)
	if err != nil {
		return nil, multierr.Append(err, wg.Close())
	}

	return &deviceData{wg: wg, ctrl: block}, nil
}

func (d *deviceImpl) Fini() error {
	data := d.data
	if data == nil {
		return nil
	}
	d.data = nil

	var err error
	if data.args != nil {
		err = multierr.Append(err, data.args.Region.Free())
	}
	err = multierr.Append(err, data.ctrl.Free())
	err = multierr.Append(err, data.wg.Close())
	err = multierr.Append(err, d.driver.Finalize())

	util.Trace("Device",
		"Behavior", "Fini",
		"Name", d.name,
	)

	return err
}

// opened returns the state of an open device.
func (d *deviceImpl) opened() (*deviceData, error) {
	if d.data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotOpen, d.name)
	}
	return d.data, nil
}

func (d *deviceImpl) Status() ([]ctrl.Status, error) {
	data, err := d.opened()
	if err != nil {
		return nil, err
	}
	return data.ctrl.ReadAll()
}

func (d *deviceImpl) ReadCore(row, col int, offset uint32, buf []byte) error {
	data, err := d.checkCore(row, col)
	if err != nil {
		return err
	}
	if err := data.wg.Read(row, col, offset, buf); err != nil {
		return fmt.Errorf("%w: read core %s: %w", ErrIoFailure, fabric.CoordName(row, col), err)
	}
	return nil
}

func (d *deviceImpl) WriteCore(row, col int, offset uint32, buf []byte) error {
	data, err := d.checkCore(row, col)
	if err != nil {
		return err
	}
	if err := data.wg.Write(row, col, offset, buf); err != nil {
		return fmt.Errorf("%w: write core %s: %w", ErrIoFailure, fabric.CoordName(row, col), err)
	}
	return nil
}

func (d *deviceImpl) checkCore(row, col int) (*deviceData, error) {
	if row < 0 || row >= d.topology.Rows || col < 0 || col >= d.topology.Cols {
		return nil, fmt.Errorf("%w: core %s outside %dx%d grid",
			ErrInvalidRange, fabric.CoordName(row, col), d.topology.Rows, d.topology.Cols)
	}
	return d.opened()
}

// Use initializes dev, runs fn and finalizes dev on every path out of fn.
func Use(dev Device, fn func(Device) error) (err error) {
	if err := dev.Init(); err != nil {
		return err
	}

	defer func() {
		if finiErr := dev.Fini(); finiErr != nil {
			slog.Warn("device teardown failed", "device", dev.Name(), "error", finiErr)
			err = multierr.Append(err, finiErr)
		}
	}()

	return fn(dev)
}
