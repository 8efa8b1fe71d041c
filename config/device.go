package config

import (
	"errors"
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/meshlaunch/core"
	"github.com/sarchlab/meshlaunch/ctrl"
	"github.com/sarchlab/meshlaunch/fabric"
	"github.com/sarchlab/meshlaunch/shm"
	"github.com/sarchlab/meshlaunch/util"
)

var (
	// ErrNotInitialized means the device was used before Init.
	ErrNotInitialized = errors.New("device not initialized")

	// ErrOutOfGrid means a coordinate or a group lies outside the mesh.
	ErrOutOfGrid = errors.New("outside the mesh")

	// ErrGroupClosed means the workgroup was used after Close.
	ErrGroupClosed = errors.New("workgroup closed")
)

// Device is a simulated mesh of cores. It implements fabric.Driver.
type Device struct {
	name          string
	engine        sim.Engine
	mem           shm.Provider
	layout        ctrl.Layout
	width, height int
	cyclesPerPoll int
	images        map[string][]byte
	cores         [][]*core.Core

	initialized bool
}

// Name returns the name of the device.
func (d *Device) Name() string {
	return d.name
}

// Memory returns the shared memory of the device.
func (d *Device) Memory() shm.Provider {
	return d.mem
}

// Layout returns the layout the cores use to find the control region.
func (d *Device) Layout() ctrl.Layout {
	return d.layout
}

// Core returns the core at the given position of the mesh.
func (d *Device) Core(row, col int) (*core.Core, error) {
	if row < 0 || col < 0 || row >= d.height || col >= d.width {
		return nil, fmt.Errorf("%w: core %s of a %dx%d mesh",
			ErrOutOfGrid, fabric.CoordName(row, col), d.height, d.width)
	}
	return d.cores[row][col], nil
}

// Init brings the device up.
func (d *Device) Init() error {
	d.initialized = true
	return nil
}

// ResetSystem returns every core to idle and clears its local memory.
func (d *Device) ResetSystem() error {
	if !d.initialized {
		return ErrNotInitialized
	}

	for _, row := range d.cores {
		for _, c := range row {
			c.Reset()
		}
	}

	return nil
}

// Finalize brings the device down. Cores keep whatever state they had.
func (d *Device) Finalize() error {
	if !d.initialized {
		return ErrNotInitialized
	}
	d.initialized = false

	util.Trace("Device",
		"Behavior", "Finalize",
		"Name", d.name,
		"Time", float64(d.engine.CurrentTime()*1e9),
	)

	return nil
}

// Open binds a rectangular group of cores.
func (d *Device) Open(row, col, rows, cols int) (fabric.Workgroup, error) {
	if !d.initialized {
		return nil, ErrNotInitialized
	}

	if row < 0 || col < 0 || rows <= 0 || cols <= 0 ||
		row+rows > d.height || col+cols > d.width {
		return nil, fmt.Errorf("%w: group %dx%d at %s on a %dx%d mesh",
			ErrOutOfGrid, rows, cols, fabric.CoordName(row, col), d.height, d.width)
	}

	return &workgroup{
		dev:  d,
		row:  row,
		col:  col,
		rows: rows,
		cols: cols,
	}, nil
}

// Alloc binds a window of the shared memory.
func (d *Device) Alloc(offset, size uint32) (fabric.Region, error) {
	if !d.initialized {
		return nil, ErrNotInitialized
	}

	r, err := shm.NewRegion(d.mem, offset, size)
	if err != nil {
		return nil, err
	}

	return &region{Region: r, dev: d}, nil
}

// Advance runs every started core for one poll worth of cycles.
func (d *Device) Advance() error {
	kicked := false
	for _, row := range d.cores {
		for _, c := range row {
			if c.Grant(d.cyclesPerPoll) {
				kicked = true
			}
		}
	}

	if !kicked {
		return nil
	}

	return d.engine.Run()
}

func (d *Device) resolve(image string) (core.Program, error) {
	if data, ok := d.images[image]; ok {
		p, err := core.ParseProgram(data)
		if err != nil {
			return core.Program{}, fmt.Errorf("%s: %w", image, err)
		}
		if p.Name == "" {
			p.Name = image
		}
		return p, nil
	}

	return core.LoadProgramFile(image)
}

// region is a shared-memory window. Reading it lets the cores run, so that a
// host polling the control region sees the cores make progress.
type region struct {
	*shm.Region
	dev *Device
}

func (r *region) Read(row, col int, offset uint32, buf []byte) error {
	if err := r.dev.Advance(); err != nil {
		return fmt.Errorf("advance simulation: %w", err)
	}
	return r.Region.Read(row, col, offset, buf)
}

type workgroup struct {
	dev        *Device
	row, col   int
	rows, cols int
	closed     bool
}

func (w *workgroup) core(row, col int) (*core.Core, error) {
	if w.closed {
		return nil, ErrGroupClosed
	}

	if row < 0 || col < 0 || row >= w.rows || col >= w.cols {
		return nil, fmt.Errorf("%w: core %s of a %dx%d group",
			ErrOutOfGrid, fabric.CoordName(row, col), w.rows, w.cols)
	}

	return w.dev.cores[w.row+row][w.col+col], nil
}

func (w *workgroup) Load(image string, row, col int) error {
	c, err := w.core(row, col)
	if err != nil {
		return err
	}

	p, err := w.dev.resolve(image)
	if err != nil {
		return err
	}

	c.Load(p)

	return nil
}

func (w *workgroup) Start(row, col int) error {
	c, err := w.core(row, col)
	if err != nil {
		return err
	}

	return c.Start()
}

func (w *workgroup) Read(row, col int, offset uint32, buf []byte) error {
	c, err := w.core(row, col)
	if err != nil {
		return err
	}

	return c.ReadLocal(offset, buf)
}

func (w *workgroup) Write(row, col int, offset uint32, buf []byte) error {
	c, err := w.core(row, col)
	if err != nil {
		return err
	}

	return c.WriteLocal(offset, buf)
}

func (w *workgroup) Close() error {
	if w.closed {
		return ErrGroupClosed
	}
	w.closed = true

	return nil
}
