// Package config assembles a simulated mesh device that implements the fabric
// driver on top of akita cores and a shared-memory provider.
package config

import (
	"fmt"

	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/meshlaunch/core"
	"github.com/sarchlab/meshlaunch/ctrl"
	"github.com/sarchlab/meshlaunch/shm"
)

// DefaultCyclesPerPoll is how many cycles every started core runs each time
// the host reads shared memory.
const DefaultCyclesPerPoll = 64

// DeviceBuilder can build simulated mesh devices.
type DeviceBuilder struct {
	engine        sim.Engine
	freq          sim.Freq
	width, height int
	mem           shm.Provider
	layout        *ctrl.Layout
	localMemSize  int
	cyclesPerPoll int
	images        map[string][]byte
	monitor       *monitoring.Monitor
}

// WithEngine sets the engine that drives the device simulation.
func (d DeviceBuilder) WithEngine(engine sim.Engine) DeviceBuilder {
	d.engine = engine
	return d
}

// WithFreq sets the frequency of the device.
func (d DeviceBuilder) WithFreq(freq sim.Freq) DeviceBuilder {
	d.freq = freq
	return d
}

// WithWidth sets the number of columns of the mesh.
func (d DeviceBuilder) WithWidth(width int) DeviceBuilder {
	d.width = width
	return d
}

// WithHeight sets the number of rows of the mesh.
func (d DeviceBuilder) WithHeight(height int) DeviceBuilder {
	d.height = height
	return d
}

// WithMemory sets the shared memory. Without it, the device allocates an
// in-memory provider large enough for the layout.
func (d DeviceBuilder) WithMemory(mem shm.Provider) DeviceBuilder {
	d.mem = mem
	return d
}

// WithLayout sets where the control region lives. It must match the layout
// the host uses.
func (d DeviceBuilder) WithLayout(l ctrl.Layout) DeviceBuilder {
	d.layout = &l
	return d
}

// WithLocalMemSize sets the local memory size of each core.
func (d DeviceBuilder) WithLocalMemSize(n int) DeviceBuilder {
	d.localMemSize = n
	return d
}

// WithCyclesPerPoll sets how far the simulation advances on each host read.
func (d DeviceBuilder) WithCyclesPerPoll(n int) DeviceBuilder {
	d.cyclesPerPoll = n
	return d
}

// WithImage registers a program image under a name. Load looks names up here
// before trying the file system.
func (d DeviceBuilder) WithImage(name string, image []byte) DeviceBuilder {
	images := make(map[string][]byte, len(d.images)+1)
	for k, v := range d.images {
		images[k] = v
	}
	images[name] = image
	d.images = images
	return d
}

// WithMonitor sets the monitor that keeps track of the engine and the cores.
func (d DeviceBuilder) WithMonitor(monitor *monitoring.Monitor) DeviceBuilder {
	d.monitor = monitor
	return d
}

// Build creates a simulated device.
func (d DeviceBuilder) Build(name string) *Device {
	if d.engine == nil {
		panic("device needs an engine")
	}
	if d.width <= 0 || d.height <= 0 {
		panic(fmt.Sprintf("invalid mesh size %dx%d", d.height, d.width))
	}

	layout := ctrl.DefaultLayout(d.width * d.height)
	if d.layout != nil {
		layout = *d.layout
	}
	if err := layout.Validate(); err != nil {
		panic(err)
	}

	mem := d.mem
	if mem == nil {
		mem = shm.NewInMemoryProvider(MemorySize(layout))
	}

	freq := d.freq
	if freq == 0 {
		freq = 1 * sim.GHz
	}

	localMemSize := d.localMemSize
	if localMemSize <= 0 {
		localMemSize = core.DefaultLocalMemSize
	}

	cyclesPerPoll := d.cyclesPerPoll
	if cyclesPerPoll <= 0 {
		cyclesPerPoll = DefaultCyclesPerPoll
	}

	dev := &Device{
		name:          name,
		engine:        d.engine,
		mem:           mem,
		layout:        layout,
		width:         d.width,
		height:        d.height,
		cyclesPerPoll: cyclesPerPoll,
		images:        d.images,
		cores:         make([][]*core.Core, d.height),
	}

	if d.monitor != nil {
		d.monitor.RegisterEngine(d.engine)
	}

	for y := 0; y < d.height; y++ {
		dev.cores[y] = make([]*core.Core, d.width)
		for x := 0; x < d.width; x++ {
			c := core.NewBuilder().
				WithEngine(d.engine).
				WithFreq(freq).
				WithMemory(mem, layout).
				WithLocalMemSize(localMemSize).
				WithPosition(y, x).
				Build(fmt.Sprintf("%s.Core[%d][%d]", name, y, x), d.width)
			dev.cores[y][x] = c

			if d.monitor != nil {
				d.monitor.RegisterComponent(c)
			}
		}
	}

	return dev
}

// MemorySize is the smallest memory that holds both the control region and
// the argument area of the layout.
func MemorySize(l ctrl.Layout) uint32 {
	return max(l.CtrlOffset+l.CtrlSize, l.ArgsEnd)
}
