package core

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/meshlaunch/ctrl"
	"github.com/sarchlab/meshlaunch/fabric"
	"github.com/sarchlab/meshlaunch/shm"
)

// DefaultLocalMemSize is the size of the local memory of a core in bytes.
const DefaultLocalMemSize = 32768

// Builder can create new cores.
type Builder struct {
	engine       sim.Engine
	freq         sim.Freq
	mem          shm.Provider
	layout       ctrl.Layout
	localMemSize int
	row, col     int
}

// NewBuilder returns a builder with the default local memory size.
func NewBuilder() Builder {
	return Builder{
		localMemSize: DefaultLocalMemSize,
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the core.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithMemory sets the shared memory the core sees. The control region is
// located in it through the layout.
func (b Builder) WithMemory(mem shm.Provider, layout ctrl.Layout) Builder {
	b.mem = mem
	b.layout = layout
	return b
}

// WithLocalMemSize sets the size of the local memory.
func (b Builder) WithLocalMemSize(n int) Builder {
	b.localMemSize = n
	return b
}

// WithPosition sets where the core sits in the grid.
func (b Builder) WithPosition(row, col int) Builder {
	b.row = row
	b.col = col
	return b
}

// Build creates a core. The core reads its status word at index
// row*cols+col of the control region.
func (b Builder) Build(name string, cols int) *Core {
	if b.mem == nil {
		panic("core needs shared memory")
	}

	region, err := shm.NewRegion(b.mem, b.layout.CtrlOffset, b.layout.CtrlSize)
	if err != nil {
		panic(err)
	}

	c := &Core{
		row:    b.row,
		col:    b.col,
		index:  fabric.CoreIndex(b.row, b.col, cols),
		mem:    b.mem,
		ctrl:   ctrl.Attach(region, b.layout),
		layout: b.layout,
		local:  make([]byte, b.localMemSize),
	}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	return c
}
