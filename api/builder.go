package api

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sarchlab/meshlaunch/ctrl"
	"github.com/sarchlab/meshlaunch/fabric"
)

// DefaultPollInterval is how long Wait sleeps between two reads of the
// status array.
const DefaultPollInterval = time.Millisecond

// DeviceBuilder creates a new instance of Device.
type DeviceBuilder struct {
	driver           fabric.Driver
	topology         *Topology
	layout           *ctrl.Layout
	clock            clock.Clock
	pollInterval     time.Duration
	waitTimeout      time.Duration
	deviceScopedWait bool
}

// WithDriver sets the fabric driver the device runs on.
func (b DeviceBuilder) WithDriver(driver fabric.Driver) DeviceBuilder {
	b.driver = driver
	return b
}

// WithTopology sets the static facts of the device. The default is the 4x4
// reference device.
func (b DeviceBuilder) WithTopology(t Topology) DeviceBuilder {
	b.topology = &t
	return b
}

// WithLayout sets where the control region and the argument area live. The
// layout must describe as many cores as the topology.
func (b DeviceBuilder) WithLayout(l ctrl.Layout) DeviceBuilder {
	b.layout = &l
	return b
}

// WithClock sets the clock Wait sleeps on.
func (b DeviceBuilder) WithClock(c clock.Clock) DeviceBuilder {
	b.clock = c
	return b
}

// WithPollInterval sets how long Wait sleeps between polls.
func (b DeviceBuilder) WithPollInterval(d time.Duration) DeviceBuilder {
	b.pollInterval = d
	return b
}

// WithWaitTimeout bounds how long Wait polls. Zero, the default, waits
// forever.
func (b DeviceBuilder) WithWaitTimeout(d time.Duration) DeviceBuilder {
	b.waitTimeout = d
	return b
}

// WithDeviceScopedWait makes Wait watch every core of the device instead of
// the cores of the team, so it also waits for cores of earlier launches.
func (b DeviceBuilder) WithDeviceScopedWait() DeviceBuilder {
	b.deviceScopedWait = true
	return b
}

// Build creates a device.
func (b DeviceBuilder) Build(name string) Device {
	if b.driver == nil {
		panic("device needs a fabric driver")
	}

	d := &deviceImpl{
		name:             name,
		driver:           b.driver,
		topology:         Epiphany16(),
		clock:            b.clock,
		pollInterval:     b.pollInterval,
		waitTimeout:      b.waitTimeout,
		deviceScopedWait: b.deviceScopedWait,
	}

	if b.topology != nil {
		d.topology = *b.topology
	}

	d.layout = ctrl.DefaultLayout(d.topology.Nodes())
	if b.layout != nil {
		d.layout = *b.layout
	}

	if d.layout.Cores != d.topology.Nodes() {
		panic(fmt.Sprintf("layout has %d cores, topology has %d",
			d.layout.Cores, d.topology.Nodes()))
	}

	if d.clock == nil {
		d.clock = clock.New()
	}

	if d.pollInterval <= 0 {
		d.pollInterval = DefaultPollInterval
	}

	return d
}
