package api

import "fmt"

// Team is a contiguous range of cores on one device. The control and argument
// regions belong to the device, not to the team.
type Team struct {
	dev   *deviceImpl
	start int
	count int
}

// Start returns the first core of the team.
func (t *Team) Start() int {
	return t.start
}

// Count returns the number of cores in the team.
func (t *Team) Count() int {
	return t.count
}

// Contains reports whether core i belongs to the team.
func (t *Team) Contains(i int) bool {
	return i >= t.start && i < t.start+t.count
}

// Device returns the device the team was opened on.
func (t *Team) Device() Device {
	return t.dev
}

// OpenTeam only accepts the whole grid for now.
func (d *deviceImpl) OpenTeam(start, count int) (*Team, error) {
	n := d.topology.Nodes()
	if start != 0 || count != n {
		return nil, fmt.Errorf("%w: team [%d, %d) is not the whole grid of %d cores",
			ErrInvalidRange, start, start+count, n)
	}

	if _, err := d.opened(); err != nil {
		return nil, err
	}

	return &Team{dev: d, start: start, count: count}, nil
}

// member checks that the team was opened on this device.
func (d *deviceImpl) member(team *Team) error {
	if team == nil || team.dev != d {
		return fmt.Errorf("%w: team does not belong to %s", ErrNotOpen, d.name)
	}
	return nil
}
