package api

import "fmt"

// Property identifies a static fact about a device.
type Property int

const (
	PropType Property = iota
	PropNodes
	PropTopology
	PropRows
	PropCols
	PropPlanes
	PropChipRows
	PropChipCols
	PropSIMD
	PropMemSize
	PropMemBase
	PropVersion
	PropMemArch
	PropWhoAmI
)

func (p Property) String() string {
	names := [...]string{
		"Type", "Nodes", "Topology", "Rows", "Cols", "Planes", "ChipRows",
		"ChipCols", "SIMD", "MemSize", "MemBase", "Version", "MemArch", "WhoAmI",
	}
	if p < 0 || int(p) >= len(names) {
		return fmt.Sprintf("Property(%d)", int(p))
	}
	return names[p]
}

// DeviceType identifies the kind of device.
type DeviceType int

const (
	DeviceEpiphany DeviceType = 1
)

// Topology holds the static facts a device reports.
type Topology struct {
	Type       DeviceType
	Rows, Cols int
	Dimensions int
	Planes     int
	ChipRows   int
	ChipCols   int
	SIMD       int
	MemSize    int
	MemBase    uint32
	Version    uint32
}

// Epiphany16 is the 4x4 reference device.
func Epiphany16() Topology {
	return MeshTopology(4, 4)
}

// MeshTopology describes a single-chip rows x cols mesh with the facts of the
// reference device. The chip spans the whole mesh and there is one plane per
// row.
func MeshTopology(rows, cols int) Topology {
	return Topology{
		Type:       DeviceEpiphany,
		Rows:       rows,
		Cols:       cols,
		Dimensions: 2,
		Planes:     rows,
		ChipRows:   rows,
		ChipCols:   cols,
		SIMD:       1,
		MemSize:    32768,
		MemBase:    0x80800000,
		Version:    0xdeadbeef,
	}
}

// Nodes returns the number of cores.
func (t Topology) Nodes() int {
	return t.Rows * t.Cols
}

func (d *deviceImpl) Query(prop Property) (int, error) {
	t := d.topology

	switch prop {
	case PropType:
		return int(t.Type), nil
	case PropNodes:
		return t.Nodes(), nil
	case PropTopology:
		return t.Dimensions, nil
	case PropRows:
		return t.Rows, nil
	case PropCols:
		return t.Cols, nil
	case PropPlanes:
		return t.Planes, nil
	case PropChipRows:
		return t.ChipRows, nil
	case PropChipCols:
		return t.ChipCols, nil
	case PropSIMD:
		return t.SIMD, nil
	case PropMemSize:
		return t.MemSize, nil
	case PropMemBase:
		return int(t.MemBase), nil
	case PropVersion:
		return int(t.Version), nil
	case PropMemArch, PropWhoAmI:
		return 0, fmt.Errorf("%w: %s", ErrNotSupported, prop)
	}

	return 0, fmt.Errorf("%w: %s", ErrInvalidProperty, prop)
}
