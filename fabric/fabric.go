// Package fabric defines the boundary between the launch protocol and the
// low-level driver of a mesh of compute cores sharing one memory fabric.
package fabric

// A Region is a byte-addressable window of memory that the host can read and
// write. Shared-memory regions ignore row and col.
type Region interface {
	// Offset returns the offset of the region relative to the base of the
	// memory it was allocated from.
	Offset() uint32
	Size() uint32

	Read(row, col int, offset uint32, buf []byte) error
	Write(row, col int, offset uint32, buf []byte) error

	// Free releases the region. A freed region must not be used again.
	Free() error
}

// A Workgroup is a rectangular group of cores that has been opened on a
// device. Coordinates are relative to the workgroup origin.
type Workgroup interface {
	// Load places a program image on the core at the given coordinate. The
	// core does not run until Start is called.
	Load(image string, row, col int) error

	// Start kicks off the core at the given coordinate.
	Start(row, col int) error

	// Read and Write access the local memory of a core.
	Read(row, col int, offset uint32, buf []byte) error
	Write(row, col int, offset uint32, buf []byte) error

	Close() error
}

// Driver provides the primitive operations of the fabric.
type Driver interface {
	// Init, ResetSystem and Finalize bracket the use of the whole device.
	// They are called once per device open and close.
	Init() error
	ResetSystem() error
	Finalize() error

	// Open binds the rows x cols group of cores whose origin is (row, col).
	Open(row, col, rows, cols int) (Workgroup, error)

	// Alloc allocates or binds the shared-memory region
	// [offset, offset+size).
	Alloc(offset, size uint32) (Region, error)
}
