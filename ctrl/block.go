package ctrl

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sarchlab/meshlaunch/fabric"
)

var (
	// ErrResourceExhausted means shared memory for a region could not be
	// allocated.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrIoFailure means a read or a write against shared memory failed.
	ErrIoFailure = errors.New("shared memory i/o failure")
)

// Block is the control region of one device.
type Block struct {
	region fabric.Region
	layout Layout
}

// Create allocates the control region at the place the layout defines and
// clears it: every status word is None.
func Create(driver fabric.Driver, layout Layout) (*Block, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	region, err := driver.Alloc(layout.CtrlOffset, layout.CtrlSize)
	if err != nil {
		return nil, fmt.Errorf("%w: control region at %#x: %w",
			ErrResourceExhausted, layout.CtrlOffset, err)
	}

	b := Attach(region, layout)

	zero := make([]byte, layout.ControlSize())
	if err := region.Write(0, 0, 0, zero); err != nil {
		_ = region.Free()
		return nil, fmt.Errorf("%w: clear control region: %w", ErrIoFailure, err)
	}

	return b, nil
}

// Attach wraps an existing control region. It does not modify the region.
func Attach(region fabric.Region, layout Layout) *Block {
	return &Block{region: region, layout: layout}
}

// Layout returns the layout the block was created with.
func (b *Block) Layout() Layout {
	return b.layout
}

// Region returns the region that backs the block.
func (b *Block) Region() fabric.Region {
	return b.region
}

// SetStatus writes the status word of core i. Callers check that i is in
// range.
func (b *Block) SetStatus(i int, s Status) error {
	var word [WordSize]byte
	binary.LittleEndian.PutUint32(word[:], s.Encode())

	err := b.region.Write(0, 0, b.layout.StatusOffset(i), word[:])
	if err != nil {
		return fmt.Errorf("%w: write status of core %d: %w", ErrIoFailure, i, err)
	}

	return nil
}

// Status reads the status word of core i.
func (b *Block) Status(i int) (Status, error) {
	var word [WordSize]byte

	err := b.region.Read(0, 0, b.layout.StatusOffset(i), word[:])
	if err != nil {
		return None, fmt.Errorf("%w: read status of core %d: %w", ErrIoFailure, i, err)
	}

	return DecodeStatus(binary.LittleEndian.Uint32(word[:])), nil
}

// ReadAll reads the whole status array with a single read.
func (b *Block) ReadAll() ([]Status, error) {
	buf := make([]byte, b.layout.ArgsOffsetField())

	if err := b.region.Read(0, 0, 0, buf); err != nil {
		return nil, fmt.Errorf("%w: read status array: %w", ErrIoFailure, err)
	}

	statuses := make([]Status, b.layout.Cores)
	for i := range statuses {
		off := b.layout.StatusOffset(i)
		statuses[i] = DecodeStatus(binary.LittleEndian.Uint32(buf[off : off+WordSize]))
	}

	return statuses, nil
}

// RecordArgsOffset stores the offset of the argument block that was just
// written so that device-side programs can find it.
func (b *Block) RecordArgsOffset(offset uint32) error {
	var word [WordSize]byte
	binary.LittleEndian.PutUint32(word[:], offset)

	err := b.region.Write(0, 0, b.layout.ArgsOffsetField(), word[:])
	if err != nil {
		return fmt.Errorf("%w: write argsoffset: %w", ErrIoFailure, err)
	}

	return nil
}

// ArgsOffset reads the offset of the current argument block.
func (b *Block) ArgsOffset() (uint32, error) {
	var word [WordSize]byte

	err := b.region.Read(0, 0, b.layout.ArgsOffsetField(), word[:])
	if err != nil {
		return 0, fmt.Errorf("%w: read argsoffset: %w", ErrIoFailure, err)
	}

	return binary.LittleEndian.Uint32(word[:]), nil
}

// Free releases the control region.
func (b *Block) Free() error {
	return b.region.Free()
}
