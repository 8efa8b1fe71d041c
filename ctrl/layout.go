package ctrl

import (
	"errors"
	"fmt"
)

// WordSize is the size of a status word and of the argsoffset field.
const WordSize = 4

// Default placement of the control region and of the argument area within
// shared memory.
const (
	DefaultCtrlOffset  = 0x01000000
	DefaultCtrlSize    = 0x1000
	DefaultArgsEnd     = 0x01000000
	DefaultMaxArgsSize = 0x10000
	DefaultMaxArgs     = 8
)

// Layout describes where the control region and the argument area live in
// shared memory. The host and the device-side programs must agree on it.
type Layout struct {
	// Cores is the number of status words.
	Cores int

	CtrlOffset uint32
	CtrlSize   uint32

	// ArgsEnd is the top of the argument area. Argument blocks are placed
	// flush against it and grow downwards.
	ArgsEnd uint32

	// MaxArgsSize is the ceiling on the sum of the argument sizes.
	MaxArgsSize uint32

	// MaxArgs is the number of size slots in the argument header.
	MaxArgs int
}

// DefaultLayout returns the reference layout for a device with the given
// number of cores.
func DefaultLayout(cores int) Layout {
	return Layout{
		Cores:       cores,
		CtrlOffset:  DefaultCtrlOffset,
		CtrlSize:    DefaultCtrlSize,
		ArgsEnd:     DefaultArgsEnd,
		MaxArgsSize: DefaultMaxArgsSize,
		MaxArgs:     DefaultMaxArgs,
	}
}

// StatusOffset returns the byte offset of the status word of core i within
// the control region.
func (l Layout) StatusOffset(i int) uint32 {
	return uint32(i) * WordSize
}

// ArgsOffsetField returns the byte offset of the argsoffset field within the
// control region.
func (l Layout) ArgsOffsetField() uint32 {
	return uint32(l.Cores) * WordSize
}

// ControlSize returns the number of bytes the control structure occupies.
func (l Layout) ControlSize() uint32 {
	return l.ArgsOffsetField() + WordSize
}

// ArgsHeaderSize returns the size of the argument block header: the count
// followed by MaxArgs size slots.
func (l Layout) ArgsHeaderSize() uint32 {
	return WordSize + uint32(l.MaxArgs)*WordSize
}

// MaxArgsBlockSize returns the largest argument block the layout allows.
func (l Layout) MaxArgsBlockSize() uint32 {
	return RoundUp(l.ArgsHeaderSize()+l.MaxArgsSize, ArgsAlignment)
}

// ArgsAlignment is the alignment the fabric requires for argument blocks.
const ArgsAlignment = 8

// RoundUp rounds n up to a multiple of align, which must be a power of two.
func RoundUp(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

// ErrInvalidLayout means a layout does not fit together.
var ErrInvalidLayout = errors.New("invalid layout")

// Validate checks the layout for internal consistency.
func (l Layout) Validate() error {
	switch {
	case l.Cores <= 0:
		return fmt.Errorf("%w: %d cores", ErrInvalidLayout, l.Cores)
	case l.MaxArgs <= 0:
		return fmt.Errorf("%w: %d argument slots", ErrInvalidLayout, l.MaxArgs)
	case l.CtrlSize < l.ControlSize():
		return fmt.Errorf("%w: control region of %d bytes cannot hold %d cores",
			ErrInvalidLayout, l.CtrlSize, l.Cores)
	case l.ArgsEnd < l.MaxArgsBlockSize():
		return fmt.Errorf("%w: argument area ending at %#x cannot hold %d bytes",
			ErrInvalidLayout, l.ArgsEnd, l.MaxArgsBlockSize())
	}

	argsLow := uint64(l.ArgsEnd - l.MaxArgsBlockSize())
	ctrlLow := uint64(l.CtrlOffset)
	ctrlHigh := ctrlLow + uint64(l.CtrlSize)
	if argsLow < ctrlHigh && ctrlLow < uint64(l.ArgsEnd) {
		return fmt.Errorf("%w: argument area overlaps control region", ErrInvalidLayout)
	}

	return nil
}
