// Package args defines the argument block that carries the call arguments of
// a launch to the cores.
//
// An argument block is a header followed by the concatenated argument bytes:
//
//	uint32 nargs
//	uint32 size[maxArgs]
//	byte   payload[size[0] + ... + size[nargs-1]]
//
// All words are little-endian and the block is padded with zeros to a
// multiple of 8 bytes.
package args

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sarchlab/meshlaunch/ctrl"
)

var (
	// ErrArgumentsTooLarge means the argument payload exceeds the ceiling of
	// the device.
	ErrArgumentsTooLarge = errors.New("arguments too large")

	// ErrTooManyArgs means there are more arguments than header slots.
	ErrTooManyArgs = errors.New("too many arguments")

	// ErrMalformed means a block could not be decoded.
	ErrMalformed = errors.New("malformed argument block")
)

// HeaderSize returns the size of the header for the given number of slots.
func HeaderSize(maxArgs int) uint32 {
	return ctrl.WordSize * uint32(1+maxArgs)
}

// PayloadSize returns the sum of the argument sizes.
func PayloadSize(args [][]byte) uint64 {
	var n uint64
	for _, a := range args {
		n += uint64(len(a))
	}
	return n
}

// Encode produces the argument block for args. The result only depends on
// the arguments and the limits, so encoding the same list twice yields the
// same bytes.
func Encode(args [][]byte, maxArgs int, maxSize uint32) ([]byte, error) {
	if len(args) > maxArgs {
		return nil, fmt.Errorf("%w: %d arguments, at most %d",
			ErrTooManyArgs, len(args), maxArgs)
	}

	payload := PayloadSize(args)
	if payload > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d bytes, at most %d",
			ErrArgumentsTooLarge, payload, maxSize)
	}

	header := HeaderSize(maxArgs)
	total := ctrl.RoundUp(header+uint32(payload), ctrl.ArgsAlignment)
	buf := make([]byte, total)

	binary.LittleEndian.PutUint32(buf[0:], uint32(len(args)))
	for i, a := range args {
		binary.LittleEndian.PutUint32(buf[ctrl.WordSize*(1+i):], uint32(len(a)))
	}

	offs := header
	for _, a := range args {
		copy(buf[offs:], a)
		offs += uint32(len(a))
	}

	return buf, nil
}

// Decode splits an argument block into its arguments. The returned slices
// alias buf.
func Decode(buf []byte, maxArgs int) ([][]byte, error) {
	header := HeaderSize(maxArgs)
	if uint32(len(buf)) < header {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header",
			ErrMalformed, len(buf))
	}

	n := binary.LittleEndian.Uint32(buf)
	if n > uint32(maxArgs) {
		return nil, fmt.Errorf("%w: %d arguments, at most %d",
			ErrMalformed, n, maxArgs)
	}

	out := make([][]byte, n)
	offs := uint64(header)
	for i := range out {
		size := uint64(binary.LittleEndian.Uint32(buf[ctrl.WordSize*(1+i):]))
		if offs+size > uint64(len(buf)) {
			return nil, fmt.Errorf("%w: argument %d runs past the block",
				ErrMalformed, i)
		}
		out[i] = buf[offs : offs+size]
		offs += size
	}

	return out, nil
}

// DecodeHeader returns the argument sizes stored in a header.
func DecodeHeader(header []byte, maxArgs int) ([]uint32, error) {
	if uint32(len(header)) < HeaderSize(maxArgs) {
		return nil, fmt.Errorf("%w: short header", ErrMalformed)
	}

	n := binary.LittleEndian.Uint32(header)
	if n > uint32(maxArgs) {
		return nil, fmt.Errorf("%w: %d arguments, at most %d",
			ErrMalformed, n, maxArgs)
	}

	sizes := make([]uint32, n)
	for i := range sizes {
		sizes[i] = binary.LittleEndian.Uint32(header[ctrl.WordSize*(1+i):])
	}

	return sizes, nil
}
