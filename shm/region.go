package shm

import (
	"encoding/binary"
	"fmt"
)

// Region is a window [offset, offset+size) of a provider. It satisfies
// fabric.Region; row and col are ignored because shared memory is visible to
// every core at the same address.
//
// Single aligned words go through the provider's atomic path, so a status
// word written by one side is never observed half-written by the other.
type Region struct {
	mem    Provider
	offset uint32
	size   uint32
	freed  bool
}

// NewRegion binds a window of the provider.
func NewRegion(mem Provider, offset, size uint32) (*Region, error) {
	if !inBounds(offset, int(size), mem.Size()) {
		return nil, fmt.Errorf("region [%#x, +%#x) exceeds %#x bytes: %w",
			offset, size, mem.Size(), ErrOutOfBounds)
	}

	return &Region{mem: mem, offset: offset, size: size}, nil
}

// Offset returns the offset of the region in the provider.
func (r *Region) Offset() uint32 {
	return r.offset
}

// Size returns the size of the region in bytes.
func (r *Region) Size() uint32 {
	return r.size
}

func (r *Region) Read(_, _ int, offset uint32, buf []byte) error {
	abs, err := r.translate(offset, len(buf))
	if err != nil {
		return err
	}

	if isWord(abs, len(buf)) {
		v, err := r.mem.AtomicLoad32(abs)
		if err != nil {
			return err
		}
		binary.NativeEndian.PutUint32(buf, v)
		return nil
	}

	return r.mem.ReadAt(abs, buf)
}

func (r *Region) Write(_, _ int, offset uint32, buf []byte) error {
	abs, err := r.translate(offset, len(buf))
	if err != nil {
		return err
	}

	if isWord(abs, len(buf)) {
		return r.mem.AtomicStore32(abs, binary.NativeEndian.Uint32(buf))
	}

	return r.mem.WriteAt(abs, buf)
}

// Free detaches the region from the provider. The provider is left open.
func (r *Region) Free() error {
	r.freed = true
	return nil
}

func (r *Region) translate(offset uint32, n int) (uint32, error) {
	if r.freed {
		return 0, ErrClosed
	}
	if !inBounds(offset, n, r.size) {
		return 0, fmt.Errorf("access [%#x, +%d) outside region of %#x bytes: %w",
			offset, n, r.size, ErrOutOfBounds)
	}
	return r.offset + offset, nil
}

func isWord(abs uint32, n int) bool {
	return n == 4 && abs%4 == 0
}
