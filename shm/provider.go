// Package shm provides the shared memory that backs the control and argument
// regions of a device.
package shm

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Provider is a block of memory shared by the host and the cores. It may be
// a buffer of this process or a file mapped by several processes.
type Provider interface {
	Size() uint32
	ReadAt(offset uint32, dest []byte) error
	WriteAt(offset uint32, src []byte) error
	AtomicLoad32(offset uint32) (uint32, error)
	AtomicStore32(offset uint32, val uint32) error
	Close() error
}

var (
	ErrOutOfBounds = errors.New("offset out of bounds")
	ErrMisaligned  = errors.New("offset is not 4-byte aligned")
	ErrClosed      = errors.New("shared memory closed")
)

func inBounds(offset uint32, n int, size uint32) bool {
	end := uint64(offset) + uint64(n)
	return end <= uint64(size)
}

// span is the memory a provider serves. A nil span is closed.
type span []byte

func (s span) size() uint32 {
	return uint32(len(s))
}

func (s span) check(offset uint32, n int) error {
	if s == nil {
		return ErrClosed
	}
	if !inBounds(offset, n, s.size()) {
		return fmt.Errorf("[%#x, +%d) of %#x bytes: %w", offset, n, len(s), ErrOutOfBounds)
	}
	return nil
}

func (s span) readAt(offset uint32, dest []byte) error {
	if err := s.check(offset, len(dest)); err != nil {
		return err
	}
	copy(dest, s[offset:])
	return nil
}

func (s span) writeAt(offset uint32, src []byte) error {
	if err := s.check(offset, len(src)); err != nil {
		return err
	}
	copy(s[offset:], src)
	return nil
}

func (s span) word(offset uint32) (*uint32, error) {
	if err := s.check(offset, 4); err != nil {
		return nil, err
	}
	if offset%4 != 0 {
		return nil, fmt.Errorf("%#x: %w", offset, ErrMisaligned)
	}
	return (*uint32)(unsafe.Pointer(&s[offset])), nil
}

func (s span) load32(offset uint32) (uint32, error) {
	w, err := s.word(offset)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(w), nil
}

func (s span) store32(offset uint32, val uint32) error {
	w, err := s.word(offset)
	if err != nil {
		return err
	}
	atomic.StoreUint32(w, val)
	return nil
}
