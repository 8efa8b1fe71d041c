//go:build unix

package shm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// SharedMemoryProvider maps a file so that a device model running in another
// process sees the same bytes.
type SharedMemoryProvider struct {
	path string
	file *os.File
	mem  span
}

// SharedMemoryOptions names the backing file. With Create set the file is
// created if missing and sized to Size; otherwise its current size is used.
type SharedMemoryOptions struct {
	Path   string
	Size   uint32
	Create bool
}

// DefaultSharedMemoryPath prefers /dev/shm and falls back to the temp dir.
func DefaultSharedMemoryPath() string {
	if _, err := os.Stat("/dev/shm"); err == nil {
		return "/dev/shm/meshlaunch"
	}
	return filepath.Join(os.TempDir(), "meshlaunch")
}

// OpenSharedMemory opens the backing file and maps all of it.
func OpenSharedMemory(opts SharedMemoryOptions) (*SharedMemoryProvider, error) {
	if opts.Path == "" {
		return nil, errors.New("shared memory path required")
	}
	if opts.Create && opts.Size == 0 {
		return nil, errors.New("shared memory size required when creating")
	}

	path := filepath.Clean(opts.Path)
	file, err := openBacking(path, opts)
	if err != nil {
		return nil, err
	}

	mem, err := mapBacking(file)
	if err != nil {
		return nil, multierr.Append(err, file.Close())
	}

	return &SharedMemoryProvider{path: path, file: file, mem: mem}, nil
}

func openBacking(path string, opts SharedMemoryOptions) (*os.File, error) {
	flags := os.O_RDWR
	if opts.Create {
		flags |= os.O_CREATE
	}

	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open shared memory file: %w", err)
	}

	if opts.Create {
		if err := file.Truncate(int64(opts.Size)); err != nil {
			return nil, multierr.Append(
				fmt.Errorf("size shared memory file: %w", err), file.Close())
		}
	}

	return file, nil
}

func mapBacking(file *os.File) (span, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat shared memory file: %w", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("shared memory file %s is empty", file.Name())
	}
	if info.Size() > int64(^uint32(0)) {
		return nil, fmt.Errorf("shared memory file %s exceeds 4 GiB", file.Name())
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(info.Size()),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap shared memory file: %w", err)
	}

	return span(data), nil
}

// Path returns the file that backs the mapping.
func (s *SharedMemoryProvider) Path() string {
	return s.path
}

func (s *SharedMemoryProvider) Size() uint32 {
	return s.mem.size()
}

func (s *SharedMemoryProvider) ReadAt(offset uint32, dest []byte) error {
	return s.mem.readAt(offset, dest)
}

func (s *SharedMemoryProvider) WriteAt(offset uint32, src []byte) error {
	return s.mem.writeAt(offset, src)
}

func (s *SharedMemoryProvider) AtomicLoad32(offset uint32) (uint32, error) {
	return s.mem.load32(offset)
}

func (s *SharedMemoryProvider) AtomicStore32(offset uint32, val uint32) error {
	return s.mem.store32(offset, val)
}

// Close unmaps the memory and closes the backing file. The file itself is
// left in place.
func (s *SharedMemoryProvider) Close() error {
	var err error
	if s.mem != nil {
		err = multierr.Append(err, unix.Munmap(s.mem))
		s.mem = nil
	}
	if s.file != nil {
		err = multierr.Append(err, s.file.Close())
		s.file = nil
	}
	return err
}
